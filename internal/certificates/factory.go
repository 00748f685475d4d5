package certificates

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"time"
)

const (
	certificatePemBlockType                   = "CERTIFICATE"
	defaultCertificateSerialNumberUpperBitLen = 128
)

// RSAMinimumKeySizeInBits is the smallest RSA modulus the factory will produce.
const RSAMinimumKeySizeInBits = 2048

// ErrKeyTooSmall is returned when the key generator yields a modulus shorter than requested.
var ErrKeyTooSmall = errors.New("generated key is smaller than the requested size")

// Certificate is an issued certificate together with its private key.
type Certificate struct {
	X509       *x509.Certificate
	DER        []byte
	PrivateKey *rsa.PrivateKey
	// Issuer is the signing certificate without its private key; nil when self-signed.
	Issuer *Certificate
}

const (
	generalNameTagDNS       = 2
	generalNameTagIPAddress = 7
)

var (
	subjectAlternativeNameExtensionOID = asn1.ObjectIdentifier{2, 5, 29, 17}
	extendedKeyUsageExtensionOID       = asn1.ObjectIdentifier{2, 5, 29, 37}

	extendedKeyUsageIdentifiers = map[x509.ExtKeyUsage]asn1.ObjectIdentifier{
		x509.ExtKeyUsageServerAuth:      {1, 3, 6, 1, 5, 5, 7, 3, 1},
		x509.ExtKeyUsageClientAuth:      {1, 3, 6, 1, 5, 5, 7, 3, 2},
		x509.ExtKeyUsageCodeSigning:     {1, 3, 6, 1, 5, 5, 7, 3, 3},
		x509.ExtKeyUsageEmailProtection: {1, 3, 6, 1, 5, 5, 7, 3, 4},
		x509.ExtKeyUsageTimeStamping:    {1, 3, 6, 1, 5, 5, 7, 3, 8},
		x509.ExtKeyUsageOCSPSigning:     {1, 3, 6, 1, 5, 5, 7, 3, 9},
	}
)

// Extension configures one X.509 extension on the certificate template.
type Extension func(template *x509.Certificate)

// BasicConstraints marks the certificate as a CA with the given path length, or as an end entity.
func BasicConstraints(isCertificateAuthority bool, pathLength int) Extension {
	return func(template *x509.Certificate) {
		template.BasicConstraintsValid = true
		template.IsCA = isCertificateAuthority
		if !isCertificateAuthority || pathLength < 0 {
			template.MaxPathLen = -1
			return
		}
		template.MaxPathLen = pathLength
		template.MaxPathLenZero = pathLength == 0
	}
}

// KeyUsage sets the key usage bits.
func KeyUsage(usage x509.KeyUsage) Extension {
	return func(template *x509.Certificate) {
		template.KeyUsage = usage
	}
}

// ExtendedKeyUsage sets the extended key usage purposes.
// A critical extension is encoded explicitly; usages without a known object identifier stay non-critical.
func ExtendedKeyUsage(critical bool, usages ...x509.ExtKeyUsage) Extension {
	return func(template *x509.Certificate) {
		template.ExtKeyUsage = append([]x509.ExtKeyUsage{}, usages...)
		if !critical {
			return
		}
		identifiers := make([]asn1.ObjectIdentifier, 0, len(usages))
		for _, usage := range usages {
			identifier, known := extendedKeyUsageIdentifiers[usage]
			if !known {
				return
			}
			identifiers = append(identifiers, identifier)
		}
		appendCriticalExtension(template, extendedKeyUsageExtensionOID, identifiers)
	}
}

// SubjectAlternativeNames adds DNS names and IP addresses.
func SubjectAlternativeNames(critical bool, dnsNames []string, ipAddresses []net.IP) Extension {
	return func(template *x509.Certificate) {
		template.DNSNames = append(template.DNSNames, dnsNames...)
		template.IPAddresses = append(template.IPAddresses, ipAddresses...)
		if !critical {
			return
		}
		generalNames := make([]asn1.RawValue, 0, len(template.DNSNames)+len(template.IPAddresses))
		for _, dnsName := range template.DNSNames {
			generalNames = append(generalNames, asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: generalNameTagDNS, Bytes: []byte(dnsName)})
		}
		for _, ipAddress := range template.IPAddresses {
			encodedAddress := ipAddress.To4()
			if encodedAddress == nil {
				encodedAddress = ipAddress
			}
			generalNames = append(generalNames, asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: generalNameTagIPAddress, Bytes: encodedAddress})
		}
		appendCriticalExtension(template, subjectAlternativeNameExtensionOID, generalNames)
	}
}

// appendCriticalExtension replaces the standard library encoding of identifier with a critical one.
func appendCriticalExtension(template *x509.Certificate, identifier asn1.ObjectIdentifier, value any) {
	encodedValue, err := asn1.Marshal(value)
	if err != nil {
		return
	}
	extensions := template.ExtraExtensions[:0:0]
	for _, extension := range template.ExtraExtensions {
		if !extension.Id.Equal(identifier) {
			extensions = append(extensions, extension)
		}
	}
	template.ExtraExtensions = append(extensions, pkix.Extension{Id: identifier, Critical: true, Value: encodedValue})
}

// VendorExtension adds an extension carrying a raw payload.
func VendorExtension(identifier asn1.ObjectIdentifier, critical bool, payload []byte) Extension {
	return func(template *x509.Certificate) {
		template.ExtraExtensions = append(template.ExtraExtensions, pkix.Extension{
			Id:       identifier,
			Critical: critical,
			Value:    append([]byte{}, payload...),
		})
	}
}

// CertificateRequest describes a certificate to create.
type CertificateRequest struct {
	Subject        pkix.Name
	Extensions     []Extension
	NotBefore      time.Time
	NotAfter       time.Time
	MinimumKeySize int
	Issuer         *Certificate
}

// KeyGenerator produces RSA keys.
type KeyGenerator func(randomnessSource io.Reader, bits int) (*rsa.PrivateKey, error)

// FactoryConfiguration identifies the product and owner recorded in certificate subjects.
type FactoryConfiguration struct {
	ProductName        string
	Owner              string
	CertificateVersion byte
	CAKeySize          int
	LeafKeySize        int
}

// Factory creates CA and development certificates.
type Factory struct {
	randomnessSource io.Reader
	generateKey      KeyGenerator
	configuration    FactoryConfiguration
}

// NewFactory constructs a Factory backed by crypto/rsa key generation.
func NewFactory(randomnessSource io.Reader, configuration FactoryConfiguration) Factory {
	return NewFactoryWithKeyGenerator(randomnessSource, rsa.GenerateKey, configuration)
}

// NewFactoryWithKeyGenerator constructs a Factory using the provided key generator.
func NewFactoryWithKeyGenerator(randomnessSource io.Reader, generateKey KeyGenerator, configuration FactoryConfiguration) Factory {
	if randomnessSource == nil {
		randomnessSource = rand.Reader
	}
	return Factory{
		randomnessSource: randomnessSource,
		generateKey:      generateKey,
		configuration:    configuration,
	}
}

// CreateCertificate generates a key and signs the certificate, self-signed when the request has no issuer.
func (factory Factory) CreateCertificate(request CertificateRequest) (Certificate, error) {
	keySize := max(request.MinimumKeySize, RSAMinimumKeySizeInBits)
	privateKey, privateKeyErr := factory.generateKey(factory.randomnessSource, keySize)
	if privateKeyErr != nil {
		return Certificate{}, fmt.Errorf("generate private key: %w", privateKeyErr)
	}
	if privateKey.N.BitLen() < keySize {
		return Certificate{}, fmt.Errorf("%w: requested %d bits, got %d", ErrKeyTooSmall, keySize, privateKey.N.BitLen())
	}

	serialNumber, serialErr := factory.generateSerialNumber()
	if serialErr != nil {
		return Certificate{}, serialErr
	}
	subjectKeyIdentifier, identifierErr := subjectKeyIdentifier(&privateKey.PublicKey)
	if identifierErr != nil {
		return Certificate{}, identifierErr
	}

	template := &x509.Certificate{
		SerialNumber:       serialNumber,
		Subject:            request.Subject,
		NotBefore:          request.NotBefore.UTC(),
		NotAfter:           request.NotAfter.UTC(),
		SignatureAlgorithm: x509.SHA256WithRSA,
		SubjectKeyId:       subjectKeyIdentifier,
	}
	for _, extension := range request.Extensions {
		extension(template)
	}

	parent := template
	signingKey := privateKey
	if request.Issuer != nil {
		parent = request.Issuer.X509
		signingKey = request.Issuer.PrivateKey
		if parent == nil || signingKey == nil {
			return Certificate{}, errors.New("issuer certificate must carry its private key")
		}
	}

	certificateDer, certificateErr := x509.CreateCertificate(factory.randomnessSource, template, parent, &privateKey.PublicKey, signingKey)
	if certificateErr != nil {
		return Certificate{}, fmt.Errorf("create certificate: %w", certificateErr)
	}
	parsedCertificate, parseErr := x509.ParseCertificate(certificateDer)
	if parseErr != nil {
		return Certificate{}, fmt.Errorf("parse certificate: %w", parseErr)
	}

	var issuer *Certificate
	if request.Issuer != nil {
		issuerPublicPart := *request.Issuer
		issuerPublicPart.PrivateKey = nil
		issuer = &issuerPublicPart
	}

	return Certificate{
		X509:       parsedCertificate,
		DER:        certificateDer,
		PrivateKey: privateKey,
		Issuer:     issuer,
	}, nil
}

func (factory Factory) generateSerialNumber() (*big.Int, error) {
	upperBound := new(big.Int).Lsh(big.NewInt(1), defaultCertificateSerialNumberUpperBitLen)
	serialNumber, err := rand.Int(factory.randomnessSource, upperBound)
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}
	return serialNumber.Add(serialNumber, big.NewInt(1)), nil
}

func subjectKeyIdentifier(publicKey *rsa.PublicKey) ([]byte, error) {
	publicKeyDer, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	var subjectPublicKeyInfo struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(publicKeyDer, &subjectPublicKeyInfo); err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	digest := sha1.Sum(subjectPublicKeyInfo.PublicKey.Bytes)
	return digest[:], nil
}

// Thumbprint returns the upper-case hexadecimal SHA-1 digest of the certificate.
func (certificate Certificate) Thumbprint() string {
	digest := sha1.Sum(certificate.DER)
	return fmt.Sprintf("%X", digest[:])
}
