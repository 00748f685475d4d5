package certificates

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFactoryConfiguration = FactoryConfiguration{
	ProductName:        DefaultProductName,
	Owner:              "developer@workstation",
	CertificateVersion: CurrentCertificateVersion,
	CAKeySize:          RSAMinimumKeySizeInBits,
	LeafKeySize:        RSAMinimumKeySizeInBits,
}

func newTestChain(testingInstance *testing.T) (Certificate, Certificate) {
	testingInstance.Helper()
	factory := NewFactory(rand.Reader, testFactoryConfiguration)
	now := time.Now().UTC()
	certificateAuthority, authorityErr := factory.CreateCACertificate(now, now.AddDate(10, 0, 0))
	require.NoError(testingInstance, authorityErr)
	developmentCertificate, developmentErr := factory.CreateDevelopmentCertificate(now, now.AddDate(1, 0, 0), certificateAuthority)
	require.NoError(testingInstance, developmentErr)
	return certificateAuthority, developmentCertificate
}

func TestCreateCertificateSelfSigned(testingInstance *testing.T) {
	factory := NewFactory(rand.Reader, testFactoryConfiguration)
	now := time.Now().UTC()

	certificate, err := factory.CreateCertificate(CertificateRequest{
		Subject:    pkix.Name{CommonName: "self-signed"},
		Extensions: []Extension{BasicConstraints(true, 0), KeyUsage(x509.KeyUsageCertSign)},
		NotBefore:  now,
		NotAfter:   now.Add(time.Hour),
	})
	require.NoError(testingInstance, err)

	require.NoError(testingInstance, certificate.X509.CheckSignatureFrom(certificate.X509))
	assert.Equal(testingInstance, certificate.X509.Subject.String(), certificate.X509.Issuer.String())
	assert.Equal(testingInstance, RSAMinimumKeySizeInBits, certificate.PrivateKey.N.BitLen())
	assert.True(testingInstance, certificate.PrivateKey.PublicKey.Equal(certificate.X509.PublicKey))
	assert.Equal(testingInstance, x509.SHA256WithRSA, certificate.X509.SignatureAlgorithm)
	assert.True(testingInstance, certificate.X509.MaxPathLenZero)
	assert.Nil(testingInstance, certificate.Issuer)
}

func TestCreateCertificateHonorsLargerMinimumKeySize(testingInstance *testing.T) {
	var requestedBits int
	generator := func(randomnessSource io.Reader, bits int) (*rsa.PrivateKey, error) {
		requestedBits = bits
		return rsa.GenerateKey(randomnessSource, RSAMinimumKeySizeInBits)
	}
	factory := NewFactoryWithKeyGenerator(rand.Reader, generator, testFactoryConfiguration)
	now := time.Now().UTC()

	_, err := factory.CreateCertificate(CertificateRequest{
		Subject:        pkix.Name{CommonName: "short"},
		NotBefore:      now,
		NotAfter:       now.Add(time.Hour),
		MinimumKeySize: 3072,
	})
	assert.Equal(testingInstance, 3072, requestedBits)
	require.Error(testingInstance, err)
	assert.True(testingInstance, errors.Is(err, ErrKeyTooSmall))
}

func TestCreateCertificatePropagatesKeyGenerationFailure(testingInstance *testing.T) {
	generator := func(io.Reader, int) (*rsa.PrivateKey, error) {
		return nil, errors.New("entropy exhausted")
	}
	factory := NewFactoryWithKeyGenerator(rand.Reader, generator, testFactoryConfiguration)

	_, err := factory.CreateCertificate(CertificateRequest{Subject: pkix.Name{CommonName: "broken"}})
	require.Error(testingInstance, err)
	assert.Contains(testingInstance, err.Error(), "entropy exhausted")
}

func TestCreateCACertificate(testingInstance *testing.T) {
	certificateAuthority, _ := newTestChain(testingInstance)
	authority := certificateAuthority.X509

	assert.Equal(testingInstance, []string{"ASP.NET Core dev CA"}, authority.Subject.Organization)
	assert.Equal(testingInstance, []string{"developer@workstation"}, authority.Subject.OrganizationalUnit)
	assert.True(testingInstance, authority.IsCA)
	assert.Equal(testingInstance, 1, authority.MaxPathLen)
	assert.Equal(testingInstance, x509.KeyUsageCertSign, authority.KeyUsage)
	assert.False(testingInstance, IsDevelopmentCertificate(authority))
}

func TestCreateDevelopmentCertificate(testingInstance *testing.T) {
	certificateAuthority, developmentCertificate := newTestChain(testingInstance)
	leaf := developmentCertificate.X509

	require.NoError(testingInstance, leaf.CheckSignatureFrom(certificateAuthority.X509))
	assert.Equal(testingInstance, certificateAuthority.X509.Subject.String(), leaf.Issuer.String())
	assert.Equal(testingInstance, "localhost", leaf.Subject.CommonName)
	assert.False(testingInstance, leaf.IsCA)
	assert.Equal(testingInstance, x509.KeyUsageDigitalSignature|x509.KeyUsageKeyEncipherment, leaf.KeyUsage)
	assert.Equal(testingInstance, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, leaf.ExtKeyUsage)
	assert.Equal(testingInstance, []string{"localhost", "*.dev.localhost", "*.dev.internal", "host.docker.internal", "host.containers.internal"}, leaf.DNSNames)
	require.Len(testingInstance, leaf.IPAddresses, 2)
	assert.Equal(testingInstance, "127.0.0.1", leaf.IPAddresses[0].String())
	assert.Equal(testingInstance, "::1", leaf.IPAddresses[1].String())
	assert.NotEqual(testingInstance, certificateAuthority.X509.SerialNumber, leaf.SerialNumber)
	assert.True(testingInstance, developmentCertificate.PrivateKey.PublicKey.Equal(leaf.PublicKey))

	var markerFound bool
	criticalExtensions := map[string]bool{}
	for _, extension := range leaf.Extensions {
		criticalExtensions[extension.Id.String()] = extension.Critical
		if extension.Id.Equal(DevelopmentCertificateOID) {
			markerFound = true
			assert.False(testingInstance, extension.Critical)
			assert.Equal(testingInstance, []byte{6}, extension.Value)
		}
	}
	assert.True(testingInstance, markerFound)
	assert.True(testingInstance, criticalExtensions["2.5.29.17"], "subject alternative names must be critical")
	assert.True(testingInstance, criticalExtensions["2.5.29.37"], "extended key usage must be critical")
	assert.Empty(testingInstance, leaf.UnhandledCriticalExtensions)

	roots := x509.NewCertPool()
	roots.AddCert(certificateAuthority.X509)
	_, verifyErr := leaf.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: roots})
	assert.NoError(testingInstance, verifyErr)
}

func TestCreateDevelopmentCertificateDropsIssuerPrivateKey(testingInstance *testing.T) {
	certificateAuthority, developmentCertificate := newTestChain(testingInstance)

	require.NotNil(testingInstance, developmentCertificate.Issuer)
	assert.Nil(testingInstance, developmentCertificate.Issuer.PrivateKey)
	assert.Equal(testingInstance, certificateAuthority.DER, developmentCertificate.Issuer.DER)
	assert.NotNil(testingInstance, certificateAuthority.PrivateKey)
}

func TestExtendedKeyUsageWithUnknownUsageStaysNonCritical(testingInstance *testing.T) {
	template := &x509.Certificate{}
	ExtendedKeyUsage(true, x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageNetscapeServerGatedCrypto)(template)

	assert.Equal(testingInstance, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageNetscapeServerGatedCrypto}, template.ExtKeyUsage)
	assert.Empty(testingInstance, template.ExtraExtensions)
}

func TestCreateDevelopmentCertificateRejectsNonAuthorityIssuer(testingInstance *testing.T) {
	_, developmentCertificate := newTestChain(testingInstance)
	factory := NewFactory(rand.Reader, testFactoryConfiguration)
	now := time.Now().UTC()

	_, err := factory.CreateDevelopmentCertificate(now, now.Add(time.Hour), developmentCertificate)
	assert.Error(testingInstance, err)
}

func TestMarkerPayloadFallsBackToFriendlyName(testingInstance *testing.T) {
	configuration := testFactoryConfiguration
	configuration.CertificateVersion = 0
	factory := NewFactory(rand.Reader, configuration)
	assert.Equal(testingInstance, []byte(DevelopmentCertificateFriendlyName), factory.markerPayload())
}

func TestCertificatePEMRoundTrip(testingInstance *testing.T) {
	_, developmentCertificate := newTestChain(testingInstance)

	encoded, encodeErr := EncodeCertificatePEM(developmentCertificate)
	require.NoError(testingInstance, encodeErr)
	assert.True(testingInstance, bytes.HasPrefix(encoded, []byte("-----BEGIN CERTIFICATE-----")))

	decoded, decodeErr := ParseCertificatePEM(encoded)
	require.NoError(testingInstance, decodeErr)
	assert.Equal(testingInstance, developmentCertificate.DER, decoded.Raw)
}

func TestThumbprintIsUpperCaseSHA1(testingInstance *testing.T) {
	_, developmentCertificate := newTestChain(testingInstance)
	thumbprint := developmentCertificate.Thumbprint()
	assert.Len(testingInstance, thumbprint, 40)
	assert.Regexp(testingInstance, "^[0-9A-F]+$", thumbprint)
}

func TestWipeClearsCapacity(testingInstance *testing.T) {
	content := make([]byte, 4, 8)
	copy(content[:8], []byte("secretkey"))
	Wipe(content)
	assert.Equal(testingInstance, make([]byte, 8), content[:8])
}
