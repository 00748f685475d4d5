package certificates

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"net"
	"time"
)

// CreateDevelopmentCertificate issues the localhost server certificate under certificateAuthority.
func (factory Factory) CreateDevelopmentCertificate(notBefore time.Time, notAfter time.Time, certificateAuthority Certificate) (Certificate, error) {
	if certificateAuthority.X509 == nil || !certificateAuthority.X509.IsCA {
		return Certificate{}, errors.New("create development certificate: issuer is not a certificate authority")
	}

	ipAddresses := make([]net.IP, 0, len(developmentCertificateIPAddresses))
	for _, address := range developmentCertificateIPAddresses {
		ipAddresses = append(ipAddresses, net.ParseIP(address))
	}

	developmentCertificate, err := factory.CreateCertificate(CertificateRequest{
		Subject: pkix.Name{CommonName: LocalhostSubjectCommonName},
		Extensions: []Extension{
			BasicConstraints(false, -1),
			KeyUsage(x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment),
			ExtendedKeyUsage(true, x509.ExtKeyUsageServerAuth),
			SubjectAlternativeNames(true, developmentCertificateDNSNames, ipAddresses),
			VendorExtension(DevelopmentCertificateOID, false, factory.markerPayload()),
		},
		NotBefore:      notBefore,
		NotAfter:       notAfter,
		MinimumKeySize: factory.configuration.LeafKeySize,
		Issuer:         &certificateAuthority,
	})
	if err != nil {
		return Certificate{}, fmt.Errorf("create development certificate: %w", err)
	}
	return developmentCertificate, nil
}

func (factory Factory) markerPayload() []byte {
	if factory.configuration.CertificateVersion == 0 {
		return []byte(DevelopmentCertificateFriendlyName)
	}
	return []byte{factory.configuration.CertificateVersion}
}

// IsDevelopmentCertificate reports whether certificate carries the development marker extension.
func IsDevelopmentCertificate(certificate *x509.Certificate) bool {
	for _, extension := range certificate.Extensions {
		if extension.Id.Equal(DevelopmentCertificateOID) {
			return true
		}
	}
	return false
}
