package certificates

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"time"
)

// CreateCACertificate creates the self-signed root certificate authority.
// The returned private key lives only in memory and is never written to disk.
func (factory Factory) CreateCACertificate(notBefore time.Time, notAfter time.Time) (Certificate, error) {
	subject := pkix.Name{
		Organization: []string{factory.configuration.ProductName + " dev CA"},
	}
	if factory.configuration.Owner != "" {
		subject.OrganizationalUnit = []string{factory.configuration.Owner}
	}

	certificateAuthority, err := factory.CreateCertificate(CertificateRequest{
		Subject: subject,
		Extensions: []Extension{
			BasicConstraints(true, CertificateAuthorityPathLength),
			KeyUsage(x509.KeyUsageCertSign),
		},
		NotBefore:      notBefore,
		NotAfter:       notAfter,
		MinimumKeySize: factory.configuration.CAKeySize,
	})
	if err != nil {
		return Certificate{}, fmt.Errorf("create certificate authority: %w", err)
	}
	return certificateAuthority, nil
}
