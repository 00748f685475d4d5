package certificates

import (
	"encoding/asn1"
	"fmt"
	"os"
	"os/user"
)

const (
	// DefaultProductName prefixes the CA organization.
	DefaultProductName = "ASP.NET Core"
	// CurrentCertificateVersion is written into the development certificate marker extension.
	CurrentCertificateVersion byte = 6
	// DevelopmentCertificateFriendlyName is the marker payload when the version is zero.
	DevelopmentCertificateFriendlyName = "ASP.NET Core HTTPS development certificate"
	// LocalhostSubjectCommonName is the common name of the development certificate.
	LocalhostSubjectCommonName = "localhost"
	// CertificateAuthorityPathLength bounds the chain below the CA.
	CertificateAuthorityPathLength = 1
)

// DevelopmentCertificateOID marks a certificate as a framework development certificate.
var DevelopmentCertificateOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 84, 1, 1}

var developmentCertificateDNSNames = []string{
	"localhost",
	"*.dev.localhost",
	"*.dev.internal",
	"host.docker.internal",
	"host.containers.internal",
}

var developmentCertificateIPAddresses = []string{"127.0.0.1", "::1"}

// DefaultFactoryConfiguration returns the configuration used for the current user and host.
func DefaultFactoryConfiguration() (FactoryConfiguration, error) {
	owner, ownerErr := CurrentOwner()
	if ownerErr != nil {
		return FactoryConfiguration{}, ownerErr
	}
	return FactoryConfiguration{
		ProductName:        DefaultProductName,
		Owner:              owner,
		CertificateVersion: CurrentCertificateVersion,
		CAKeySize:          RSAMinimumKeySizeInBits,
		LeafKeySize:        RSAMinimumKeySizeInBits,
	}, nil
}

// CurrentOwner returns "<user>@<host>" for the invoking user.
func CurrentOwner() (string, error) {
	currentUser, userErr := user.Current()
	if userErr != nil {
		return "", fmt.Errorf("look up current user: %w", userErr)
	}
	hostName, hostErr := os.Hostname()
	if hostErr != nil {
		return "", fmt.Errorf("look up host name: %w", hostErr)
	}
	return currentUser.Username + "@" + hostName, nil
}
