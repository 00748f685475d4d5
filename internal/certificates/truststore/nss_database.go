package truststore

import (
	"context"
	"fmt"

	"github.com/tyemirov/linux-dev-certs/internal/certificates"
	"github.com/tyemirov/linux-dev-certs/internal/dependencies"
	"github.com/tyemirov/linux-dev-certs/internal/osflavor"
)

const (
	nssDatabasePrefix        = "sql:"
	nssCertificateAuthority  = "C,,"
	temporaryCertificateName = "linux-dev-certs-*.pem"
)

var certutilPackages = map[osflavor.Family]string{
	osflavor.FamilyFedora:    "nss-tools",
	osflavor.FamilyDebian:    "libnss3-tools",
	osflavor.FamilyGentoo:    "dev-libs/nss",
	osflavor.FamilyArch:      "nss",
	osflavor.FamilySlackware: "mozilla-nss",
	osflavor.FamilySUSE:      "mozilla-nss-tools",
}

// NSSDatabase is a browser certificate database managed with certutil.
type NSSDatabase struct {
	name          string
	directoryPath string
	flavor        osflavor.Flavor
	commandRunner certificates.CommandRunner
	fileSystem    certificates.FileSystem
}

// NewNSSDatabase constructs an NSSDatabase for the database in directoryPath.
func NewNSSDatabase(name string, directoryPath string, flavor osflavor.Flavor, commandRunner certificates.CommandRunner, fileSystem certificates.FileSystem) *NSSDatabase {
	return &NSSDatabase{
		name:          name,
		directoryPath: directoryPath,
		flavor:        flavor,
		commandRunner: commandRunner,
		fileSystem:    fileSystem,
	}
}

// Name returns the display name of the database.
func (database *NSSDatabase) Name() string {
	return database.name
}

// DirectoryPath returns the directory holding the database files.
func (database *NSSDatabase) DirectoryPath() string {
	return database.directoryPath
}

// AddDependencies declares certutil with the package providing it on this distribution.
func (database *NSSDatabase) AddDependencies(required *dependencies.Set) error {
	family, known := database.flavor.Family()
	packageName, found := certutilPackages[family]
	if !known || !found {
		return database.flavor.Unsupported()
	}
	required.Add(dependencies.Dependency{Program: commandNameCertutil, Package: packageName})
	return nil
}

// Install imports the public certificate as a trusted CA.
func (database *NSSDatabase) Install(ctx context.Context, name string, certificate certificates.Certificate) error {
	certificatePath, createErr := database.fileSystem.CreateTemporaryFile(temporaryCertificateName)
	if createErr != nil {
		return createErr
	}
	defer func() {
		_ = database.fileSystem.Remove(certificatePath)
	}()

	certificatePem, encodeErr := certificates.EncodeCertificatePEM(certificate)
	if encodeErr != nil {
		return encodeErr
	}
	defer certificates.Wipe(certificatePem)

	if writeErr := database.fileSystem.WriteFile(certificatePath, certificatePem, 0o600); writeErr != nil {
		return fmt.Errorf("write temporary certificate: %w", writeErr)
	}

	arguments := []string{"-d", nssDatabasePrefix + database.directoryPath, "-A", "-t", nssCertificateAuthority, "-n", name, "-i", certificatePath}
	if err := database.commandRunner.Run(ctx, commandNameCertutil, arguments); err != nil {
		return fmt.Errorf("import certificate into %s: %w", database.name, err)
	}
	return nil
}

// Uninstall deletes the certificate called name from the database.
func (database *NSSDatabase) Uninstall(ctx context.Context, name string) error {
	arguments := []string{"-d", nssDatabasePrefix + database.directoryPath, "-D", "-n", name}
	if err := database.commandRunner.Run(ctx, commandNameCertutil, arguments); err != nil {
		return fmt.Errorf("remove certificate from %s: %w", database.name, err)
	}
	return nil
}
