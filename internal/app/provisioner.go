package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/user"

	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/tyemirov/linux-dev-certs/internal/certificates"
	"github.com/tyemirov/linux-dev-certs/internal/certificates/truststore"
	"github.com/tyemirov/linux-dev-certs/internal/dependencies"
	"github.com/tyemirov/linux-dev-certs/internal/devcerts"
	"github.com/tyemirov/linux-dev-certs/internal/osflavor"
	"github.com/tyemirov/linux-dev-certs/pkg/logging"
)

const certificateNamePrefix = "aspnet-dev-"

type provisioner interface {
	InstallAndTrust(ctx context.Context) (bool, error)
	Uninstall(ctx context.Context) error
}

type provisionerFactory func(configurationManager *viper.Viper, configuration devcerts.Configuration, output io.Writer, loggingService *logging.Service) (provisioner, error)

func newSystemProvisioner(configurationManager *viper.Viper, configuration devcerts.Configuration, output io.Writer, loggingService *logging.Service) (provisioner, error) {
	flavor, flavorErr := osflavor.Load(configurationManager.GetString(configKeyOSReleasePath))
	if flavorErr != nil {
		return nil, flavorErr
	}
	homeDirectory, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return nil, fmt.Errorf("resolve home directory: %w", homeErr)
	}
	factoryConfiguration, factoryErr := certificates.DefaultFactoryConfiguration()
	if factoryErr != nil {
		return nil, factoryErr
	}

	personalStoreDirectory := configurationManager.GetString(configKeyPersonalStoreDirectory)
	if personalStoreDirectory == "" {
		defaultDirectory, directoryErr := certificates.DefaultPersonalStoreDirectory()
		if directoryErr != nil {
			return nil, directoryErr
		}
		personalStoreDirectory = defaultDirectory
	}

	discoveryConfiguration := truststore.DiscoveryConfiguration{
		FirefoxDirectories: configurationManager.GetStringSlice(configKeyFirefoxDirectories),
		ChromiumDatabase:   configurationManager.GetString(configKeyChromiumDatabase),
	}
	if len(discoveryConfiguration.FirefoxDirectories) == 0 {
		discoveryConfiguration.FirefoxDirectories = truststore.DefaultFirefoxDirectories(homeDirectory)
	}
	if discoveryConfiguration.ChromiumDatabase == "" {
		discoveryConfiguration.ChromiumDatabase = truststore.DefaultChromiumDatabase(homeDirectory)
	}
	if configurationManager.GetBool(configKeySkipChromium) {
		discoveryConfiguration.ChromiumDatabase = ""
	}

	commandRunner := certificates.NewExecutableRunner()
	fileSystem := certificates.NewOperatingSystemFileSystem()
	orchestrator := devcerts.NewOrchestrator(configuration, devcerts.Collaborators{
		Flavor:          flavor,
		SystemStore:     truststore.NewSystemStore(flavor, commandRunner),
		Discoverer:      truststore.NewDiscoverer(flavor, commandRunner, fileSystem, discoveryConfiguration),
		Resolver:        dependencies.NewResolver(flavor, dependencies.NewEnvironmentLocator(), commandRunner, output, loggingService),
		Factory:         certificates.NewFactory(rand.Reader, factoryConfiguration),
		PersonalStore:   certificates.NewPersonalStore(fileSystem, personalStoreDirectory),
		CommandRunner:   commandRunner,
		FileSystem:      fileSystem,
		Clock:           certificates.NewSystemClock(),
		EffectiveUserID: unix.Geteuid,
		LoggingService:  loggingService,
	})
	return orchestrator, nil
}

func buildProvisioningConfiguration(configurationManager *viper.Viper) (devcerts.Configuration, error) {
	certificateName := configurationManager.GetString(configKeyCertificateName)
	if certificateName == "" {
		currentUser, userErr := user.Current()
		if userErr != nil {
			return devcerts.Configuration{}, fmt.Errorf("look up current user: %w", userErr)
		}
		certificateName = certificateNamePrefix + currentUser.Username
	}

	caValidity := configurationManager.GetDuration(configKeyCAValidity)
	certificateValidity := configurationManager.GetDuration(configKeyCertificateValidity)
	if caValidity <= 0 || certificateValidity <= 0 {
		return devcerts.Configuration{}, fmt.Errorf("certificate validity must be positive (ca %s, certificate %s)", caValidity, certificateValidity)
	}

	configuration := devcerts.Configuration{
		CertificateName:     certificateName,
		InstallDependencies: configurationManager.GetBool(configKeyInstallDependencies),
		CAValidity:          caValidity,
		CertificateValidity: certificateValidity,
		CleanupCommand:      configurationManager.GetStringSlice(configKeyCleanupCommand),
	}

	exportPath := configurationManager.GetString(configKeyExportPath)
	if exportPath != "" {
		exportFormat, formatErr := certificates.ParseExportFormat(configurationManager.GetString(configKeyExportFormat))
		if formatErr != nil {
			return devcerts.Configuration{}, formatErr
		}
		configuration.Export = devcerts.ExportConfiguration{
			Path: exportPath,
			Options: certificates.ExportOptions{
				Format:            exportFormat,
				IncludePrivateKey: configurationManager.GetBool(configKeyExportPrivateKey),
				Password:          configurationManager.GetString(configKeyExportPassword),
			},
		}
	}
	return configuration, nil
}
