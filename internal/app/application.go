package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tyemirov/linux-dev-certs/internal/osflavor"
	"github.com/tyemirov/linux-dev-certs/pkg/logging"
)

type contextKey string

const (
	contextKeyApplicationResources contextKey = "application-resources"

	defaultConfigFileName      = "config"
	defaultConfigFileType      = "yaml"
	defaultApplicationName     = "linux-dev-certs"
	defaultCAValidity          = 10 * 365 * 24 * time.Hour
	defaultCertificateValidity = 365 * 24 * time.Hour

	flagNameConfigFile         = "config"
	flagNameLoggingType        = "logging-type"
	flagNameOSReleasePath      = "os-release"
	flagNameNoDependencies     = "no-deps"
	flagNameCertificateName    = "name"
	flagNameExportPath         = "export-path"
	flagNameExportFormat       = "export-format"
	flagNameExportPrivateKey   = "export-key"
	flagNameExportPassword     = "export-password"
	flagNameFirefoxDirectories = "firefox-dir"
	flagNameSkipChromium       = "no-chromium"

	configKeyInstallDependencies    = "install.install_dependencies"
	configKeyCertificateName        = "install.certificate_name"
	configKeyCAValidity             = "install.ca_validity"
	configKeyCertificateValidity    = "install.certificate_validity"
	configKeyCleanupCommand         = "install.cleanup_command"
	configKeyOSReleasePath          = "install.os_release_path"
	configKeyFirefoxDirectories     = "install.firefox_directories"
	configKeyChromiumDatabase       = "install.chromium_database"
	configKeySkipChromium           = "install.skip_chromium"
	configKeyPersonalStoreDirectory = "install.personal_store_directory"
	configKeyExportPath             = "install.export_path"
	configKeyExportFormat           = "install.export_format"
	configKeyExportPrivateKey       = "install.export_private_key"
	configKeyExportPassword         = "install.export_password"
	configKeyLoggingType            = "logging.type"

	logMessageFailedInitializeLogger = "failed to initialize logger"
	logMessageResolveUserConfigDir   = "resolve user config directory"
	logMessageCommandExecutionFailed = "command execution failed"
)

var defaultCleanupCommand = []string{"dotnet", "dev-certs", "https", "--clean"}

type applicationResources struct {
	configurationManager *viper.Viper
	loggingService       *logging.Service
	defaultConfigDirPath string
	provisionerFactory   provisionerFactory
}

func (resources *applicationResources) updateLogger(loggingType string) error {
	normalizedType, err := logging.NormalizeType(loggingType)
	if err != nil {
		return err
	}
	if resources.loggingService != nil && resources.loggingService.Type() == normalizedType {
		return nil
	}
	service, err := logging.NewService(normalizedType)
	if err != nil {
		return err
	}
	if resources.loggingService != nil {
		_ = resources.loggingService.Sync()
	}
	resources.loggingService = service
	return nil
}

// Execute runs the CLI using the provided context and arguments, returning an exit code.
func Execute(ctx context.Context, arguments []string) int {
	initialService, err := logging.NewService(logging.TypeConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", logMessageFailedInitializeLogger, err)
		return 1
	}

	userConfigDir, userConfigErr := os.UserConfigDir()
	if userConfigErr != nil {
		initialService.Error(logMessageResolveUserConfigDir, userConfigErr)
		return 1
	}

	resources := &applicationResources{
		configurationManager: newConfigurationManager(),
		loggingService:       initialService,
		defaultConfigDirPath: filepath.Join(userConfigDir, defaultApplicationName),
		provisionerFactory:   newSystemProvisioner,
	}
	if err := resources.updateLogger(resources.configurationManager.GetString(configKeyLoggingType)); err != nil {
		resources.loggingService = initialService
		resources.loggingService.Error(logMessageFailedInitializeLogger, err)
		return 1
	}
	defer func() {
		if resources.loggingService != nil {
			_ = resources.loggingService.Sync()
		}
	}()

	return executeWithResources(ctx, resources, arguments)
}

func executeWithResources(ctx context.Context, resources *applicationResources, arguments []string) int {
	rootCommand := newRootCommand(resources)
	baseContext := context.WithValue(ctx, contextKeyApplicationResources, resources)
	rootCommand.SetContext(baseContext)
	rootCommand.SetArgs(arguments)

	if executionErr := rootCommand.Execute(); executionErr != nil {
		resources.loggingService.Error(logMessageCommandExecutionFailed, executionErr)
		return 1
	}
	return 0
}

func newConfigurationManager() *viper.Viper {
	configurationManager := viper.New()
	configurationManager.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(defaultApplicationName, "-", "_")))
	configurationManager.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configurationManager.AutomaticEnv()

	configurationManager.SetDefault(configKeyInstallDependencies, true)
	configurationManager.SetDefault(configKeyCertificateName, "")
	configurationManager.SetDefault(configKeyCAValidity, defaultCAValidity)
	configurationManager.SetDefault(configKeyCertificateValidity, defaultCertificateValidity)
	configurationManager.SetDefault(configKeyCleanupCommand, defaultCleanupCommand)
	configurationManager.SetDefault(configKeyOSReleasePath, osflavor.DefaultReleaseFilePath)
	configurationManager.SetDefault(configKeyFirefoxDirectories, []string{})
	configurationManager.SetDefault(configKeyChromiumDatabase, "")
	configurationManager.SetDefault(configKeySkipChromium, false)
	configurationManager.SetDefault(configKeyPersonalStoreDirectory, "")
	configurationManager.SetDefault(configKeyExportPath, "")
	configurationManager.SetDefault(configKeyExportFormat, "pem")
	configurationManager.SetDefault(configKeyExportPrivateKey, false)
	configurationManager.SetDefault(configKeyExportPassword, "")
	configurationManager.SetDefault(configKeyLoggingType, logging.TypeConsole)
	return configurationManager
}
