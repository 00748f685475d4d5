package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand(resources *applicationResources) *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           defaultApplicationName,
		Short:         "Create and trust the ASP.NET Core HTTPS development certificate on Linux",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfigurationFile(cmd); err != nil {
				return err
			}
			return resources.updateLogger(resources.configurationManager.GetString(configKeyLoggingType))
		},
	}

	configurationManager := resources.configurationManager
	rootCommand.PersistentFlags().String(flagNameConfigFile, "", "Path to configuration file")
	rootCommand.PersistentFlags().String(flagNameLoggingType, configurationManager.GetString(configKeyLoggingType), "Logging type (CONSOLE or JSON)")
	rootCommand.PersistentFlags().String(flagNameOSReleasePath, configurationManager.GetString(configKeyOSReleasePath), "Path to the os-release file identifying the distribution")
	rootCommand.PersistentFlags().String(flagNameCertificateName, configurationManager.GetString(configKeyCertificateName), "Name of the CA certificate in every trust store (default aspnet-dev-<user>)")
	rootCommand.PersistentFlags().StringSlice(flagNameFirefoxDirectories, configurationManager.GetStringSlice(configKeyFirefoxDirectories), "Firefox user-data directories containing profiles.ini (default native, snap and flatpak locations)")
	rootCommand.PersistentFlags().Bool(flagNameSkipChromium, configurationManager.GetBool(configKeySkipChromium), "Do not touch the shared Chromium NSS database")
	_ = configurationManager.BindPFlag(configKeyLoggingType, rootCommand.PersistentFlags().Lookup(flagNameLoggingType))
	_ = configurationManager.BindPFlag(configKeyOSReleasePath, rootCommand.PersistentFlags().Lookup(flagNameOSReleasePath))
	_ = configurationManager.BindPFlag(configKeyCertificateName, rootCommand.PersistentFlags().Lookup(flagNameCertificateName))
	_ = configurationManager.BindPFlag(configKeyFirefoxDirectories, rootCommand.PersistentFlags().Lookup(flagNameFirefoxDirectories))
	_ = configurationManager.BindPFlag(configKeySkipChromium, rootCommand.PersistentFlags().Lookup(flagNameSkipChromium))

	rootCommand.AddCommand(newInstallCommand(resources))
	rootCommand.AddCommand(newUninstallCommand(resources))

	return rootCommand
}

func loadConfigurationFile(cmd *cobra.Command) error {
	resources, err := getApplicationResources(cmd)
	if err != nil {
		return err
	}
	configurationManager := resources.configurationManager
	configFilePath, flagErr := cmd.Flags().GetString(flagNameConfigFile)
	if flagErr != nil {
		return fmt.Errorf("read config flag: %w", flagErr)
	}
	if configFilePath != "" {
		configurationManager.SetConfigFile(configFilePath)
	} else {
		configurationManager.AddConfigPath(resources.defaultConfigDirPath)
		configurationManager.SetConfigName(defaultConfigFileName)
		configurationManager.SetConfigType(defaultConfigFileType)
	}
	if readErr := configurationManager.ReadInConfig(); readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return fmt.Errorf("read configuration: %w", readErr)
		}
	}
	return nil
}

func getApplicationResources(cmd *cobra.Command) (*applicationResources, error) {
	resourceValue := cmd.Context().Value(contextKeyApplicationResources)
	if resourceValue == nil {
		return nil, errors.New("application resources not configured")
	}
	resources, ok := resourceValue.(*applicationResources)
	if !ok {
		return nil, errors.New("invalid application resources type")
	}
	return resources, nil
}
