package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrTrustIncomplete is returned when at least one additional store rejected the CA certificate.
var ErrTrustIncomplete = errors.New("the CA certificate could not be installed into every certificate store")

func newInstallCommand(resources *applicationResources) *cobra.Command {
	installCommand := &cobra.Command{
		Use:   "install",
		Short: "Create the development certificate and trust it system-wide and in browsers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd)
		},
	}

	installCommand.Flags().Bool(flagNameNoDependencies, false, "Do not install missing dependencies; print the install command instead")

	exportFlags := pflag.NewFlagSet("export", pflag.ContinueOnError)
	configureExportFlags(exportFlags, resources.configurationManager)
	installCommand.Flags().AddFlagSet(exportFlags)

	return installCommand
}

func configureExportFlags(flagSet *pflag.FlagSet, configurationManager *viper.Viper) {
	flagSet.String(flagNameExportPath, configurationManager.GetString(configKeyExportPath), "Also export the development certificate to this path")
	flagSet.String(flagNameExportFormat, configurationManager.GetString(configKeyExportFormat), "Export format (pem or pfx)")
	flagSet.Bool(flagNameExportPrivateKey, configurationManager.GetBool(configKeyExportPrivateKey), "Include the private key in the export")
	flagSet.String(flagNameExportPassword, configurationManager.GetString(configKeyExportPassword), "Password protecting the exported private key")
	_ = configurationManager.BindPFlag(configKeyExportPath, flagSet.Lookup(flagNameExportPath))
	_ = configurationManager.BindPFlag(configKeyExportFormat, flagSet.Lookup(flagNameExportFormat))
	_ = configurationManager.BindPFlag(configKeyExportPrivateKey, flagSet.Lookup(flagNameExportPrivateKey))
	_ = configurationManager.BindPFlag(configKeyExportPassword, flagSet.Lookup(flagNameExportPassword))
}

func newUninstallCommand(resources *applicationResources) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the CA certificate from every store and delete development certificates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUninstall(cmd)
		},
	}
}

func runInstall(cmd *cobra.Command) error {
	resources, err := getApplicationResources(cmd)
	if err != nil {
		return err
	}
	noDependencies, flagErr := cmd.Flags().GetBool(flagNameNoDependencies)
	if flagErr != nil {
		return fmt.Errorf("read %s flag: %w", flagNameNoDependencies, flagErr)
	}
	if noDependencies {
		resources.configurationManager.Set(configKeyInstallDependencies, false)
	}

	provisioningService, buildErr := buildProvisioner(cmd, resources)
	if buildErr != nil {
		return buildErr
	}
	succeeded, installErr := provisioningService.InstallAndTrust(cmd.Context())
	if installErr != nil {
		return installErr
	}
	if !succeeded {
		return ErrTrustIncomplete
	}
	resources.loggingService.Info("development certificate installed and trusted")
	return nil
}

func runUninstall(cmd *cobra.Command) error {
	resources, err := getApplicationResources(cmd)
	if err != nil {
		return err
	}
	provisioningService, buildErr := buildProvisioner(cmd, resources)
	if buildErr != nil {
		return buildErr
	}
	if uninstallErr := provisioningService.Uninstall(cmd.Context()); uninstallErr != nil {
		return uninstallErr
	}
	resources.loggingService.Info("development certificates removed")
	return nil
}

func buildProvisioner(cmd *cobra.Command, resources *applicationResources) (provisioner, error) {
	configuration, configurationErr := buildProvisioningConfiguration(resources.configurationManager)
	if configurationErr != nil {
		return nil, configurationErr
	}
	return resources.provisionerFactory(resources.configurationManager, configuration, cmd.OutOrStdout(), resources.loggingService)
}
