// Package devcerts provisions the development certificate and establishes trust in every store on the host.
package devcerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tyemirov/linux-dev-certs/internal/certificates"
	"github.com/tyemirov/linux-dev-certs/internal/certificates/truststore"
	"github.com/tyemirov/linux-dev-certs/internal/dependencies"
	"github.com/tyemirov/linux-dev-certs/internal/osflavor"
	"github.com/tyemirov/linux-dev-certs/pkg/logging"
)

var (
	// ErrElevatedPrivileges is returned when the tool runs as root.
	ErrElevatedPrivileges = errors.New("this tool must not be run with elevated privileges; run it as the user that owns the development certificate")
	// ErrMissingDependencies is returned when required programs are absent and were not installed.
	ErrMissingDependencies = errors.New("required dependencies are missing")
)

const (
	logFieldStore       = "store"
	logFieldPath        = "path"
	logFieldName        = "name"
	logFieldThumbprint  = "thumbprint"
	logFieldStoreCount  = "stores"
	logFieldSucceeded   = "succeeded"
	logFieldCommandLine = "command"
)

// SystemStore is the trust store every certificate authority is installed into first.
type SystemStore interface {
	truststore.Store
	IsSupported() bool
}

// StoreDiscoverer enumerates the additional stores present on the host.
type StoreDiscoverer interface {
	DiscoverStores() ([]truststore.Store, error)
}

// DependencyChecker verifies that required programs are available.
type DependencyChecker interface {
	CheckDependencies(ctx context.Context, required *dependencies.Set, installMissing bool) (bool, error)
}

// PersonalStore persists the development certificate where the framework finds it.
type PersonalStore interface {
	Save(certificate certificates.Certificate) (string, error)
}

// ExportConfiguration describes an optional copy of the development certificate.
type ExportConfiguration struct {
	Path    string
	Options certificates.ExportOptions
}

// Configuration controls a provisioning run.
type Configuration struct {
	CertificateName     string
	InstallDependencies bool
	CAValidity          time.Duration
	CertificateValidity time.Duration
	CleanupCommand      []string
	Export              ExportConfiguration
}

// Collaborators groups the components an Orchestrator drives.
type Collaborators struct {
	Flavor          osflavor.Flavor
	SystemStore     SystemStore
	Discoverer      StoreDiscoverer
	Resolver        DependencyChecker
	Factory         certificates.Factory
	PersonalStore   PersonalStore
	CommandRunner   certificates.CommandRunner
	FileSystem      certificates.FileSystem
	Clock           certificates.Clock
	EffectiveUserID func() int
	LoggingService  *logging.Service
}

// Orchestrator sequences certificate creation and trust installation.
type Orchestrator struct {
	configuration Configuration
	collaborators Collaborators
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(configuration Configuration, collaborators Collaborators) Orchestrator {
	return Orchestrator{configuration: configuration, collaborators: collaborators}
}

// InstallAndTrust creates a fresh CA and development certificate and installs trust.
// It reports false when any additional store could not be provisioned.
func (orchestrator Orchestrator) InstallAndTrust(ctx context.Context) (bool, error) {
	additionalStores, prepareErr := orchestrator.prepare()
	if prepareErr != nil {
		return false, prepareErr
	}

	required := dependencies.NewSet()
	if err := orchestrator.collaborators.SystemStore.AddDependencies(required); err != nil {
		return false, err
	}
	for _, store := range additionalStores {
		if err := store.AddDependencies(required); err != nil {
			return false, err
		}
	}
	dependenciesMet, dependencyErr := orchestrator.collaborators.Resolver.CheckDependencies(ctx, required, orchestrator.configuration.InstallDependencies)
	if dependencyErr != nil {
		return false, fmt.Errorf("check dependencies: %w", dependencyErr)
	}
	if !dependenciesMet {
		return false, ErrMissingDependencies
	}

	now := orchestrator.collaborators.Clock.Now()
	orchestrator.logInfo("creating CA certificate")
	certificateAuthority, authorityErr := orchestrator.collaborators.Factory.CreateCACertificate(now, now.Add(orchestrator.configuration.CAValidity))
	if authorityErr != nil {
		return false, authorityErr
	}

	systemStore := orchestrator.collaborators.SystemStore
	orchestrator.logInfo("installing CA certificate", logging.String(logFieldStore, systemStore.Name()))
	if err := systemStore.Install(ctx, orchestrator.configuration.CertificateName, certificateAuthority); err != nil {
		return false, fmt.Errorf("install CA certificate into %s: %w", systemStore.Name(), err)
	}

	if err := orchestrator.removeExistingCertificates(ctx); err != nil {
		return false, err
	}

	orchestrator.logInfo("creating development certificate")
	developmentCertificate, developmentErr := orchestrator.collaborators.Factory.CreateDevelopmentCertificate(now, now.Add(orchestrator.configuration.CertificateValidity), certificateAuthority)
	if developmentErr != nil {
		return false, developmentErr
	}
	storePath, saveErr := orchestrator.collaborators.PersonalStore.Save(developmentCertificate)
	if saveErr != nil {
		return false, fmt.Errorf("save development certificate: %w", saveErr)
	}
	orchestrator.logInfo("installed development certificate", logging.String(logFieldPath, storePath), logging.String(logFieldThumbprint, developmentCertificate.Thumbprint()))

	if err := orchestrator.export(developmentCertificate); err != nil {
		return false, err
	}

	succeeded := true
	for _, store := range additionalStores {
		orchestrator.logInfo("installing CA certificate", logging.String(logFieldStore, store.Name()))
		if err := store.Install(ctx, orchestrator.configuration.CertificateName, certificateAuthority); err != nil {
			orchestrator.logError("failed to install CA certificate", err, logging.String(logFieldStore, store.Name()))
			succeeded = false
		}
	}
	orchestrator.logInfo("trust installation finished", logging.Int(logFieldStoreCount, len(additionalStores)+1), logging.Bool(logFieldSucceeded, succeeded))
	return succeeded, nil
}

// Uninstall removes the CA from every store and deletes the framework's development certificates.
func (orchestrator Orchestrator) Uninstall(ctx context.Context) error {
	additionalStores, prepareErr := orchestrator.prepare()
	if prepareErr != nil {
		return prepareErr
	}

	var uninstallErrors []error
	systemStore := orchestrator.collaborators.SystemStore
	orchestrator.logInfo("removing CA certificate", logging.String(logFieldStore, systemStore.Name()))
	if err := systemStore.Uninstall(ctx, orchestrator.configuration.CertificateName); err != nil {
		uninstallErrors = append(uninstallErrors, fmt.Errorf("remove CA certificate from %s: %w", systemStore.Name(), err))
	}
	for _, store := range additionalStores {
		if err := store.Uninstall(ctx, orchestrator.configuration.CertificateName); err != nil {
			orchestrator.logWarn("CA certificate was not removed", logging.String(logFieldStore, store.Name()), logging.ErrorField(err))
		}
	}
	if err := orchestrator.removeExistingCertificates(ctx); err != nil {
		uninstallErrors = append(uninstallErrors, err)
	}
	return errors.Join(uninstallErrors...)
}

func (orchestrator Orchestrator) prepare() ([]truststore.Store, error) {
	if orchestrator.collaborators.EffectiveUserID != nil && orchestrator.collaborators.EffectiveUserID() == 0 {
		return nil, ErrElevatedPrivileges
	}
	if !orchestrator.collaborators.SystemStore.IsSupported() {
		return nil, orchestrator.collaborators.Flavor.Unsupported()
	}
	additionalStores, discoverErr := orchestrator.collaborators.Discoverer.DiscoverStores()
	if discoverErr != nil {
		return nil, fmt.Errorf("discover certificate stores: %w", discoverErr)
	}
	for _, store := range additionalStores {
		orchestrator.logInfo("found certificate store", logging.String(logFieldStore, store.Name()))
	}
	return additionalStores, nil
}

func (orchestrator Orchestrator) removeExistingCertificates(ctx context.Context) error {
	cleanupCommand := orchestrator.configuration.CleanupCommand
	if len(cleanupCommand) == 0 {
		return nil
	}
	orchestrator.logInfo("removing existing development certificates", logging.Strings(logFieldCommandLine, cleanupCommand))
	if err := orchestrator.collaborators.CommandRunner.Run(ctx, cleanupCommand[0], cleanupCommand[1:]); err != nil {
		return fmt.Errorf("remove existing development certificates: %w", err)
	}
	return nil
}

func (orchestrator Orchestrator) export(developmentCertificate certificates.Certificate) error {
	exportConfiguration := orchestrator.configuration.Export
	if exportConfiguration.Path == "" {
		return nil
	}
	if err := certificates.ExportCertificate(orchestrator.collaborators.FileSystem, developmentCertificate, exportConfiguration.Path, exportConfiguration.Options); err != nil {
		return fmt.Errorf("export development certificate: %w", err)
	}
	orchestrator.logInfo("exported development certificate", logging.String(logFieldPath, exportConfiguration.Path), logging.String(logFieldName, string(exportConfiguration.Options.Format)))
	return nil
}

func (orchestrator Orchestrator) logInfo(message string, fields ...logging.Field) {
	if orchestrator.collaborators.LoggingService == nil {
		return
	}
	orchestrator.collaborators.LoggingService.Info(message, fields...)
}

func (orchestrator Orchestrator) logWarn(message string, fields ...logging.Field) {
	if orchestrator.collaborators.LoggingService == nil {
		return
	}
	orchestrator.collaborators.LoggingService.Warn(message, fields...)
}

func (orchestrator Orchestrator) logError(message string, err error, fields ...logging.Field) {
	if orchestrator.collaborators.LoggingService == nil {
		return
	}
	orchestrator.collaborators.LoggingService.Error(message, err, fields...)
}
