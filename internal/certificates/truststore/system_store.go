package truststore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tyemirov/linux-dev-certs/internal/certificates"
	"github.com/tyemirov/linux-dev-certs/internal/dependencies"
	"github.com/tyemirov/linux-dev-certs/internal/osflavor"
)

type systemStoreLayout struct {
	anchorDirectory string
	fileExtension   string
	refreshCommand  []string
	refreshPackage  string
}

var systemStoreLayouts = map[osflavor.Family]systemStoreLayout{
	osflavor.FamilyFedora: {
		anchorDirectory: "/etc/pki/ca-trust/source/anchors",
		fileExtension:   ".pem",
		refreshCommand:  []string{"update-ca-trust", "extract"},
		refreshPackage:  "ca-certificates",
	},
	osflavor.FamilyDebian: {
		anchorDirectory: "/usr/local/share/ca-certificates",
		fileExtension:   ".crt",
		refreshCommand:  []string{"update-ca-certificates"},
		refreshPackage:  "ca-certificates",
	},
	osflavor.FamilyGentoo: {
		anchorDirectory: "/usr/local/share/ca-certificates",
		fileExtension:   ".crt",
		refreshCommand:  []string{"update-ca-certificates"},
		refreshPackage:  "app-misc/ca-certificates",
	},
	osflavor.FamilyArch: {
		anchorDirectory: "/etc/ca-certificates/trust-source/anchors",
		fileExtension:   ".crt",
		refreshCommand:  []string{"trust", "extract-compat"},
		refreshPackage:  "p11-kit",
	},
	osflavor.FamilySlackware: {
		anchorDirectory: "/usr/share/ca-certificates/mozilla",
		fileExtension:   ".crt",
		refreshCommand:  []string{"update-ca-certificates"},
		refreshPackage:  "ca-certificates",
	},
	osflavor.FamilySUSE: {
		anchorDirectory: "/usr/share/pki/trust/anchors",
		fileExtension:   ".crt",
		refreshCommand:  []string{"/usr/sbin/update-ca-certificates"},
		refreshPackage:  "ca-certificates",
	},
}

// SystemStore is the distribution-wide CA anchor directory.
type SystemStore struct {
	flavor        osflavor.Flavor
	commandRunner certificates.CommandRunner
}

// NewSystemStore constructs the SystemStore for flavor.
func NewSystemStore(flavor osflavor.Flavor, commandRunner certificates.CommandRunner) *SystemStore {
	return &SystemStore{flavor: flavor, commandRunner: commandRunner}
}

// Name returns the display name of the store.
func (store *SystemStore) Name() string {
	return "System trust store"
}

// IsSupported reports whether the anchor layout of this distribution is known.
func (store *SystemStore) IsSupported() bool {
	_, supported := store.layout()
	return supported
}

// AnchorPath returns the file a certificate called name is written to.
func (store *SystemStore) AnchorPath(name string) (string, error) {
	layout, supported := store.layout()
	if !supported {
		return "", store.flavor.Unsupported()
	}
	return filepath.Join(layout.anchorDirectory, name+layout.fileExtension), nil
}

// AddDependencies declares the elevation helper and the trust refresh program.
func (store *SystemStore) AddDependencies(required *dependencies.Set) error {
	layout, supported := store.layout()
	if !supported {
		return store.flavor.Unsupported()
	}
	required.Add(dependencies.Dependency{Program: commandNameSudo, Package: commandNameSudo})
	required.Add(dependencies.Dependency{Program: layout.refreshCommand[0], Package: layout.refreshPackage})
	return nil
}

// Install writes the public certificate into the anchor directory and refreshes the system bundle.
func (store *SystemStore) Install(ctx context.Context, name string, certificate certificates.Certificate) error {
	anchorPath, anchorErr := store.AnchorPath(name)
	if anchorErr != nil {
		return anchorErr
	}

	certificatePem, encodeErr := certificates.EncodeCertificatePEM(certificate)
	if encodeErr != nil {
		return encodeErr
	}
	defer certificates.Wipe(certificatePem)

	writeErr := store.commandRunner.RunWithPrivileges(ctx, commandNameTee, []string{anchorPath}, certificatePem)
	if writeErr != nil {
		return fmt.Errorf("write trust anchor %s: %w", anchorPath, writeErr)
	}
	return store.refresh(ctx)
}

// Uninstall removes the anchor file and refreshes the system bundle.
func (store *SystemStore) Uninstall(ctx context.Context, name string) error {
	anchorPath, anchorErr := store.AnchorPath(name)
	if anchorErr != nil {
		return anchorErr
	}
	removeErr := store.commandRunner.RunWithPrivileges(ctx, commandNameRemove, []string{"-f", anchorPath}, nil)
	if removeErr != nil {
		return fmt.Errorf("remove trust anchor %s: %w", anchorPath, removeErr)
	}
	return store.refresh(ctx)
}

func (store *SystemStore) refresh(ctx context.Context) error {
	layout, _ := store.layout()
	refreshErr := store.commandRunner.RunWithPrivileges(ctx, layout.refreshCommand[0], layout.refreshCommand[1:], nil)
	if refreshErr != nil {
		return fmt.Errorf("refresh system trust store: %w", refreshErr)
	}
	return nil
}

func (store *SystemStore) layout() (systemStoreLayout, bool) {
	family, known := store.flavor.Family()
	if !known {
		return systemStoreLayout{}, false
	}
	layout, found := systemStoreLayouts[family]
	return layout, found
}
