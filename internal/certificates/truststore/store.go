// Package truststore installs certificates into the system trust anchors and NSS databases.
package truststore

import (
	"context"

	"github.com/tyemirov/linux-dev-certs/internal/certificates"
	"github.com/tyemirov/linux-dev-certs/internal/dependencies"
)

// Store is a certificate trust store that can be provisioned on this host.
type Store interface {
	Name() string
	AddDependencies(required *dependencies.Set) error
	Install(ctx context.Context, name string, certificate certificates.Certificate) error
	Uninstall(ctx context.Context, name string) error
}

const (
	commandNameSudo     = "sudo"
	commandNameTee      = "tee"
	commandNameRemove   = "rm"
	commandNameCertutil = "certutil"
)
