package dependencies

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/tyemirov/linux-dev-certs/internal/osflavor"
	"github.com/tyemirov/linux-dev-certs/pkg/logging"
)

// ElevationProgram is the privilege-escalation helper used for package installation.
const ElevationProgram = "sudo"

// packageManagerCommands maps each family to the command installing packages non-interactively where supported.
var packageManagerCommands = map[osflavor.Family][]string{
	osflavor.FamilyFedora:    {"dnf", "install", "-y"},
	osflavor.FamilyDebian:    {"apt-get", "install", "-y"},
	osflavor.FamilyGentoo:    {"emerge"},
	osflavor.FamilyArch:      {"pacman", "-S", "-y"},
	osflavor.FamilySlackware: {"slackpkg", "install"},
	osflavor.FamilySUSE:      {"zypper", "install", "-y"},
}

// PrivilegedRunner runs commands through the elevation helper.
type PrivilegedRunner interface {
	RunWithPrivileges(ctx context.Context, executable string, arguments []string, standardInput []byte) error
}

// Resolver checks required programs and installs the packages that provide missing ones.
type Resolver struct {
	flavor         osflavor.Flavor
	locator        ProgramLocator
	commandRunner  PrivilegedRunner
	output         io.Writer
	loggingService *logging.Service
}

// NewResolver constructs a Resolver.
func NewResolver(flavor osflavor.Flavor, locator ProgramLocator, commandRunner PrivilegedRunner, output io.Writer, loggingService *logging.Service) Resolver {
	return Resolver{
		flavor:         flavor,
		locator:        locator,
		commandRunner:  commandRunner,
		output:         output,
		loggingService: loggingService,
	}
}

// InstallCommand returns the package manager invocation for the given packages on the flavor.
func InstallCommand(flavor osflavor.Flavor, packages []string) ([]string, error) {
	family, found := flavor.Family()
	if !found {
		return nil, flavor.Unsupported()
	}
	baseCommand := packageManagerCommands[family]
	command := make([]string, 0, len(baseCommand)+len(packages))
	command = append(command, baseCommand...)
	return append(command, packages...), nil
}

// Missing returns the dependencies whose program cannot be located.
func (resolver Resolver) Missing(required *Set) []Dependency {
	var unmet []Dependency
	for _, dependency := range required.Dependencies() {
		if _, found := resolver.locator.Find(dependency.Program); !found {
			unmet = append(unmet, dependency)
		}
	}
	return unmet
}

// CheckDependencies reports whether every required program is available, installing missing packages when allowed.
func (resolver Resolver) CheckDependencies(ctx context.Context, required *Set, installMissing bool) (bool, error) {
	unmet := resolver.Missing(required)
	if len(unmet) == 0 {
		return true, nil
	}
	packages := Packages(unmet)

	command, commandErr := InstallCommand(resolver.flavor, packages)
	if commandErr != nil {
		return false, commandErr
	}

	if installMissing {
		if _, elevationFound := resolver.locator.Find(ElevationProgram); elevationFound {
			resolver.logInfo("installing missing dependencies", logging.Strings("packages", packages))
			if err := resolver.commandRunner.RunWithPrivileges(ctx, command[0], command[1:], nil); err != nil {
				return false, fmt.Errorf("install packages %s: %w", strings.Join(packages, " "), err)
			}
			return true, nil
		}
		resolver.logInfo("elevation helper not found, skipping automatic installation", logging.String("program", ElevationProgram))
	}

	if err := resolver.printRemediation(unmet, command); err != nil {
		return false, err
	}
	return false, nil
}

func (resolver Resolver) printRemediation(unmet []Dependency, command []string) error {
	if resolver.output == nil {
		return nil
	}
	if _, err := fmt.Fprintln(resolver.output, "The following dependencies are missing:"); err != nil {
		return fmt.Errorf("write dependency report: %w", err)
	}
	table := tablewriter.NewTable(resolver.output)
	table.Header([]string{"Program", "Package"})
	rows := make([][]string, 0, len(unmet))
	for _, dependency := range unmet {
		rows = append(rows, []string{dependency.Program, dependency.Package})
	}
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("render dependency report: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render dependency report: %w", err)
	}
	_, err := fmt.Fprintf(resolver.output, "Install them by running:\n  %s %s\n", ElevationProgram, strings.Join(command, " "))
	if err != nil {
		return fmt.Errorf("write dependency report: %w", err)
	}
	return nil
}

func (resolver Resolver) logInfo(message string, fields ...logging.Field) {
	if resolver.loggingService == nil {
		return
	}
	resolver.loggingService.Info(message, fields...)
}
