package dependencies

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/linux-dev-certs/internal/osflavor"
	"github.com/tyemirov/linux-dev-certs/pkg/logging"
)

type privilegedInvocation struct {
	executable string
	arguments  []string
}

type recordingPrivilegedRunner struct {
	invocations []privilegedInvocation
	err         error
}

func (runner *recordingPrivilegedRunner) RunWithPrivileges(ctx context.Context, executable string, arguments []string, standardInput []byte) error {
	runner.invocations = append(runner.invocations, privilegedInvocation{executable: executable, arguments: append([]string{}, arguments...)})
	return runner.err
}

type staticLocator map[string]bool

func (locator staticLocator) Find(program string) (string, bool) {
	if locator[program] {
		return "/usr/bin/" + program, true
	}
	return "", false
}

func fedora() osflavor.Flavor {
	return osflavor.Flavor{ID: "fedora"}
}

func TestSetDeduplicatesByProgram(t *testing.T) {
	set := NewSet()
	assert.True(t, set.Add(Dependency{Program: "certutil", Package: "nss-tools"}))
	assert.False(t, set.Add(Dependency{Program: "certutil", Package: "other"}))
	set.Add(Dependency{Program: "sudo", Package: "sudo"})

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("certutil"))
	assert.Equal(t, []Dependency{
		{Program: "certutil", Package: "nss-tools"},
		{Program: "sudo", Package: "sudo"},
	}, set.Dependencies())
}

func TestPackagesAreDistinct(t *testing.T) {
	packages := Packages([]Dependency{
		{Program: "update-ca-certificates", Package: "ca-certificates"},
		{Program: "c_rehash", Package: "ca-certificates"},
		{Program: "certutil", Package: "libnss3-tools"},
	})
	assert.Equal(t, []string{"ca-certificates", "libnss3-tools"}, packages)
}

func TestCheckDependenciesSucceedsWhenNothingMissing(t *testing.T) {
	runner := &recordingPrivilegedRunner{}
	set := NewSet()
	set.Add(Dependency{Program: "certutil", Package: "nss-tools"})
	resolver := NewResolver(fedora(), staticLocator{"certutil": true}, runner, &bytes.Buffer{}, logging.NewTestService(logging.TypeConsole))

	satisfied, err := resolver.CheckDependencies(context.Background(), set, true)
	require.NoError(t, err)
	assert.True(t, satisfied)
	assert.Empty(t, runner.invocations)
}

func TestCheckDependenciesPrintsCommandWhenInstallDeclined(t *testing.T) {
	runner := &recordingPrivilegedRunner{}
	output := &bytes.Buffer{}
	set := NewSet()
	set.Add(Dependency{Program: "certutil", Package: "nss-tools"})
	resolver := NewResolver(fedora(), staticLocator{"sudo": true}, runner, output, logging.NewTestService(logging.TypeConsole))

	satisfied, err := resolver.CheckDependencies(context.Background(), set, false)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.Empty(t, runner.invocations)
	assert.Contains(t, output.String(), "sudo dnf install -y nss-tools")
	assert.Contains(t, output.String(), "certutil")
}

func TestCheckDependenciesInstallsWithPackageManager(t *testing.T) {
	testCases := []struct {
		name            string
		flavor          osflavor.Flavor
		expectedCommand []string
	}{
		{name: "fedora", flavor: osflavor.Flavor{ID: "fedora"}, expectedCommand: []string{"dnf", "install", "-y", "nss-tools"}},
		{name: "ubuntu", flavor: osflavor.Flavor{ID: "ubuntu", IDLike: []string{"debian"}}, expectedCommand: []string{"apt-get", "install", "-y", "nss-tools"}},
		{name: "gentoo", flavor: osflavor.Flavor{ID: "gentoo"}, expectedCommand: []string{"emerge", "nss-tools"}},
		{name: "arch", flavor: osflavor.Flavor{ID: "arch"}, expectedCommand: []string{"pacman", "-S", "-y", "nss-tools"}},
		{name: "slackware", flavor: osflavor.Flavor{ID: "slackware"}, expectedCommand: []string{"slackpkg", "install", "nss-tools"}},
		{name: "opensuse", flavor: osflavor.Flavor{ID: "opensuse-leap", IDLike: []string{"suse", "opensuse"}}, expectedCommand: []string{"zypper", "install", "-y", "nss-tools"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			runner := &recordingPrivilegedRunner{}
			set := NewSet()
			set.Add(Dependency{Program: "certutil", Package: "nss-tools"})
			resolver := NewResolver(testCase.flavor, staticLocator{"sudo": true}, runner, &bytes.Buffer{}, nil)

			satisfied, err := resolver.CheckDependencies(context.Background(), set, true)
			require.NoError(t, err)
			assert.True(t, satisfied)
			require.Len(t, runner.invocations, 1)
			invocation := runner.invocations[0]
			assert.Equal(t, testCase.expectedCommand, append([]string{invocation.executable}, invocation.arguments...))
		})
	}
}

func TestCheckDependenciesWithoutElevationHelperPrintsCommand(t *testing.T) {
	runner := &recordingPrivilegedRunner{}
	output := &bytes.Buffer{}
	set := NewSet()
	set.Add(Dependency{Program: "certutil", Package: "libnss3-tools"})
	resolver := NewResolver(osflavor.Flavor{ID: "debian"}, staticLocator{}, runner, output, nil)

	satisfied, err := resolver.CheckDependencies(context.Background(), set, true)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.Empty(t, runner.invocations)
	assert.Contains(t, output.String(), "apt-get install -y libnss3-tools")
}

func TestCheckDependenciesPropagatesInstallFailure(t *testing.T) {
	runner := &recordingPrivilegedRunner{err: errors.New("execute sudo: exit status 1: no network")}
	set := NewSet()
	set.Add(Dependency{Program: "certutil", Package: "nss-tools"})
	resolver := NewResolver(fedora(), staticLocator{"sudo": true}, runner, &bytes.Buffer{}, nil)

	satisfied, err := resolver.CheckDependencies(context.Background(), set, true)
	require.Error(t, err)
	assert.False(t, satisfied)
	assert.Contains(t, err.Error(), "no network")
}

func TestCheckDependenciesRejectsUnknownFamily(t *testing.T) {
	set := NewSet()
	set.Add(Dependency{Program: "certutil", Package: "nss"})
	resolver := NewResolver(osflavor.Flavor{ID: "nixos"}, staticLocator{}, &recordingPrivilegedRunner{}, &bytes.Buffer{}, nil)

	_, err := resolver.CheckDependencies(context.Background(), set, false)
	var unsupportedError *osflavor.UnsupportedError
	assert.True(t, errors.As(err, &unsupportedError))
}

func TestSearchPathLocatorScansEveryDirectory(t *testing.T) {
	firstDirectory := t.TempDir()
	secondDirectory := t.TempDir()
	executablePath := filepath.Join(secondDirectory, "certutil")
	require.NoError(t, os.WriteFile(executablePath, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(firstDirectory, "trust"), 0o755))

	locator := NewSearchPathLocator(firstDirectory + string(os.PathListSeparator) + secondDirectory)

	foundPath, found := locator.Find("certutil")
	assert.True(t, found)
	assert.Equal(t, executablePath, foundPath)

	_, found = locator.Find("trust")
	assert.False(t, found, "directories are not executables")

	_, found = locator.Find("update-ca-trust")
	assert.False(t, found)

	_, found = locator.Find(executablePath)
	assert.True(t, found)
}

func TestResolverUsesSearchPath(t *testing.T) {
	set := NewSet()
	set.Add(Dependency{Program: "certutil", Package: "nss-tools"})
	output := &bytes.Buffer{}
	resolver := NewResolver(fedora(), NewSearchPathLocator(t.TempDir()), &recordingPrivilegedRunner{}, output, nil)

	satisfied, err := resolver.CheckDependencies(context.Background(), set, false)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.Contains(t, output.String(), "nss-tools")
}
