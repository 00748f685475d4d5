package truststore

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tyemirov/linux-dev-certs/internal/certificates"
	"github.com/tyemirov/linux-dev-certs/internal/inifile"
	"github.com/tyemirov/linux-dev-certs/internal/osflavor"
)

const (
	firefoxProfilesManifest  = "profiles.ini"
	installSectionPrefix     = "install"
	installDefaultProperty   = "Default"
	profilePathProperty      = "Path"
	firefoxStoreNameFormat   = "Firefox profile '%s'"
	chromiumStoreNameFormat  = "Chromium NSS database '%s'"
)

// DiscoveryConfiguration lists where browser databases are looked up.
type DiscoveryConfiguration struct {
	FirefoxDirectories []string
	ChromiumDatabase   string
}

// Discoverer finds the NSS databases of installed browsers.
type Discoverer struct {
	flavor        osflavor.Flavor
	commandRunner certificates.CommandRunner
	fileSystem    certificates.FileSystem
	configuration DiscoveryConfiguration
}

// NewDiscoverer constructs a Discoverer.
func NewDiscoverer(flavor osflavor.Flavor, commandRunner certificates.CommandRunner, fileSystem certificates.FileSystem, configuration DiscoveryConfiguration) Discoverer {
	return Discoverer{
		flavor:        flavor,
		commandRunner: commandRunner,
		fileSystem:    fileSystem,
		configuration: configuration,
	}
}

// DiscoverStores returns one NSSDatabase per existing profile directory.
func (discoverer Discoverer) DiscoverStores() ([]Store, error) {
	var stores []Store
	seenDirectories := map[string]struct{}{}

	for _, firefoxDirectory := range discoverer.configuration.FirefoxDirectories {
		profileDirectories, profilesErr := discoverer.firefoxProfileDirectories(firefoxDirectory)
		if profilesErr != nil {
			return nil, profilesErr
		}
		for _, profileDirectory := range profileDirectories {
			if _, seen := seenDirectories[profileDirectory]; seen {
				continue
			}
			seenDirectories[profileDirectory] = struct{}{}

			exists, existsErr := discoverer.fileSystem.DirectoryExists(profileDirectory)
			if existsErr != nil {
				return nil, fmt.Errorf("check firefox profile %s: %w", profileDirectory, existsErr)
			}
			if !exists {
				continue
			}
			stores = append(stores, NewNSSDatabase(fmt.Sprintf(firefoxStoreNameFormat, profileDirectory), profileDirectory, discoverer.flavor, discoverer.commandRunner, discoverer.fileSystem))
		}
	}

	chromiumDatabase := filepath.Clean(discoverer.configuration.ChromiumDatabase)
	if discoverer.configuration.ChromiumDatabase != "" {
		if _, seen := seenDirectories[chromiumDatabase]; !seen {
			exists, existsErr := discoverer.fileSystem.DirectoryExists(chromiumDatabase)
			if existsErr != nil {
				return nil, fmt.Errorf("check chromium database %s: %w", chromiumDatabase, existsErr)
			}
			if exists {
				stores = append(stores, NewNSSDatabase(fmt.Sprintf(chromiumStoreNameFormat, chromiumDatabase), chromiumDatabase, discoverer.flavor, discoverer.commandRunner, discoverer.fileSystem))
			}
		}
	}
	return stores, nil
}

func (discoverer Discoverer) firefoxProfileDirectories(firefoxDirectory string) ([]string, error) {
	manifestPath := filepath.Join(firefoxDirectory, firefoxProfilesManifest)
	exists, existsErr := discoverer.fileSystem.FileExists(manifestPath)
	if existsErr != nil {
		return nil, fmt.Errorf("check %s: %w", manifestPath, existsErr)
	}
	if !exists {
		return nil, nil
	}

	content, readErr := discoverer.fileSystem.ReadFile(manifestPath)
	if readErr != nil {
		return nil, fmt.Errorf("read %s: %w", manifestPath, readErr)
	}
	sections, parseErr := inifile.Parse(bytes.NewReader(content))
	if parseErr != nil {
		return nil, fmt.Errorf("parse %s: %w", manifestPath, parseErr)
	}

	var profileDirectories []string
	for _, section := range sections {
		propertyName := profilePathProperty
		if strings.HasPrefix(strings.ToLower(section.Name), installSectionPrefix) {
			propertyName = installDefaultProperty
		}
		profilePath, found := section.Property(propertyName)
		if !found || profilePath == "" {
			continue
		}
		if !filepath.IsAbs(profilePath) {
			profilePath = filepath.Join(firefoxDirectory, profilePath)
		}
		profileDirectories = append(profileDirectories, filepath.Clean(profilePath))
	}
	return profileDirectories, nil
}
