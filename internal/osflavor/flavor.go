// Package osflavor identifies the Linux distribution family of the host from os-release data.
package osflavor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"slices"
	"strings"
)

// DefaultReleaseFilePath is the well-known location of the os-release file.
const DefaultReleaseFilePath = "/etc/os-release"

const (
	fieldPrefixID         = "ID="
	fieldPrefixIDLike     = "ID_LIKE="
	fieldPrefixPrettyName = "PRETTY_NAME="
)

// Family names a cluster of distributions sharing package-manager and trust-store conventions.
type Family string

const (
	// FamilyFedora covers Fedora, RHEL and their derivatives.
	FamilyFedora Family = "fedora"
	// FamilyDebian covers Debian, Ubuntu and their derivatives.
	FamilyDebian Family = "debian"
	// FamilyGentoo covers Gentoo based systems.
	FamilyGentoo Family = "gentoo"
	// FamilyArch covers Arch Linux and Manjaro.
	FamilyArch Family = "arch"
	// FamilySlackware covers Slackware based systems.
	FamilySlackware Family = "slackware"
	// FamilySUSE covers openSUSE and SLES.
	FamilySUSE Family = "suse"
)

// Families lists every supported family in the order they are matched.
var Families = []Family{FamilyFedora, FamilyDebian, FamilyGentoo, FamilyArch, FamilySlackware, FamilySUSE}

// Flavor holds the identification fields read from os-release.
type Flavor struct {
	ID          string
	IDLike      []string
	Description string
}

// UnsupportedError reports that no supported family matches the host.
type UnsupportedError struct {
	OperatingSystem string
}

func (unsupportedError *UnsupportedError) Error() string {
	return fmt.Sprintf("can not determine location to install CA certificate on %s", unsupportedError.OperatingSystem)
}

// Load reads the flavor from the os-release file at path. A missing file yields an empty Flavor.
func Load(path string) (Flavor, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		if errors.Is(openErr, fs.ErrNotExist) {
			return Flavor{}, nil
		}
		return Flavor{}, fmt.Errorf("open os release file: %w", openErr)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads ID, ID_LIKE and PRETTY_NAME fields from os-release formatted content.
func Parse(reader io.Reader) (Flavor, error) {
	flavor := Flavor{}
	lineReader := bufio.NewReader(reader)
	for {
		rawLine, readErr := lineReader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return Flavor{}, fmt.Errorf("read os release: %w", readErr)
		}
		line := strings.TrimSpace(rawLine)
		if value, found := fieldValue(line, fieldPrefixID); found {
			flavor.ID = value
		} else if value, found := fieldValue(line, fieldPrefixIDLike); found {
			flavor.IDLike = strings.Fields(value)
		} else if value, found := fieldValue(line, fieldPrefixPrettyName); found {
			flavor.Description = value
		}
		if readErr != nil {
			break
		}
	}
	return flavor, nil
}

func fieldValue(line string, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	value := line[len(prefix):]
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[0] == value[len(value)-1] {
		value = value[1 : len(value)-1]
	}
	return value, true
}

// Is reports whether the exact id or the like-list names the family.
func (flavor Flavor) Is(family Family) bool {
	name := string(family)
	if name == "" {
		return false
	}
	return flavor.ID == name || slices.Contains(flavor.IDLike, name)
}

// IsFedoraLike reports whether the host belongs to the Fedora family.
func (flavor Flavor) IsFedoraLike() bool { return flavor.Is(FamilyFedora) }

// IsDebianLike reports whether the host belongs to the Debian family.
func (flavor Flavor) IsDebianLike() bool { return flavor.Is(FamilyDebian) }

// IsGentooLike reports whether the host belongs to the Gentoo family.
func (flavor Flavor) IsGentooLike() bool { return flavor.Is(FamilyGentoo) }

// IsArchLike reports whether the host belongs to the Arch family.
func (flavor Flavor) IsArchLike() bool { return flavor.Is(FamilyArch) }

// IsSlackwareLike reports whether the host belongs to the Slackware family.
func (flavor Flavor) IsSlackwareLike() bool { return flavor.Is(FamilySlackware) }

// IsSUSELike reports whether the host belongs to the SUSE family.
func (flavor Flavor) IsSUSELike() bool { return flavor.Is(FamilySUSE) }

// Family returns the first supported family matching the flavor.
func (flavor Flavor) Family() (Family, bool) {
	for _, family := range Families {
		if flavor.Is(family) {
			return family, true
		}
	}
	return "", false
}

// Supported reports whether any known family matches.
func (flavor Flavor) Supported() bool {
	_, found := flavor.Family()
	return found
}

// Unsupported returns the terminal error for an unrecognized distribution.
func (flavor Flavor) Unsupported() error {
	return &UnsupportedError{OperatingSystem: flavor.String()}
}

// String describes the detected operating system.
func (flavor Flavor) String() string {
	switch {
	case flavor.Description != "":
		return flavor.Description
	case flavor.ID != "":
		return flavor.ID
	default:
		return runtime.GOOS
	}
}
