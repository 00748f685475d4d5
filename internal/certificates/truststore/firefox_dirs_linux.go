//go:build linux

package truststore

import "path/filepath"

// DefaultFirefoxDirectories returns the Firefox user-data roots of the native, snap and flatpak packages.
func DefaultFirefoxDirectories(homeDirectory string) []string {
	return []string{
		filepath.Join(homeDirectory, ".mozilla", "firefox"),
		filepath.Join(homeDirectory, "snap", "firefox", "common", ".mozilla", "firefox"),
		filepath.Join(homeDirectory, ".var", "app", "org.mozilla.firefox", ".mozilla", "firefox"),
	}
}

// DefaultChromiumDatabase returns the shared NSS database used by Chromium and Chrome.
func DefaultChromiumDatabase(homeDirectory string) string {
	return filepath.Join(homeDirectory, ".pki", "nssdb")
}
