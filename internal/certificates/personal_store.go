package certificates

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const personalStoreDirectoryPermissions = fs.FileMode(0o700)

// PersonalStore is the per-user certificate store the framework reads its development certificate from.
type PersonalStore struct {
	fileSystem    FileSystem
	directoryPath string
}

// NewPersonalStore constructs a PersonalStore rooted at directoryPath.
func NewPersonalStore(fileSystem FileSystem, directoryPath string) PersonalStore {
	return PersonalStore{fileSystem: fileSystem, directoryPath: directoryPath}
}

// DefaultPersonalStoreDirectory returns the per-user "My" store directory.
func DefaultPersonalStoreDirectory() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDirectory, ".dotnet", "corefx", "cryptography", "x509stores", "my"), nil
}

// Path returns the file that holds certificate inside the store.
func (store PersonalStore) Path(certificate Certificate) string {
	return filepath.Join(store.directoryPath, certificate.Thumbprint()+".pfx")
}

// Save writes the certificate with its private key as a password-less PKCS#12 file.
func (store PersonalStore) Save(certificate Certificate) (string, error) {
	if err := store.fileSystem.EnsureDirectory(store.directoryPath, personalStoreDirectoryPermissions); err != nil {
		return "", fmt.Errorf("ensure personal store directory: %w", err)
	}

	archive, encodeErr := encodePFX(certificate, "")
	if encodeErr != nil {
		return "", encodeErr
	}
	defer Wipe(archive)

	storePath := store.Path(certificate)
	if writeErr := store.fileSystem.WriteFile(storePath, archive, exportedFilePermissions); writeErr != nil {
		return "", fmt.Errorf("write personal store entry: %w", writeErr)
	}
	return storePath, nil
}
