package certificates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/creachadair/atomicfile"
)

// FileSystem abstracts the file operations used to persist certificate material.
type FileSystem interface {
	EnsureDirectory(path string, permissions fs.FileMode) error
	FileExists(path string) (bool, error)
	DirectoryExists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, content []byte, permissions fs.FileMode) error
	CreateTemporaryFile(pattern string) (string, error)
	Remove(path string) error
}

// OperatingSystemFileSystem implements FileSystem on the local disk.
type OperatingSystemFileSystem struct{}

// NewOperatingSystemFileSystem constructs an OperatingSystemFileSystem.
func NewOperatingSystemFileSystem() OperatingSystemFileSystem {
	return OperatingSystemFileSystem{}
}

// EnsureDirectory creates the directory and its parents when missing.
func (OperatingSystemFileSystem) EnsureDirectory(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// FileExists reports whether a regular file exists at path.
func (OperatingSystemFileSystem) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// DirectoryExists reports whether a directory exists at path.
func (OperatingSystemFileSystem) DirectoryExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// ReadFile returns the content of the file at path.
func (OperatingSystemFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile atomically replaces the file at path, so the final file never exists with a wider mode or partial content.
func (OperatingSystemFileSystem) WriteFile(path string, content []byte, permissions fs.FileMode) error {
	return atomicfile.WriteData(path, content, permissions)
}

// CreateTemporaryFile creates an empty file in the temporary directory and returns its path.
func (OperatingSystemFileSystem) CreateTemporaryFile(pattern string) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}
	if closeErr := file.Close(); closeErr != nil {
		return "", fmt.Errorf("close temporary file: %w", closeErr)
	}
	return file.Name(), nil
}

// Remove deletes the file at path. A missing file is not an error.
func (OperatingSystemFileSystem) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// NewSystemClock constructs a SystemClock.
func NewSystemClock() SystemClock {
	return SystemClock{}
}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
