package dependencies

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ProgramLocator finds executables.
type ProgramLocator interface {
	Find(program string) (string, bool)
}

// SearchPathLocator scans the directories of a PATH-style list.
type SearchPathLocator struct {
	directories []string
}

// NewSearchPathLocator constructs a SearchPathLocator over a colon separated search path.
func NewSearchPathLocator(searchPath string) SearchPathLocator {
	return SearchPathLocator{directories: filepath.SplitList(searchPath)}
}

// NewEnvironmentLocator constructs a SearchPathLocator over the PATH environment variable.
func NewEnvironmentLocator() SearchPathLocator {
	return NewSearchPathLocator(os.Getenv("PATH"))
}

// Find returns the first executable named program. Programs containing a slash are checked as given.
func (locator SearchPathLocator) Find(program string) (string, bool) {
	if strings.ContainsRune(program, '/') {
		return program, isExecutableFile(program)
	}
	for _, directory := range locator.directories {
		if directory == "" {
			continue
		}
		candidate := filepath.Join(directory, program)
		if isExecutableFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}
