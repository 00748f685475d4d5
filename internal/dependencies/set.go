// Package dependencies tracks the external programs trust stores rely on and installs the packages providing them.
package dependencies

import "slices"

// Dependency names a required external program and the OS package that provides it.
type Dependency struct {
	Program string
	Package string
}

// Set deduplicates dependencies by program name. The first package recorded for a program wins.
type Set struct {
	entries map[string]Dependency
}

// NewSet constructs an empty Set.
func NewSet() *Set {
	return &Set{entries: map[string]Dependency{}}
}

// Add records the dependency unless its program is already present and reports whether it was added.
func (set *Set) Add(dependency Dependency) bool {
	if _, exists := set.entries[dependency.Program]; exists {
		return false
	}
	set.entries[dependency.Program] = dependency
	return true
}

// Contains reports whether the program is part of the set.
func (set *Set) Contains(program string) bool {
	_, exists := set.entries[program]
	return exists
}

// Len returns the number of distinct programs.
func (set *Set) Len() int {
	return len(set.entries)
}

// Dependencies returns the members ordered by program name.
func (set *Set) Dependencies() []Dependency {
	result := make([]Dependency, 0, len(set.entries))
	for _, dependency := range set.entries {
		result = append(result, dependency)
	}
	slices.SortFunc(result, func(left Dependency, right Dependency) int {
		switch {
		case left.Program < right.Program:
			return -1
		case left.Program > right.Program:
			return 1
		default:
			return 0
		}
	})
	return result
}

// Packages returns the distinct packages of the given dependencies in first-seen order.
func Packages(dependencyList []Dependency) []string {
	seen := map[string]struct{}{}
	packages := make([]string, 0, len(dependencyList))
	for _, dependency := range dependencyList {
		if _, exists := seen[dependency.Package]; exists {
			continue
		}
		seen[dependency.Package] = struct{}{}
		packages = append(packages, dependency.Package)
	}
	return packages
}
