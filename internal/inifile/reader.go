// Package inifile reads browser profile manifests such as Firefox's profiles.ini.
package inifile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Section is one bracketed section with its properties.
type Section struct {
	Name       string
	Properties map[string]string
}

// Property returns the value stored under key.
func (section Section) Property(key string) (string, bool) {
	value, found := section.Properties[key]
	return value, found
}

// FormatError reports a manifest line that cannot be read.
type FormatError struct {
	Line    int
	Message string
}

func (formatError *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", formatError.Line, formatError.Message)
}

// Parse reads every section of the manifest in order.
// Lines before the first section header are ignored.
func Parse(reader io.Reader) ([]Section, error) {
	var sections []Section
	currentSection := -1

	lineReader := bufio.NewReader(reader)
	lineNumber := 0
	for {
		rawLine, readErr := lineReader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("read manifest: %w", readErr)
		}
		if readErr != nil && rawLine == "" {
			break
		}
		lineNumber++
		rawLine = strings.TrimRight(rawLine, "\r\n")
		line := strings.TrimSpace(rawLine)

		if line == "" {
			continue
		}
		switch line[0] {
		case ';', '#', '/':
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			sections = append(sections, Section{
				Name:       line[1 : len(line)-1],
				Properties: map[string]string{},
			})
			currentSection = len(sections) - 1
			continue
		}
		if currentSection < 0 {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, &FormatError{Line: lineNumber, Message: fmt.Sprintf("unrecognized line format: %q", rawLine)}
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) > 1 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		section := sections[currentSection]
		if _, duplicate := section.Properties[key]; duplicate {
			return nil, &FormatError{Line: lineNumber, Message: fmt.Sprintf("duplicate key %q in section %q", key, section.Name)}
		}
		section.Properties[key] = value
	}
	return sections, nil
}
