package certificates

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// DefaultElevationProgram runs commands with superuser privileges.
const DefaultElevationProgram = "sudo"

// CommandRunner executes system commands.
type CommandRunner interface {
	Run(ctx context.Context, executable string, arguments []string) error
	RunWithPrivileges(ctx context.Context, executable string, arguments []string, standardInput []byte) error
}

// ExecutableRunner executes commands using the local operating system.
type ExecutableRunner struct {
	elevationProgram string
}

// NewExecutableRunner constructs an ExecutableRunner elevating through sudo.
func NewExecutableRunner() ExecutableRunner {
	return ExecutableRunner{elevationProgram: DefaultElevationProgram}
}

// Run executes the executable with the provided arguments.
func (executableRunner ExecutableRunner) Run(ctx context.Context, executable string, arguments []string) error {
	return executableRunner.execute(ctx, executable, arguments, nil)
}

// RunWithPrivileges executes the executable through the elevation helper, piping standardInput when provided.
func (executableRunner ExecutableRunner) RunWithPrivileges(ctx context.Context, executable string, arguments []string, standardInput []byte) error {
	elevatedArguments := make([]string, 0, len(arguments)+1)
	elevatedArguments = append(elevatedArguments, executable)
	elevatedArguments = append(elevatedArguments, arguments...)
	return executableRunner.execute(ctx, executableRunner.elevationProgram, elevatedArguments, standardInput)
}

func (executableRunner ExecutableRunner) execute(ctx context.Context, executable string, arguments []string, standardInput []byte) error {
	command := exec.CommandContext(ctx, executable, arguments...)
	var stderrBuffer bytes.Buffer
	command.Stderr = &stderrBuffer
	command.Stdout = io.Discard
	if standardInput != nil {
		command.Stdin = bytes.NewReader(standardInput)
	}
	err := command.Run()
	if err != nil {
		return fmt.Errorf("execute %s %s: %w: %s", executable, strings.Join(arguments, " "), err, strings.TrimSpace(stderrBuffer.String()))
	}
	return nil
}
