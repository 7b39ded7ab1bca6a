// Package format runs an external source formatter over generated output.
package format

import (
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// Formatter rewrites the sources below dir in place.
type Formatter interface {
	Format(ctx context.Context, dir string) error
}

// CommandFormatter executes a command in Docker Compose array format,
// e.g. ["black", "-q", "."], with dir as working directory.
type CommandFormatter struct {
	Command []string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewCommandFormatter returns a formatter running command.
func NewCommandFormatter(command []string) *CommandFormatter {
	return &CommandFormatter{Command: command}
}

// Format runs the command. An empty command does nothing.
func (f *CommandFormatter) Format(ctx context.Context, dir string) error {
	if len(f.Command) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, f.Command[0], f.Command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = f.Stdout
	cmd.Stderr = f.Stderr

	if err := cmd.Run(); err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "formatter (%s) failed", strings.Join(f.Command, " ")),
			"install the formatter or set `formatter: []` in the config to disable it",
		)
	}
	return nil
}

// Nop is a formatter that does nothing.
type Nop struct{}

// Format implements Formatter.
func (Nop) Format(context.Context, string) error { return nil }
