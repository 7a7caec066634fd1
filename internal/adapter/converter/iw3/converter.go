// Package iw3 builds the command line for the iw3 2D-to-3D video converter
// (or any tool taking the same -i/-o flags).
package iw3

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

type Converter struct {
	program  string
	baseArgs []string
	extra    []string
	dir      string
}

// NewConverter takes the configured command, which may carry leading
// arguments ("python -m iw3.cli"), and default flags appended to every job.
func NewConverter(command, defaultArgs, workDir string) (*Converter, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("transform command: %w", ErrEmptyPath)
	}
	return &Converter{
		program:  fields[0],
		baseArgs: fields[1:],
		extra:    strings.Fields(defaultArgs),
		dir:      workDir,
	}, nil
}

func (c *Converter) Command(job domain.Job, outputPath string) (domain.CommandSpec, error) {
	if err := validatePath(job.InputPath); err != nil {
		return domain.CommandSpec{}, fmt.Errorf("input: %w", err)
	}
	if err := validatePath(outputPath); err != nil {
		return domain.CommandSpec{}, fmt.Errorf("output: %w", err)
	}

	args := make([]string, 0, len(c.baseArgs)+len(c.extra)+5)
	args = append(args, c.baseArgs...)
	args = append(args, "-i", job.InputPath, "-o", outputPath, "--yes")
	args = append(args, c.extra...)
	args = append(args, job.ExtraArgs()...)

	return domain.CommandSpec{
		Path: c.program,
		Args: args,
		Dir:  c.dir,
	}, nil
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

var _ port.Transformer = (*Converter)(nil)
