// Package assemble concatenates segment payloads into the final output file.
package assemble

import (
	"errors"
	"fmt"
	"hlsfetch/internal/logger"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// ErrMissingSegment is returned when a payload slot is empty at reassembly time.
var ErrMissingSegment = errors.New("missing segment payload")

// Assembler writes <root>/<name>.ts and removes the working directory afterwards.
type Assembler struct {
	root   string
	logger logger.Logger
}

// New creates an assembler writing into root.
func New(root string, log logger.Logger) *Assembler {
	return &Assembler{root: root, logger: log}
}

// OutputPath returns the location of the output file for name.
func (a *Assembler) OutputPath(name string) string {
	return filepath.Join(a.root, name+".ts")
}

// Assemble writes payloads in index order into the output file, then deletes workDir.
// Every slot must be filled. A failed cleanup is logged and does not fail the call.
func (a *Assembler) Assemble(payloads [][]byte, name, workDir string) (string, error) {
	for i, p := range payloads {
		if p == nil {
			return "", fmt.Errorf("%w: index %d", ErrMissingSegment, i)
		}
	}

	out := a.OutputPath(name)
	pending, err := renameio.NewPendingFile(out, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("failed to create output file %s: %w", out, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			a.logger.Debugf("Cleanup of pending output file %s: %v", out, err)
		}
	}()

	var written int64
	for _, p := range payloads {
		n, err := pending.Write(p)
		if err != nil {
			return "", fmt.Errorf("failed to write output file %s: %w", out, err)
		}
		written += int64(n)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("failed to finalize output file %s: %w", out, err)
	}
	a.logger.Infof("Wrote %s (%d segments, %d bytes)", out, len(payloads), written)

	if err := clearDir(workDir); err != nil {
		a.logger.Warnf("Failed to remove working directory %s: %v", workDir, err)
	}
	return out, nil
}

// clearDir deletes the regular files in dir and then dir itself. Anything else in dir is left
// alone, which makes the final removal fail.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return os.Remove(dir)
}
