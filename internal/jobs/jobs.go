// Package jobs holds the batch jobs behind each eduetl subcommand.
//
// A job reads its input completely, classifies or flattens it with the core
// packages (hierarchy, classify), and hands the groups to batch.WriteGroups.
// Per-record problems are audited and skipped; only a missing or unreadable
// top-level input, an unusable configuration, or cancellation make a job
// return an error.
package jobs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"eduetl/internal/audit"
	"eduetl/internal/tabular"

	"go.uber.org/zap"
)

// ErrInputNotFound is returned when the top-level input of a job is missing.
var ErrInputNotFound = errors.New("input not found")

// Env carries the collaborators every job shares.
type Env struct {
	Logger *zap.Logger
	Audit  *audit.Log
	Opener tabular.Opener
}

func (e Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Result summarizes one job run for the CLI.
type Result struct {
	Read    int // records/rows/files read
	Written int // output files (or groups) written
	Failed  int // output files (or groups) that could not be written
	Skipped int // records audited and skipped
}

func (r Result) String() string {
	return fmt.Sprintf("read=%d written=%d failed=%d skipped=%d", r.Read, r.Written, r.Failed, r.Skipped)
}

// requireDir fails with ErrInputNotFound unless path is an existing directory.
func requireDir(path string) error {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInputNotFound, path)
	}
	return nil
}

// inputErr maps a reader's not-found error onto ErrInputNotFound.
func inputErr(src string, err error) error {
	if errors.Is(err, tabular.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrInputNotFound, src)
	}
	return fmt.Errorf("read %s: %w", src, err)
}
