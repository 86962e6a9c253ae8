// Package workdir manages the on-disk layout for a harness run.
//
// The core engine never persists histories itself (see package history),
// but the checker bridge needs a directory to hand the external analyzer
// for diagnostic artifacts, and cmd/jepsenctl needs somewhere to keep the
// harness config file and per-run output. Dir owns that layout.
//
// Layout:
//
//	<root>/
//	  config.yaml            (harness configuration, see internal/config)
//	  runs/
//	    <run-id>/             (one directory per run, passed as
//	                           checker.CheckOption.Directory)
package workdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Dir represents a jepsenctl home directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/jepsenctl
//   - macOS:   ~/Library/Application Support/jepsenctl
//   - Windows: %APPDATA%/jepsenctl
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "jepsenctl")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the path to the harness configuration file.
func (d Dir) ConfigPath() string {
	return filepath.Join(d.root, "config.yaml")
}

// RunDir returns the diagnostic-output directory for a specific run,
// suitable for checker.CheckOption.Directory.
func (d Dir) RunDir(runID uuid.UUID) string {
	return filepath.Join(d.root, "runs", runID.String())
}

// EnsureRunDir creates RunDir(runID) (and parents) if it doesn't exist, and
// returns the path.
func (d Dir) EnsureRunDir(runID uuid.UUID) (string, error) {
	dir := d.RunDir(runID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create run directory %s: %w", dir, err)
	}
	return dir, nil
}

// EnsureExists creates the home directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}
