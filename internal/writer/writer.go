// Package writer owns every file stackup generates. Each artifact is
// written independently under a lock; a failure affects only that artifact
// and earlier writes are not undone.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/protocollar/stackup/internal/envfile"
	"github.com/protocollar/stackup/internal/flock"
	"github.com/protocollar/stackup/internal/gitignore"
	"github.com/protocollar/stackup/internal/logger"
)

// Status is what happened to one artifact.
type Status string

const (
	Created   Status = "created"
	Updated   Status = "updated"
	Unchanged Status = "unchanged"
	Failed    Status = "failed"
)

// Artifact reports one generated file.
type Artifact struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
	Err    error  `json:"-"`
}

// Error is the failure message, empty on success.
func (a Artifact) Error() string {
	if a.Err == nil {
		return ""
	}
	return a.Err.Error()
}

// Mode of the files holding secrets.
const (
	secretMode = 0o600
	publicMode = 0o644
)

// WriteRegistry replaces the compiled registry at path with data.
func WriteRegistry(path string, data []byte) Artifact {
	return update(path, secretMode, func([]byte) ([]byte, string, error) {
		return data, "", nil
	})
}

// WriteEnv merges values into the env file at path.
func WriteEnv(path string, values map[string]string) Artifact {
	return update(path, secretMode, func(old []byte) ([]byte, string, error) {
		if len(values) == 0 && old == nil {
			return nil, "no credentials to write", nil
		}
		data, err := envfile.Merge(old, values)
		if err != nil {
			return nil, "", err
		}
		return data, fmt.Sprintf("%d variables", len(values)), nil
	})
}

// EnsureGitignore appends entries not already ignored.
func EnsureGitignore(path string, entries []string) Artifact {
	return update(path, publicMode, func(old []byte) ([]byte, string, error) {
		next, added := gitignore.Ensure(old, entries)
		if len(added) == 0 {
			return next, "", nil
		}
		return next, fmt.Sprintf("added %v", added), nil
	})
}

// update reads path, computes its new content, and writes it when it
// differs. A nil result with no existing file writes nothing.
func update(path string, mode os.FileMode, next func(old []byte) ([]byte, string, error)) Artifact {
	a := Artifact{Path: path}
	err := flock.With(path, func() error {
		old, err := os.ReadFile(path)
		exists := err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		data, detail, err := next(old)
		if err != nil {
			return err
		}
		a.Detail = detail
		switch {
		case !exists && data == nil:
			a.Status = Unchanged
			return nil
		case exists && bytes.Equal(old, data):
			a.Status = Unchanged
			return nil
		}

		if err := writeAtomic(path, data, mode); err != nil {
			return err
		}
		if exists {
			a.Status = Updated
		} else {
			a.Status = Created
		}
		return nil
	})
	if err != nil {
		a.Status = Failed
		a.Err = err
		a.Detail = err.Error()
		logger.Error("Could not write %s: %v", path, err)
	} else {
		logger.Event("artifact written", "path", path, "status", string(a.Status))
	}
	return a
}

// writeAtomic writes through a temp file in the same directory and renames
// it over path, so readers never see a partial file.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
