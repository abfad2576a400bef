package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that escape the sandbox root.
var ErrOutsideRoot = errors.New("path is outside sandbox root")

// Sandbox confines file writes to a root directory.
type Sandbox struct {
	Root string
}

// NewSandbox creates a sandbox rooted at root, creating the directory if
// needed.
func NewSandbox(root string) (*Sandbox, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox root: %w", err)
	}
	// compare against the real location so symlinked roots (e.g. /tmp on macOS) still match
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	return &Sandbox{Root: absRoot}, nil
}

// ValidatePath resolves path against the root and ensures it stays inside.
// Relative paths are taken relative to the root, not the process cwd.
func (s *Sandbox) ValidatePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Root, path)
	}
	absPath := filepath.Clean(path)

	// resolve the deepest existing ancestor so symlinked directories are checked too
	resolved, err := resolveExisting(absPath)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(s.Root, resolved)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", fmt.Errorf("%w: %s is outside %s", ErrOutsideRoot, path, s.Root)
	}
	return resolved, nil
}

// SafeWrite writes a file atomically inside the sandbox and returns the
// path written.
func (s *Sandbox) SafeWrite(path string, content []byte) (string, error) {
	validatedPath, err := s.ValidatePath(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(validatedPath), 0o755); err != nil {
		return "", err
	}

	// Atomic write: write to temp file, then rename
	tmpFile, err := os.CreateTemp(filepath.Dir(validatedPath), ".tmp-*")
	if err != nil {
		return "", err
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		return "", err
	}
	if err := tmpFile.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, validatedPath); err != nil {
		return "", err
	}
	return validatedPath, nil
}

func resolveExisting(path string) (string, error) {
	var missing []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
