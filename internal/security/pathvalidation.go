// Package security guards the file paths the tools write to.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonical resolves p to an absolute path with symlinks evaluated. For a
// path that does not exist yet, the deepest existing ancestor is resolved and
// the remainder appended, so a symlinked parent cannot redirect a new file.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	rest := ""
	dir := abs
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// WithinDir returns an error unless path resolves inside dir.
func WithinDir(path, dir string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	d, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if d, err = filepath.EvalSymlinks(d); err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %s escapes %s", path, dir)
	}
	return nil
}

// ValidateExportPath accepts output files under the working directory or the
// system temp directory.
func ValidateExportPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	for _, dir := range []string{cwd, os.TempDir()} {
		if WithinDir(path, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("output %s must be under %s or %s", path, cwd, os.TempDir())
}

// SanitizeFilename maps s onto letters, digits, '.', '_' and '-', collapsing
// other runs of characters to one underscore. The result is at most 128
// bytes and never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
		switch {
		case ok:
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
