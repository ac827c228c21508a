package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Dir is one run's output directory. Files saved to it are referenced
// relative to the report written next to them.
type Dir struct {
	Root string
}

// RunDirName formats t as run-<UTC timestamp> with ':' and '.' replaced by
// '-', e.g. run-2026-10-14T09-30-00-000Z.
func RunDirName(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return "run-" + strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

// NewRunDir creates <parent>/run-<timestamp>.
func NewRunDir(parent string, t time.Time) (*Dir, error) {
	root, err := filepath.Abs(filepath.Join(parent, RunDirName(t)))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &Dir{Root: root}, nil
}

// Path resolves name inside the directory and rejects anything escaping it.
func (d *Dir) Path(name string) (string, error) {
	target := filepath.Join(d.Root, name)
	rel, err := filepath.Rel(d.Root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return target, nil
}

// Save writes data under name and returns its report-relative reference.
func (d *Dir) Save(name, contentType string, data []byte) (string, error) {
	target, err := d.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s (%s): %w", name, contentType, err)
	}
	rel, _ := filepath.Rel(d.Root, target)
	return "./" + filepath.ToSlash(rel), nil
}
