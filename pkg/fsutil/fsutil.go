package fsutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotTimeLayout is the timestamp embedded in raw snapshot filenames.
const SnapshotTimeLayout = "20060102_150405"

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SnapshotPath returns dir/<prefix>_<timestamp>.json.
func SnapshotPath(dir, prefix string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", prefix, at.Format(SnapshotTimeLayout)))
}

// WriteSnapshot stores payload byte-for-byte under SnapshotPath and returns
// the path written.
func WriteSnapshot(dir, prefix string, at time.Time, payload []byte) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	path := SnapshotPath(dir, prefix, at)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func WriteJSONFile(path string, v any) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
