package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteSnapshot writes contents to <dir>/<prefix><index>.json, creating dir
// as needed, and returns the file path.
func WriteSnapshot(t testing.TB, dir, prefix string, index int, contents string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s%d.json", prefix, index))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// SnapshotRecord renders a minimal snapshot element.
func SnapshotRecord(hash, key, coverURL string) string {
	return fmt.Sprintf(`{"hash":%q,"key":%q,"coverURL":%q}`, hash, key, coverURL)
}
