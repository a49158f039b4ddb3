// Package docid derives document IDs for files and CSV rows.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const filePrefix = "file_"

// FromPath returns a stable document ID for path. The same cleaned path
// always yields the same ID, so a watched file can be re-indexed or
// deleted by path alone.
func FromPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return filePrefix + hex.EncodeToString(sum[:16])
}

// ForRow returns a fresh ID for row of a CSV import: <prefix>_<row>_<8 hex>.
// The random suffix keeps rows from separate imports of the same file apart.
func ForRow(prefix string, row int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if prefix == "" {
		prefix = "doc"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, row, suffix)
}
