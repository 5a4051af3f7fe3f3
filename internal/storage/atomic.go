package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valyala/bytebufferpool"

	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
)

// WriteTableAtomic renders the table into a pooled buffer, writes it to a
// sibling temp file, and renames over the target. A concurrent reader sees
// either the complete old file or the complete new one, never a truncation.
func WriteTableAtomic(path string, table *tabular.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := table.WriteCSV(buf); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// ReadTable loads a CSV table. A missing file is an empty table, not an error.
func ReadTable(path string) (*tabular.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tabular.New(), nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	table, err := tabular.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return table, nil
}
