// internal/repository/filestore/jsonfile.go
package filestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"balance-ledger/internal/util"
)

// jsonFile is a JSON array persisted as a whole. Writes go to a temp file in
// the same directory which is fsynced and renamed over the target, so readers
// only ever see the old or the new content.
type jsonFile struct {
	path string
}

func newJSONFile(path string) *jsonFile {
	return &jsonFile{path: path}
}

// load decodes the file into dest. A missing file is created holding an empty
// array; malformed content is reported as *util.CorruptStoreError.
func (f *jsonFile) load(dest any) error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := f.write([]struct{}{}); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", filepath.Base(f.path), err)
		}
		data = []byte("[]")
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(f.path), err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("[]")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &util.CorruptStoreError{Path: filepath.Base(f.path), Err: err}
	}
	return nil
}

func (f *jsonFile) write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(f.path), err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(f.path), err)
	}

	// Persist the rename itself. Not every platform supports syncing a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
