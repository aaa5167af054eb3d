// internal/artifact/store.go
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"balance-ledger/internal/util"
)

// PublicPrefix is the URL path under which stored cashout proofs are referenced.
const PublicPrefix = "/uploads/cashout/"

const maxNameLength = 100

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// File describes one stored artifact.
type File struct {
	PublicPath string
	ModTime    time.Time
}

// FSStore keeps uploaded proof-of-payment files in a directory on disk.
type FSStore struct {
	dir string
	now func() time.Time
}

// NewFSStore creates the cashout directory under uploadRoot if needed.
func NewFSStore(uploadRoot string) (*FSStore, error) {
	dir := filepath.Join(uploadRoot, "cashout")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FSStore{dir: dir, now: time.Now}, nil
}

// Dir returns the directory files are written to.
func (s *FSStore) Dir() string {
	return s.dir
}

// Save writes the upload as <userID>_<unixMillis>_<name> and returns its public
// path. The file is synced and closed before Save returns. Uploads larger than
// maxBytes are rejected with util.ErrInvalidInput and leave nothing behind.
func (s *FSStore) Save(ctx context.Context, userID, originalName string, src io.Reader, maxBytes int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%d_%s", sanitize(userID, "user"), s.now().UnixMilli(), sanitize(originalName, "upload"))
	full := filepath.Join(s.dir, name)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrArtifactWrite, err)
	}

	written, err := io.Copy(f, io.LimitReader(src, maxBytes+1))
	if err == nil && written > maxBytes {
		err = fmt.Errorf("file exceeds %d bytes: %w", maxBytes, util.ErrInvalidInput)
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		if errors.Is(err, util.ErrInvalidInput) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", util.ErrArtifactWrite, err)
	}

	return PublicPrefix + name, nil
}

// Delete removes the file referenced by publicPath. A file that is already
// gone is not an error.
func (s *FSStore) Delete(ctx context.Context, publicPath string) error {
	full, err := s.resolve(publicPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", util.ErrArtifactDelete, err)
	}
	return nil
}

// List returns every stored file.
func (s *FSStore) List(ctx context.Context) ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload directory: %w", err)
	}
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		files = append(files, File{PublicPath: PublicPrefix + e.Name(), ModTime: info.ModTime()})
	}
	return files, nil
}

// resolve maps a public path to a file inside dir, refusing anything that
// would escape it.
func (s *FSStore) resolve(publicPath string) (string, error) {
	if !strings.HasPrefix(publicPath, PublicPrefix) {
		return "", fmt.Errorf("%w: unexpected path %q", util.ErrArtifactDelete, publicPath)
	}
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsRune(name, '\\') {
		return "", fmt.Errorf("%w: unexpected path %q", util.ErrArtifactDelete, publicPath)
	}
	return filepath.Join(s.dir, name), nil
}

func sanitize(name, fallback string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if len(name) > maxNameLength {
		name = name[len(name)-maxNameLength:]
	}
	if name == "" {
		return fallback
	}
	return name
}
