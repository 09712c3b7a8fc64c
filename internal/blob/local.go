package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// LocalStore serves documents from a directory. Used for development and for
// deployments where the capture share is mounted locally.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Fetch reads the named file from the store directory. The filename must not
// escape the root.
func (s *LocalStore) Fetch(ctx context.Context, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean(filename)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return nil, eris.Errorf("blob: invalid document name %q", filename)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, clean))
	if err != nil {
		return nil, eris.Wrapf(err, "blob: read %s", clean)
	}
	return data, nil
}
