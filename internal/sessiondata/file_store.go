package sessiondata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
)

// FileStore reads <dir>/<session name>.json blobs.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Load(_ context.Context, name string) (json.RawMessage, error) {
	path := filepath.Join(s.dir, name+".json")

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionDataMissing, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session data %s: %w", path, err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("session data %s is not valid JSON", path)
	}
	return data, nil
}
