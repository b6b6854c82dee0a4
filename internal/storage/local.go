package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/filex"
)

var _ Store = (*LocalStore)(nil)

// LocalStore writes into a directory. Files are created 0600 and replaced
// atomically.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStore{dir: abs}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes data under name, which must be a local relative path such as
// "capsule.zip" or "<id>/notes.txt".
func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("save %q: %w", name, common.ErrInvalidFileName)
	}
	path := filepath.Join(s.dir, name)
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads name from the store directory. A name containing a path
// separator is read as a filesystem path instead, so archives can be opened
// from anywhere.
func (s *LocalStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := name
	if !strings.ContainsRune(name, os.PathSeparator) && !strings.ContainsRune(name, '/') {
		path = filepath.Join(s.dir, name)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", name, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return data, nil
}
