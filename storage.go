package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage writes artifacts under a directory on the local filesystem.
// Relative roots resolve against the working directory at save time.
type LocalStorage struct {
	root string
}

// Ensure LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a LocalStorage rooted at dir.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{root: dir}
}

// Root returns the absolute output directory.
func (s *LocalStorage) Root() (string, error) {
	if filepath.IsAbs(s.root) {
		return filepath.Clean(s.root), nil
	}
	abs, err := filepath.Abs(s.root)
	if err != nil {
		return "", &FilesystemError{Op: "resolve", Path: s.root, Err: err}
	}
	return abs, nil
}

// Save decodes data and writes it to root/filename through a temp file and a
// rename, so readers never see a partially written image.
func (s *LocalStorage) Save(ctx context.Context, data string, filename string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Artifact{}, fmt.Errorf("decode %s: %w: %v", filename, ErrInvalidImageData, err)
	}

	dir, err := s.Root()
	if err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, &FilesystemError{Op: "create directory", Path: dir, Err: err}
	}

	target := filepath.Join(dir, filename)
	if err := writeFileAtomic(target, raw); err != nil {
		return Artifact{}, &FilesystemError{Op: "write", Path: target, Err: err}
	}

	return Artifact{Path: target, Size: int64(len(raw))}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".imagen-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
