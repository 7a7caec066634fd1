// Package local keeps completed outputs in a directory on this machine.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/port"
)

// TempPrefix marks outputs still being written. They never show up in List.
const TempPrefix = "_tmp_"

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// TempPath is where an output is written before Upload promotes it.
func (s *Store) TempPath(name string) string {
	return filepath.Join(s.dir, TempPrefix+name)
}

// Upload moves localPath into the store as name, replacing any previous
// entry. Within the same filesystem this is a single rename.
func (s *Store) Upload(ctx context.Context, localPath, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	dst := s.Path(name)
	if filepath.Clean(localPath) == dst {
		return nil
	}

	if err := os.Rename(localPath, dst); err == nil {
		return nil
	} else if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload %s: %w", name, domain.ErrNotFound)
	}

	// cross-device: copy to a temp name, then rename
	tmp := s.TempPath(name)
	if err := copyFile(localPath, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy %s: %w", name, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(localPath)
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.StoredObject, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	objects := make([]domain.StoredObject, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed while listing
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		objects = append(objects, domain.StoredObject{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return objects, nil
}

// Open returns the file itself, so callers can seek in it.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, domain.StoredObject, error) {
	if err := validName(name); err != nil || strings.HasPrefix(name, TempPrefix) {
		return nil, domain.StoredObject{}, domain.ErrNotFound
	}
	f, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.StoredObject{}, domain.ErrNotFound
		}
		return nil, domain.StoredObject{}, err
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, domain.StoredObject{}, domain.ErrNotFound
	}
	return f, domain.StoredObject{Name: name, Size: info.Size(), Modified: info.ModTime()}, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid object name %q", name)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

var (
	_ port.ContentStore = (*Store)(nil)
	_ port.Opener       = (*Store)(nil)
)
