package stagingfs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) path(name string) string {
	return filepath.Join(l.root, filepath.FromSlash(name))
}

func (l *Local) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(l.path(name))
}

func (l *Local) Open(name string) (io.ReadCloser, error) {
	return os.Open(l.path(name))
}

func (l *Local) Create(name string) (io.WriteCloser, error) {
	return os.Create(l.path(name))
}

func (l *Local) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(l.path(name))
}

func (l *Local) WriteFile(name string, data []byte) error {
	return os.WriteFile(l.path(name), data, 0644)
}

func (l *Local) MkdirAll(name string) error {
	return os.MkdirAll(l.path(name), 0755)
}

func (l *Local) Remove(name string) error {
	return os.Remove(l.path(name))
}

func (l *Local) Location() string {
	return l.root
}

func (l *Local) Close() error {
	return nil
}
