package stagingfs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultBufferSize = 5 * 1024 * 1024

// Store is the staging work directory. Names are slash separated and relative to the store root.
type Store interface {
	Stat(name string) (fs.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	MkdirAll(name string) error
	Remove(name string) error
	// Location describes the root for log messages.
	Location() string
	Close() error
}

// Open returns a Store for location, which is either a local directory or an smb:// url.
func Open(location string) (Store, error) {
	if strings.HasPrefix(strings.ToLower(location), "smb://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, errors.Wrapf(err, "%s is not a valid smb url", location)
		}
		return OpenSMB(*u)
	}
	return NewLocal(location), nil
}

func Exists(s Store, name string) (bool, error) {
	_, err := s.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CheckWritable verifies that root is an existing directory a probe file can be written to.
func CheckWritable(s Store, root string) error {
	info, err := s.Stat(root)
	if err != nil {
		return errors.Wrapf(err, "staging directory %s does not exist", path.Join(s.Location(), root))
	}
	if !info.IsDir() {
		return fmt.Errorf("staging directory %s is not a directory", path.Join(s.Location(), root))
	}
	probe := path.Join(root, "tmp-"+time.Now().Format("20060102150405.000000")+".txt")
	if err := s.WriteFile(probe, []byte("probe\n")); err != nil {
		return errors.Wrapf(err, "staging directory %s is not writable", path.Join(s.Location(), root))
	}
	if err := s.Remove(probe); err != nil {
		log.WithError(err).Warnf("failed to remove probe file %s", probe)
	}
	return nil
}

// CopyIn copies the local file src to name inside the store and returns the sha256 of the copied bytes.
func CopyIn(s Store, src, name string, bufferSize int) (string, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	in, err := os.Open(src)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	if err := s.MkdirAll(path.Dir(name)); err != nil {
		return "", errors.Wrapf(err, "failed to create directory for %s", name)
	}
	out, err := s.Create(name)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", name)
	}

	hash := sha256.New()
	_, err = io.CopyBuffer(io.MultiWriter(out, hash), in, make([]byte, bufferSize))
	closeErr := out.Close()
	if err != nil {
		return "", errors.Wrapf(err, "failed to copy %s to %s", src, name)
	}
	if closeErr != nil {
		return "", errors.Wrapf(closeErr, "failed to close %s", name)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func SHA256(s Store, name string) (string, error) {
	f, err := s.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
