package stagingfs

import (
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/hirochachacha/go-smb2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultSMBPort = "445"

// SMB is a Store on a Windows share, addressed as smb://user@DOMAIN:password@host[:port]/share[/dir].
type SMB struct {
	location string
	base     string
	conn     net.Conn
	session  *smb2.Session
	share    *smb2.Share
}

func OpenSMB(u url.URL) (*SMB, error) {
	if u.User == nil {
		return nil, fmt.Errorf("smb location %s has no user", u.Redacted())
	}
	password, passwordSet := u.User.Password()
	userAndDomain := strings.Split(u.User.Username(), "@")
	if len(userAndDomain) != 2 {
		return nil, fmt.Errorf("domain must be set. But username was %s", u.User.Username())
	}

	shareName, base := splitSharePath(u.Path)
	if shareName == "" {
		return nil, fmt.Errorf("smb location %s has no share", u.Redacted())
	}

	initiator := &smb2.NTLMInitiator{
		User:   userAndDomain[0],
		Domain: userAndDomain[1],
	}
	if passwordSet {
		initiator.Password = password
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), defaultSMBPort)
	}
	conn, err := net.Dial("tcp", host)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial smb host %s", host)
	}

	d := &smb2.Dialer{Initiator: initiator}
	session, err := d.Dial(conn)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "failed to open smb session on %s", host)
	}

	fullShare := buildShareName(u.Hostname(), shareName)
	share, err := session.Mount(fullShare)
	if err != nil {
		session.Logoff()
		conn.Close()
		return nil, errors.Wrapf(err, "failed to mount %s", fullShare)
	}
	log.WithField("share", fullShare).Debug("mounted smb share")

	return &SMB{
		location: u.Redacted(),
		base:     base,
		conn:     conn,
		session:  session,
		share:    share,
	}, nil
}

func splitSharePath(p string) (share, base string) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func buildShareName(host, share string) string {
	return "\\\\" + host + "\\" + share
}

func (s *SMB) path(name string) string {
	return strings.ReplaceAll(path.Join(s.base, name), "/", "\\")
}

func (s *SMB) Stat(name string) (fs.FileInfo, error) {
	return s.share.Stat(s.path(name))
}

func (s *SMB) Open(name string) (io.ReadCloser, error) {
	return s.share.OpenFile(s.path(name), os.O_RDONLY, 0644)
}

func (s *SMB) Create(name string) (io.WriteCloser, error) {
	return s.share.Create(s.path(name))
}

func (s *SMB) ReadFile(name string) ([]byte, error) {
	return s.share.ReadFile(s.path(name))
}

func (s *SMB) WriteFile(name string, data []byte) error {
	return s.share.WriteFile(s.path(name), data, 0644)
}

func (s *SMB) MkdirAll(name string) error {
	p := s.path(name)
	if p == "" || p == "." {
		return nil
	}
	return s.share.MkdirAll(p, 0755)
}

func (s *SMB) Remove(name string) error {
	return s.share.Remove(s.path(name))
}

func (s *SMB) Location() string {
	return s.location
}

func (s *SMB) Close() error {
	if err := s.share.Umount(); err != nil {
		log.WithError(err).Warn("failed to unmount smb share")
	}
	if err := s.session.Logoff(); err != nil {
		log.WithError(err).Warn("failed to log off smb session")
	}
	return s.conn.Close()
}
