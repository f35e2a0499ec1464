package nexus

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Authentication struct {
	Username string
	Password string
}

func NewAuthentication(username, password string) (*Authentication, error) {
	if err := checkArgument(!isBlank(username), "username is required"); err != nil {
		return nil, err
	}
	if err := checkArgument(password != "", "password is required"); err != nil {
		return nil, err
	}
	return &Authentication{Username: username, Password: password}, nil
}

// CertificateAuthentication presents a client certificate during the TLS handshake.
// CACertFile optionally replaces the system roots used to verify the server.
type CertificateAuthentication struct {
	CertFile   string
	KeyFile    string
	CACertFile string
}

type ServerConfig struct {
	Address        *url.URL
	Authentication *Authentication
	Certificate    *CertificateAuthentication
}

// NewServerConfig parses address and makes sure its path ends with "/" so relative endpoints resolve beneath it.
func NewServerConfig(address string, authentication *Authentication) (*ServerConfig, error) {
	if err := checkArgument(!isBlank(address), "server address is required"); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid url: %v", ErrInvalidArgument, address, err)
	}
	if err := checkArgument(u.Scheme == "http" || u.Scheme == "https", "server address %s must be an http or https url", address); err != nil {
		return nil, err
	}
	if err := checkArgument(u.Host != "", "server address %s has no host", address); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &ServerConfig{Address: u, Authentication: authentication}, nil
}

func (s *ServerConfig) resolve(path string) string {
	return s.Address.ResolveReference(&url.URL{Path: path}).String()
}

func (s *ServerConfig) tlsConfig(insecureSkipVerify bool) (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: insecureSkipVerify} // for self-signed NXRM instances
	if s.Certificate == nil {
		return cfg, nil
	}
	if s.Certificate.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(s.Certificate.CertFile, s.Certificate.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate %s: %w", s.Certificate.CertFile, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if s.Certificate.CACertFile != "" {
		pem, err := os.ReadFile(s.Certificate.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate %s: %w", s.Certificate.CACertFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", s.Certificate.CACertFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

type ProxyConfig struct {
	Host           string
	Port           int
	Authentication *Authentication
	// NoProxyHosts entries match a host exactly or, when starting with "*.", by suffix.
	NoProxyHosts []string
}

func NewProxyConfig(host string, port int, authentication *Authentication, noProxyHosts []string) (*ProxyConfig, error) {
	if err := checkArgument(!isBlank(host), "proxy host is required"); err != nil {
		return nil, err
	}
	return &ProxyConfig{Host: host, Port: port, Authentication: authentication, NoProxyHosts: noProxyHosts}, nil
}

func (p *ProxyConfig) URL() *url.URL {
	host := p.Host
	if p.Port > 0 {
		host = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	}
	u := &url.URL{Scheme: "http", Host: host}
	if p.Authentication != nil {
		u.User = url.UserPassword(p.Authentication.Username, p.Authentication.Password)
	}
	return u
}

func (p *ProxyConfig) Bypass(host string) bool {
	host = strings.ToLower(host)
	for _, entry := range p.NoProxyHosts {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "*.") {
			if strings.HasSuffix(host, entry[1:]) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}

func (p *ProxyConfig) proxyFunc() func(*http.Request) (*url.URL, error) {
	proxyURL := p.URL()
	return func(req *http.Request) (*url.URL, error) {
		if p.Bypass(req.URL.Hostname()) {
			return nil, nil
		}
		return proxyURL, nil
	}
}
