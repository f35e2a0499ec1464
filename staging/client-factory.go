package staging

import (
	"nxrm-staging-utility/nexus"
)

// ClientFactory builds the client a goal talks to NXRM with.
type ClientFactory interface {
	Build(server *nexus.ServerConfig) (nexus.RepositoryManager, error)
}

// DefaultClientFactory builds nexus.V3Client instances.
type DefaultClientFactory struct {
	Proxy              *nexus.ProxyConfig
	UserAgent          string
	RetryMax           int
	InsecureSkipVerify bool
}

func (f DefaultClientFactory) Build(server *nexus.ServerConfig) (nexus.RepositoryManager, error) {
	client, err := nexus.NewClientBuilder().
		WithServerConfig(server).
		WithProxyConfig(f.Proxy).
		WithUserAgent(f.UserAgent).
		WithRetryMax(f.RetryMax).
		WithInsecureSkipVerify(f.InsecureSkipVerify).
		Build()
	if err != nil {
		return nil, err
	}
	return client, nil
}
