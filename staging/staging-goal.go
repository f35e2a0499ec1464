package staging

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/magiconair/properties"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/nexus"
	"nxrm-staging-utility/stagingfs"
)

const (
	TagProperty = "staging.tag"

	outputDirectory      = "nexus-staging"
	stagingDirectory     = "staging"
	propertiesFilename   = "staging.properties"
	propertiesComment    = "NXRM3 Maven staging plugin"
	defaultDeploySkipKey = "maven.deploy.skip"
)

// Server holds the credentials registered for a server id.
type Server struct {
	ID       string `mapstructure:"id" json:"id"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
}

// Goal carries the settings every staging goal shares.
type Goal struct {
	ServerID    string
	NexusURL    string
	Servers     []Server
	Certificate *nexus.CertificateAuthentication
	// AltStagingDirectory replaces <ExecutionRoot>/target/nexus-staging. It may be an smb:// location.
	AltStagingDirectory string
	// ExecutionRoot defaults to the working directory.
	ExecutionRoot string
	Offline       bool
	BufferSize    int
	IndexFilename string

	ClientFactory ClientFactory
	TagGenerator  TagGenerator
	// Store, when set, is used as the work directory instead of opening WorkDirectoryRoot.
	Store stagingfs.Store
}

// Result summarizes what a goal did.
type Result struct {
	Tag        string                `json:"tag,omitempty"`
	Components []nexus.ComponentInfo `json:"components,omitempty"`
	Uploaded   int                   `json:"uploaded,omitempty"`
	Staged     int                   `json:"staged,omitempty"`
}

func (g *Goal) ServerConfiguration() (*nexus.ServerConfig, error) {
	var selected *Server
	for i := range g.Servers {
		if g.Servers[i].ID == g.ServerID {
			selected = &g.Servers[i]
			break
		}
	}
	if selected == nil {
		return nil, executionError("Server with ID \"%s\" not found!", g.ServerID)
	}
	var auth *nexus.Authentication
	if selected.Username != "" {
		var err error
		if auth, err = nexus.NewAuthentication(selected.Username, selected.Password); err != nil {
			return nil, &ExecutionError{Err: errors.Wrapf(err, "credentials for server \"%s\" are incomplete", g.ServerID)}
		}
	}
	server, err := nexus.NewServerConfig(g.NexusURL, auth)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	server.Certificate = g.Certificate
	return server, nil
}

// Client builds the NXRM client for the configured server.
func (g *Goal) Client() (nexus.RepositoryManager, error) {
	server, err := g.ServerConfiguration()
	if err != nil {
		return nil, err
	}
	factory := g.ClientFactory
	if factory == nil {
		factory = DefaultClientFactory{RetryMax: nexus.DefaultRetryMax}
	}
	client, err := factory.Build(server)
	if err != nil {
		return nil, wrapExecution(err, "failed to create NXRM client")
	}
	return client, nil
}

func (g *Goal) WorkDirectoryRoot() string {
	if g.AltStagingDirectory != "" {
		return g.AltStagingDirectory
	}
	root := g.ExecutionRoot
	if root == "" {
		root, _ = os.Getwd()
	}
	return filepath.Join(root, "target", outputDirectory)
}

func (g *Goal) StagingDirectoryRoot() string {
	return filepath.Join(g.WorkDirectoryRoot(), stagingDirectory)
}

func (g *Goal) StagingPropertiesFile() string {
	return filepath.Join(g.StagingDirectoryRoot(), propertiesFilename)
}

func (g *Goal) propertiesName() string {
	return path.Join(stagingDirectory, propertiesFilename)
}

func (g *Goal) indexName() string {
	name := g.IndexFilename
	if name == "" {
		name = DefaultIndexFilename
	}
	return path.Join(stagingDirectory, name)
}

// withStore runs fn against the work directory, opening and closing it unless Store is preset.
func (g *Goal) withStore(fn func(stagingfs.Store) error) error {
	if g.Store != nil {
		return fn(g.Store)
	}
	store, err := stagingfs.Open(g.WorkDirectoryRoot())
	if err != nil {
		return wrapExecution(err, "failed to open staging directory")
	}
	defer store.Close()
	return fn(store)
}

func (g *Goal) failIfOffline() error {
	if g.Offline {
		return failure(errors.New(offlineMessage))
	}
	return nil
}

func (g *Goal) StoreTagInPropertiesFile(tag string) error {
	return g.SaveStagingProperties(map[string]string{TagProperty: tag})
}

// SaveStagingProperties merges values into the staging properties file.
func (g *Goal) SaveStagingProperties(values map[string]string) error {
	return g.withStore(func(store stagingfs.Store) error {
		props, err := loadProperties(store, g.propertiesName())
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, _, err := props.Set(k, values[k]); err != nil {
				return errors.Wrapf(err, "failed to set staging property %s", k)
			}
		}

		var buf bytes.Buffer
		buf.WriteString("#" + propertiesComment + "\n")
		buf.WriteString("#" + time.Now().Format(time.UnixDate) + "\n")
		if _, err := props.Write(&buf, properties.ISO_8859_1); err != nil {
			return errors.Wrap(err, "failed to encode staging properties")
		}
		if err := store.MkdirAll(stagingDirectory); err != nil {
			return errors.Wrapf(err, "failed to create %s", stagingDirectory)
		}
		log.Infof("Saving staging information to %s", path.Join(store.Location(), g.propertiesName()))
		return store.WriteFile(g.propertiesName(), buf.Bytes())
	})
}

// TagFromPropertiesFile returns the staged tag; found is false when the file or the key is missing.
func (g *Goal) TagFromPropertiesFile() (tag string, found bool, err error) {
	err = g.withStore(func(store stagingfs.Store) error {
		exists, err := stagingfs.Exists(store, g.propertiesName())
		if err != nil || !exists {
			return err
		}
		props, err := loadProperties(store, g.propertiesName())
		if err != nil {
			return err
		}
		tag, found = props.Get(TagProperty)
		return nil
	})
	return tag, found, err
}

func loadProperties(store stagingfs.Store, name string) (*properties.Properties, error) {
	exists, err := stagingfs.Exists(store, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return properties.NewProperties(), nil
	}
	data, err := store.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	props, err := properties.Load(data, properties.ISO_8859_1)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", name)
	}
	return props, nil
}

// ensureTag creates tag on the server unless it already exists, then records it locally.
func (g *Goal) ensureTag(ctx context.Context, client nexus.RepositoryManager, tag string) error {
	_, found, err := client.GetTag(ctx, tag)
	if err == nil && !found {
		log.Debugf("Creating tag '%s' as it does not already exist", tag)
		_, err = client.CreateTag(ctx, tag, nil)
	} else if err == nil {
		log.Debugf("Tag '%s' already exists, skipping creation", tag)
	}
	if err != nil {
		log.WithError(err).Errorf("Unable to create tag '%s'", tag)
		return failure(err)
	}
	if err := g.StoreTagInPropertiesFile(tag); err != nil {
		log.WithError(err).Error("failed to store tag in staging properties")
	}
	return nil
}

// StagedArtifacts lists what deferred deploys have staged so far.
func (g *Goal) StagedArtifacts() ([]ArtifactInfo, error) {
	var artifacts []ArtifactInfo
	err := g.withStore(func(store stagingfs.Store) error {
		artifacts = readIndex(store, g.indexName())
		return nil
	})
	return artifacts, err
}

// CheckWorkDirectory verifies the work directory exists and is writable.
func (g *Goal) CheckWorkDirectory() error {
	return g.withStore(func(store stagingfs.Store) error {
		return stagingfs.CheckWritable(store, "")
	})
}
