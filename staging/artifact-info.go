package staging

import (
	"encoding/json"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/stagingfs"
)

const DefaultIndexFilename = "staging.index"

// ArtifactInfo records one file staged for a later upload.
type ArtifactInfo struct {
	Group        string `json:"group"`
	ArtifactId   string `json:"artifactId"`
	Version      string `json:"version"`
	Tag          string `json:"tag,omitempty"`
	Classifier   string `json:"classifier,omitempty"`
	Packaging    string `json:"packaging,omitempty"`
	Extension    string `json:"extension"`
	PomFileName  string `json:"pomFileName,omitempty"`
	PluginPrefix string `json:"pluginPrefix,omitempty"`
	Repository   string `json:"repository,omitempty"`
	Sha256       string `json:"sha256,omitempty"`
}

// Path is the location of the file in Maven repository layout, relative to the work directory root.
func (a ArtifactInfo) Path() string {
	name := a.ArtifactId + "-" + a.Version
	if a.Classifier != "" {
		name += "-" + a.Classifier
	}
	name += "." + a.Extension
	return path.Join(strings.ReplaceAll(a.Group, ".", "/"), a.ArtifactId, a.Version, name)
}

type componentKey struct {
	group      string
	artifactId string
	version    string
	repository string
}

func (a ArtifactInfo) key() componentKey {
	return componentKey{group: a.Group, artifactId: a.ArtifactId, version: a.Version, repository: a.Repository}
}

// sameFile reports whether a and b record the same Maven coordinate, and so the same staged Path.
func (a ArtifactInfo) sameFile(b ArtifactInfo) bool {
	return a.Group == b.Group && a.ArtifactId == b.ArtifactId && a.Version == b.Version &&
		a.Classifier == b.Classifier && a.Extension == b.Extension
}

// indexLock serializes every read and write of staging index files within the process.
var indexLock sync.Mutex

// readIndex returns the staged artifacts. A missing or unreadable index is logged and yields no artifacts.
func readIndex(store stagingfs.Store, name string) []ArtifactInfo {
	indexLock.Lock()
	defer indexLock.Unlock()
	return readIndexLocked(store, name)
}

func readIndexLocked(store stagingfs.Store, name string) []ArtifactInfo {
	artifacts := []ArtifactInfo{}
	exists, err := stagingfs.Exists(store, name)
	if err != nil {
		log.WithError(err).Errorf("failed to check index file %s", path.Join(store.Location(), name))
		return artifacts
	}
	if !exists {
		log.Warnf("index file not found: %s", path.Join(store.Location(), name))
		return artifacts
	}
	data, err := store.ReadFile(name)
	if err == nil {
		err = json.Unmarshal(data, &artifacts)
	}
	if err != nil {
		log.WithError(err).Errorf("Exception whilst reading stored artifacts from index file: %s", path.Join(store.Location(), name))
		return []ArtifactInfo{}
	}
	return artifacts
}

// appendIndex adds artifacts to the index, creating it when needed.
// An entry for a file that is already indexed replaces the old entry in place.
func appendIndex(store stagingfs.Store, name string, artifacts ...ArtifactInfo) error {
	indexLock.Lock()
	defer indexLock.Unlock()

	existing := readIndexLocked(store, name)
next:
	for _, artifact := range artifacts {
		for i := range existing {
			if existing[i].sameFile(artifact) {
				log.Debugf("Replacing index entry for %s", artifact.Path())
				existing[i] = artifact
				continue next
			}
		}
		existing = append(existing, artifact)
	}
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode staging index")
	}
	if err := store.MkdirAll(path.Dir(name)); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", name)
	}
	if err := store.WriteFile(name, data); err != nil {
		return errors.Wrapf(err, "failed to write staging index %s", name)
	}
	return nil
}
