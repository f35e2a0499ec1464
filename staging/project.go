package staging

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"nxrm-staging-utility/nexus"
)

const snapshotSuffix = "-SNAPSHOT"

// Artifact is a file produced by the build next to the main artifact, such as sources or javadoc.
type Artifact struct {
	File       string
	Classifier string
	Extension  string
}

// Project describes the module being staged: its coordinates and the files the build produced.
type Project struct {
	GroupId    string
	ArtifactId string
	Version    string
	Packaging  string
	PomFile    string
	// File is the main artifact; empty when the build produced none.
	File         string
	Attached     []Artifact
	PluginPrefix string
}

func (p Project) IsSnapshot() bool {
	return strings.HasSuffix(p.Version, snapshotSuffix)
}

func (p Project) packaging() string {
	if p.Packaging == "" {
		return "jar"
	}
	return p.Packaging
}

// MainExtension is the extension the main artifact is published under.
func (p Project) MainExtension() string {
	return nexus.ExtensionForPackaging(p.packaging())
}

type pomModel struct {
	GroupId    string `xml:"groupId"`
	ArtifactId string `xml:"artifactId"`
	Version    string `xml:"version"`
	Packaging  string `xml:"packaging"`
	Parent     struct {
		GroupId string `xml:"groupId"`
		Version string `xml:"version"`
	} `xml:"parent"`
	Build struct {
		FinalName string `xml:"finalName"`
		Plugins   []struct {
			ArtifactId    string `xml:"artifactId"`
			Configuration struct {
				GoalPrefix string `xml:"goalPrefix"`
			} `xml:"configuration"`
		} `xml:"plugins>plugin"`
	} `xml:"build"`
}

// LoadPom reads the coordinates of the pom at path. groupId and version fall back to the parent's.
func LoadPom(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read pom %s", path)
	}
	var model pomModel
	if err := xml.Unmarshal(data, &model); err != nil {
		return nil, errors.Wrapf(err, "failed to parse pom %s", path)
	}
	project := &Project{
		GroupId:    strings.TrimSpace(model.GroupId),
		ArtifactId: strings.TrimSpace(model.ArtifactId),
		Version:    strings.TrimSpace(model.Version),
		Packaging:  strings.TrimSpace(model.Packaging),
		PomFile:    path,
	}
	if project.GroupId == "" {
		project.GroupId = strings.TrimSpace(model.Parent.GroupId)
	}
	if project.Version == "" {
		project.Version = strings.TrimSpace(model.Parent.Version)
	}
	if project.Packaging == "" {
		project.Packaging = "jar"
	}
	if project.Packaging == "maven-plugin" {
		for _, plugin := range model.Build.Plugins {
			if plugin.ArtifactId == "maven-plugin-plugin" && plugin.Configuration.GoalPrefix != "" {
				project.PluginPrefix = strings.TrimSpace(plugin.Configuration.GoalPrefix)
			}
		}
		if project.PluginPrefix == "" {
			project.PluginPrefix = defaultPluginPrefix(project.ArtifactId)
		}
	}
	if project.Packaging != "pom" {
		finalName := strings.TrimSpace(model.Build.FinalName)
		if finalName == "" {
			finalName = project.ArtifactId + "-" + project.Version
		}
		candidate := filepath.Join(filepath.Dir(path), "target", finalName+"."+project.MainExtension())
		if _, err := os.Stat(candidate); err == nil {
			project.File = candidate
		}
	}
	return project, nil
}

func defaultPluginPrefix(artifactId string) string {
	switch {
	case strings.HasSuffix(artifactId, "-maven-plugin"):
		return strings.TrimSuffix(artifactId, "-maven-plugin")
	case strings.HasPrefix(artifactId, "maven-") && strings.HasSuffix(artifactId, "-plugin"):
		return strings.TrimSuffix(strings.TrimPrefix(artifactId, "maven-"), "-plugin")
	}
	return artifactId
}

// ParseAttachment reads "file[,classifier[,extension]]". The extension defaults to the file's own.
func ParseAttachment(spec string) (Artifact, error) {
	parts := strings.Split(spec, ",")
	if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return Artifact{}, errors.Errorf("attachment %q must look like file[,classifier[,extension]]", spec)
	}
	artifact := Artifact{File: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		artifact.Classifier = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		artifact.Extension = strings.TrimSpace(parts[2])
	}
	if artifact.Extension == "" {
		artifact.Extension = strings.TrimPrefix(filepath.Ext(artifact.File), ".")
	}
	return artifact, nil
}
