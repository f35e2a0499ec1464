package nexus

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	MavenFormat = "maven2"

	MavenAttrGroupId     = "groupId"
	MavenAttrArtifactId  = "artifactId"
	MavenAttrVersion     = "version"
	MavenAttrPackaging   = "packaging"
	MavenAttrGeneratePom = "generate-pom"

	MavenAssetAttrExtension  = "extension"
	MavenAssetAttrClassifier = "classifier"

	pomExtension   = "pom"
	pomFilename    = "pom.xml"
	jarExtension   = "jar"
	defaultJarName = "asset-jar.jar"
)

var extensionsByPackaging = map[string]string{
	"ejb-client":          "jar",
	"ejb":                 "jar",
	"rar":                 "jar",
	"par":                 "jar",
	"maven-plugin":        "jar",
	"maven-archetype":     "jar",
	"plexus-application":  "jar",
	"eclipse-plugin":      "jar",
	"eclipse-feature":     "jar",
	"eclipse-application": "zip",
	"nexus-plugin":        "jar",
	"java-source":         "jar",
	"javadoc":             "jar",
	"test-jar":            "jar",
	"bundle":              "jar",
}

// ExtensionForPackaging maps a Maven packaging type to the file extension of its main artifact.
func ExtensionForPackaging(packaging string) string {
	if packaging == "" {
		return ""
	}
	if ext, ok := extensionsByPackaging[packaging]; ok {
		return ext
	}
	return packaging
}

// MavenComponentBuilder assembles a maven2 Component. Errors from the With* methods are deferred to Build.
type MavenComponentBuilder struct {
	groupId    string
	artifactId string
	version    string
	packaging  string
	// coordinates forces groupId, artifactId and version onto the component even when a pom is supplied.
	coordinates bool
	assets      []*Asset
	err         error
}

func NewMavenComponentBuilder() *MavenComponentBuilder {
	return &MavenComponentBuilder{}
}

func (b *MavenComponentBuilder) WithGroupId(groupId string) *MavenComponentBuilder {
	b.groupId = groupId
	return b
}

func (b *MavenComponentBuilder) WithArtifactId(artifactId string) *MavenComponentBuilder {
	b.artifactId = artifactId
	return b
}

func (b *MavenComponentBuilder) WithVersion(version string) *MavenComponentBuilder {
	b.version = version
	return b
}

// WithCoordinates sends groupId, artifactId and version as component attributes alongside a supplied pom.
func (b *MavenComponentBuilder) WithCoordinates() *MavenComponentBuilder {
	b.coordinates = true
	return b
}

func (b *MavenComponentBuilder) WithPackaging(packaging string) *MavenComponentBuilder {
	b.packaging = packaging
	return b
}

// WithAsset adds an asset. A blank extension is resolved from the packaging at Build time.
func (b *MavenComponentBuilder) WithAsset(asset *Asset, extension, classifier string) *MavenComponentBuilder {
	if b.err != nil {
		return b
	}
	if asset == nil {
		b.err = checkArgument(false, "asset is required")
		return b
	}
	if !isBlank(extension) {
		b.setErr(asset.AddAttribute(MavenAssetAttrExtension, extension))
	}
	if !isBlank(classifier) {
		b.setErr(asset.AddAttribute(MavenAssetAttrClassifier, classifier))
	}
	b.assets = append(b.assets, asset)
	return b
}

func (b *MavenComponentBuilder) WithPom(pom io.Reader, classifier string) *MavenComponentBuilder {
	asset, err := NewAsset(pomFilename, pom)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.WithAsset(asset, pomExtension, classifier)
}

func (b *MavenComponentBuilder) WithPomFile(path, classifier string) *MavenComponentBuilder {
	f, err := os.Open(path)
	if err != nil {
		b.setErr(checkArgument(false, "pom file %s does not exist", path))
		return b
	}
	return b.WithPom(f, classifier)
}

// WithJar adds a jar asset; an empty filename defaults to asset-jar.jar.
func (b *MavenComponentBuilder) WithJar(jar io.Reader, filename, classifier string) *MavenComponentBuilder {
	if filename == "" {
		filename = defaultJarName
	}
	asset, err := NewAsset(filename, jar)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.WithAsset(asset, jarExtension, classifier)
}

func (b *MavenComponentBuilder) WithJarFile(path, classifier string) *MavenComponentBuilder {
	f, err := os.Open(path)
	if err != nil {
		b.setErr(checkArgument(false, "jar file %s does not exist", path))
		return b
	}
	return b.WithJar(f, filepath.Base(path), classifier)
}

func (b *MavenComponentBuilder) Build() (*Component, error) {
	if b.err != nil {
		return nil, b.err
	}
	component := NewComponent(MavenFormat)

	poms := 0
	for _, asset := range b.assets {
		if asset.Attributes[MavenAssetAttrExtension] == pomExtension {
			poms++
		}
	}
	if poms > 1 {
		return nil, fmt.Errorf("cannot build component: only 1 pom is allowed, but %d have been added", poms)
	}

	if poms == 0 || b.coordinates {
		required := []struct{ name, value string }{
			{MavenAttrGroupId, b.groupId},
			{MavenAttrArtifactId, b.artifactId},
			{MavenAttrVersion, b.version},
		}
		for _, attr := range required {
			if err := checkArgument(!isBlank(attr.value), "Maven %s is required when pom is not supplied", attr.name); err != nil {
				return nil, err
			}
			if err := component.AddAttribute(attr.name, attr.value); err != nil {
				return nil, err
			}
		}
	}
	if poms == 0 {
		if err := component.AddAttribute(MavenAttrGeneratePom, "true"); err != nil {
			return nil, err
		}
	}

	if !isBlank(b.packaging) {
		if err := component.AddAttribute(MavenAttrPackaging, b.packaging); err != nil {
			return nil, err
		}
	}

	seen := map[string]string{}
	for _, asset := range b.assets {
		if isBlank(asset.Attributes[MavenAssetAttrExtension]) {
			ext := ExtensionForPackaging(b.packaging)
			if err := checkArgument(!isBlank(ext), "Asset extension was not specified for asset '%s' and could not be determined by packaging", asset.Filename); err != nil {
				return nil, err
			}
			if err := asset.AddAttribute(MavenAssetAttrExtension, ext); err != nil {
				return nil, err
			}
		}
		coordinate := asset.Attributes[MavenAssetAttrClassifier] + ":" + asset.Attributes[MavenAssetAttrExtension]
		if other, ok := seen[coordinate]; ok {
			return nil, checkArgument(false, "assets '%s' and '%s' have the same classifier and extension", other, asset.Filename)
		}
		seen[coordinate] = asset.Filename
		if err := component.AddAsset(asset); err != nil {
			return nil, err
		}
	}
	return component, nil
}

func (b *MavenComponentBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}
