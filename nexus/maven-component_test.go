package nexus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAsset(t *testing.T, filename string) *Asset {
	t.Helper()
	asset, err := NewAsset(filename, strings.NewReader(filename))
	require.NoError(t, err)
	return asset
}

func TestMavenComponentBuilder_WithoutPomRequiresCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		group    string
		artifact string
		version  string
		missing  string
	}{
		{name: "no group", artifact: "a", version: "1", missing: "groupId"},
		{name: "no artifact", group: "g", version: "1", missing: "artifactId"},
		{name: "no version", group: "g", artifact: "a", missing: "version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMavenComponentBuilder().
				WithGroupId(tt.group).
				WithArtifactId(tt.artifact).
				WithVersion(tt.version).
				WithAsset(newTestAsset(t, "a.jar"), "jar", "").
				Build()
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestMavenComponentBuilder_GeneratesPom(t *testing.T) {
	component, err := NewMavenComponentBuilder().
		WithGroupId("org.example").
		WithArtifactId("demo").
		WithVersion("1.0").
		WithPackaging("jar").
		WithAsset(newTestAsset(t, "demo.jar"), "", "").
		Build()

	require.NoError(t, err)
	assert.Equal(t, MavenFormat, component.Format)
	assert.Equal(t, map[string]string{
		"groupId":      "org.example",
		"artifactId":   "demo",
		"version":      "1.0",
		"generate-pom": "true",
		"packaging":    "jar",
	}, component.Attributes)
	require.Len(t, component.Assets, 1)
	assert.Equal(t, "jar", component.Assets[0].Attributes["extension"])
}

func TestMavenComponentBuilder_WithPomSkipsCoordinates(t *testing.T) {
	component, err := NewMavenComponentBuilder().
		WithPom(strings.NewReader("<project/>"), "").
		WithJar(strings.NewReader("jar"), "", "").
		Build()

	require.NoError(t, err)
	assert.Empty(t, component.Attributes)
	require.Len(t, component.Assets, 2)
	assert.Equal(t, "pom.xml", component.Assets[0].Filename)
	assert.Equal(t, "pom", component.Assets[0].Attributes["extension"])
	assert.Equal(t, "asset-jar.jar", component.Assets[1].Filename)
	assert.Equal(t, "jar", component.Assets[1].Attributes["extension"])
}

func TestMavenComponentBuilder_OnlyOnePom(t *testing.T) {
	_, err := NewMavenComponentBuilder().
		WithPom(strings.NewReader("<project/>"), "").
		WithPom(strings.NewReader("<project/>"), "other").
		Build()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 1 pom is allowed, but 2 have been added")
}

func TestMavenComponentBuilder_ExtensionFromPackaging(t *testing.T) {
	tests := []struct {
		packaging string
		want      string
	}{
		{packaging: "maven-plugin", want: "jar"},
		{packaging: "eclipse-application", want: "zip"},
		{packaging: "war", want: "war"},
		{packaging: "test-jar", want: "jar"},
	}
	for _, tt := range tests {
		t.Run(tt.packaging, func(t *testing.T) {
			component, err := NewMavenComponentBuilder().
				WithGroupId("g").WithArtifactId("a").WithVersion("1").
				WithPackaging(tt.packaging).
				WithAsset(newTestAsset(t, "a.bin"), "", "").
				Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, component.Assets[0].Attributes["extension"])
		})
	}
}

func TestMavenComponentBuilder_ExtensionUndeterminable(t *testing.T) {
	_, err := NewMavenComponentBuilder().
		WithGroupId("g").WithArtifactId("a").WithVersion("1").
		WithAsset(newTestAsset(t, "mystery"), "", "").
		Build()

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "Asset extension was not specified for asset 'mystery' and could not be determined by packaging")
}

func TestMavenComponentBuilder_Files(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "demo-1.0.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0644))

	component, err := NewMavenComponentBuilder().
		WithGroupId("g").WithArtifactId("demo").WithVersion("1.0").
		WithJarFile(jar, "tests").
		Build()
	require.NoError(t, err)
	defer component.Close()
	assert.Equal(t, "demo-1.0.jar", component.Assets[0].Filename)
	assert.Equal(t, "tests", component.Assets[0].Attributes["classifier"])

	_, err = NewMavenComponentBuilder().WithPomFile(filepath.Join(dir, "missing.pom"), "").Build()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMavenComponentBuilder_WithCoordinatesKeepsPom(t *testing.T) {
	component, err := NewMavenComponentBuilder().
		WithGroupId("org.example").
		WithArtifactId("demo").
		WithVersion("1.0").
		WithCoordinates().
		WithPom(strings.NewReader("<project/>"), "").
		Build()

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"groupId":    "org.example",
		"artifactId": "demo",
		"version":    "1.0",
	}, component.Attributes)
}

func TestMavenComponentBuilder_RejectsDuplicateAssets(t *testing.T) {
	_, err := NewMavenComponentBuilder().
		WithPom(strings.NewReader("<project/>"), "").
		WithJar(strings.NewReader("one"), "demo.jar", "").
		WithJar(strings.NewReader("two"), "other.jar", "").
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "assets 'demo.jar' and 'other.jar' have the same classifier and extension")
}
