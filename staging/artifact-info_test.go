package staging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nxrm-staging-utility/stagingfs"
)

func TestArtifactInfoPath(t *testing.T) {
	info := ArtifactInfo{Group: "org.example.tools", ArtifactId: "cli", Version: "3.2", Extension: "jar"}
	assert.Equal(t, "org/example/tools/cli/3.2/cli-3.2.jar", info.Path())

	info.Classifier = "javadoc"
	assert.Equal(t, "org/example/tools/cli/3.2/cli-3.2-javadoc.jar", info.Path())
}

func TestReadIndexCorrupt(t *testing.T) {
	store := stagingfs.NewLocal(t.TempDir())
	require.NoError(t, store.MkdirAll("staging"))
	require.NoError(t, store.WriteFile("staging/staging.index", []byte("{not json")))

	assert.Empty(t, readIndex(store, "staging/staging.index"))
}

func TestAppendIndexConcurrently(t *testing.T) {
	store := stagingfs.NewLocal(t.TempDir())
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, appendIndex(store, "staging/staging.index", ArtifactInfo{Group: "g", ArtifactId: "a", Version: "1", Extension: "jar"}))
		}()
	}
	wg.Wait()

	assert.Len(t, readIndex(store, "staging/staging.index"), 10)
}

func TestAppendIndexReplacesSameFile(t *testing.T) {
	store := stagingfs.NewLocal(t.TempDir())
	jar := ArtifactInfo{Group: "g", ArtifactId: "a", Version: "1", Extension: "jar", Sha256: "old"}
	sources := ArtifactInfo{Group: "g", ArtifactId: "a", Version: "1", Classifier: "sources", Extension: "jar"}
	require.NoError(t, appendIndex(store, "staging/staging.index", jar, sources))

	jar.Sha256 = "new"
	require.NoError(t, appendIndex(store, "staging/staging.index", jar))

	artifacts := readIndex(store, "staging/staging.index")
	require.Len(t, artifacts, 2)
	assert.Equal(t, "new", artifacts[0].Sha256)
	assert.Equal(t, "sources", artifacts[1].Classifier)
}
