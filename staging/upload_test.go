package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nxrm-staging-utility/nexus"
	"nxrm-staging-utility/stagingfs"
)

func stageProject(t *testing.T, goal Goal, project Project, repository string) {
	t.Helper()
	deploy := &DeployGoal{Goal: goal, Repository: repository, Tag: "staged", Defer: true, Project: project}
	_, err := deploy.Execute(context.Background())
	require.NoError(t, err)
}

func TestUploadStagedComponents(t *testing.T) {
	fake := newFake(t)
	goal := newTestGoal(t, fake.URL())
	first := testProject(t)
	second := testProject(t)
	second.ArtifactId = "demo-api"
	stageProject(t, goal, first, "maven-releases")
	stageProject(t, goal, second, "maven-releases")

	upload := &UploadGoal{Goal: goal, Tag: "batch-1"}
	result, err := upload.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "batch-1", result.Tag)
	assert.Equal(t, 2, result.Uploaded)
	assert.True(t, fake.HasTag("batch-1"))

	components := fake.Components()
	require.Len(t, components, 2)
	assert.Equal(t, "demo", components[0].Name)
	assert.Equal(t, "demo-api", components[1].Name)
	for _, component := range components {
		assert.Equal(t, "maven-releases", component.Repository)
		assert.Equal(t, "com.example", component.Group)
		assert.Equal(t, []string{"batch-1"}, component.Tags)
		assert.Len(t, component.Files, 2)
	}
	assert.Equal(t, "demo-1.0.0.pom", components[0].Files["maven2.asset1"].Filename)
	assert.Equal(t, "demo-1.0.0.jar", components[0].Files["maven2.asset2"].Filename)
	assert.Equal(t, []byte("jar-bytes"), components[0].Files["maven2.asset2"].Content)
}

func TestUploadRepositoryOverride(t *testing.T) {
	goal, client := newMockGoal(t)
	stageProject(t, goal, testProject(t), "maven-releases")
	client.On("GetTag", mock.Anything, "batch-1").Return(&nexus.Tag{Name: "batch-1"}, true, nil)
	client.On("Upload", mock.Anything, "maven-hosted", mock.Anything, "batch-1").Return(nil)

	upload := &UploadGoal{Goal: goal, Repository: "maven-hosted", Tag: "batch-1"}
	_, err := upload.Execute(context.Background())

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestUploadGeneratesTag(t *testing.T) {
	goal, client := newMockGoal(t)
	stageProject(t, goal, testProject(t), "maven-releases")
	client.On("GetTag", mock.Anything, "demo-1.0.0-1700000000000").Return(nil, false, nil)
	client.On("CreateTag", mock.Anything, "demo-1.0.0-1700000000000", mock.Anything).Return(&nexus.Tag{}, nil)
	client.On("Upload", mock.Anything, "maven-releases", mock.Anything, "demo-1.0.0-1700000000000").Return(nil)

	upload := &UploadGoal{Goal: goal}
	result, err := upload.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "demo-1.0.0-1700000000000", result.Tag)
	client.AssertExpectations(t)
}

func TestUploadWithoutIndex(t *testing.T) {
	goal, client := newMockGoal(t)
	require.NoError(t, os.MkdirAll(goal.WorkDirectoryRoot(), 0755))

	upload := &UploadGoal{Goal: goal}
	result, err := upload.Execute(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Uploaded)
	client.AssertNotCalled(t, "GetTag", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "CreateTag", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadAfterRepeatedStaging(t *testing.T) {
	fake := newFake(t)
	goal := newTestGoal(t, fake.URL())
	project := testProject(t)
	stageProject(t, goal, project, "maven-releases")
	writeFile(t, project.File, "rebuilt-jar-bytes")
	stageProject(t, goal, project, "maven-releases")

	artifacts, err := goal.StagedArtifacts()
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	result, err := (&UploadGoal{Goal: goal, Tag: "batch-1"}).Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	components := fake.Components()
	require.Len(t, components, 1)
	require.Len(t, components[0].Files, 2)
	assert.Equal(t, "pom", components[0].Fields["maven2.asset1.extension"])
	assert.Equal(t, "jar", components[0].Fields["maven2.asset2.extension"])
	assert.Equal(t, []byte("rebuilt-jar-bytes"), components[0].Files["maven2.asset2"].Content)
}

func TestUploadOverrideMergesRepositories(t *testing.T) {
	goal, client := newMockGoal(t)
	store := stagingfs.NewLocal(t.TempDir())
	goal.Store = store
	require.NoError(t, appendIndex(store, goal.indexName(),
		ArtifactInfo{Group: "g", ArtifactId: "a", Version: "1", Extension: "pom", Repository: "releases"},
		ArtifactInfo{Group: "g", ArtifactId: "a", Version: "1", Extension: "jar", Repository: "snapshots"}))
	require.NoError(t, store.MkdirAll("g/a/1"))
	require.NoError(t, store.WriteFile("g/a/1/a-1.pom", []byte("<project/>")))
	require.NoError(t, store.WriteFile("g/a/1/a-1.jar", []byte("x")))
	bothAssets := mock.MatchedBy(func(c *nexus.Component) bool { return len(c.Assets) == 2 })
	client.On("GetTag", mock.Anything, "t").Return(&nexus.Tag{Name: "t"}, true, nil)
	client.On("Upload", mock.Anything, "maven-hosted", bothAssets, "t").Return(nil).Once()

	result, err := (&UploadGoal{Goal: goal, Repository: "maven-hosted", Tag: "t"}).Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	client.AssertNumberOfCalls(t, "Upload", 1)
}

func TestUploadSkipsMissingFiles(t *testing.T) {
	goal, client := newMockGoal(t)
	stageProject(t, goal, testProject(t), "maven-releases")
	require.NoError(t, os.Remove(filepath.Join(goal.WorkDirectoryRoot(), "com", "example", "demo", "1.0.0", "demo-1.0.0.jar")))
	onlyPom := mock.MatchedBy(func(c *nexus.Component) bool {
		return len(c.Assets) == 1 && c.Assets[0].Filename == "demo-1.0.0.pom"
	})
	client.On("GetTag", mock.Anything, "batch-1").Return(&nexus.Tag{Name: "batch-1"}, true, nil)
	client.On("Upload", mock.Anything, "maven-releases", onlyPom, "batch-1").Return(nil)

	upload := &UploadGoal{Goal: goal, Tag: "batch-1"}
	_, err := upload.Execute(context.Background())

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestUploadDetectsModifiedFiles(t *testing.T) {
	goal, client := newMockGoal(t)
	stageProject(t, goal, testProject(t), "maven-releases")
	writeFile(t, filepath.Join(goal.WorkDirectoryRoot(), "com", "example", "demo", "1.0.0", "demo-1.0.0.jar"), "tampered")
	client.On("GetTag", mock.Anything, "batch-1").Return(&nexus.Tag{Name: "batch-1"}, true, nil)

	upload := &UploadGoal{Goal: goal, Tag: "batch-1"}
	_, err := upload.Execute(context.Background())

	assert.True(t, IsExecution(err))
	assert.Contains(t, err.Error(), "does not match its recorded sha256")
}

func TestUploadRequiresWorkDirectory(t *testing.T) {
	goal, client := newMockGoal(t)
	goal.AltStagingDirectory = writeFile(t, filepath.Join(t.TempDir(), "not-a-directory"), "")
	client.On("GetTag", mock.Anything, "batch-1").Return(&nexus.Tag{Name: "batch-1"}, true, nil)

	upload := &UploadGoal{Goal: goal, Tag: "batch-1"}
	_, err := upload.Execute(context.Background())

	assert.True(t, IsExecution(err))
	assert.Contains(t, err.Error(), "Upload failed: staging directory points to an existing file but is not a directory or is not writable!")
}

func TestUploadFailureIsExecutionError(t *testing.T) {
	goal, client := newMockGoal(t)
	stageProject(t, goal, testProject(t), "maven-releases")
	client.On("GetTag", mock.Anything, "batch-1").Return(&nexus.Tag{Name: "batch-1"}, true, nil)
	client.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&nexus.RepositoryManagerError{Message: "Upload component was unsuccessful (500 response from server)", StatusCode: 500})

	upload := &UploadGoal{Goal: goal, Tag: "batch-1"}
	_, err := upload.Execute(context.Background())

	assert.True(t, IsExecution(err))
	assert.False(t, IsFailure(err))
}

func TestUploadOffline(t *testing.T) {
	goal, _ := newMockGoal(t)
	goal.Offline = true

	_, err := (&UploadGoal{Goal: goal, Tag: "batch-1"}).Execute(context.Background())

	assert.True(t, IsFailure(err))
}

func TestGroupByComponent(t *testing.T) {
	artifacts := []ArtifactInfo{
		{Group: "g", ArtifactId: "a", Version: "1", Extension: "pom"},
		{Group: "g", ArtifactId: "b", Version: "1", Extension: "pom"},
		{Group: "g", ArtifactId: "a", Version: "1", Extension: "jar"},
		{Group: "g", ArtifactId: "a", Version: "1", Extension: "jar", Repository: "other"},
	}

	groups := groupByComponent(artifacts, "")

	require.Len(t, groups, 3)
	assert.Equal(t, "a", groups[0].key.artifactId)
	assert.Len(t, groups[0].artifacts, 2)
	assert.Equal(t, "b", groups[1].key.artifactId)
	assert.Equal(t, "other", groups[2].key.repository)

	groups = groupByComponent(artifacts, "hosted")

	require.Len(t, groups, 2)
	assert.Len(t, groups[0].artifacts, 3)
	assert.Equal(t, "hosted", groups[0].key.repository)
	assert.Equal(t, "hosted", groups[0].artifacts[2].Repository)
}

func TestUploadReadsIndexFromStore(t *testing.T) {
	goal, client := newMockGoal(t)
	store := stagingfs.NewLocal(t.TempDir())
	goal.Store = store
	require.NoError(t, appendIndex(store, goal.indexName(), ArtifactInfo{Group: "g", ArtifactId: "a", Version: "1", Extension: "jar", Repository: "r"}))
	require.NoError(t, store.MkdirAll("g/a/1"))
	require.NoError(t, store.WriteFile("g/a/1/a-1.jar", []byte("x")))
	client.On("GetTag", mock.Anything, "t").Return(&nexus.Tag{Name: "t"}, true, nil)
	client.On("Upload", mock.Anything, "r", mock.Anything, "t").Return(nil)

	result, err := (&UploadGoal{Goal: goal, Tag: "t"}).Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
}
