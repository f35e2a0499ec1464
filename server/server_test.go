package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nxrm-staging-utility/cfg"
	"nxrm-staging-utility/nexus"
	"nxrm-staging-utility/staging"
	"nxrm-staging-utility/testutil"
)

func newTestServer(t *testing.T) (*Server, *testutil.FakeNexus) {
	t.Helper()
	fake := testutil.NewFakeNexus()
	fake.Username = "admin"
	fake.Password = "admin123"
	t.Cleanup(fake.Close)

	config := cfg.StartupConfig{
		StartupPort: ":0",
		NexusUrl:    fake.URL(),
		ServerId:    "nexus",
		Servers:     []cfg.ServerConfig{{Id: "nexus", Username: "admin", Password: "admin123"}},
	}
	goal := staging.Goal{
		ServerID:      "nexus",
		NexusURL:      fake.URL(),
		Servers:       []staging.Server{{ID: "nexus", Username: "admin", Password: "admin123"}},
		ExecutionRoot: t.TempDir(),
		ClientFactory: staging.DefaultClientFactory{RetryMax: 0},
	}
	s, err := New(config, goal)
	require.NoError(t, err)
	return s, fake
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func waitForJob(t *testing.T, s *Server, jobId string) JobStatus {
	t.Helper()
	var status JobStatus
	require.Eventually(t, func() bool {
		rec := serve(s, http.MethodGet, "/staging/jobs/"+jobId, "")
		if rec.Code != http.StatusOK {
			return false
		}
		decode(t, rec, &status)
		return status.Status != RUNNING
	}, 5*time.Second, 20*time.Millisecond)
	return status
}

func TestReadConfigMasksPasswords(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "admin123")
	assert.Contains(t, rec.Body.String(), "******")
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var version nexus.NxrmVersion
	decode(t, rec, &version)
	assert.Equal(t, "3.61.0-02", version.Version)
}

func TestRepositories(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/repositories", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var repositories []nexus.Repository
	decode(t, rec, &repositories)
	assert.Len(t, repositories, 2)
}

func TestGetTag(t *testing.T) {
	s, fake := newTestServer(t)
	fake.AddTag("build-1", map[string]interface{}{"branch": "main"})

	rec := serve(s, http.MethodGet, "/tags/build-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tag nexus.Tag
	decode(t, rec, &tag)
	assert.Equal(t, "build-1", tag.Name)

	rec = serve(s, http.MethodGet, "/tags/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchComponents(t *testing.T) {
	s, fake := newTestServer(t)
	fake.AddComponent(&testutil.StoredComponent{Repository: "maven-releases", Format: "maven2", Group: "com.example", Name: "demo", Version: "1.0.0"})

	rec := serve(s, http.MethodGet, "/components?repository=maven-releases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []nexus.SearchItem
	decode(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "demo", items[0].Name)

	rec = serve(s, http.MethodGet, "/components", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNexusErrorsAreBadGateway(t *testing.T) {
	s, fake := newTestServer(t)
	fake.Fail(http.MethodGet, "/service/rest/v1/repositories", http.StatusForbidden, "no access")

	rec := serve(s, http.MethodGet, "/repositories", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "403")
}

func TestMoveJob(t *testing.T) {
	s, fake := newTestServer(t)
	fake.AddComponent(&testutil.StoredComponent{Repository: "maven-staging", Group: "com.example", Name: "demo", Version: "1.0.0", Tags: []string{"build-7"}})

	rec := serve(s, http.MethodPost, "/staging/move/maven-releases", `{"sourceRepository":"maven-staging","tag":"build-7"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started JobStatus
	decode(t, rec, &started)
	assert.Equal(t, "move", started.Goal)
	assert.NotEmpty(t, started.JobId)

	status := waitForJob(t, s, started.JobId)

	assert.Equal(t, SUCCESS, status.Status)
	require.NotNil(t, status.Result)
	assert.Len(t, status.Result.Components, 1)
	assert.Equal(t, "maven-releases", fake.Components()[0].Repository)

	rec = serve(s, http.MethodGet, "/staging/jobs/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest JobStatus
	decode(t, rec, &latest)
	assert.Equal(t, started.JobId, latest.JobId)
}

func TestMoveJobFailure(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodPost, "/staging/move/maven-releases", `{"sourceRepository":"maven-staging","tag":"unknown"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started JobStatus
	decode(t, rec, &started)

	status := waitForJob(t, s, started.JobId)

	assert.Equal(t, FAILURE, status.Status)
	assert.Contains(t, status.Error, "404")
}

func TestDeleteJobWithoutStagedTag(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodPost, "/staging/delete", `{}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started JobStatus
	decode(t, rec, &started)

	status := waitForJob(t, s, started.JobId)

	assert.Equal(t, ERROR, status.Status)
}

func TestUnknownJob(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/staging/jobs/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/staging/jobs/latest", "").Code)
}

func TestStagedArtifactsEmpty(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/staging/index", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Artifacts []staging.ArtifactInfo `json:"artifacts"`
	}
	decode(t, rec, &body)
	assert.Empty(t, body.Artifacts)
}

func TestCheckWorkDirectory(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusConflict, serve(s, http.MethodGet, "/staging/check-write", "").Code)

	require.NoError(t, s.goal.StoreTagInPropertiesFile("t"))
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/staging/check-write", "").Code)
}

func TestDeleteStaleJobs(t *testing.T) {
	jobs := NewJobStatusMap()
	jobs.StartJob("old", "move")
	jobs.FinishJob("old", nil, nil)
	jobs.StartJob("running", "upload")
	jobs.lock.Lock()
	old := jobs.jobs["old"]
	old.StatusDttm = time.Now().Add(-48 * time.Hour)
	jobs.jobs["old"] = old
	running := jobs.jobs["running"]
	running.StatusDttm = time.Now().Add(-48 * time.Hour)
	jobs.jobs["running"] = running
	jobs.lock.Unlock()

	jobs.deleteStaleJobs(24 * time.Hour)

	_, ok := jobs.GetJobStatus("old")
	assert.False(t, ok)
	_, ok = jobs.GetJobStatus("running")
	assert.True(t, ok)
}

func TestFinishJobClassifiesErrors(t *testing.T) {
	jobs := NewJobStatusMap()
	jobs.StartJob("a", "delete")

	status := jobs.FinishJob("a", nil, &staging.FailureError{Err: assert.AnError})

	assert.Equal(t, FAILURE, status.Status)
	assert.Equal(t, assert.AnError.Error(), status.Error)
}
