package server

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/staging"
)

type JobState string

const (
	RUNNING JobState = "RUNNING"
	SUCCESS JobState = "SUCCESS"
	// FAILURE is a goal that ran but whose remote work failed.
	FAILURE JobState = "FAILURE"
	// ERROR is a goal that could not run, e.g. because of bad parameters.
	ERROR JobState = "ERROR"
)

type JobStatus struct {
	JobId      string          `json:"jobId"`
	Goal       string          `json:"goal"`
	Status     JobState        `json:"status"`
	StatusDttm time.Time       `json:"statusDttm"`
	Result     *staging.Result `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func (s JobStatus) finished() bool {
	return s.Status != RUNNING
}

type JobStatusMap struct {
	jobs   map[string]JobStatus
	latest string
	lock   sync.RWMutex
}

func NewJobStatusMap() *JobStatusMap {
	return &JobStatusMap{jobs: make(map[string]JobStatus)}
}

func (jsm *JobStatusMap) GetJobStatus(jobId string) (JobStatus, bool) {
	jsm.lock.RLock()
	defer jsm.lock.RUnlock()
	status, ok := jsm.jobs[jobId]
	return status, ok
}

func (jsm *JobStatusMap) GetLatestJobStatus() (JobStatus, bool) {
	jsm.lock.RLock()
	defer jsm.lock.RUnlock()
	status, ok := jsm.jobs[jsm.latest]
	return status, ok
}

// StartJob records a new running job and makes it the latest one.
func (jsm *JobStatusMap) StartJob(jobId, goal string) JobStatus {
	status := JobStatus{JobId: jobId, Goal: goal, Status: RUNNING, StatusDttm: time.Now()}
	jsm.lock.Lock()
	defer jsm.lock.Unlock()
	jsm.jobs[jobId] = status
	jsm.latest = jobId
	return status
}

// FinishJob stores the outcome of a job started with StartJob.
func (jsm *JobStatusMap) FinishJob(jobId string, result *staging.Result, err error) JobStatus {
	jsm.lock.Lock()
	defer jsm.lock.Unlock()
	status := jsm.jobs[jobId]
	status.StatusDttm = time.Now()
	status.Result = result
	switch {
	case err == nil:
		status.Status = SUCCESS
	case staging.IsFailure(err):
		status.Status = FAILURE
		status.Error = err.Error()
	default:
		status.Status = ERROR
		status.Error = err.Error()
	}
	jsm.jobs[jobId] = status
	return status
}

// deleteStaleJobs drops finished jobs older than retention.
func (jsm *JobStatusMap) deleteStaleJobs(retention time.Duration) {
	jsm.lock.Lock()
	defer jsm.lock.Unlock()
	for jobId, status := range jsm.jobs {
		if status.finished() && time.Since(status.StatusDttm) > retention {
			log.Debugf("deleting job %s since it is stale", jobId)
			delete(jsm.jobs, jobId)
		}
	}
}

// DeleteStaleJobs purges stale jobs every interval until ctx is done.
func (jsm *JobStatusMap) DeleteStaleJobs(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jsm.deleteStaleJobs(retention)
		}
	}
}
