package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/nexus"
	"nxrm-staging-utility/staging"
)

type moveRequest struct {
	SourceRepository string `json:"sourceRepository"`
	Tag              string `json:"tag"`
}

type deleteRequest struct {
	Tag string `json:"tag"`
}

type uploadRequest struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

func (s *Server) readConfig(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, map[string]interface{}{
		"cfg": s.config.Masked(),
	}, "  ")
}

func (s *Server) status(c echo.Context) error {
	client, err := s.goal.Client()
	if err != nil {
		return errorResponse(c, err)
	}
	version, err := client.GetVersion(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, version)
}

func (s *Server) repositories(c echo.Context) error {
	client, err := s.goal.Client()
	if err != nil {
		return errorResponse(c, err)
	}
	repositories, err := client.GetRepositories(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, repositories)
}

func (s *Server) getTag(c echo.Context) error {
	client, err := s.goal.Client()
	if err != nil {
		return errorResponse(c, err)
	}
	tag, found, err := client.GetTag(c.Request().Context(), c.Param("name"))
	if err != nil {
		return errorResponse(c, err)
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "tag " + c.Param("name") + " not found"})
	}
	return c.JSON(http.StatusOK, tag)
}

func (s *Server) searchComponents(c echo.Context) error {
	builder := nexus.NewSearchBuilder()
	for name := range c.QueryParams() {
		builder.WithParameter(name, c.QueryParam(name))
	}
	search, err := builder.Build()
	if err != nil {
		return errorResponse(c, err)
	}
	client, err := s.goal.Client()
	if err != nil {
		return errorResponse(c, err)
	}
	items, err := client.Search(c.Request().Context(), search)
	if err != nil {
		return errorResponse(c, err)
	}
	if items == nil {
		items = []nexus.SearchItem{}
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) stagedArtifacts(c echo.Context) error {
	artifacts, err := s.goal.StagedArtifacts()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSONPretty(http.StatusOK, map[string]interface{}{
		"location":  s.goal.WorkDirectoryRoot(),
		"artifacts": artifacts,
	}, "  ")
}

func (s *Server) checkWorkDirectory(c echo.Context) error {
	if err := s.goal.CheckWorkDirectory(); err != nil {
		log.WithError(err).Warn("staging directory is not writable")
		return c.JSONPretty(http.StatusConflict, map[string]interface{}{
			"success":      false,
			"errorMessage": err.Error(),
		}, "  ")
	}
	return c.JSONPretty(http.StatusOK, map[string]interface{}{
		"success": true,
	}, "  ")
}

func (s *Server) startMove(c echo.Context) error {
	req := new(moveRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	goal := &staging.MoveGoal{
		Goal:                  s.goal,
		DestinationRepository: c.Param("destination"),
		SourceRepository:      req.SourceRepository,
		Tag:                   req.Tag,
	}
	return s.startJob(c, "move", goal.Execute)
}

func (s *Server) startDelete(c echo.Context) error {
	req := new(deleteRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	goal := &staging.DeleteGoal{Goal: s.goal, Tag: req.Tag}
	return s.startJob(c, "delete", goal.Execute)
}

func (s *Server) startUpload(c echo.Context) error {
	req := new(uploadRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	goal := &staging.UploadGoal{Goal: s.goal, Repository: req.Repository, Tag: req.Tag}
	return s.startJob(c, "upload", goal.Execute)
}

// startJob runs execute in the background and answers with the job to poll.
func (s *Server) startJob(c echo.Context, name string, execute func(context.Context) (*staging.Result, error)) error {
	jobId := uuid.NewString()
	status := s.jobs.StartJob(jobId, name)
	go func() {
		entry := log.WithFields(log.Fields{"job": jobId, "goal": name})
		entry.Info("job started")
		result, err := execute(context.Background())
		finished := s.jobs.FinishJob(jobId, result, err)
		if err != nil {
			entry.WithError(err).Errorf("job finished with status %s", finished.Status)
			return
		}
		entry.Info("job finished")
	}()
	return c.JSON(http.StatusAccepted, status)
}

func (s *Server) getJobStatus(c echo.Context) error {
	status, ok := s.jobs.GetJobStatus(c.Param("jobId"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "job " + c.Param("jobId") + " not found"})
	}
	return c.JSONPretty(http.StatusOK, status, "  ")
}

func (s *Server) getLatestJobStatus(c echo.Context) error {
	status, ok := s.jobs.GetLatestJobStatus()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "no job has been started"})
	}
	return c.JSONPretty(http.StatusOK, status, "  ")
}

// errorResponse maps goal and client errors to a status code: bad input is 400, NXRM errors 502.
func errorResponse(c echo.Context, err error) error {
	body := map[string]interface{}{"message": err.Error()}
	var rmErr *nexus.RepositoryManagerError
	switch {
	case errors.Is(err, nexus.ErrInvalidArgument), staging.IsExecution(err):
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &rmErr):
		if rmErr.StatusCode != 0 {
			body["statusCode"] = rmErr.StatusCode
		}
		return c.JSON(http.StatusBadGateway, body)
	}
	return c.JSON(http.StatusInternalServerError, body)
}
