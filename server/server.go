package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"nxrm-staging-utility/cfg"
	"nxrm-staging-utility/staging"
)

const (
	shutdownTimeout  = 10 * time.Second
	staleJobInterval = time.Hour
)

// Server exposes the staging goals over HTTP so pipelines can stage without holding NXRM credentials.
type Server struct {
	echo      *echo.Echo
	config    cfg.StartupConfig
	goal      staging.Goal
	jobs      *JobStatusMap
	retention time.Duration
}

// New builds the server. goal carries the shared settings every request runs with.
func New(config cfg.StartupConfig, goal staging.Goal) (*Server, error) {
	retention, err := config.GetJobRetention()
	if err != nil {
		return nil, err
	}
	s := &Server{
		echo:      echo.New(),
		config:    config,
		goal:      goal,
		jobs:      NewJobStatusMap(),
		retention: retention,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(requestLogger)
	s.echo.Use(middleware.Recover())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/", s.readConfig)
	e.GET("/status", s.status)
	e.GET("/repositories", s.repositories)
	e.GET("/tags/:name", s.getTag)
	e.GET("/components", s.searchComponents)

	e.GET("/staging/index", s.stagedArtifacts)
	e.GET("/staging/check-write", s.checkWorkDirectory)
	e.POST("/staging/move/:destination", s.startMove)
	e.POST("/staging/delete", s.startDelete)
	e.POST("/staging/upload", s.startUpload)
	e.GET("/staging/jobs/latest", s.getLatestJobStatus)
	e.GET("/staging/jobs/:jobId", s.getJobStatus)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on the configured port until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.jobs.DeleteStaleJobs(ctx, staleJobInterval, s.retention)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", s.config.StartupPort)
		if err := s.echo.Start(s.config.StartupPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Infof("Shutting down server: setting %s timeout!", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req := c.Request()
		log.WithFields(log.Fields{
			"method":  req.Method,
			"uri":     req.RequestURI,
			"status":  c.Response().Status,
			"latency": time.Since(start).String(),
			"remote":  c.RealIP(),
		}).Info("request")
		return nil
	}
}
