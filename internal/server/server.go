package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atlasbio/meridian/internal/logger"
	"github.com/atlasbio/meridian/internal/pipeline"
)

// Server exposes the pipeline over HTTP: run admission, an SSE event stream
// per run, and interruption.
type Server struct {
	log          *logger.Logger
	orchestrator *pipeline.Orchestrator
}

func New(log *logger.Logger, orchestrator *pipeline.Orchestrator) *Server {
	return &Server{log: log, orchestrator: orchestrator}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/runs", s.startRun)
	r.GET("/runs/:id/events", s.streamEvents)
	r.DELETE("/runs/:id", s.interruptRun)
	r.GET("/healthz", s.healthz)

	return r
}

func (s *Server) startRun(c *gin.Context) {
	var req pipeline.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	run, err := s.orchestrator.Start(req)
	if err != nil {
		if errors.Is(err, pipeline.ErrSessionBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"runId": run.ID, "sessionId": run.SessionID})
}

// streamEvents drains a run's event channel as SSE. A client disconnect
// cancels the run so sources stop being hit for an audience of nobody.
func (s *Server) streamEvents(c *gin.Context) {
	run, ok := s.orchestrator.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			run.Cancel()
			return false
		case ev, open := <-run.Events():
			if !open {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
}

func (s *Server) interruptRun(c *gin.Context) {
	if !s.orchestrator.Interrupt(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
