package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scribe/internal/queue"
	"scribe/internal/services"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	task, err := s.store.Insert(c.Request.Context(), req.Owner, req.File, req.URL)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (s *Server) handleList(c *gin.Context) {
	tasks, err := s.store.List(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskListResponse(tasks))
}

func (s *Server) handleGet(c *gin.Context) {
	task, ok := s.lookupTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleText(c *gin.Context) {
	task, ok := s.lookupTask(c)
	if !ok {
		return
	}
	if !task.Finished() {
		c.JSON(http.StatusConflict, errorResponse{Error: "transcript not ready"})
		return
	}
	c.String(http.StatusOK, task.ResultText)
}

func (s *Server) handleSubtitles(c *gin.Context) {
	task, ok := s.lookupTask(c)
	if !ok {
		return
	}
	if !task.Finished() {
		c.JSON(http.StatusConflict, errorResponse{Error: "subtitles not ready"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=task-%d.srt", task.ID))
	c.String(http.StatusOK, task.ResultSubtitles)
}

func (s *Server) handlePending(c *gin.Context) {
	count, err := s.store.PendingCount(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": count})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.AggregateStats(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	pending, err := s.store.PendingCount(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		Finished:       stats.Finished,
		InFlight:       stats.InFlight,
		Pending:        pending,
		TotalSeconds:   stats.TotalDuration.Seconds(),
		AverageSeconds: stats.AvgDuration.Seconds(),
	})
}

func (s *Server) lookupTask(c *gin.Context) (*queue.Task, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid task id"})
		return nil, false
	}
	task, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return nil, false
	}
	return task, true
}

func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
	case errors.Is(err, queue.ErrValidation), errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
