package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rossigee/episode-catalog/internal/metrics"
	"github.com/rossigee/episode-catalog/internal/report"
	"github.com/rossigee/episode-catalog/internal/storage"
	"github.com/rossigee/episode-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

// Catalog is the read side of the store served by the API
type Catalog interface {
	report.Source
	GetTaskInfo(ctx context.Context, envID string) (*types.TaskInfo, error)
	GetSourceInfo(ctx context.Context, envID string) (*types.SourceInfo, error)
}

// Handler handles HTTP API requests
type Handler struct {
	catalog Catalog
	version string
}

// NewHandler creates a new API handler
func NewHandler(catalog Catalog, version string) *Handler {
	return &Handler{
		catalog: catalog,
		version: version,
	}
}

// SetupRoutes configures the API routes. middleware applies to /api/v1 only.
func SetupRoutes(router *gin.Engine, handler *Handler, middleware ...gin.HandlerFunc) {
	api := router.Group("/api/v1", middleware...)
	{
		api.GET("/report", handler.GetReport)
		api.GET("/environments", handler.ListEnvironments)
		api.GET("/environments/:env_id", handler.GetEnvironment)
		api.GET("/environments/:env_id/episodes", handler.ListEpisodes)
	}

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// GetReport renders the text report
func (h *Handler) GetReport(c *gin.Context) {
	opts := report.Options{}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		opts.SampleLimit = limit
	}

	var buf bytes.Buffer
	if _, err := report.Generate(c.Request.Context(), h.catalog, &buf, opts); err != nil {
		internalError(c, "failed to generate report", err)
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

// ListEnvironments returns a summary of every environment
func (h *Handler) ListEnvironments(c *gin.Context) {
	ctx := c.Request.Context()

	envIDs, err := h.catalog.ListEnvIDs(ctx)
	if err != nil {
		internalError(c, "failed to list environments", err)
		return
	}

	summaries := make([]types.EnvironmentSummary, 0, len(envIDs))
	for _, envID := range envIDs {
		summary, err := h.summarize(ctx, envID)
		if err != nil {
			internalError(c, "failed to summarize environment", err)
			return
		}
		summaries = append(summaries, *summary)
	}

	c.JSON(http.StatusOK, summaries)
}

// GetEnvironment returns the summary of one environment
func (h *Handler) GetEnvironment(c *gin.Context) {
	summary, err := h.summarize(c.Request.Context(), c.Param("env_id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			notFound(c, "environment not found", err)
			return
		}
		internalError(c, "failed to summarize environment", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListEpisodes returns up to limit episodes of one environment
func (h *Handler) ListEpisodes(c *gin.Context) {
	ctx := c.Request.Context()
	envID := c.Param("env_id")

	limit := report.DefaultSampleLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > storage.MaxEpisodeLimit {
		limit = storage.MaxEpisodeLimit
	}

	total, err := h.catalog.CountEpisodes(ctx, envID)
	if err != nil {
		if errors.Is(err, storage.ErrTableNotFound) {
			notFound(c, "episode table not found", err)
			return
		}
		internalError(c, "failed to count episodes", err)
		return
	}

	episodes, err := h.catalog.ListEpisodes(ctx, envID, limit)
	if err != nil {
		internalError(c, "failed to list episodes", err)
		return
	}

	c.JSON(http.StatusOK, types.EpisodeListResponse{
		EnvID:    envID,
		Table:    storage.EpisodeTableName(envID),
		Total:    total,
		Limit:    limit,
		Episodes: episodes,
	})
}

// HealthCheck provides service health information
func (h *Handler) HealthCheck(c *gin.Context) {
	response := types.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
	}

	envIDs, err := h.catalog.ListEnvIDs(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Warn("Health check could not read the catalog")
		response.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	response.Environments = len(envIDs)

	c.JSON(http.StatusOK, response)
}

func (h *Handler) summarize(ctx context.Context, envID string) (*types.EnvironmentSummary, error) {
	task, err := h.catalog.GetTaskInfo(ctx, envID)
	if err != nil {
		return nil, err
	}

	summary := &types.EnvironmentSummary{
		EnvID:           task.EnvID,
		MaxEpisodeSteps: task.MaxEpisodeSteps,
		EnvKwargs:       task.EnvKwargs,
		EpisodeTable:    storage.EpisodeTableName(envID),
	}

	source, err := h.catalog.GetSourceInfo(ctx, envID)
	switch {
	case err == nil:
		summary.SourceType = source.SourceType
		summary.SourceDesc = source.SourceDesc
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	count, err := h.catalog.CountEpisodes(ctx, envID)
	switch {
	case err == nil:
		summary.TableExists = true
		summary.EpisodeCount = count
	case !errors.Is(err, storage.ErrTableNotFound):
		return nil, err
	}

	return summary, nil
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{
		Error:   "invalid request",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}

func notFound(c *gin.Context, message string, err error) {
	c.JSON(http.StatusNotFound, types.ErrorResponse{
		Error:   message,
		Message: err.Error(),
		Code:    http.StatusNotFound,
	})
}

func internalError(c *gin.Context, message string, err error) {
	logrus.WithError(err).WithField("path", c.FullPath()).Error(message)
	c.JSON(http.StatusInternalServerError, types.ErrorResponse{
		Error:   message,
		Message: err.Error(),
		Code:    http.StatusInternalServerError,
	})
}
