package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/dto"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/audit"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/dashboard"
	"github.com/gin-gonic/gin"
)

// ListJobs handles GET /api/v1/jobs
// Returns one page of jobs for the session. page jumps to that page; without
// it the session's current page is kept.
func (h *Handler) ListJobs(c *gin.Context) {
	sess := sessionFrom(c)

	var req dto.DashboardQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	q, err := h.resolveQuery(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	sess.Lock()
	defer sess.Unlock()

	ctx := c.Request.Context()
	reader, err := h.reader(ctx, sess)
	if err != nil {
		h.logger.Error("Database connection unavailable", slog.String("session", sess.ID), slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
		})
		return
	}

	res := h.loadPage(ctx, reader, sess, q)
	if res.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": res.Err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Total:         res.Total,
		Page:          res.Page,
		MaxPage:       res.MaxPage,
		PageSize:      q.PageSize,
		HasPrev:       res.HasPrev,
		HasNext:       res.HasNext,
		CriticalCount: res.Class.CriticalCount,
		OKCount:       res.Class.OKCount,
		Platform:      q.Platform,
		From:          q.From,
		To:            q.To,
		Jobs:          jobDTOs(res, q.Visibility),
	})
}

// GetParameters handles GET /api/v1/jobs/:job_id/parameters
// Returns the raw and the indented parameters XML. A job without parameters
// yields empty strings.
func (h *Handler) GetParameters(c *gin.Context) {
	sess := sessionFrom(c)

	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil || jobID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a positive integer",
		})
		return
	}

	sess.Lock()
	defer sess.Unlock()

	ctx := c.Request.Context()
	reader, err := h.reader(ctx, sess)
	if err != nil {
		h.logger.Error("Database connection unavailable", slog.String("session", sess.ID), slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
		})
		return
	}

	text, err := reader.GetParametersXML(ctx, jobID)
	if err != nil {
		h.logger.Error("Failed to fetch parameters XML", slog.Int64("job_id", jobID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	h.audit.Record(ctx, audit.Event{
		Type:      audit.EventParametersViewed,
		SessionID: sess.ID,
		User:      sess.Credentials.User,
		Server:    sess.Credentials.Server,
		Database:  sess.Credentials.Database,
		JobID:     jobID,
		RemoteIP:  c.ClientIP(),
	})

	c.JSON(http.StatusOK, dto.ParametersResponse{
		JobID:  jobID,
		XML:    text,
		Pretty: dashboard.PrettifyXML(text),
	})
}
