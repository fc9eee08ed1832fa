package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/domain"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/dto"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/audit"
	"github.com/gin-gonic/gin"
)

// Dashboard handles GET /
// Renders the metrics, the current page of jobs and, when job_id is set, the
// parameters XML of that job.
func (h *Handler) Dashboard(c *gin.Context) {
	sess := sessionFrom(c)

	var req dto.DashboardQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		req = dto.DashboardQuery{}
	}

	q, qerr := h.resolveQuery(req)
	q.GotoPage = 0

	sess.Lock()
	defer sess.Unlock()

	ctx := c.Request.Context()
	reader, err := h.reader(ctx, sess)
	if err != nil {
		h.connectionLost(c, sess, err)
		return
	}

	res := h.loadPage(ctx, reader, sess, q)
	returnTo := q.values().Encode()

	view := dto.DashboardView{
		Title:         h.settings.Title,
		User:          sess.Credentials.User,
		Database:      sess.Credentials.Database,
		PageSizes:     h.settings.PageSizes,
		PageSize:      q.PageSize,
		Platforms:     h.settings.Platforms,
		Platform:      q.Platform,
		AllPlatforms:  domain.AllPlatforms,
		From:          q.From,
		To:            q.To,
		OnlyCritical:  q.Visibility.OnlyCritical,
		OnlyOK:        q.Visibility.OnlyOK,
		Total:         res.Total,
		Page:          res.Page,
		MaxPage:       res.MaxPage,
		RowsOnPage:    len(res.Rows),
		HasPrev:       res.HasPrev,
		HasNext:       res.HasNext,
		CriticalCount: res.Class.CriticalCount,
		OKCount:       res.Class.OKCount,
		Rows:          rowViews(res, q.Visibility),
		SelectedJobID: q.JobID,
		ReturnQuery:   returnTo,
		LinkQuery:     template.URL(returnTo),
	}
	if qerr != nil {
		view.Notice = qerr.Error()
	}
	if res.Err != nil {
		view.QueryError = res.Err.Error()
	}

	if q.JobID > 0 {
		detail, err := h.loadDetail(ctx, reader, q.JobID)
		view.Detail = detail
		if err == nil {
			h.audit.Record(ctx, audit.Event{
				Type:      audit.EventParametersViewed,
				SessionID: sess.ID,
				User:      sess.Credentials.User,
				Server:    sess.Credentials.Server,
				Database:  sess.Credentials.Database,
				JobID:     q.JobID,
				RemoteIP:  c.ClientIP(),
			})
		}
	}

	c.HTML(http.StatusOK, "dashboard.html", view)
}

// Navigate handles POST /nav/:action
// Moves the session to the previous, next or a chosen page and redirects back
// to the dashboard with the same filters. Bounds come from the last render.
func (h *Handler) Navigate(c *gin.Context) {
	sess := sessionFrom(c)
	action := c.Param("action")

	sess.Lock()
	switch action {
	case "previous":
		sess.Nav.Previous()
	case "next":
		sess.Nav.Next(sess.LastTotal, sess.LastPageSize)
	case "goto":
		page, err := strconv.Atoi(c.PostForm("page"))
		if err != nil {
			sess.Unlock()
			c.String(http.StatusBadRequest, "page must be a number")
			return
		}
		sess.Nav.Goto(page, sess.LastTotal, sess.LastPageSize)
	default:
		sess.Unlock()
		c.String(http.StatusNotFound, "unknown navigation %q", action)
		return
	}
	page := sess.Nav.Page()
	sess.Unlock()

	h.logger.Debug("Navigated", slog.String("session", sess.ID), slog.String("action", action), slog.Int("page", page))

	target := "/"
	if q := returnQuery(c.PostForm("return")); q != "" {
		target += "?" + q
	}
	c.Redirect(http.StatusSeeOther, target)
}
