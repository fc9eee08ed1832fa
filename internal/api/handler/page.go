package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/dto"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/model"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/session"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/dashboard"
)

const timestampLayout = "2006-01-02 15:04:05"

// pageResult is one rendered page. Err is set when the count or page query
// failed, in which case the page is empty.
type pageResult struct {
	Total   int
	Page    int
	MaxPage int
	HasPrev bool
	HasNext bool
	Rows    []model.LegacyJob
	Class   dashboard.Classification
	Err     error
}

func (h *Handler) reader(ctx context.Context, sess *session.Session) (JobReader, error) {
	db, err := h.connector.Acquire(ctx, sess.Credentials)
	if err != nil {
		return nil, err
	}
	return h.newReader(db), nil
}

// loadPage runs the count and page queries for q and moves the session's
// navigator into range. The caller holds the session lock.
func (h *Handler) loadPage(ctx context.Context, reader JobReader, sess *session.Session, q pageQuery) *pageResult {
	filter := q.filter()
	res := &pageResult{Page: sess.Nav.Page(), MaxPage: 1}

	total, err := reader.CountJobs(ctx, filter)
	if err != nil {
		h.logger.Error("Failed to count jobs", slog.String("session", sess.ID), slog.Any("error", err))
		res.Err = err
		return res
	}

	if q.GotoPage > 0 {
		sess.Nav.Goto(q.GotoPage, total, q.PageSize)
	} else {
		sess.Nav.Clamp(total, q.PageSize)
	}
	sess.LastTotal = total
	sess.LastPageSize = q.PageSize

	res.Total = total
	res.Page = sess.Nav.Page()
	res.MaxPage = dashboard.MaxPage(total, q.PageSize)
	res.HasPrev = sess.Nav.HasPrevious()
	res.HasNext = sess.Nav.HasNext(total, q.PageSize)

	rows, err := reader.ListJobs(ctx, filter, sess.Nav.Offset(q.PageSize), q.PageSize)
	if err != nil {
		h.logger.Error("Failed to list jobs",
			slog.String("session", sess.ID),
			slog.Int("page", res.Page),
			slog.Any("error", err),
		)
		res.Err = err
		return res
	}

	res.Rows = rows
	res.Class = dashboard.Classify(rows)

	h.logger.Debug("Page loaded",
		slog.String("session", sess.ID),
		slog.Int("page", res.Page),
		slog.Int("total", total),
		slog.Int("rows", len(rows)),
		slog.Int("critical", res.Class.CriticalCount),
	)
	return res
}

// loadDetail fetches and formats the parameters XML of one job. Failures are
// reported in the view instead of failing the page.
func (h *Handler) loadDetail(ctx context.Context, reader JobReader, jobID int64) (*dto.DetailView, error) {
	text, err := reader.GetParametersXML(ctx, jobID)
	if err != nil {
		h.logger.Error("Failed to fetch parameters XML", slog.Int64("job_id", jobID), slog.Any("error", err))
		return &dto.DetailView{JobID: jobID, Error: err.Error()}, err
	}

	return &dto.DetailView{JobID: jobID, XML: dashboard.PrettifyXML(text)}, nil
}

func rowViews(res *pageResult, vis dashboard.Visibility) []dto.RowView {
	views := make([]dto.RowView, 0, len(res.Rows))
	for i, row := range res.Rows {
		critical := res.Class.Critical[i]
		if !vis.Shows(critical) {
			continue
		}

		reason := row.Reason()
		views = append(views, dto.RowView{
			ID:          row.ID,
			CreatedAt:   row.CreatedAt.Format(timestampLayout),
			Platform:    row.Platform.String,
			CompanyCode: row.CompanyCode.String,
			LegalName:   row.LegalName.String,
			TaxID:       row.TaxID.String,
			Response:    reason,
			CellClass:   dashboard.CellClass(reason),
			Critical:    critical,
		})
	}
	return views
}

func jobDTOs(res *pageResult, vis dashboard.Visibility) []dto.JobDTO {
	jobs := make([]dto.JobDTO, 0, len(res.Rows))
	for i, row := range res.Rows {
		critical := res.Class.Critical[i]
		if !vis.Shows(critical) {
			continue
		}

		job := dto.JobDTO{
			ID:              row.ID,
			CreatedAt:       row.CreatedAt.Format(timestampLayout),
			Platform:        row.Platform.String,
			Method:          row.Method.String,
			RejectionReason: row.Reason(),
			CompanyCode:     row.CompanyCode.String,
			LegalName:       row.LegalName.String,
			TaxID:           row.TaxID.String,
			Critical:        critical,
			Highlighted:     dashboard.IsHighlighted(row.Reason()),
		}
		if row.CompanyID.Valid {
			id := row.CompanyID.Int64
			job.CompanyID = &id
		}
		jobs = append(jobs, job)
	}
	return jobs
}
