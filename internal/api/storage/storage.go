package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/domain"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/model"
	"github.com/jmoiron/sqlx"
)

const jobsFrom = `
	FROM legacy_jobs j
	LEFT JOIN companies c ON c.id = j.company_id
`

// Storage runs the read-only dashboard queries. Queries are written with '?'
// bindvars and rebound for the connected driver.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// JobFilter is the predicate shared by the count and page queries.
type JobFilter struct {
	Start    time.Time // inclusive
	End      time.Time // exclusive
	Platform string    // empty means every platform
}

func (f JobFilter) where() (string, []any) {
	clauses := []string{"j.created_at >= ?", "j.created_at < ?"}
	args := []any{f.Start, f.End}

	if f.Platform != "" {
		clauses = append(clauses, "j.platform = ?")
		args = append(args, f.Platform)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CountJobs returns the number of rows matching filter.
func (s *Storage) CountJobs(ctx context.Context, filter JobFilter) (int, error) {
	where, args := filter.where()
	query := s.db.Rebind("SELECT COUNT(*)" + jobsFrom + where)

	var total int
	if err := s.db.GetContext(ctx, &total, query, args...); err != nil {
		s.logger.Error("Failed to count jobs",
			slog.Any("error", err),
			slog.String("platform", filter.Platform),
		)
		return 0, &domain.QueryError{Op: "count", Err: err}
	}

	return total, nil
}

// ListJobs returns up to limit rows matching filter after skipping offset,
// newest first.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter, offset, limit int) ([]model.LegacyJob, error) {
	if limit <= 0 || offset < 0 {
		return nil, &domain.QueryError{Op: "page", Err: fmt.Errorf("invalid offset %d / limit %d", offset, limit)}
	}

	where, args := filter.where()
	query := `
		SELECT
			j.id, j.created_at, j.platform, j.method,
			j.rejection_reason, j.company_id,
			c.code AS company_code, c.legal_name, c.tax_id` +
		jobsFrom + where + `
		ORDER BY j.created_at DESC, j.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	jobs := []model.LegacyJob{}
	if err := s.db.SelectContext(ctx, &jobs, s.db.Rebind(query), args...); err != nil {
		s.logger.Error("Failed to list jobs",
			slog.Any("error", err),
			slog.Int("offset", offset),
			slog.Int("limit", limit),
		)
		return nil, &domain.QueryError{Op: "page", Err: err}
	}

	return jobs, nil
}

// GetParametersXML returns the parameters payload of one job as text.
// A missing row or NULL payload yields "".
func (s *Storage) GetParametersXML(ctx context.Context, jobID int64) (string, error) {
	query := s.db.Rebind(`
		SELECT CAST(parameters AS TEXT)
		FROM legacy_jobs
		WHERE id = ?
	`)

	var payload sql.NullString
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		s.logger.Error("Failed to fetch parameters XML",
			slog.Any("error", err),
			slog.Int64("job_id", jobID),
		)
		return "", &domain.DetailFetchError{JobID: jobID, Err: err}
	}

	return payload.String, nil
}
