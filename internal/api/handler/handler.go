package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/model"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/session"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/storage"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/audit"
	"github.com/cuongbtq/legacyjobs-dashboard/shared/sqldb"
	"github.com/jmoiron/sqlx"
)

// Connector hands out the memoized database handle for a set of credentials.
type Connector interface {
	Acquire(ctx context.Context, creds sqldb.Credentials) (*sqlx.DB, error)
	Release(creds sqldb.Credentials) error
}

// JobReader is the read side of the legacy jobs table.
type JobReader interface {
	CountJobs(ctx context.Context, filter storage.JobFilter) (int, error)
	ListJobs(ctx context.Context, filter storage.JobFilter, offset, limit int) ([]model.LegacyJob, error)
	GetParametersXML(ctx context.Context, jobID int64) (string, error)
}

// ReaderFactory builds a JobReader over an acquired handle.
type ReaderFactory func(db *sqlx.DB) JobReader

// LoginDefaults prefill the login form.
type LoginDefaults struct {
	Server    string
	Database  string
	Encrypt   bool
	TrustCert bool
}

// Settings are the selector choices and cookie options of the dashboard.
type Settings struct {
	Title           string
	PageSizes       []int
	DefaultPageSize int
	Platforms       []string
	DefaultPlatform string
	WindowDays      int
	SecureCookies   bool
	Login           LoginDefaults
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Connector Connector
	NewReader ReaderFactory
	Sessions  *session.Store
	Audit     *audit.Recorder
	Settings  Settings

	// Now defaults to time.Now
	Now func() time.Time
}

// Handler serves the dashboard pages and the jobs API.
type Handler struct {
	logger    *slog.Logger
	connector Connector
	newReader ReaderFactory
	sessions  *session.Store
	audit     *audit.Recorder
	settings  Settings
	now       func() time.Time
}

// New creates a new Handler instance
func New(deps *Dependencies) *Handler {
	newReader := deps.NewReader
	if newReader == nil {
		newReader = func(db *sqlx.DB) JobReader {
			return storage.NewStorage(db, deps.Logger)
		}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Handler{
		logger:    deps.Logger,
		connector: deps.Connector,
		newReader: newReader,
		sessions:  deps.Sessions,
		audit:     deps.Audit,
		settings:  deps.Settings,
		now:       now,
	}
}

// SweepSessions drops expired sessions and releases connections nobody uses anymore.
func (h *Handler) SweepSessions() int {
	expired := h.sessions.Sweep()
	for _, sess := range expired {
		h.releaseIfUnused(sess.Credentials)
	}

	if len(expired) > 0 {
		h.logger.Info("Expired sessions swept", slog.Int("count", len(expired)))
	}
	return len(expired)
}

func (h *Handler) releaseIfUnused(creds sqldb.Credentials) {
	if h.sessions.InUse(creds) {
		return
	}

	if err := h.connector.Release(creds); err != nil {
		h.logger.Warn("Failed to release database connection",
			slog.Any("credentials", creds),
			slog.Any("error", err),
		)
	}
}
