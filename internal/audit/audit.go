// Package audit records who looked at what on the dashboard.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventLogin            = "login"
	EventLoginFailed      = "login_failed"
	EventLogout           = "logout"
	EventParametersViewed = "parameters_viewed"
)

const publishTimeout = 3 * time.Second

// Publisher delivers encoded events; *rabbitmq.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Event is one audited operator action.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	App       string    `json:"app,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	User      string    `json:"user,omitempty"`
	Server    string    `json:"server,omitempty"`
	Database  string    `json:"database,omitempty"`
	JobID     int64     `json:"job_id,omitempty"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Recorder stamps and publishes events. Publishing failures are logged and
// never reach the caller.
type Recorder struct {
	publisher Publisher
	logger    *slog.Logger
	app       string
	now       func() time.Time
}

// NewRecorder creates a recorder; a nil publisher disables auditing.
func NewRecorder(publisher Publisher, app string, logger *slog.Logger) *Recorder {
	return &Recorder{
		publisher: publisher,
		logger:    logger,
		app:       app,
		now:       time.Now,
	}
}

// Enabled reports whether events are published anywhere.
func (r *Recorder) Enabled() bool {
	return r != nil && r.publisher != nil
}

// Record publishes e after filling its id, timestamp and app name.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if !r.Enabled() {
		return
	}

	e.ID = uuid.NewString()
	e.At = r.now().UTC()
	e.App = r.app

	body, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("Failed to encode audit event", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, body, "application/json"); err != nil {
		r.logger.Warn("Failed to publish audit event",
			slog.String("type", e.Type),
			slog.Any("error", err),
		)
		return
	}

	r.logger.Debug("Audit event published",
		slog.String("type", e.Type),
		slog.String("id", e.ID),
	)
}
