package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/model"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/session"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/storage"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/web"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/audit"
	"github.com/cuongbtq/legacyjobs-dashboard/shared/sqldb"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type mockConnector struct {
	mock.Mock
}

func (m *mockConnector) Acquire(ctx context.Context, creds sqldb.Credentials) (*sqlx.DB, error) {
	args := m.Called(ctx, creds)
	db, _ := args.Get(0).(*sqlx.DB)
	return db, args.Error(1)
}

func (m *mockConnector) Release(creds sqldb.Credentials) error {
	return m.Called(creds).Error(0)
}

type mockReader struct {
	mock.Mock
}

func (m *mockReader) CountJobs(ctx context.Context, filter storage.JobFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockReader) ListJobs(ctx context.Context, filter storage.JobFilter, offset, limit int) ([]model.LegacyJob, error) {
	args := m.Called(ctx, filter, offset, limit)
	rows, _ := args.Get(0).([]model.LegacyJob)
	return rows, args.Error(1)
}

func (m *mockReader) GetParametersXML(ctx context.Context, jobID int64) (string, error) {
	args := m.Called(ctx, jobID)
	return args.String(0), args.Error(1)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *capturePublisher) Publish(_ context.Context, body []byte, _ string) error {
	var e audit.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	conn      *mockConnector
	reader    *mockReader
	store     *session.Store
	publisher *capturePublisher
	handler   *Handler
	engine    *gin.Engine
}

func testSettings() Settings {
	return Settings{
		Title:           "Legacy jobs",
		PageSizes:       []int{50, 100},
		DefaultPageSize: 100,
		Platforms:       []string{"EDI", "AltaEmpresa"},
		DefaultPlatform: "EDI",
		WindowDays:      30,
		Login:           LoginDefaults{Server: "db.local", Database: "legacy"},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		conn:      new(mockConnector),
		reader:    new(mockReader),
		store:     session.NewStore(time.Hour),
		publisher: &capturePublisher{},
	}

	f.handler = New(&Dependencies{
		Logger:    logger,
		Connector: f.conn,
		NewReader: func(*sqlx.DB) JobReader { return f.reader },
		Sessions:  f.store,
		Audit:     audit.NewRecorder(f.publisher, "test", logger),
		Settings:  testSettings(),
		Now:       func() time.Time { return fixedNow },
	})

	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	r.GET("/login", f.handler.LoginPage)
	r.POST("/login", f.handler.Login)
	r.POST("/logout", f.handler.Logout)
	pages := r.Group("/", f.handler.RequireSession(false))
	pages.GET("", f.handler.Dashboard)
	pages.POST("/nav/:action", f.handler.Navigate)
	api := r.Group("/api/v1", f.handler.RequireSession(true))
	api.GET("/jobs", f.handler.ListJobs)
	api.GET("/jobs/:job_id/parameters", f.handler.GetParameters)
	f.engine = r

	t.Cleanup(func() {
		f.conn.AssertExpectations(t)
		f.reader.AssertExpectations(t)
	})
	return f
}

func testCreds() sqldb.Credentials {
	return sqldb.Credentials{
		Server:   "db.local",
		Database: "legacy",
		User:     "operator",
		Password: "secret",
	}
}

// login creates a session directly and expects its handle to be acquired.
func (f *fixture) login() *session.Session {
	f.conn.On("Acquire", mock.Anything, testCreds()).Return((*sqlx.DB)(nil), nil).Maybe()
	return f.store.Create(testCreds())
}

func (f *fixture) do(method, target string, form url.Values, sess *session.Session) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if sess != nil {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sess.ID})
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func ns(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func testRows() []model.LegacyJob {
	created := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	return []model.LegacyJob{
		{
			ID:              3,
			CreatedAt:       created,
			Platform:        ns("EDI"),
			RejectionReason: ns("Error al dar de alta la empresa 30-1234"),
			CompanyID:       sql.NullInt64{Int64: 7, Valid: true},
			CompanyCode:     ns("C7"),
			LegalName:       ns("Acme SA"),
			TaxID:           ns("30-1234"),
		},
		{
			ID:              2,
			CreatedAt:       created,
			Platform:        ns("EDI"),
			RejectionReason: ns("No existe el usuario, no se creo el usuario"),
		},
		{
			ID:        1,
			CreatedAt: created,
			Platform:  ns("EDI"),
		},
	}
}

func defaultFilter() storage.JobFilter {
	return storage.JobFilter{
		Start:    time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		Platform: "EDI",
	}
}
