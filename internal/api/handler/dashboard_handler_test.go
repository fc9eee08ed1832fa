package handler

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/domain"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/storage"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/audit"
	"github.com/cuongbtq/legacyjobs-dashboard/shared/sqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestDashboard_RendersFirstPage(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	f.reader.On("CountJobs", mock.Anything, defaultFilter()).Return(237, nil).Once()
	f.reader.On("ListJobs", mock.Anything, defaultFilter(), 0, 100).Return(testRows(), nil).Once()

	w := f.do(http.MethodGet, "/", nil, sess)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "1 / 3")
	assert.Contains(t, body, `<td class="alert">No existe el usuario, no se creo el usuario</td>`)
	assert.Contains(t, body, `<td class="filled">Error al dar de alta la empresa 30-1234</td>`)
	assert.Contains(t, body, "ERROR: 1")
	assert.Contains(t, body, "OK: 2")
	assert.Contains(t, body, `<option value="(todas)">(todas)</option>`)
	assert.Contains(t, body, "Acme SA")
	assert.Equal(t, 237, sess.LastTotal)
	assert.Equal(t, 100, sess.LastPageSize)
}

func TestDashboard_QueryFailureIsInline(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	queryErr := &domain.QueryError{Op: "count", Err: errors.New("statement timeout")}
	f.reader.On("CountJobs", mock.Anything, defaultFilter()).Return(0, queryErr).Once()

	w := f.do(http.MethodGet, "/", nil, sess)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "count query failed: statement timeout")
	assert.Contains(t, w.Body.String(), "Sin registros")
	f.reader.AssertNotCalled(t, "ListJobs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDashboard_InvalidPageSizeFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	f.reader.On("CountJobs", mock.Anything, defaultFilter()).Return(10, nil).Once()
	f.reader.On("ListJobs", mock.Anything, defaultFilter(), 0, 100).Return(testRows(), nil).Once()

	w := f.do(http.MethodGet, "/?page_size=7", nil, sess)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid page size: 7")
}

func TestDashboard_Filters(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		filter   storage.JobFilter
		selected string
	}{
		{
			name:  "all platforms drops the platform predicate",
			query: "platform=" + url.QueryEscape(domain.AllPlatforms),
			filter: storage.JobFilter{
				Start: time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
			},
			selected: `<option value="(todas)" selected>(todas)</option>`,
		},
		{
			name:  "to date is inclusive",
			query: "platform=AltaEmpresa&from=2024-01-01&to=2024-01-31",
			filter: storage.JobFilter{
				Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				End:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				Platform: "AltaEmpresa",
			},
			selected: `<option value="AltaEmpresa" selected>AltaEmpresa</option>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sess := f.login()
			f.reader.On("CountJobs", mock.Anything, tt.filter).Return(0, nil).Once()
			f.reader.On("ListJobs", mock.Anything, tt.filter, 0, 100).Return(nil, nil).Once()

			w := f.do(http.MethodGet, "/?"+tt.query, nil, sess)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), "1 / 1")
			assert.Contains(t, w.Body.String(), tt.selected)
		})
	}
}

func TestDashboard_VisibilityFilterKeepsCounts(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	f.reader.On("CountJobs", mock.Anything, defaultFilter()).Return(3, nil).Once()
	f.reader.On("ListJobs", mock.Anything, defaultFilter(), 0, 100).Return(testRows(), nil).Once()

	w := f.do(http.MethodGet, "/?only_critical=true", nil, sess)

	body := w.Body.String()
	assert.Contains(t, body, "Acme SA")
	assert.NotContains(t, body, "No existe el usuario")
	assert.Contains(t, body, "OK<strong>2</strong>")
	assert.Contains(t, body, "ERROR: 1")
	assert.Contains(t, body, "OK: 2")
}

func TestDashboard_ClampsPageAfterPageSizeChange(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	sess.Nav.Goto(5, 1000, 50)
	f.reader.On("CountJobs", mock.Anything, defaultFilter()).Return(237, nil).Once()
	f.reader.On("ListJobs", mock.Anything, defaultFilter(), 200, 100).Return(testRows(), nil).Once()

	w := f.do(http.MethodGet, "/?page_size=100", nil, sess)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, sess.Nav.Page())
	assert.Contains(t, w.Body.String(), "3 / 3")
}

func TestDashboard_ShowsPrettifiedParameters(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	f.reader.On("CountJobs", mock.Anything, defaultFilter()).Return(3, nil).Once()
	f.reader.On("ListJobs", mock.Anything, defaultFilter(), 0, 100).Return(testRows(), nil).Once()
	f.reader.On("GetParametersXML", mock.Anything, int64(3)).Return("<a><b>1</b></a>", nil).Once()

	w := f.do(http.MethodGet, "/?job_id=3", nil, sess)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "&lt;a&gt;\n  &lt;b&gt;1&lt;/b&gt;\n&lt;/a&gt;")
	assert.Equal(t, []string{audit.EventParametersViewed}, f.publisher.types())
}

func TestDashboard_DetailFailureIsInline(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	detailErr := &domain.DetailFetchError{JobID: 3, Err: errors.New("conversion failed")}
	f.reader.On("CountJobs", mock.Anything, defaultFilter()).Return(3, nil).Once()
	f.reader.On("ListJobs", mock.Anything, defaultFilter(), 0, 100).Return(testRows(), nil).Once()
	f.reader.On("GetParametersXML", mock.Anything, int64(3)).Return("", detailErr).Once()

	w := f.do(http.MethodGet, "/?job_id=3", nil, sess)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No se pudo obtener el XML")
	assert.Contains(t, w.Body.String(), "conversion failed")
	assert.Empty(t, f.publisher.types())
}

func TestDashboard_EmptyParametersShowPlaceholder(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	f.reader.On("CountJobs", mock.Anything, defaultFilter()).Return(3, nil).Once()
	f.reader.On("ListJobs", mock.Anything, defaultFilter(), 0, 100).Return(testRows(), nil).Once()
	f.reader.On("GetParametersXML", mock.Anything, int64(1)).Return("", nil).Once()

	w := f.do(http.MethodGet, "/?job_id=1", nil, sess)

	assert.Contains(t, w.Body.String(), "El trabajo no tiene parámetros.")
}

func TestDashboard_ConnectionLostReturnsToLogin(t *testing.T) {
	f := newFixture(t)
	sess := f.store.Create(testCreds())
	connErr := &sqldb.ConnectionError{Drivers: []string{"postgres"}, Err: errors.New("server closed the connection")}
	f.conn.On("Acquire", mock.Anything, testCreds()).Return(nil, connErr).Once()
	f.conn.On("Release", testCreds()).Return(nil).Once()

	w := f.do(http.MethodGet, "/", nil, sess)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "server closed the connection")
	assert.Equal(t, 0, f.store.Len())
}

func TestNavigate(t *testing.T) {
	f := newFixture(t)
	sess := f.login()
	sess.LastTotal = 237
	sess.LastPageSize = 100

	steps := []struct {
		action string
		form   url.Values
		code   int
		page   int
	}{
		{"previous", url.Values{}, http.StatusSeeOther, 1},
		{"next", url.Values{}, http.StatusSeeOther, 2},
		{"next", url.Values{}, http.StatusSeeOther, 3},
		{"next", url.Values{}, http.StatusSeeOther, 3},
		{"previous", url.Values{}, http.StatusSeeOther, 2},
		{"goto", url.Values{"page": {"99"}}, http.StatusSeeOther, 3},
		{"goto", url.Values{"page": {"0"}}, http.StatusSeeOther, 1},
		{"goto", url.Values{"page": {"two"}}, http.StatusBadRequest, 1},
		{"jump", url.Values{}, http.StatusNotFound, 1},
	}

	for _, step := range steps {
		w := f.do(http.MethodPost, "/nav/"+step.action, step.form, sess)
		assert.Equal(t, step.code, w.Code, step.action)
		assert.Equal(t, step.page, sess.Nav.Page(), step.action)
	}
}

func TestNavigate_RedirectKeepsOnlyFilters(t *testing.T) {
	f := newFixture(t)
	sess := f.login()

	form := url.Values{"return": {"platform=EDI&page_size=100&job_id=5&next=http://evil"}}
	w := f.do(http.MethodPost, "/nav/next", form, sess)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?page_size=100&platform=EDI", w.Header().Get("Location"))
}
