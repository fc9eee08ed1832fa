package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schema = `
CREATE TABLE companies (
	id         INTEGER PRIMARY KEY,
	code       TEXT,
	legal_name TEXT,
	tax_id     TEXT
);
CREATE TABLE legacy_jobs (
	id               INTEGER PRIMARY KEY,
	created_at       TIMESTAMP NOT NULL,
	platform         TEXT,
	method           TEXT,
	rejection_reason TEXT,
	company_id       INTEGER,
	parameters       TEXT
);
`

var base = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

type seedJob struct {
	id        int64
	createdAt time.Time
	platform  string
	reason    any
	companyID any
	params    any
}

func newTestStorage(t *testing.T, jobs []seedJob) *Storage {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	db.MustExec(schema)
	db.MustExec(`INSERT INTO companies (id, code, legal_name, tax_id) VALUES (10, '779', 'ACME SA', '30-11111111-1')`)

	for _, j := range jobs {
		db.MustExec(
			`INSERT INTO legacy_jobs (id, created_at, platform, method, rejection_reason, company_id, parameters)
			 VALUES (?, ?, ?, 'Publicar', ?, ?, ?)`,
			j.id, j.createdAt, j.platform, j.reason, j.companyID, j.params,
		)
	}

	return NewStorage(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// twenty EDI jobs one hour apart plus five AltaEmpresa jobs, and two rows
// outside the window on either side.
func seedWindow() []seedJob {
	var jobs []seedJob
	id := int64(1)
	for i := 0; i < 20; i++ {
		jobs = append(jobs, seedJob{id: id, createdAt: base.Add(time.Duration(i) * time.Hour), platform: "EDI", reason: "OK", companyID: 10})
		id++
	}
	for i := 0; i < 5; i++ {
		jobs = append(jobs, seedJob{id: id, createdAt: base.Add(time.Duration(i)*time.Hour + 30*time.Minute), platform: "AltaEmpresa", reason: nil, companyID: nil})
		id++
	}
	jobs = append(jobs,
		seedJob{id: 900, createdAt: base.Add(-time.Second), platform: "EDI"},
		seedJob{id: 901, createdAt: base.AddDate(0, 0, 2), platform: "EDI"},
	)
	return jobs
}

func windowFilter(platform string) JobFilter {
	return JobFilter{Start: base, End: base.AddDate(0, 0, 2), Platform: platform}
}

func TestStorage_CountJobs(t *testing.T) {
	s := newTestStorage(t, seedWindow())
	ctx := context.Background()

	tests := []struct {
		platform string
		want     int
	}{
		{"", 25},
		{"EDI", 20},
		{"AltaEmpresa", 5},
		{"BajaEmpresa", 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("platform=%q", tt.platform), func(t *testing.T) {
			total, err := s.CountJobs(ctx, windowFilter(tt.platform))
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
		})
	}
}

func TestStorage_ListJobs_HalfOpenRangeAndOrder(t *testing.T) {
	s := newTestStorage(t, seedWindow())
	filter := windowFilter("")

	jobs, err := s.ListJobs(context.Background(), filter, 0, 100)
	require.NoError(t, err)
	require.Len(t, jobs, 25)

	for i, j := range jobs {
		assert.False(t, j.CreatedAt.Before(filter.Start), "row %d before start", j.ID)
		assert.True(t, j.CreatedAt.Before(filter.End), "row %d not before end", j.ID)
		if i > 0 {
			assert.False(t, j.CreatedAt.After(jobs[i-1].CreatedAt), "rows not newest first")
		}
	}
	assert.Equal(t, int64(20), jobs[0].ID)
}

func TestStorage_ListJobs_PagesAgreeWithCount(t *testing.T) {
	s := newTestStorage(t, seedWindow())
	ctx := context.Background()

	for _, platform := range []string{"", "EDI", "AltaEmpresa"} {
		for _, limit := range []int{1, 7, 10, 50} {
			filter := windowFilter(platform)
			total, err := s.CountJobs(ctx, filter)
			require.NoError(t, err)

			seen := map[int64]bool{}
			for offset := 0; offset < total+limit; offset += limit {
				jobs, err := s.ListJobs(ctx, filter, offset, limit)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(jobs), limit)
				for _, j := range jobs {
					assert.False(t, seen[j.ID], "row %d returned twice", j.ID)
					seen[j.ID] = true
					if platform != "" {
						assert.Equal(t, platform, j.Platform.String)
					}
				}
			}
			assert.Len(t, seen, total, "platform=%q limit=%d", platform, limit)
		}
	}
}

func TestStorage_ListJobs_LeftJoinCompany(t *testing.T) {
	s := newTestStorage(t, seedWindow())

	jobs, err := s.ListJobs(context.Background(), windowFilter(""), 0, 100)
	require.NoError(t, err)

	byID := map[int64]int{}
	for i, j := range jobs {
		byID[j.ID] = i
	}

	withCompany := jobs[byID[1]]
	assert.True(t, withCompany.CompanyID.Valid)
	assert.Equal(t, "779", withCompany.CompanyCode.String)
	assert.Equal(t, "ACME SA", withCompany.LegalName.String)
	assert.Equal(t, "30-11111111-1", withCompany.TaxID.String)
	assert.Equal(t, "OK", withCompany.Reason())

	orphan := jobs[byID[21]]
	assert.False(t, orphan.CompanyID.Valid)
	assert.False(t, orphan.CompanyCode.Valid)
	assert.Equal(t, "", orphan.Reason())
}

func TestStorage_ListJobs_InvalidBounds(t *testing.T) {
	s := newTestStorage(t, nil)

	_, err := s.ListJobs(context.Background(), windowFilter(""), -1, 10)
	var qerr *domain.QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "page", qerr.Op)

	_, err = s.ListJobs(context.Background(), windowFilter(""), 0, 0)
	require.ErrorAs(t, err, &qerr)
}

func TestStorage_QueryErrorsCarryDriverMessage(t *testing.T) {
	s := newTestStorage(t, nil)
	s.db.MustExec(`DROP TABLE legacy_jobs`)

	_, err := s.CountJobs(context.Background(), windowFilter(""))
	var qerr *domain.QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "count", qerr.Op)
	assert.Contains(t, err.Error(), "no such table")

	_, err = s.ListJobs(context.Background(), windowFilter(""), 0, 10)
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "page", qerr.Op)
}

func TestStorage_GetParametersXML(t *testing.T) {
	s := newTestStorage(t, []seedJob{
		{id: 1, createdAt: base, platform: "EDI", params: "<p><a>1</a></p>"},
		{id: 2, createdAt: base, platform: "EDI", params: nil},
	})
	ctx := context.Background()

	xml, err := s.GetParametersXML(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "<p><a>1</a></p>", xml)

	xml, err = s.GetParametersXML(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, xml)

	xml, err = s.GetParametersXML(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, xml)
}

func TestStorage_GetParametersXML_Failure(t *testing.T) {
	s := newTestStorage(t, nil)
	s.db.MustExec(`DROP TABLE legacy_jobs`)

	_, err := s.GetParametersXML(context.Background(), 1)

	var derr *domain.DetailFetchError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, int64(1), derr.JobID)
}
