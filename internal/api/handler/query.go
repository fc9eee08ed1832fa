package handler

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/domain"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/dto"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/storage"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/dashboard"
)

// pageQuery is a validated DashboardQuery.
type pageQuery struct {
	PageSize   int
	Platform   string
	Range      dashboard.DateRange
	From       string
	To         string
	Visibility dashboard.Visibility
	JobID      int64
	GotoPage   int
}

// resolveQuery validates req against the configured choices. It always
// returns a usable query: an invalid field falls back to its default and the
// first problem is reported as the error.
func (h *Handler) resolveQuery(req dto.DashboardQuery) (pageQuery, error) {
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	q := pageQuery{
		PageSize: h.settings.DefaultPageSize,
		Platform: h.settings.DefaultPlatform,
		Visibility: dashboard.Visibility{
			OnlyCritical: req.OnlyCritical,
			OnlyOK:       req.OnlyOK,
		},
		JobID:    max(req.JobID, 0),
		GotoPage: max(req.Page, 0),
	}

	if req.PageSize != 0 {
		if slices.Contains(h.settings.PageSizes, req.PageSize) {
			q.PageSize = req.PageSize
		} else {
			fail(fmt.Errorf("%w: %d", domain.ErrInvalidPageSize, req.PageSize))
		}
	}

	if req.Platform != "" {
		if req.Platform == domain.AllPlatforms || slices.Contains(h.settings.Platforms, req.Platform) {
			q.Platform = req.Platform
		} else {
			fail(fmt.Errorf("%w: %q", domain.ErrInvalidPlatform, req.Platform))
		}
	}

	now := h.now()
	r, err := dashboard.ParseRange(req.From, req.To, now, h.settings.WindowDays)
	if err != nil {
		fail(err)
		r = dashboard.DefaultRange(now, h.settings.WindowDays)
	}
	q.Range = r
	q.From = r.Start.Format(dashboard.DateLayout)
	q.To = r.End.AddDate(0, 0, -1).Format(dashboard.DateLayout)

	return q, firstErr
}

func (q pageQuery) filter() storage.JobFilter {
	platform := q.Platform
	if platform == domain.AllPlatforms {
		platform = ""
	}

	return storage.JobFilter{
		Start:    q.Range.Start,
		End:      q.Range.End,
		Platform: platform,
	}
}

// values encodes the filter set, without the page or the selected job.
func (q pageQuery) values() url.Values {
	v := url.Values{}
	v.Set("page_size", strconv.Itoa(q.PageSize))
	v.Set("platform", q.Platform)
	v.Set("from", q.From)
	v.Set("to", q.To)
	if q.Visibility.OnlyCritical {
		v.Set("only_critical", "true")
	}
	if q.Visibility.OnlyOK {
		v.Set("only_ok", "true")
	}
	return v
}

var returnKeys = []string{"page_size", "platform", "from", "to", "only_critical", "only_ok"}

// returnQuery keeps only the filter keys of a posted return query, so
// navigation never redirects anywhere but the dashboard.
func returnQuery(raw string) string {
	parsed, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}

	v := url.Values{}
	for _, key := range returnKeys {
		if val := parsed.Get(key); val != "" {
			v.Set(key, val)
		}
	}
	return v.Encode()
}
