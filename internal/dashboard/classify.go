// Package dashboard holds the presentation rules of the legacy jobs dashboard:
// row classification, visibility filtering, page navigation, the default
// date window and parameters XML formatting.
package dashboard

import (
	"regexp"
	"strings"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/model"
)

// HighlightPhrase marks a response cell for emphasis in the jobs table.
// It is independent of the critical pattern and never affects the counts.
const HighlightPhrase = "No existe el usuario, no se creo el usuario"

var criticalPattern = regexp.MustCompile(`(?i)(Error al dar de alta la empresa|No existe la empresa, no se creo el usuario)`)

// Cell classes for the responses column.
const (
	CellAlert  = "alert"
	CellFilled = "filled"
)

// IsCritical reports whether a rejection reason matches the critical pattern.
func IsCritical(reason string) bool {
	return reason != "" && criticalPattern.MatchString(reason)
}

// IsHighlighted reports whether a rejection reason contains HighlightPhrase.
func IsHighlighted(reason string) bool {
	return strings.Contains(reason, HighlightPhrase)
}

// CellClass picks the css class for a responses cell.
func CellClass(reason string) string {
	switch {
	case IsHighlighted(reason):
		return CellAlert
	case strings.TrimSpace(reason) != "":
		return CellFilled
	default:
		return ""
	}
}

// Classification is the critical/ok partition of one page of rows.
type Classification struct {
	Critical      []bool
	CriticalCount int
	OKCount       int
}

// Classify partitions rows into critical and ok. It is recomputed for every page.
func Classify(rows []model.LegacyJob) Classification {
	c := Classification{Critical: make([]bool, len(rows))}
	for i, row := range rows {
		if IsCritical(row.Reason()) {
			c.Critical[i] = true
			c.CriticalCount++
		}
	}
	c.OKCount = len(rows) - c.CriticalCount
	return c
}

// Visibility is the pair of "only critical" / "only ok" checkboxes.
// Checking both, or neither, shows every row.
type Visibility struct {
	OnlyCritical bool
	OnlyOK       bool
}

// Shows reports whether a row with the given classification is visible.
func (v Visibility) Shows(critical bool) bool {
	if v.OnlyCritical == v.OnlyOK {
		return true
	}
	return critical == v.OnlyCritical
}

// Filter returns the rows visible under v. mask is the Critical slice of the
// rows' Classification.
func (v Visibility) Filter(rows []model.LegacyJob, mask []bool) []model.LegacyJob {
	out := make([]model.LegacyJob, 0, len(rows))
	for i, row := range rows {
		if v.Shows(mask[i]) {
			out = append(out, row)
		}
	}
	return out
}
