package model

import (
	"database/sql"
	"time"
)

// LegacyJob is one legacy_jobs row joined with its owning company.
// The parameters payload is deliberately absent; it is fetched on demand.
type LegacyJob struct {
	ID              int64          `db:"id"`
	CreatedAt       time.Time      `db:"created_at"`
	Platform        sql.NullString `db:"platform"`
	Method          sql.NullString `db:"method"`
	RejectionReason sql.NullString `db:"rejection_reason"`
	CompanyID       sql.NullInt64  `db:"company_id"`
	CompanyCode     sql.NullString `db:"company_code"`
	LegalName       sql.NullString `db:"legal_name"`
	TaxID           sql.NullString `db:"tax_id"`
}

// Reason returns the rejection reason, empty when NULL.
func (j LegacyJob) Reason() string {
	if !j.RejectionReason.Valid {
		return ""
	}
	return j.RejectionReason.String
}
