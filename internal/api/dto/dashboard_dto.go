package dto

import "html/template"

// DashboardQuery is the query string shared by the dashboard page and the jobs API.
type DashboardQuery struct {
	PageSize     int    `form:"page_size"`
	Platform     string `form:"platform"`
	From         string `form:"from"`
	To           string `form:"to"`
	OnlyCritical bool   `form:"only_critical"`
	OnlyOK       bool   `form:"only_ok"`
	JobID        int64  `form:"job_id"`
	Page         int    `form:"page"`
}

// LoginForm is the posted login form.
type LoginForm struct {
	Server    string `form:"server" binding:"required"`
	Database  string `form:"database" binding:"required"`
	User      string `form:"user"`
	Password  string `form:"password"`
	Encrypt   bool   `form:"encrypt"`
	TrustCert bool   `form:"trust_cert"`
}

type LoginView struct {
	Title     string
	Server    string
	Database  string
	User      string
	Encrypt   bool
	TrustCert bool
	Error     string
	Hint      string
}

type RowView struct {
	ID          int64
	CreatedAt   string
	Platform    string
	CompanyCode string
	LegalName   string
	TaxID       string
	Response    string
	CellClass   string
	Critical    bool
}

type DetailView struct {
	JobID int64
	XML   string
	Error string
}

type DashboardView struct {
	Title    string
	User     string
	Database string

	PageSizes    []int
	PageSize     int
	Platforms    []string
	Platform     string
	AllPlatforms string
	From         string
	To           string
	OnlyCritical bool
	OnlyOK       bool

	Total         int
	Page          int
	MaxPage       int
	RowsOnPage    int
	HasPrev       bool
	HasNext       bool
	CriticalCount int
	OKCount       int

	Rows          []RowView
	Notice        string
	QueryError    string
	SelectedJobID int64
	Detail        *DetailView

	// ReturnQuery is the encoded filter set carried by navigation forms.
	ReturnQuery string
	// LinkQuery is ReturnQuery for use inside href attributes.
	LinkQuery template.URL
}
