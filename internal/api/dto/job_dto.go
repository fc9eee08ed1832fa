package dto

type ListJobsResponse struct {
	Total         int      `json:"total"`
	Page          int      `json:"page"`
	MaxPage       int      `json:"max_page"`
	PageSize      int      `json:"page_size"`
	HasPrev       bool     `json:"has_prev"`
	HasNext       bool     `json:"has_next"`
	CriticalCount int      `json:"critical_count"`
	OKCount       int      `json:"ok_count"`
	Platform      string   `json:"platform"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Jobs          []JobDTO `json:"jobs"`
}

type JobDTO struct {
	ID              int64  `json:"id"`
	CreatedAt       string `json:"created_at"`
	Platform        string `json:"platform"`
	Method          string `json:"method"`
	RejectionReason string `json:"rejection_reason"`
	CompanyID       *int64 `json:"company_id"`
	CompanyCode     string `json:"company_code"`
	LegalName       string `json:"legal_name"`
	TaxID           string `json:"tax_id"`
	Critical        bool   `json:"critical"`
	Highlighted     bool   `json:"highlighted"`
}

type ParametersResponse struct {
	JobID  int64  `json:"job_id"`
	XML    string `json:"xml"`
	Pretty string `json:"pretty"`
}
