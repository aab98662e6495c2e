package notice

import "time"

// Notice is a document issued to the property owner at an inspection.
type Notice struct {
	ID                  string
	CaseID              string
	InspectionID        string
	ConfigNoticeID      string
	Label               string
	IssuedAt            time.Time
	NoticeContent       string
	CertifiedMailNumber *string
	CreatedAt           time.Time
}

// Request issues a notice from a configured template.
type Request struct {
	ConfigNoticeID      string    `json:"configNoticeId" validate:"required,uuid"`
	IssuedAt            time.Time `json:"issuedAt" validate:"required"`
	CertifiedMailNumber *string   `json:"certifiedMailNumber" validate:"omitempty,max=64"`
}

// Template is an agency-configured notice whose label doubles as an
// abatement stage.
type Template struct {
	ID       string
	AgencyID string
	Label    string
	Body     string
}
