package disposition

import "caseflow/violation"

// Type separates closures that found nothing wrong from closures that found
// the property brought into compliance.
type Type string

const (
	TypeInvalid   Type = "INVALID_DISPOSITION"
	TypeCompliant Type = "COMPLIANT_DISPOSITION"
)

// CompliantType says how compliance was reached. Only meaningful for
// TypeCompliant.
type CompliantType string

const (
	CompliantVoluntary CompliantType = "VOLUNTARY"
	CompliantForced    CompliantType = "FORCED"
)

// Disposition is an agency-configured closure reason.
type Disposition struct {
	ID            string
	AgencyID      string
	Label         string
	Type          Type
	CompliantType *CompliantType
	IsActive      bool
}

// IsForced reports a compliant disposition reached through enforcement.
func (d Disposition) IsForced() bool {
	return d.Type == TypeCompliant && d.CompliantType != nil && *d.CompliantType == CompliantForced
}

// AllowsStatus reports whether a violation may close with status under d.
func (d Disposition) AllowsStatus(status violation.Status) bool {
	switch d.Type {
	case TypeInvalid:
		return status == violation.StatusClosedInvalid
	case TypeCompliant:
		return status == violation.StatusClosedMetCompliance
	default:
		return false
	}
}
