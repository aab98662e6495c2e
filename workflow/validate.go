package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"caseflow/apperr"
	"caseflow/disposition"
	"caseflow/inspection"
	"caseflow/notice"
	"caseflow/violation"
)

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// checkShape runs the struct tags and reports the first failing field.
func checkShape(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperr.InvalidRequest(fmt.Sprintf("Invalid Request. %s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return apperr.InvalidRequest("Invalid Request")
}

// validateRequest checks the violation payload against the current inspection.
func validateRequest(req PerformInspectionRequest, current inspection.Inspection) error {
	if len(req.ExistingViolations)+len(req.NewViolations) == 0 {
		return apperr.InvalidRequest(MsgNoViolations)
	}

	seen := make(map[string]struct{}, len(req.ExistingViolations))
	for _, in := range req.ExistingViolations {
		if _, dup := seen[in.ID]; dup {
			return apperr.InvalidRequest(MsgDuplicateViolation)
		}
		seen[in.ID] = struct{}{}
	}

	for _, in := range req.ExistingViolations {
		if !fieldsConsistent(in) {
			return apperr.InvalidRequest(MsgViolationFieldsMismatch)
		}
	}
	for _, in := range req.NewViolations {
		if !fieldsConsistent(in) {
			return apperr.InvalidRequest(MsgViolationFieldsMismatch)
		}
	}

	if len(req.NewViolations) > 0 && !current.IsVerificationInspection {
		return apperr.InvalidRequest(MsgNewViolationsNotAllowed)
	}
	return nil
}

// fieldsConsistent: OPEN carries a comply-by date and no disposition, CLOSED_*
// carries a disposition and no comply-by date, VERIFICATION_PENDING neither.
func fieldsConsistent(in violation.Input) bool {
	hasDisposition := in.DispositionID != nil && *in.DispositionID != ""
	hasComplyBy := in.ComplyByDate != nil
	switch in.Status {
	case violation.StatusOpen:
		return !hasDisposition && hasComplyBy
	case violation.StatusVerificationPending:
		return !hasDisposition && !hasComplyBy
	case violation.StatusClosedInvalid, violation.StatusClosedMetCompliance:
		return hasDisposition && !hasComplyBy
	default:
		return false
	}
}

// validateDispositions resolves every referenced disposition and checks it
// fits the closing status it is paired with.
func validateDispositions(ctx context.Context, catalog DispositionCatalog, agencyID string, inputs []violation.Input) (map[string]disposition.Disposition, error) {
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in.DispositionID != nil {
			ids = append(ids, *in.DispositionID)
		}
	}

	list, err := catalog.GetByIDs(ctx, agencyID, ids)
	if err != nil {
		return nil, err
	}
	byID := disposition.ByID(list)

	for _, in := range inputs {
		if in.DispositionID == nil {
			continue
		}
		d, ok := byID[*in.DispositionID]
		if !ok {
			return nil, apperr.InvalidRequest("Some or all dispositions are either inactive or invalid")
		}
		if !d.AllowsStatus(in.Status) {
			return nil, apperr.InvalidRequest(MsgStatusDispositionMismatch)
		}
	}
	return byID, nil
}

func validateNotice(req *notice.Request, now time.Time, loc *time.Location) error {
	if req == nil {
		return nil
	}
	if inspection.IsPastDay(req.IssuedAt, now, loc) {
		return apperr.InvalidRequest(MsgNoticeIssuedInPast)
	}
	return nil
}

// validateClosure ties the follow-up artifacts to whether work remains open.
func validateClosure(req PerformInspectionRequest, allClosed bool) error {
	if allClosed {
		if req.ScheduledInspection != nil || req.Notice != nil {
			return apperr.InvalidRequest(MsgAllClosed)
		}
		return nil
	}
	if req.ScheduledInspection == nil {
		return apperr.InvalidRequest(MsgSomeOpen)
	}
	return nil
}

// closedForcedNow reports whether after holds a violation that this call moved
// into CLOSED_MET_COMPLIANCE under a forced disposition.
func closedForcedNow(before, after []violation.Violation, dispositions map[string]disposition.Disposition) bool {
	prior := make(map[string]violation.Status, len(before))
	for _, v := range before {
		prior[v.ID] = v.Status
	}
	for _, v := range after {
		if v.Status != violation.StatusClosedMetCompliance || v.DispositionID == nil {
			continue
		}
		if prior[v.ID] == violation.StatusClosedMetCompliance {
			continue
		}
		if d, ok := dispositions[*v.DispositionID]; ok && d.IsForced() {
			return true
		}
	}
	return false
}
