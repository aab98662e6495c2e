package casefile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"caseflow/apperr"
	"caseflow/history"
	"caseflow/user"
)

const msgCaseAssigneeMissing = "Case assignee does not exist."

// SummaryWriter records case-level audit events.
type SummaryWriter interface {
	CreateCaseSummaryHistory(ctx context.Context, tx pgx.Tx, action history.Action, agencyID, userID, caseID string, details map[string]any) error
}

// Assigner changes the inspector responsible for a case.
type Assigner struct {
	repo    Repository
	users   user.Directory
	history SummaryWriter
}

func NewAssigner(repo Repository, users user.Directory, hist SummaryWriter) *Assigner {
	if repo == nil {
		repo = NewRepository()
	}
	if users == nil {
		users = user.NewDirectory()
	}
	if hist == nil {
		hist = history.NewRecorder()
	}
	return &Assigner{repo: repo, users: users, history: hist}
}

// EditCaseAssignee reassigns the case inside tx and records the change.
func (a *Assigner) EditCaseAssignee(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID string, req AssigneeRequest) (Case, error) {
	if _, err := a.users.GetByID(ctx, tx, agencyID, req.AssigneeID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Case{}, apperr.InvalidRequest(msgCaseAssigneeMissing)
		}
		return Case{}, apperr.Internal(err)
	}

	before, err := a.repo.GetForUpdate(ctx, tx, agencyID, caseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Case{}, apperr.MissingEntity("Case not found")
		}
		return Case{}, apperr.Internal(err)
	}

	updated, err := a.repo.UpdateAssignee(ctx, tx, caseID, req.AssigneeID)
	if err != nil {
		return Case{}, apperr.FromPersistence(err)
	}

	details := map[string]any{"assignee_id": req.AssigneeID}
	if before.AssigneeID != nil {
		details["previous_assignee_id"] = *before.AssigneeID
	}
	if err := a.history.CreateCaseSummaryHistory(ctx, tx, history.ActionAssigneeChanged, agencyID, userID, caseID, details); err != nil {
		return Case{}, apperr.Internal(err)
	}
	return updated, nil
}
