// Package apperr defines the error kinds surfaced by the case workflow and the
// translation of persistence failures into those kinds.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an Error for callers deciding how to surface it.
type Kind int

const (
	// KindInvalidRequest is a caller-correctable precondition violation.
	KindInvalidRequest Kind = iota + 1
	// KindDBConflict is a concurrent or referential conflict; resubmitting may succeed.
	KindDBConflict
	// KindDBMissingEntity means a referenced row does not exist.
	KindDBMissingEntity
	// KindInternal is an opaque failure. Only a generic message is exposed.
	KindInternal
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	internalMessage = "Internal server error"
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "InvalidRequestError"
	case KindDBConflict:
		return "DBConflictError"
	case KindDBMissingEntity:
		return "DBMissingEntityError"
	case KindInternal:
		return "InternalServerError"
	default:
		return "UnknownError"
	}
}

// Error carries a Kind, a caller-facing message and the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind with an empty or equal message,
// so callers can write errors.Is(err, apperr.ErrInvalidRequest).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrInvalidRequest  = &Error{Kind: KindInvalidRequest}
	ErrDBConflict      = &Error{Kind: KindDBConflict}
	ErrDBMissingEntity = &Error{Kind: KindDBMissingEntity}
	ErrInternal        = &Error{Kind: KindInternal}
)

func InvalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg}
}

func InvalidRequestf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func Conflict(msg string, cause error) *Error {
	return &Error{Kind: KindDBConflict, Message: msg, Err: cause}
}

func MissingEntity(msg string) *Error {
	return &Error{Kind: KindDBMissingEntity, Message: msg}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: internalMessage, Err: cause}
}

// KindOf reports the Kind of err, or zero when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// PublicMessage is the message safe to show outside the process.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return internalMessage
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// FromPersistence translates a failure raised inside a transaction. Errors
// already classified pass through unchanged; unique and foreign-key violations
// become DBConflictError, missing rows DBMissingEntityError, and anything else
// InternalServerError.
func FromPersistence(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return Conflict("Unique constraint violated", err)
		case pgForeignKeyViolation:
			return Conflict("Foreign key constraint violated", err)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: KindDBMissingEntity, Message: "Entity not found", Err: err}
	}
	return Internal(err)
}

// IsForeignKeyViolation reports whether err wraps a Postgres FK violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
