package dbtest

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	bold   = "\x1b[1m"
	red    = "\x1b[31;1m"
	normal = "\x1b[m"
)

// ErrPrepareFailed is returned by Run when the preparatory action fails.
var ErrPrepareFailed = errors.New("prepare action failed")

// TestError is a detected mismatch between actual and expected state.
// Any TestError ends the run.
type TestError struct {
	Type    string // fetch, expect, expect_random, notification, callback, connection
	Message string
}

func (e *TestError) Error() string {
	return fmt.Sprintf("test error (%s): %s", e.Type, e.Message)
}

// IsTestError reports whether err is, or wraps, a *TestError.
func IsTestError(err error) bool {
	var te *TestError
	return errors.As(err, &te)
}

// ErrorKind classifies store errors for FetchExpectError.
type ErrorKind int

const (
	AnyError ErrorKind = iota
	RaiseError
	UniqueViolation
	ForeignKeyViolation
	CheckViolation
	NotNullViolation
	InsufficientPrivilege
	UndefinedFunction
	OtherError
)

var kindNames = map[ErrorKind]string{
	AnyError:              "any error",
	RaiseError:            "raise exception",
	UniqueViolation:       "unique violation",
	ForeignKeyViolation:   "foreign key violation",
	CheckViolation:        "check violation",
	NotNullViolation:      "not null violation",
	InsufficientPrivilege: "insufficient privilege",
	UndefinedFunction:     "undefined function",
	OtherError:            "other error",
}

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
var kindCodes = map[string]ErrorKind{
	"P0001": RaiseError,
	"23505": UniqueViolation,
	"23503": ForeignKeyViolation,
	"23514": CheckViolation,
	"23502": NotNullViolation,
	"42501": InsufficientPrivilege,
	"42883": UndefinedFunction,
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// KindOf classifies err. Errors that did not come from the server are
// OtherError.
func KindOf(err error) ErrorKind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return OtherError
	}
	if kind, ok := kindCodes[pgErr.Code]; ok {
		return kind
	}
	return OtherError
}

func (k ErrorKind) matches(err error) bool {
	return k == AnyError || KindOf(err) == k
}

// describe renders an error as its kind plus the SQLSTATE where there is one.
func describe(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Sprintf("%s (%s)", KindOf(err), pgErr.Code)
	}
	return fmt.Sprintf("%s (%T)", KindOf(err), err)
}

// serverMessage is the message the server raised, without severity or code.
func serverMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	return err.Error()
}
