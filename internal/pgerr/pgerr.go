// Package pgerr turns errors raised by the database functions into
// sentinel errors and HTTP errors.
//
// Functions raise exceptions with messages of the form
// "<error-id>: <human text>"; the id decides the sentinel.
package pgerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalid          = errors.New("invalid request")
)

var raiseKinds = map[string]error{
	"no-group-permission":    ErrPermissionDenied,
	"not-authenticated":      ErrUnauthenticated,
	"bad-login":              ErrUnauthenticated,
	"transaction-not-found":  ErrNotFound,
	"share-not-found":        ErrNotFound,
	"user-exists":            ErrConflict,
	"already-member":         ErrConflict,
	"transaction-committed":  ErrConflict,
	"incomplete-transaction": ErrInvalid,
	"password-too-short":     ErrInvalid,
}

// RaiseError is an exception raised by a database function.
type RaiseError struct {
	ID     string
	Detail string
}

func (e *RaiseError) Error() string {
	return e.ID + ": " + e.Detail
}

// Unwrap returns the sentinel for the error id; unknown ids are ErrInvalid.
func (e *RaiseError) Unwrap() error {
	if kind, ok := raiseKinds[e.ID]; ok {
		return kind
	}
	return ErrInvalid
}

// Translate maps a store error onto the sentinels above. Errors it does
// not know are returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "P0001":
		return parseRaise(pgErr.Message)
	case "23514", "23503", "23502", "22P02", "22003":
		// check, foreign key and not-null violations, bad text representation, numeric overflow
		return fmt.Errorf("%w: %s", ErrInvalid, pgErr.Message)
	case "23505":
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	}
	return err
}

func parseRaise(message string) error {
	id, detail, ok := strings.Cut(message, ":")
	if !ok {
		return &RaiseError{Detail: message}
	}
	return &RaiseError{ID: strings.TrimSpace(id), Detail: strings.TrimSpace(detail)}
}

// RaiseID returns the error id of a database exception, or "".
func RaiseID(err error) string {
	var raise *RaiseError
	if errors.As(Translate(err), &raise) {
		return raise.ID
	}
	return ""
}

// HTTP converts err into a *fiber.Error for the app's error handler.
func HTTP(err error) error {
	err = Translate(err)

	var fiberErr *fiber.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fiberErr):
		return fiberErr
	case errors.Is(err, ErrPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, "permission denied")
	case errors.Is(err, ErrUnauthenticated):
		return fiber.NewError(fiber.StatusUnauthorized, message(err))
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, message(err))
	case errors.Is(err, ErrConflict):
		return fiber.NewError(fiber.StatusConflict, message(err))
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, message(err))
	}
	return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
}

// ErrorHandler renders every error as {"error": "<message>"}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(HTTP(err), &fiberErr) {
		code = fiberErr.Code
		msg = fiberErr.Message
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func message(err error) string {
	var raise *RaiseError
	if errors.As(err, &raise) && raise.ID != "" {
		return raise.ID
	}
	return err.Error()
}
