// Package audit reads and writes the per-group activity log.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMissingType = errors.New("audit entry needs a type")

type Entry struct {
	GroupID int64
	UserID  *int64
	Type    string
	Message string
}

// Record is a stored group_log row.
type Record struct {
	ID      int64     `json:"id" db:"id"`
	UserID  *int64    `json:"user_id" db:"usr"`
	Logged  time.Time `json:"logged" db:"logged"`
	Type    string    `json:"type" db:"type"`
	Message string    `json:"message" db:"message"`
}

// Write records an audit entry; failures are returned so callers can ignore if needed.
func Write(ctx context.Context, db *pgxpool.Pool, e Entry) error {
	if strings.TrimSpace(e.Type) == "" {
		return ErrMissingType
	}
	if db == nil {
		return nil
	}

	_, err := db.Exec(ctx, `
INSERT INTO group_log (grp, usr, type, message)
VALUES ($1, $2, $3, $4)
`, e.GroupID, e.UserID, e.Type, e.Message)

	return err
}

// List returns the log of a group, newest first. It does not check
// permissions.
func List(ctx context.Context, db *pgxpool.Pool, groupID int64) ([]Record, error) {
	if db == nil {
		return []Record{}, nil
	}

	rows, err := db.Query(ctx, `
SELECT id, usr, logged, type, message
FROM group_log
WHERE grp = $1
ORDER BY logged DESC, id DESC
`, groupID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Record])
}
