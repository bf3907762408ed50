package groups

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/weblate/abrechnung/internal/audit"
)

// Group is a group as seen by one of its members.
type Group struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CurrencySymbol string    `json:"currency_symbol"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	IsOwner        bool      `json:"is_owner"`
	CanWrite       bool      `json:"can_write"`
}

type GroupInput struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	CurrencySymbol string `json:"currency_symbol"`
}

// Account is a party in a group that shares of transactions are booked on.
type Account struct {
	ID          uuid.UUID `json:"id"`
	GroupID     int64     `json:"group_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type AccountInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type MemberInput struct {
	UserID   int64 `json:"user_id"`
	CanWrite bool  `json:"can_write"`
}

// Store is everything the group routes need. Permission failures wrap
// pgerr.ErrPermissionDenied.
type Store interface {
	ListGroups(ctx context.Context, userID int64) ([]Group, error)
	GetGroup(ctx context.Context, userID, groupID int64) (Group, error)
	CreateGroup(ctx context.Context, userID int64, in GroupInput) (int64, error)
	UpdateGroup(ctx context.Context, userID, groupID int64, in GroupInput) error
	AddMember(ctx context.Context, userID, groupID int64, in MemberInput) error

	ListAccounts(ctx context.Context, userID, groupID int64) ([]Account, error)
	CreateAccount(ctx context.Context, userID, groupID int64, in AccountInput) (uuid.UUID, error)

	Log(ctx context.Context, userID, groupID int64) ([]audit.Record, error)
}
