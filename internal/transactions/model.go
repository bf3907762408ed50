package transactions

import (
	"context"

	"github.com/google/uuid"
)

// Transaction is a purchase or transfer inside a group, with the accounts
// that paid for it (creditors) and the accounts it was for (debitors).
type Transaction struct {
	ID                     int64   `json:"id"`
	GroupID                int64   `json:"group_id"`
	Type                   string  `json:"type"` // "purchase" | "transfer"
	Description            string  `json:"description"`
	Value                  float64 `json:"value"`
	CurrencySymbol         string  `json:"currency_symbol"`
	CurrencyConversionRate float64 `json:"currency_conversion_rate"`
	Committed              bool    `json:"committed"`

	// account id -> share value
	CreditorShares map[string]float64 `json:"creditor_shares"`
	DebitorShares  map[string]float64 `json:"debitor_shares"`
}

// NewTransaction is the input of CreateTransaction.
type NewTransaction struct {
	Description            string
	Type                   string
	Value                  float64
	CurrencySymbol         string
	CurrencyConversionRate float64
}

// ShareKind selects the creditor or the debitor side of a transaction.
type ShareKind string

const (
	Creditor ShareKind = "creditor"
	Debitor  ShareKind = "debitor"
)

// GroupReadService answers read queries about a group.
type GroupReadService interface {
	ListTransactions(ctx context.Context, userID, groupID int64) ([]Transaction, error)
	GetTransaction(ctx context.Context, userID, groupID, transactionID int64) (Transaction, error)
}

// TransactionService changes transactions. Implementations return errors
// wrapping pgerr.ErrPermissionDenied when the user may not write to the
// group and pgerr.ErrNotFound when the transaction is not in the group.
type TransactionService interface {
	CreateTransaction(ctx context.Context, userID, groupID int64, in NewTransaction) (int64, error)
	CommitTransaction(ctx context.Context, userID, groupID, transactionID int64) error
	AddOrChangeShare(ctx context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID, value float64) error
	SwitchShare(ctx context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID, value float64) error
	DeleteShare(ctx context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID) error
}
