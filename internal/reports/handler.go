// Package reports renders statements of a group's committed transactions.
package reports

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weblate/abrechnung/internal/auth"
	"github.com/weblate/abrechnung/internal/groups"
	"github.com/weblate/abrechnung/internal/pgerr"
	"github.com/weblate/abrechnung/internal/transactions"
)

type GroupSource interface {
	GetGroup(ctx context.Context, userID, groupID int64) (groups.Group, error)
}

type Handler struct {
	Groups GroupSource
	Txns   transactions.GroupReadService
	// Pool receives the download log entries; nil skips them.
	Pool *pgxpool.Pool
	Now  func() time.Time
}

func NewHandler(g GroupSource, txns transactions.GroupReadService, pool *pgxpool.Pool) *Handler {
	return &Handler{Groups: g, Txns: txns, Pool: pool, Now: time.Now}
}

func (h *Handler) Register(r fiber.Router) {
	const base = "/groups/:group_id<int>/transactions/statement"
	r.Get(base, h.Statement)
	r.Get(base+".pdf", h.StatementPDF)
}

func (h *Handler) load(c *fiber.Ctx) (int64, Statement, error) {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return 0, Statement{}, err
	}
	groupID, err := strconv.ParseInt(c.Params("group_id"), 10, 64)
	if err != nil || groupID <= 0 {
		return 0, Statement{}, fiber.NewError(fiber.StatusBadRequest, "invalid group_id")
	}

	ctx := c.UserContext()
	g, err := h.Groups.GetGroup(ctx, userID, groupID)
	if err != nil {
		return 0, Statement{}, pgerr.HTTP(err)
	}
	txs, err := h.Txns.ListTransactions(ctx, userID, groupID)
	if err != nil {
		return 0, Statement{}, pgerr.HTTP(err)
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	s, err := Build(g, txs, now())
	if err != nil {
		return 0, Statement{}, fiber.NewError(fiber.StatusInternalServerError, "failed statement: "+err.Error())
	}
	return userID, s, nil
}
