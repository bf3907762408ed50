package transactions

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/weblate/abrechnung/internal/auth"
	"github.com/weblate/abrechnung/internal/pgerr"
)

type Handler struct {
	Reads GroupReadService
	Txns  TransactionService
}

func NewHandler(reads GroupReadService, txns TransactionService) *Handler {
	return &Handler{Reads: reads, Txns: txns}
}

// Register mounts the transaction routes on r. Ids must be decimal
// integers; anything else does not match a route.
func (h *Handler) Register(r fiber.Router) {
	const (
		list = "/groups/:group_id<int>/transactions"
		one  = list + "/:transaction_id<int>"
	)
	r.Get(list, h.List)
	r.Post(list, h.Create)
	r.Get(one, h.Get)
	r.Post(one+"/commit", h.Commit)

	for _, kind := range []ShareKind{Creditor, Debitor} {
		shares := one + "/" + string(kind) + "_shares"
		r.Post(shares, h.AddOrChangeShare(kind))
		r.Post(shares+"/switch", h.SwitchShare(kind))
		r.Delete(shares, h.DeleteShare(kind))
	}
}

func (h *Handler) List(c *fiber.Ctx) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	groupID, err := pathID(c, "group_id")
	if err != nil {
		return err
	}

	items, err := h.Reads.ListTransactions(userContext(c), userID, groupID)
	if err != nil {
		return pgerr.HTTP(err)
	}
	if items == nil {
		items = []Transaction{}
	}
	return c.JSON(items)
}

func (h *Handler) Create(c *fiber.Ctx) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	groupID, err := pathID(c, "group_id")
	if err != nil {
		return err
	}
	body, err := parseBody(c, createSchema)
	if err != nil {
		return err
	}

	id, err := h.Txns.CreateTransaction(userContext(c), userID, groupID, NewTransaction{
		Description:            body.Text("description"),
		Type:                   body.Text("type"),
		Value:                  body.Number("value"),
		CurrencySymbol:         body.Text("currency_symbol"),
		CurrencyConversionRate: body.Number("currency_conversion_rate"),
	})
	if err != nil {
		return pgerr.HTTP(err)
	}

	return c.JSON(fiber.Map{"transaction_id": strconv.FormatInt(id, 10)})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	userID, groupID, transactionID, err := transactionPath(c)
	if err != nil {
		return err
	}

	t, err := h.Reads.GetTransaction(userContext(c), userID, groupID, transactionID)
	if err != nil {
		return pgerr.HTTP(err)
	}
	return c.JSON(t)
}

func (h *Handler) Commit(c *fiber.Ctx) error {
	userID, groupID, transactionID, err := transactionPath(c)
	if err != nil {
		return err
	}

	if err := h.Txns.CommitTransaction(userContext(c), userID, groupID, transactionID); err != nil {
		return pgerr.HTTP(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) AddOrChangeShare(kind ShareKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, groupID, transactionID, err := transactionPath(c)
		if err != nil {
			return err
		}
		body, err := parseBody(c, shareSchema)
		if err != nil {
			return err
		}

		err = h.Txns.AddOrChangeShare(userContext(c), userID, groupID, transactionID,
			kind, body.ID("account_id"), body.Number("value"))
		if err != nil {
			return pgerr.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (h *Handler) SwitchShare(kind ShareKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, groupID, transactionID, err := transactionPath(c)
		if err != nil {
			return err
		}
		body, err := parseBody(c, shareSchema)
		if err != nil {
			return err
		}

		err = h.Txns.SwitchShare(userContext(c), userID, groupID, transactionID,
			kind, body.ID("account_id"), body.Number("value"))
		if err != nil {
			return pgerr.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (h *Handler) DeleteShare(kind ShareKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, groupID, transactionID, err := transactionPath(c)
		if err != nil {
			return err
		}
		body, err := parseBody(c, deleteShareSchema)
		if err != nil {
			return err
		}

		err = h.Txns.DeleteShare(userContext(c), userID, groupID, transactionID, kind, body.ID("account_id"))
		if err != nil {
			return pgerr.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func parseBody(c *fiber.Ctx, schema Schema) (Body, error) {
	var raw map[string]any
	if err := c.BodyParser(&raw); err != nil {
		return Body{}, fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	body, err := schema.Validate(raw)
	if err != nil {
		return Body{}, fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	return body, nil
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func transactionPath(c *fiber.Ctx) (userID, groupID, transactionID int64, err error) {
	if userID, err = auth.RequireUser(c); err != nil {
		return
	}
	if groupID, err = pathID(c, "group_id"); err != nil {
		return
	}
	transactionID, err = pathID(c, "transaction_id")
	return
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
