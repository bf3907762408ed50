package groups

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/weblate/abrechnung/internal/auth"
	"github.com/weblate/abrechnung/internal/pgerr"
)

const defaultCurrency = "€"

type Handler struct {
	Store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) Register(r fiber.Router) {
	const one = "/groups/:group_id<int>"
	r.Get("/groups", h.List)
	r.Post("/groups", h.Create)
	r.Get(one, h.Get)
	r.Post(one, h.Update)
	r.Post(one+"/members", h.AddMember)
	r.Get(one+"/accounts", h.ListAccounts)
	r.Post(one+"/accounts", h.CreateAccount)
	r.Get(one+"/log", h.Log)
}

func (h *Handler) List(c *fiber.Ctx) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}

	out, err := h.Store.ListGroups(userContext(c), userID)
	if err != nil {
		return pgerr.HTTP(err)
	}
	if out == nil {
		out = []Group{}
	}
	return c.JSON(out)
}

func (h *Handler) Create(c *fiber.Ctx) error {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	in, err := parseGroup(c)
	if err != nil {
		return err
	}

	id, err := h.Store.CreateGroup(userContext(c), userID, in)
	if err != nil {
		return pgerr.HTTP(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"group_id": id})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	userID, groupID, err := groupPath(c)
	if err != nil {
		return err
	}

	g, err := h.Store.GetGroup(userContext(c), userID, groupID)
	if err != nil {
		return pgerr.HTTP(err)
	}
	return c.JSON(g)
}

// Update is owner only; the database refuses everyone else.
func (h *Handler) Update(c *fiber.Ctx) error {
	userID, groupID, err := groupPath(c)
	if err != nil {
		return err
	}
	in, err := parseGroup(c)
	if err != nil {
		return err
	}

	if err := h.Store.UpdateGroup(userContext(c), userID, groupID, in); err != nil {
		return pgerr.HTTP(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) AddMember(c *fiber.Ctx) error {
	userID, groupID, err := groupPath(c)
	if err != nil {
		return err
	}

	var in MemberInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if in.UserID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "user_id required")
	}

	if err := h.Store.AddMember(userContext(c), userID, groupID, in); err != nil {
		return pgerr.HTTP(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ListAccounts(c *fiber.Ctx) error {
	userID, groupID, err := groupPath(c)
	if err != nil {
		return err
	}

	out, err := h.Store.ListAccounts(userContext(c), userID, groupID)
	if err != nil {
		return pgerr.HTTP(err)
	}
	if out == nil {
		out = []Account{}
	}
	return c.JSON(out)
}

func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	userID, groupID, err := groupPath(c)
	if err != nil {
		return err
	}

	var in AccountInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name required")
	}

	id, err := h.Store.CreateAccount(userContext(c), userID, groupID, in)
	if err != nil {
		return pgerr.HTTP(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"account_id": id.String()})
}

func (h *Handler) Log(c *fiber.Ctx) error {
	userID, groupID, err := groupPath(c)
	if err != nil {
		return err
	}

	records, err := h.Store.Log(userContext(c), userID, groupID)
	if err != nil {
		return pgerr.HTTP(err)
	}
	return c.JSON(records)
}

func parseGroup(c *fiber.Ctx) (GroupInput, error) {
	var in GroupInput
	if err := c.BodyParser(&in); err != nil {
		return in, fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, fiber.NewError(fiber.StatusBadRequest, "name required")
	}
	if strings.TrimSpace(in.CurrencySymbol) == "" {
		in.CurrencySymbol = defaultCurrency
	}
	return in, nil
}

func groupPath(c *fiber.Ctx) (int64, int64, error) {
	userID, err := auth.RequireUser(c)
	if err != nil {
		return 0, 0, err
	}
	groupID, err := strconv.ParseInt(c.Params("group_id"), 10, 64)
	if err != nil || groupID <= 0 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "invalid group_id")
	}
	return userID, groupID, nil
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
