package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/weblate/abrechnung/internal/pgerr"
)

// UserStore is what the handlers need from Store.
type UserStore interface {
	Register(ctx context.Context, email, username, password string) (int64, error)
	Authenticate(ctx context.Context, email, password string) (User, error)
	Get(ctx context.Context, id int64) (User, error)
}

type Handler struct {
	Users  UserStore
	Tokens *Tokens
}

func NewHandler(users UserStore, tokens *Tokens) *Handler {
	return &Handler{Users: users, Tokens: tokens}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var body registerRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	body.Email = strings.TrimSpace(body.Email)
	body.Username = strings.TrimSpace(body.Username)
	if body.Email == "" || body.Username == "" || body.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email, username and password required")
	}

	userID, err := h.Users.Register(userContext(c), body.Email, body.Username, body.Password)
	if err != nil {
		return pgerr.HTTP(err)
	}

	return h.respond(c.Status(fiber.StatusCreated), userID)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var body loginRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	u, err := h.Users.Authenticate(userContext(c), strings.TrimSpace(body.Email), body.Password)
	if err != nil {
		if errors.Is(pgerr.Translate(err), pgerr.ErrUnauthenticated) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return pgerr.HTTP(err)
	}

	return h.respond(c, u.ID)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	userID, err := RequireUser(c)
	if err != nil {
		return err
	}

	u, err := h.Users.Get(userContext(c), userID)
	if err != nil {
		return pgerr.HTTP(err)
	}
	return c.JSON(u)
}

func (h *Handler) respond(c *fiber.Ctx, userID int64) error {
	token, err := h.Tokens.Issue(userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create token")
	}
	return c.JSON(authResponse{UserID: userID, Token: token})
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
