package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/weblate/abrechnung/internal/auth"
	"github.com/weblate/abrechnung/internal/groups"
	"github.com/weblate/abrechnung/internal/reports"
	"github.com/weblate/abrechnung/internal/transactions"
)

type Router struct {
	AuthHandler         *auth.Handler
	GroupsHandler       *groups.Handler
	TransactionsHandler *transactions.Handler
	ReportsHandler      *reports.Handler

	AuthMW fiber.Handler
	// optional limiters
	AuthLimit  fiber.Handler
	WriteLimit fiber.Handler
}

// RegisterRoutes mounts the public routes first and everything else behind
// AuthMW. Without AuthMW the group routes are not mounted at all.
func (r *Router) RegisterRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	if r.AuthHandler != nil {
		limit := passthrough(r.AuthLimit)
		app.Post("/auth/register", limit, r.AuthHandler.Register)
		app.Post("/auth/login", limit, r.AuthHandler.Login)
	}

	if r.AuthMW == nil {
		return
	}

	if r.AuthHandler != nil {
		app.Get("/me", r.AuthMW, r.AuthHandler.Me)
	}

	// handlers register absolute paths below /groups
	app.Use("/groups", r.AuthMW, passthrough(r.WriteLimit))

	if r.GroupsHandler != nil {
		r.GroupsHandler.Register(app)
	}
	if r.ReportsHandler != nil {
		r.ReportsHandler.Register(app)
	}
	if r.TransactionsHandler != nil {
		r.TransactionsHandler.Register(app)
	}
}

func passthrough(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}
