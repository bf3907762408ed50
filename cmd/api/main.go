package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weblate/abrechnung/internal/auth"
	"github.com/weblate/abrechnung/internal/config"
	"github.com/weblate/abrechnung/internal/groups"
	"github.com/weblate/abrechnung/internal/pgerr"
	"github.com/weblate/abrechnung/internal/reports"
	"github.com/weblate/abrechnung/internal/router"
	"github.com/weblate/abrechnung/internal/transactions"
)

func main() {
	cfg, err := config.Load(os.Getenv("ABRECHNUNG_CONFIG"))
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatalf("error creating pgx pool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("error pinging database: %v", err)
	}

	// limiter counters live in Redis when configured, in memory otherwise
	var limiterStorage fiber.Storage
	if cfg.Redis.Addr != "" {
		storage, err := router.NewRedisStorage(cfg.Redis.Addr)
		if err != nil {
			log.Fatalf("error connecting to redis: %v", err)
		}
		defer storage.Close()
		limiterStorage = storage
	}

	app := fiber.New(fiber.Config{ErrorHandler: pgerr.ErrorHandler})

	app.Use(router.CorsMiddleware(cfg.API.CorsOrigin))
	app.Use(router.RequestLogger(logger))

	tokens := auth.NewTokens([]byte(cfg.API.SecretKey), cfg.TokenTTL())
	txnRepo := transactions.NewRepo(pool)
	groupRepo := groups.NewRepo(pool)

	r := &router.Router{
		AuthHandler:         auth.NewHandler(auth.NewStore(pool), tokens),
		GroupsHandler:       groups.NewHandler(groupRepo),
		TransactionsHandler: transactions.NewHandler(txnRepo, txnRepo),
		ReportsHandler:      reports.NewHandler(groupRepo, txnRepo, pool),
		AuthMW:              tokens.Middleware(),
		AuthLimit:           router.RateLimitAuth(limiterStorage),
		WriteLimit:          router.RateLimitWrite(cfg.API.RateLimitMax, cfg.RateLimitWindow(), limiterStorage),
	}
	r.RegisterRoutes(app)

	log.Println("Listening on", cfg.ListenAddr())
	log.Fatal(app.Listen(cfg.ListenAddr()))
}
