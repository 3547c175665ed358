package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/config"
	"github.com/Nairasmine/backend/internal/database"
	"github.com/Nairasmine/backend/internal/handler"
	"github.com/Nairasmine/backend/internal/middleware"
	"github.com/Nairasmine/backend/internal/queue"
	"github.com/Nairasmine/backend/internal/repository"
	"github.com/Nairasmine/backend/internal/router"
	"github.com/Nairasmine/backend/internal/service"
	"github.com/Nairasmine/backend/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env always wins
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.InitSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema: %v", err)
	}
	cancel()

	// Redis is optional: a nil client disables rate limiting and the
	// response cache, nothing else.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	pdfs := repository.NewPDFRepo(db)
	purchases := repository.NewPurchaseRepo(db)
	downloads := repository.NewDownloadRepo(db)
	earnings := repository.NewEarningsRepo(db)
	withdrawals := repository.NewWithdrawalRepo(db)
	bookmarks := repository.NewBookmarkRepo(db)
	comments := repository.NewCommentRepo(db)
	rankings := repository.NewRankingRepo(db)

	codec := utils.NewBlobCodec(cfg.EncryptionKey)

	// The publisher dials lazily on first publish, so an unreachable
	// broker costs events, never requests or startup.
	events := queue.NewPublisher(cfg.RabbitURL)
	defer func() { _ = events.Close() }()

	payments := service.NewPaymentService(users, pdfs, purchases, events)

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterCatalog(e,
		handler.NewPDFHandler(pdfs, users, downloads, payments, codec),
		handler.NewBookmarkHandler(bookmarks, pdfs),
		handler.NewCommentHandler(comments, pdfs),
		handler.NewRankingHandler(rankings),
		cfg.JWTSecret)
	router.RegisterPayments(e,
		handler.NewPaymentHandler(payments, purchases, users),
		handler.NewMonetizationHandler(earnings, withdrawals, users),
		cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewWithdrawalHandler(withdrawals), cfg.JWTSecret)

	// Background consumer appends completed-purchase events to
	// logs/purchases.log; it reconnects on broker failure.
	go func() {
		if err := queue.StartPurchaseConsumer(cfg.RabbitURL); err != nil {
			log.Printf("purchase-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
