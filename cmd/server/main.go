package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/clock"
	"github.com/btick/btick/internal/config"
	"github.com/btick/btick/internal/database"
	"github.com/btick/btick/internal/handler"
	"github.com/btick/btick/internal/queue"
	"github.com/btick/btick/internal/repository"
	"github.com/btick/btick/internal/router"
	"github.com/btick/btick/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(database.Config{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpen,
		MaxIdleConns:    cfg.DBMaxIdle,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and availability cache disabled")
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	members := repository.NewMembershipRepo(db)
	orgs := repository.NewOrganizationRepo(db)
	venues := repository.NewVenueRepo(db)
	categories := repository.NewCategoryRepo(db)
	events := repository.NewEventRepo(db)
	tiers := repository.NewTicketTierRepo(db)
	bookings := repository.NewBookingRepo(db)

	// Services.
	clk := clock.NewSystem()
	pub := queue.NewPublisher(cfg.RabbitURL)
	bookingSvc := service.NewBookingService(bookings, tiers, events, pub, clk, cfg.HoldTTL)
	eventSvc := service.NewEventService(events, venues, categories, tiers, bookings, bookingSvc, pub, clk)
	tierSvc := service.NewTierService(tiers, events)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reaper := service.NewExpiryReaper(bookingSvc, cfg.ReaperInterval, cfg.ReaperBatch)
	go reaper.Run(ctx)

	go func() {
		if err := queue.StartAuditConsumer(cfg.RabbitURL); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Cfg:        cfg,
		Redis:      rdb,
		Members:    members,
		Auth:       handler.NewAuthHandler(cfg, users, tokens),
		Orgs:       handler.NewOrganizationHandler(orgs, members),
		Venues:     handler.NewVenueHandler(venues),
		Categories: handler.NewCategoryHandler(categories),
		Events:     handler.NewEventHandler(eventSvc),
		Tiers:      handler.NewTierHandler(tierSvc),
		Bookings:   handler.NewBookingHandler(bookingSvc),
	})

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
