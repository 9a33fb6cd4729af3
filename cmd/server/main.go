package main // Entry point package

import (
	"context"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/contacts-api/internal/config"
	"github.com/iliyamo/contacts-api/internal/database"
	"github.com/iliyamo/contacts-api/internal/handler"
	"github.com/iliyamo/contacts-api/internal/queue"
	"github.com/iliyamo/contacts-api/internal/reaper"
	"github.com/iliyamo/contacts-api/internal/repository"
	"github.com/iliyamo/contacts-api/internal/router"
	"github.com/iliyamo/contacts-api/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// The denylist shares state across instances, so the server refuses to
	// start without Redis: a logged-out token must never come back alive.
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer rdb.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	contacts := repository.NewContactRepo(db)
	denylist := repository.NewDenylistRepo(rdb)

	auth := service.NewAuthService(service.AuthConfig{
		JWTSecret:         cfg.JWTSecret,
		AccessTTLMin:      cfg.AccessTTLMin,
		RefreshTTLDays:    cfg.RefreshTTLDays,
		EmailTokenTTLDays: cfg.EmailTokenTTLDays,
		BcryptCost:        cfg.BcryptCost,
		RotateRevokesOld:  cfg.RotateRevokesOld,
	}, users, tokens, denylist, nil)

	e := echo.New()
	router.RegisterRoutes(e, handler.NewHealthHandler(db))
	router.RegisterAuth(e, handler.NewAuthHandler(auth))
	router.RegisterUsers(e, handler.NewUserHandler(auth), auth, rdb)
	router.RegisterContacts(e, handler.NewContactHandler(contacts), auth)

	// Background sweep for dead refresh-token rows.  It talks only to the
	// database and is stopped alongside the HTTP server.
	sweep := reaper.New(tokens,
		time.Duration(cfg.ReaperIntervalHrs)*time.Hour,
		time.Duration(cfg.RevokedGraceDays)*24*time.Hour)
	if err := sweep.Start(); err != nil {
		log.Fatalf("start reaper: %v", err)
	}

	// The email consumer keeps its own reconnect loop and never returns in
	// normal operation.
	go func() {
		if err := queue.StartConfirmationConsumer(); err != nil {
			log.Printf("email consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Wait for termination signal, then stop the scheduler and drain the server.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down gracefully...")

	sweep.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
