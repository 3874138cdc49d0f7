package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"menu-telegram/bot"
	"menu-telegram/config"
	"menu-telegram/db"
	"menu-telegram/devserver"
	"menu-telegram/logger"
	"menu-telegram/menuapi"
	"menu-telegram/models"
	"menu-telegram/qr"
	"menu-telegram/services"
	"menu-telegram/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := "bot"
	var args []string
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	switch cmd {
	case "bot":
		err = runBot(ctx, cfg, log)
	case "migrate":
		err = runMigrate(ctx, cfg)
	case "devserver":
		err = runDevServer(ctx, cfg, log)
	case "add-owner":
		err = runAddOwner(ctx, cfg, args)
	default:
		err = fmt.Errorf("unknown command %q (want bot, migrate, devserver or add-owner)", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, cmd+":", err)
		os.Exit(1)
	}
}

func runBot(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Telegram.Token == "" {
		return errors.New("TOKEN not set")
	}

	if cfg.DB.Enabled() {
		if err := db.Init(ctx, cfg.DB); err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer db.Close()

		// Optional auto-migration. Set AUTO_MIGRATE=1 (or "true") to enable.
		if v := strings.TrimSpace(os.Getenv("AUTO_MIGRATE")); v == "1" || strings.EqualFold(v, "true") {
			if err := applyMigrations(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
	}

	var auth bot.Authenticator = services.StaticAuth{Password: cfg.Telegram.Login, BusinessID: cfg.API.BusinessID}
	var activity bot.ActivityStore
	switch {
	case db.Enabled():
		auth = services.OwnerAuth{}
		activity = services.ActivityLog{}
	case cfg.Telegram.Login == "":
		return errors.New("LOGIN not set and no database configured")
	}

	client := menuapi.New(cfg.API.BaseURL, cfg.API.BusinessID,
		menuapi.WithTimeout(cfg.API.Timeout),
		menuapi.WithLogger(log),
	)
	renderer, err := qr.NewRenderer(&http.Client{Timeout: cfg.API.Timeout}, cfg.Share.CacheMB<<20, cfg.Share.CacheTTL)
	if err != nil {
		return fmt.Errorf("qr cache: %w", err)
	}
	defer renderer.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	b := bot.New(api, cfg, bot.Deps{
		Auth: auth,
		Menus: func(businessID string) workflow.MenuService {
			return client.ForBusiness(businessID)
		},
		Activity: activity,
		Renderer: renderer,
		Log:      log,
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	log.Info("bot started", "username", api.Self.UserName, "menu_api", cfg.API.BaseURL,
		"default_business", client.BusinessID(), "database", db.Enabled())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx, updates)
	})
	g.Go(func() error {
		<-gctx.Done()
		api.StopReceivingUpdates()
		return nil
	})
	return g.Wait()
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	if !cfg.DB.Enabled() {
		return errors.New("no database configured (set DATABASE_URL or DB_HOST)")
	}
	if err := db.Init(ctx, cfg.DB); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer db.Close()
	return applyMigrations(ctx)
}

// runDevServer serves an in-memory menu service for local development,
// seeded with one menu for the configured business.
func runDevServer(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	dev := devserver.New(log)
	dev.Seed(cfg.API.BusinessID, models.Menu{
		ID:          "sample",
		Name:        "Sample menu",
		Description: "Created by the development server",
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	})
	srv := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           dev,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("dev server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runAddOwner registers an owner account. Without -password a random one is
// generated and printed once.
func runAddOwner(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("add-owner", flag.ContinueOnError)
	business := fs.String("business", cfg.API.BusinessID, "business id the owner manages")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "login password (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *business == "" {
		return errors.New("-business is required")
	}
	if !cfg.DB.Enabled() {
		return errors.New("no database configured (set DATABASE_URL or DB_HOST)")
	}

	generated := *password == ""
	if generated {
		p, err := services.GenerateOwnerPassword(12)
		if err != nil {
			return fmt.Errorf("generate password: %w", err)
		}
		*password = p
	}
	hash, err := services.HashOwnerPassword(*password)
	if err != nil {
		return err
	}

	if err := db.Init(ctx, cfg.DB); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer db.Close()

	id, err := services.AddOwner(ctx, *business, *name, hash)
	if err != nil {
		return err
	}
	fmt.Printf("Owner %d added for business %s.\n", id, *business)
	if generated {
		fmt.Printf("Password: %s\n", *password)
	}
	return nil
}
