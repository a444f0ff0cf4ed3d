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

	"hotspot/internal/auth"
	"hotspot/internal/config"
	"hotspot/internal/credential"
	"hotspot/internal/db"
	"hotspot/internal/ingest"
	"hotspot/internal/logging"
	"hotspot/internal/notify"
	"hotspot/internal/scheduler"
	"hotspot/internal/server"
	"hotspot/internal/source"
	"hotspot/internal/source/github"
	"hotspot/internal/source/openrouter"
	"hotspot/internal/source/twitter"
	"hotspot/internal/store"
)

func main() {
	var (
		configPath    string
		setCredential string
	)
	flag.StringVar(&configPath, "config", "hotspot.yaml", "path to config file")
	flag.StringVar(&setCredential, "set-credential", "", "store name=value in the OS keyring and exit")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, created, err := config.LoadOrInit(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if setCredential != "" {
		if err := storeCredential(cfg, setCredential); err != nil {
			log.Error("credential", slog.Any("err", err))
			os.Exit(1)
		}
		fmt.Println("credential stored")
		return
	}

	if created {
		log.Info("created default config", slog.String("path", configPath))
	} else if missing, err := config.MissingKeys(configPath); err == nil && len(missing) > 0 {
		log.Warn("config file is missing keys; defaults apply", slog.String("keys", strings.Join(missing, ", ")))
	}

	if cfg.Credentials.Keyring {
		creds, err := credential.Open(cfg.Credentials.KeyringDir)
		if err != nil {
			log.Error("open keyring", slog.Any("err", err))
			os.Exit(1)
		}
		filled, err := creds.Resolve(&cfg)
		if err != nil {
			log.Error("read keyring", slog.Any("err", err))
			os.Exit(1)
		}
		if len(filled) > 0 {
			log.Info("credentials loaded from keyring", slog.String("keys", strings.Join(filled, ", ")))
		}
	}

	if err := run(cfg, log); err != nil {
		log.Error("hotspot exited", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	st := store.New(database)
	defer st.Close()

	adapters := source.NewRegistry(
		openrouter.New(openrouter.Config{
			BaseURL: cfg.OpenRouter.BaseURL,
			APIKey:  cfg.OpenRouter.APIKey,
			Model:   cfg.OpenRouter.Model,
			Referer: cfg.OpenRouter.Referer,
			Title:   cfg.OpenRouter.Title,
			Timeout: seconds(cfg.OpenRouter.TimeoutSec),
		}, log),
		github.New(github.Config{
			BaseURL:  cfg.GitHub.BaseURL,
			Token:    cfg.GitHub.Token,
			MinStars: cfg.GitHub.MinStars,
			PerPage:  cfg.GitHub.PerPage,
			Timeout:  seconds(cfg.GitHub.TimeoutSec),
		}, log),
		twitter.New(twitter.Config{
			BaseURL:     cfg.Twitter.BaseURL,
			BearerToken: cfg.Twitter.BearerToken,
			MaxResults:  cfg.Twitter.MaxResults,
			Timeout:     seconds(cfg.Twitter.TimeoutSec),
		}, log),
	)

	var notifier ingest.Notifier
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.Telegram.BotToken,
			ChatID: cfg.Telegram.ChatID,
		}, log)
		if err != nil {
			log.Warn("[Telegram] disabled", slog.Any("err", err))
		} else {
			notifier = tg
		}
	}

	ingester := ingest.New(st, adapters, ingest.Options{
		DedupWindow: cfg.DedupWindow(),
		Notifier:    notifier,
		Logger:      log,
	})

	spec, err := scheduleSpec(cfg.Schedule)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("schedule timezone: %w", err)
	}
	sched, err := scheduler.New(ingester, scheduler.Options{
		Spec:       spec,
		Location:   loc,
		RunTimeout: cfg.RunTimeout(),
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	guard, err := auth.New(cfg.AdminSecret, cfg.AdminBindCIDRs)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if !guard.Enabled() {
		log.Warn("admin_secret is empty; mutating endpoints are open")
	}

	api := server.New(server.Deps{
		Config:    cfg,
		Store:     st,
		Checker:   ingester,
		Scheduler: sched,
		Progress:  ingester,
		Guard:     guard,
		Logger:    log,
	})
	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      api.Routes(),
		ReadTimeout:  seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: seconds(cfg.HTTP.WriteTimeoutSec),
		IdleTimeout:  seconds(cfg.HTTP.IdleTimeoutSec),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sched.Start(ctx)

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shCtx)
	}()

	log.Info("starting hotspot", slog.String("addr", cfg.ListenAddress), slog.String("database", cfg.DatabasePath))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func scheduleSpec(s config.ScheduleConfig) (string, error) {
	if s.Cron != "" {
		return s.Cron, nil
	}
	if s.DailyTime != "" {
		return scheduler.DailySpec(s.DailyTime)
	}
	return "", nil
}

func storeCredential(cfg config.Config, assignment string) error {
	key, value, err := credential.ParseAssignment(assignment)
	if err != nil {
		return err
	}
	creds, err := credential.Open(cfg.Credentials.KeyringDir)
	if err != nil {
		return err
	}
	return creds.Set(key, value)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
