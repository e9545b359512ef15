package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/seekarr/seekarr/internal/api"
	"github.com/seekarr/seekarr/internal/config"
	"github.com/seekarr/seekarr/internal/database"
	"github.com/seekarr/seekarr/internal/history"
	"github.com/seekarr/seekarr/internal/hunt"
	"github.com/seekarr/seekarr/internal/logger"
	"github.com/seekarr/seekarr/internal/scheduler"
	"github.com/seekarr/seekarr/internal/scheduler/tasks"
	"github.com/seekarr/seekarr/internal/sonarr"
	"github.com/seekarr/seekarr/internal/startup"
	"github.com/seekarr/seekarr/internal/state"
	"github.com/seekarr/seekarr/internal/stats"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("seekarr", config.Version)
		return
	}

	// A .env file is a convenience for development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Int("instances", len(cfg.Sonarr)).
		Msg("starting seekarr")

	if len(cfg.Sonarr) == 0 {
		log.Fatal().Msg("no sonarr instances configured, nothing to hunt")
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Root context cancelled on shutdown; running sweeps observe it and
	// stop at their next loop iteration.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stateStore := state.NewStore(db.Conn(), log.Logger)
	historyService := history.NewService(db.Conn(), log.Logger)
	statsService := stats.NewService(db.Conn(), log.Logger)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	settings := hunt.SettingsFromConfig(cfg.Hunt)
	retryCfg := startup.DefaultRetryConfig()
	clients := make(map[string]*sonarr.Client, len(cfg.Sonarr))

	for _, inst := range cfg.Sonarr {
		client, err := sonarr.NewClient(sonarr.ClientConfig{
			URL:           inst.URL,
			APIKey:        inst.APIKey,
			Timeout:       inst.APITimeout,
			SkipSSLVerify: inst.SkipSSLVerify,
			Logger:        &log.Logger,
		})
		if err != nil {
			log.Fatal().Err(err).Str("instance", inst.Name).Msg("invalid sonarr instance")
		}
		clients[inst.Name] = client

		// A Sonarr that is still booting should not take the hunter down
		// with it; after retries are exhausted the sweep schedule still
		// runs and will reach it eventually.
		err = startup.WithRetry(ctx, "sonarr connection check ("+inst.Name+")", retryCfg, log.Logger, func() error {
			checkCtx, checkCancel := context.WithTimeout(ctx, 30*time.Second)
			defer checkCancel()
			return client.CheckConnection(checkCtx)
		})
		if err != nil {
			log.Warn().Err(err).Str("instance", inst.Name).Msg("sonarr unreachable at startup, continuing")
		}

		service := hunt.New(hunt.Config{
			Instance: inst.Name,
			Client:   client,
			State:    stateStore,
			History:  historyService,
			Stats:    statsService,
			Settings: settings,
			Logger:   log.Logger,
		})

		if err := tasks.RegisterHuntTask(sched, service, inst.Name, &cfg.Hunt); err != nil {
			log.Fatal().Err(err).Str("instance", inst.Name).Msg("failed to register hunt task")
		}
	}

	if err := tasks.RegisterUsagePruneTask(sched, statsService); err != nil {
		log.Fatal().Err(err).Msg("failed to register usage prune task")
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	server := api.NewServer(cfg, sched, historyService, statsService, clients, log.Logger)
	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Cancel first so in-flight sweeps stop dispatching before the
	// scheduler and server are torn down.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	log.Info().Msg("seekarr stopped")
}
