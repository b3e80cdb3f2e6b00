// Command server runs the Timely HTTP API: ephemeral posts kept alive by a
// token economy, community challenges, and the cosmetics shop. It wires
// configuration, logging, tracing, the ledger store, the background
// maintenance scheduler, and the Gin router, then serves until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/timelylabs/timely-backend/internal/config"
	"github.com/timelylabs/timely-backend/internal/domain"
	httpapi "github.com/timelylabs/timely-backend/internal/http"
	"github.com/timelylabs/timely-backend/internal/jobs"
	"github.com/timelylabs/timely-backend/internal/observability"
	"github.com/timelylabs/timely-backend/internal/services"
	"github.com/timelylabs/timely-backend/internal/store"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op unless enabled).
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Ledger store.
	ledger, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open ledger store")
	}

	econ := economyFromConfig(cfg.Economy)

	// Seed the shop catalog on first boot.
	if err := services.NewShopService(ledger, econ).Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("seed shop catalog")
	}

	// Background maintenance: settle expired posts, finalize challenges.
	sched, err := jobs.NewScheduler(services.NewMaintenanceService(ledger, econ), cfg.MaintenanceInterval, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("build scheduler")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP transport.
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, ledger, econ, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// setupLogger configures the global zerolog logger from config.
func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// economyFromConfig maps the configured rule set onto the domain economy.
func economyFromConfig(e config.EconomyConfig) domain.Economy {
	return domain.Economy{
		StartBalance: e.StartBalance,
		DailyEarnCap: e.DailyEarnCap,
		DailyBonus:   e.DailyBonus,

		PostCost:             e.PostCost,
		InitialLifeHours:     e.InitialLifeHours,
		ExtendHoursPerToken:  e.ExtendHoursPerToken,
		AuthorExtendHoursCap: e.AuthorExtendHoursCap,
		BoostStartMinutes:    e.BoostStartMinutes,

		CertLikes:    e.CertLikes,
		CertComments: e.CertComments,
		CertExtHours: e.CertExtHours,

		LikeRewardEvery:    e.LikeRewardEvery,
		CommentRewardEvery: e.CommentRewardEvery,
		EngagementReward:   e.EngagementReward,

		PopularMinInvested:   e.PopularMinInvested,
		PopularMinSupporters: e.PopularMinSupporters,
		PoolRate:             e.PoolRate,

		VoteDailyCap:        e.VoteCapPerChallenge,
		DefaultPrize:        e.DefaultPrize,
		DefaultBonusMinutes: e.DefaultBonusMinutes,

		CommentMaxRunes: e.CommentMaxRunes,
		EntryMaxRunes:   e.EntryMaxRunes,
		TitleMaxRunes:   e.TitleMaxRunes,
		DescMaxRunes:    e.DescMaxRunes,
		BioMaxRunes:     e.BioMaxRunes,
	}
}
