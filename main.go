package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/itemguess/internal/bot"
	"github.com/robalobadob/itemguess/internal/config"
	"github.com/robalobadob/itemguess/internal/game"
	"github.com/robalobadob/itemguess/internal/httpserver"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	var notifier game.Notifier
	dg, err := sessionFor(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create discord session")
	}
	if dg != nil {
		notifier = bot.NewAnnouncer(dg, cfg, log.Logger)
	}

	eng := game.New(cfg.GameOptions(), st, notifier, log.Logger)
	if err := eng.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore game state")
	}
	defer eng.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		game.RunHintTimer(ctx, eng, cfg.TickInterval, nil)
	}()

	if dg != nil {
		b := bot.New(dg, eng, cfg, log.Logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Run(ctx, dg); err != nil {
				log.Error().Err(err).Msg("discord bot exited")
				stop()
			}
		}()
	} else {
		log.Warn().Msg("DISCORD_TOKEN not set; running headless (engine + HTTP only)")
	}

	srv := httpserver.New(eng, httpserver.Options{
		JWTSecret:         cfg.JWTSecret,
		AdminPasswordHash: cfg.AdminPasswordHash,
	})
	log.Info().Str("port", cfg.Port).Msg("starting item-guess bot")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server exited")
		stop()
	}

	wg.Wait()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Flush(flushCtx); err != nil {
		log.Error().Err(err).Msg("final save did not complete")
	}
	log.Info().Msg("shutdown complete")
}

// sessionFor returns nil when no token is configured.
func sessionFor(cfg *config.Config) (*discordgo.Session, error) {
	if cfg.Headless() {
		return nil, nil
	}
	return bot.NewSession(cfg.DiscordToken)
}
