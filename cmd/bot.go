package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GuildFM/config"
	"GuildFM/core/audio"
	"GuildFM/core/auth"
	"GuildFM/core/discord"
	"GuildFM/core/lifecycle"
	"GuildFM/core/playback"
	"GuildFM/core/session"
	"GuildFM/core/source"
	"GuildFM/db"
	"GuildFM/logger"
	"GuildFM/model"
	"GuildFM/repository"
	"GuildFM/server"
	"GuildFM/storage"

	"github.com/gofrs/flock"
)

const shutdownTimeout = 10 * time.Second

// runBot runs the Discord bot and, when configured, the control API until ctx is done.
func runBot(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lock := flock.New(cfg.LockFile)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another GuildFM instance holds %s", cfg.LockFile)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release instance lock", logger.ErrorField(err))
		}
	}()

	rs, err := buildResolveStack(cfg)
	if err != nil {
		return err
	}
	defer rs.Close()

	pipeline := audio.NewPipeline(
		audio.NewFFmpegTranscoder(cfg.FFmpegPath),
		audio.NewYTDLPFetcher(cfg.YTDLPPath, cfg.YTDLPFormat, rs.cookies),
	)
	if cfg.MinioEnabled() {
		objects, err := storage.NewObjectStore(cfg)
		if err != nil {
			return err
		}
		if err := objects.CheckBucket(ctx); err != nil {
			return err
		}
		pipeline.WithFetcher(source.KindObject, audio.NewObjectFetcher(objects))
	}

	sessions := session.NewStore(cfg.DefaultVolume)
	bus := playback.NewBus(128)
	ctrl := playback.NewController(sessions, rs.resolver, pipeline, bus, cfg.AdvanceDelay)

	var history repository.PlaybackRepository
	if cfg.HistoryEnabled {
		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrateModels(&model.PlaybackRecord{}); err != nil {
			return err
		}
		history = repository.NewGormPlaybackRepository(gdb)

		events, unsubscribe := bus.Subscribe()
		defer unsubscribe()
		go playback.NewHistoryRecorder(history).Run(ctx, events)
	}

	dg, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	gateway := discord.NewGateway(dg, cfg.OpusBitrate)
	lifecycleMgr := lifecycle.NewManager(sessions, gateway, ctrl, cfg.IdleTimeout)
	lifecycleMgr.SetMembershipCounter(gateway)
	bot := discord.NewBot(dg, gateway, ctrl, lifecycleMgr, lifecycleMgr, cfg.CommandPrefix)

	apiErr := make(chan error, 1)
	var api *server.Server
	if cfg.APIEnabled() {
		handler := server.NewAPIHandler(ctrl, bus, history, auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL), cfg.AdminPasswordHash)
		api = server.NewServer(cfg.HTTPAddr, handler)
		go func() { apiErr <- api.Start() }()
	} else {
		logger.Info("control API disabled, set JWT_SECRET and ADMIN_PASSWORD_HASH to enable it")
	}

	if err := bot.Open(); err != nil {
		return err
	}
	logger.Info("GuildFM started", logger.String("prefix", cfg.CommandPrefix), logger.String("cache", cfg.CacheBackend))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-apiErr:
		if runErr != nil {
			logger.Error("control API failed", logger.ErrorField(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, runErr)
	if api != nil {
		errs = append(errs, api.Shutdown(shutdownCtx))
	}
	for _, guildID := range sessions.GuildIDs() {
		ctrl.Cleanup(guildID, "shutdown")
	}
	errs = append(errs, bot.Close())
	return errors.Join(errs...)
}
