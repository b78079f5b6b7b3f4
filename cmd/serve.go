package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thejerf/suture/v4"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/navaarsync/navaar/internal/adapters"
	"github.com/navaarsync/navaar/internal/metrics"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/scheduler"
	"github.com/navaarsync/navaar/internal/server"
	"github.com/navaarsync/navaar/internal/shared"
	"github.com/navaarsync/navaar/internal/store"
	"github.com/navaarsync/navaar/internal/sync"
	"github.com/navaarsync/navaar/internal/telegrambot"
)

// serveCommand runs Navaar as a long-lived process: the six direction
// workers under the scheduler, the TG ingestion listener, the HTTP
// observability surface, and the admin bot — all under one suture
// supervisor so any one component's crash doesn't bring down the rest.
//
// Grounded on original_source/sync/engine.py + api/server.py + the
// teacher's service composition in cmd/main.go, re-expressed with
// suture.Supervisor as the top-level process group instead of
// asyncio.gather.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name: "serve",
		Usage: "Run the sync scheduler, HTTP API, and admin bot",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return r.serve(ctx, cmd.String("config"))
		},
	}
}

func (r *Runner) serve(ctx context.Context, configPath string) error {
	config := r.loadConfig(configPath)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	tracks := store.NewTrackStore(db)
	state := store.NewStateStore(db)
	events := store.NewEventLog(db)

	metrics.Init("dev", config.Sync.YTMusicPlaylistID)

	chat, err := adapters.NewTelegramAdapter(config.Telegram.BotToken, config.Telegram.ChannelID, "", r.logger)
	if err != nil {
		return fmt.Errorf("failed to init telegram adapter: %w", err)
	}

	var authData string
	if config.Credentials.YouTube.HeadersPath != "" {
		if raw, err := os.ReadFile(config.Credentials.YouTube.HeadersPath); err == nil {
			authData = string(raw)
		} else {
			r.logger.Warn("failed to read youtube headers file", "path", config.Credentials.YouTube.HeadersPath, "error", err)
		}
	}
	yt := adapters.NewYouTubeAdapter(config.Credentials.YouTube.ProxyURL, config.Sync.YTMusicPlaylistID, authData, http.DefaultClient, r.logger)

	sp := config.Credentials.Spotify
	if sp.ClientID == "" || sp.AccessToken == "" {
		return fmt.Errorf("%w: spotify is not authenticated; run `navaar auth spotify` first", shared.ErrNotAuthenticated)
	}
	oauthConfig := &oauth2.Config{
		ClientID: sp.ClientID,
		ClientSecret: sp.ClientSecret,
		RedirectURL: sp.RedirectURI,
		Scopes: []string{spotifyScopes},
		Endpoint: spotifyOAuthEndpoint,
	}
	token := &oauth2.Token{AccessToken: sp.AccessToken, RefreshToken: sp.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	spAdapter := adapters.NewSpotifyAdapter(ctx, oauthConfig, token, config.Sync.SpotifyPlaylistID, r.logger)

	dl := adapters.NewYtDlpDownloader("yt-dlp", "", r.logger)

	sup := suture.New("navaar", suture.Spec{})

	sup.Add(sync.NewTgIngestor(tracks, events, chat, r.logger))

	sched := scheduler.New(r.logger)
	workers := []sync.DirectionWorker{
		sync.NewTargetPushWorker(models.TgToYt, tracks, events, yt, chat, r.logger),
		sync.NewTargetPushWorker(models.TgToSp, tracks, events, spAdapter, chat, r.logger),
		sync.NewTargetPushWorker(models.YtToSp, tracks, events, spAdapter, nil, r.logger),
		sync.NewTargetPushWorker(models.SpToYt, tracks, events, yt, nil, r.logger),
		sync.NewYtToTgWorker(tracks, state, events, chat, yt, dl, r.logger),
		sync.NewSpToTgWorker(tracks, state, events, chat, spAdapter, yt, dl, r.logger),
	}
	for _, w := range workers {
		interval := time.Duration(config.IntervalFor(string(w.Direction()))) * time.Second
		sched.Register(w, interval, tracks, state, r.logger)
	}
	sup.Add(sched)

	api := server.NewAPI(tracks, state, events)
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: api.Router()}
	sup.Add(httpServerService{srv: httpSrv, logger: r.logger})

	if config.Telegram.BotToken != "" && len(config.Telegram.AdminUserIDs) > 0 {
		bot, err := telegrambot.New(config.Telegram.BotToken, config.Telegram.AdminUserIDs, tracks, r.logger)
		if err != nil {
			r.logger.Warn("failed to init admin bot, continuing without it", "error", err)
		} else {
			sup.Add(bot)
		}
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("navaar starting", "addr", addr)
	return sup.Serve(runCtx)
}

// httpServerService adapts *http.Server to suture.Service, shutting
// down gracefully on context cancellation instead of the abrupt
// Close the original one-shot OAuth server used.
type httpServerService struct {
	srv *http.Server
	logger *log.Logger
}

func (h httpServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.srv.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("http server shutdown error", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
