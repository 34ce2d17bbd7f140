// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/campaign-panel/internal/auth"
	"github.com/unclebandit/campaign-panel/internal/config"
	"github.com/unclebandit/campaign-panel/internal/controller"
	"github.com/unclebandit/campaign-panel/internal/db"
	"github.com/unclebandit/campaign-panel/internal/dispatch"
	"github.com/unclebandit/campaign-panel/internal/handler"
	"github.com/unclebandit/campaign-panel/internal/hub"
	"github.com/unclebandit/campaign-panel/internal/logging"
	"github.com/unclebandit/campaign-panel/internal/queue"
	"github.com/unclebandit/campaign-panel/internal/repository"
	"github.com/unclebandit/campaign-panel/internal/server"
	"github.com/unclebandit/campaign-panel/internal/service"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	h := hub.New(log)
	store := repository.NewProgressStore(h, log)

	dispatcher, closeDispatcher := newDispatcher(cfg, log)
	defer closeDispatcher()

	campaigns := &service.CampaignService{
		Store:         store,
		Observers:     h,
		Dispatcher:    dispatcher,
		WorkerTimeout: cfg.WorkerTimeout,
		Log:           log.With().Str("component", "campaign").Logger(),
	}

	// the archive is optional; the live snapshot never touches the database
	var q *queue.InMemoryQueue
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}
		archive := &repository.ArchiveRepository{DB: conn}
		q = queue.NewInMemoryQueue(log)
		if err := queue.StartArchiveSubscriber(q, archive, log.With().Str("component", "archive").Logger()); err != nil {
			return err
		}
		campaigns.Queue = q
		campaigns.ArchiveRepo = archive
		log.Info().Msg("campaign archive enabled")
	}

	tokens := &auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL}
	router := server.NewRouter(server.Deps{
		Auth: &controller.AuthController{
			Tokens:      tokens,
			Credentials: auth.Credentials{Username: cfg.PanelUser, Password: cfg.PanelPass},
			Log:         log,
		},
		Campaigns: &controller.CampaignController{CampaignService: campaigns, Log: log},
		Progress: &handler.ProgressHandler{
			Reconciler:      &service.Reconciler{Campaigns: campaigns},
			CampaignService: campaigns,
			Tokens:          tokens,
			KeepAlive:       cfg.StreamKeepAlive,
			Log:             log,
		},
		Tokens:       tokens,
		WorkerToken:  cfg.WorkerToken,
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		// request contexts end on shutdown, which closes open streams
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("dispatch", cfg.DispatchMode).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			err = srv.Close()
		}
		if q != nil {
			if qerr := q.Close(shutdownCtx); qerr != nil {
				log.Warn().Err(qerr).Msg("archive queue did not drain")
			}
		}
		return err
	})
	return g.Wait()
}

func newDispatcher(cfg *config.Config, log zerolog.Logger) (dispatch.Dispatcher, func()) {
	switch cfg.DispatchMode {
	case config.DispatchAMQP:
		d := dispatch.NewAMQPDispatcher(cfg.AMQPURL, cfg.AMQPQueue)
		return d, func() { _ = d.Close() }
	case config.DispatchNone:
		log.Warn().Msg("no worker configured, campaigns will not be delivered")
		return dispatch.Nop{}, func() {}
	default:
		return &dispatch.HTTPDispatcher{
			StartURL: cfg.WorkerWebhookURL,
			StopURL:  cfg.WorkerStopURL,
			Client:   &http.Client{Timeout: cfg.WorkerTimeout},
		}, func() {}
	}
}
