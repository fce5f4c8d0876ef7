package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/api"
	"github.com/bilyardvmetro/posts-feed-sync/internal/logger"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/pubsub"
	"github.com/bilyardvmetro/posts-feed-sync/internal/store"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env необязателен, переменные окружения важнее
	_ = godotenv.Load()

	app := cli.App{
		Name:   "feedserver",
		Usage:  "posts and comments API for the feed client",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "address to listen on",
				Value:   ":8080",
				EnvVars: []string{"ADDR"},
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "storage backend: mem or pg",
				Value:   "mem",
				EnvVars: []string{"STORE"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "postgres connection string, required for --store=pg",
				EnvVars: []string{"POSTGRES_DSN"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Usage:   "comma separated allowed origins, empty allows any",
				EnvVars: []string{"CORS_ORIGINS"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Value: 10 * time.Second,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	logger.Init(cctx.String("log-level"))
	logger.Log.Info().Msg("Logger initialized")

	rootCtx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	var bus pubsub.Bus

	switch cctx.String("store") {
	case "pg":
		dsn := cctx.String("postgres-dsn")
		if dsn == "" {
			return errors.New("POSTGRES_DSN environment variable not set")
		}

		pg, err := store.NewPostgres(dsn)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pg.Migrate(rootCtx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		st = pg

		// несколько инстансов видят изменения друг друга через NOTIFY
		pgBus, err := pubsub.NewPgBus(rootCtx, dsn, logger.Log, model.TopicPosts, model.TopicComments)
		if err != nil {
			return fmt.Errorf("start pg bus: %w", err)
		}
		bus = pgBus
	case "mem", "":
		st = store.NewMemStore()
		bus = pubsub.NewMemoryBus()
	default:
		return fmt.Errorf("unknown store %q", cctx.String("store"))
	}

	srv := api.New(st, bus, logger.Log)
	cors := corsMiddleware(cctx.String("cors-origins"))

	addr := cctx.String("addr")
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           cors(srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Log.Info().Str("addr", addr).Str("store", cctx.String("store")).Msg("starting server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info().Msg("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cctx.Duration("shutdown-timeout"))
		defer shutdownCancel()

		srv.CloseStreams()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("http server shutdown error")
			return err
		}
		logger.Log.Info().Msg("http server shutdown successfully")
		return nil
	})

	err := g.Wait()

	closeIfNeeded(bus, "subscription bus")
	closeIfNeeded(st, "store")

	logger.Log.Info().Msg("graceful shutdown complete")
	return err
}

func closeIfNeeded(x any, name string) {
	if c, ok := x.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			logger.Log.Error().Err(err).Str("component", name).Msg("close error")
			return
		}
		logger.Log.Info().Str("component", name).Msg("closed")
	}
}

func corsMiddleware(origins string) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if len(allowed) == 0 {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				} else if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Expose-Headers", model.SessionHeader+", "+logger.RequestIDHeader)
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User, "+model.SessionHeader)
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
