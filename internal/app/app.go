// Package app wires the application together and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mbocharov/shortalias/internal/cache"
	"github.com/mbocharov/shortalias/internal/config"
	"github.com/mbocharov/shortalias/internal/service"
	"github.com/mbocharov/shortalias/pkg/postgres"

	myhttp "github.com/mbocharov/shortalias/internal/api/http"
	storage "github.com/mbocharov/shortalias/internal/database/postgres"
)

func newLogger(env string) *httplog.Logger {
	switch env {
	case config.EnvProd:
		return httplog.NewLogger("shortalias", httplog.Options{
			JSON:     true,
			LogLevel: slog.LevelInfo,
		})
	case config.EnvStage:
		return httplog.NewLogger("shortalias", httplog.Options{
			JSON:     true,
			LogLevel: slog.LevelDebug,
		})
	default:
		return httplog.NewLogger("shortalias", httplog.Options{
			Concise:  true,
			LogLevel: slog.LevelDebug,
		})
	}
}

// Run starts the application and blocks until ctx is canceled or a fatal
// error occurs.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg.Env)

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	var urlCache service.URLCache

	if cfg.Redis.Enabled {
		c, err := cache.New(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to cache: %w", op, err)
		}
		defer c.Close()

		urlCache = c
	}

	urlRepo := storage.NewURLRepository(db)
	urlSvc := service.NewURLService(urlRepo, urlCache, logger.Logger, cfg.AliasLength)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        myhttp.NewRouter(logger, urlSvc),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
