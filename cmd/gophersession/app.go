package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nkiryanov/gophersession/internal/db"
	"github.com/nkiryanov/gophersession/internal/handlers"
	"github.com/nkiryanov/gophersession/internal/handlers/httpauth"
	"github.com/nkiryanov/gophersession/internal/logger"
	"github.com/nkiryanov/gophersession/internal/metrics"
	"github.com/nkiryanov/gophersession/internal/repository"
	"github.com/nkiryanov/gophersession/internal/repository/memory"
	"github.com/nkiryanov/gophersession/internal/repository/postgres"
	"github.com/nkiryanov/gophersession/internal/repository/redisstore"
	"github.com/nkiryanov/gophersession/internal/service/auth"
	"github.com/nkiryanov/gophersession/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/gophersession/internal/service/user"
)

const (
	// Expired sessions are kept this long, so client gets "expired" instead of "replayed"
	sessionRetention = 24 * time.Hour

	janitorInterval = time.Hour
	shutdownTimeout = 5 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger

	// Background jobs started with server, stopped with it
	jobs []func(ctx context.Context)

	// Called in reverse order after server stopped
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Users live in postgres if database set, in memory otherwise
	mem := memory.NewStorage()
	var users repository.UserRepo = mem.User()
	var pg *postgres.Storage

	if c.DatabaseDSN != "" {
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		app.closers = append(app.closers, pool.Close)

		pg = postgres.NewStorage(pool)
		users = pg.User()

		if c.SessionStore == SessionStorePostgres {
			store := &postgres.RefreshStore{DB: pool}
			app.jobs = append(app.jobs, func(ctx context.Context) {
				runJanitor(ctx, store, janitorInterval, logger)
			})
		}
	}

	var sessions repository.RefreshStore
	switch c.SessionStore {
	case SessionStoreMemory:
		sessions = mem.Refresh()
	case SessionStoreRedis:
		client, err := redisstore.Connect(ctx, redisstore.ConnConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })

		sessions = redisstore.NewRefreshStore(client, redisstore.Config{Retention: sessionRetention})
	case SessionStorePostgres:
		if pg == nil {
			return nil, errors.New("postgres session store requires database")
		}
		sessions = pg.Refresh()
	default:
		return nil, fmt.Errorf("unknown session store %q", c.SessionStore)
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, users, sessions)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(auth.DefaultHasher, users)

	// Own registry with runtime collectors
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.Handler = handlers.NewRouter(
		authService,
		userService,
		httpauth.NewRefreshCookie(tokenManager.RefreshTTL(), c.CookieSecure),
		metrics.New(reg),
		metrics.Handler(reg),
		logger,
	)

	logger.Info("App initialized", "session_store", c.SessionStore, "database", c.DatabaseDSN != "")

	return app, nil
}

func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	jobsDone := make(chan struct{})
	go func() {
		defer close(jobsDone)
		done := make(chan struct{}, len(s.jobs))
		for _, job := range s.jobs {
			go func() {
				job(srvCtx)
				done <- struct{}{}
			}()
		}
		for range s.jobs {
			<-done
		}
	}()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-jobsDone

	return err
}

type expiredSessionsDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Periodically delete refresh sessions expired longer than retention ago
func runJanitor(ctx context.Context, store expiredSessionsDeleter, interval time.Duration, logger logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			deleted, err := store.DeleteExpired(ctx, now.Add(-sessionRetention))
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("Expired sessions cleanup failed", "error", err)
				}
				continue
			}
			logger.Debug("Expired sessions deleted", "count", deleted)
		}
	}
}
