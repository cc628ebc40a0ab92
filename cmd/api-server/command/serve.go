package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"yamdb/internal/microservices/http-api/handler"
	"yamdb/internal/microservices/http-api/middleware"
	"yamdb/internal/microservices/http-api/repository"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return a.serve(ctx)
	},
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sentryOn := a.cfg.SentryDSN != ""
	if sentryOn {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         a.cfg.SentryDSN,
			Environment: a.cfg.GoEnv,
		}); err != nil {
			return fmt.Errorf("sentry init: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	mailer, err := a.newMailer()
	if err != nil {
		return err
	}
	defer mailer.Close()

	limiter, err := a.newLimiter(ctx)
	if err != nil {
		return err
	}

	opts := handler.RouterOptions{
		Logger:         a.logger,
		AuthLimiter:    limiter,
		TrustedProxies: a.cfg.TrustedProxies,
		RequestTimeout: a.cfg.RequestTimeout,
		Sentry:         sentryOn,
	}
	if a.cfg.PrometheusEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Metrics = middleware.NewMetrics(reg)
		opts.Gatherer = reg
	}

	repos := a.repositories()
	router := handler.NewRouter(a.services(repos, mailer), opts)

	go a.sweepRefreshTokens(ctx, repos.refreshTokens)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening", "addr", srv.Addr, "env", a.cfg.GoEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// newLimiter uses Redis when configured so limits hold across replicas.
func (a *app) newLimiter(ctx context.Context) (middleware.Limiter, error) {
	if a.cfg.RedisURL == "" {
		return middleware.NewLocalLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow), nil
	}
	rdb, err := middleware.NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return middleware.NewRedisLimiter(rdb, a.cfg.RateLimitRequests, a.cfg.RateLimitWindow), nil
}

// sweepRefreshTokens deletes expired refresh tokens until ctx ends.
func (a *app) sweepRefreshTokens(ctx context.Context, tokens repository.RefreshTokenRepository) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := tokens.DeleteExpired(ctx, now)
			if err != nil {
				a.logger.Warn("refresh token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Info("expired refresh tokens removed", "count", n)
			}
		}
	}
}
