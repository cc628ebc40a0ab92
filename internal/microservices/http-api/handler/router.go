package handler

import (
	"log/slog"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yamdb/internal/microservices/http-api/middleware"
	"yamdb/internal/microservices/http-api/service"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth       service.AuthService
	Users      service.UserService
	Categories service.CategoryService
	Genres     service.GenreService
	Titles     service.TitleService
	Reviews    service.ReviewService
	Comments   service.CommentService
}

type RouterOptions struct {
	Logger *slog.Logger
	// AuthLimiter throttles /auth; nil disables throttling.
	AuthLimiter middleware.Limiter
	// Metrics and Gatherer are both optional.
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer
	// TrustedProxies may set X-Forwarded-For. With none, the client IP is
	// always the peer address.
	TrustedProxies []string
	// RequestTimeout bounds the context handed to services.
	RequestTimeout time.Duration
	Sentry         bool
}

// NewRouter assembles the /api/v1 tree. Actor resolution runs for every API
// request; anonymous callers may read and nothing else.
func NewRouter(svc Services, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	useJSONFieldNames()

	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		opts.Logger.Error("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	if opts.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(middleware.RequestLogger(opts.Logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Handler())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.Timeout(opts.RequestTimeout))

	// sign-up and token exchange are open to everyone, rate limited per client
	authGroup := api.Group("")
	if opts.AuthLimiter != nil {
		authGroup.Use(middleware.RateLimit(opts.AuthLimiter))
	}
	NewAuthHandler(svc.Auth).RegisterRoutes(authGroup)

	resources := api.Group("")
	resources.Use(middleware.Actor(svc.Auth), middleware.RejectAnonymousWrites())
	NewUserHandler(svc.Users).RegisterRoutes(resources)
	NewCategoryHandler(svc.Categories).RegisterRoutes(resources)
	NewGenreHandler(svc.Genres).RegisterRoutes(resources)
	NewTitleHandler(svc.Titles).RegisterRoutes(resources)
	NewReviewHandler(svc.Reviews).RegisterRoutes(resources)
	NewCommentHandler(svc.Comments).RegisterRoutes(resources)

	return r
}
