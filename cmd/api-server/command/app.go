package command

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"yamdb/database"
	"yamdb/internal/config"
	"yamdb/internal/logging"
	"yamdb/internal/mail"
	"yamdb/internal/microservices/http-api/handler"
	"yamdb/internal/microservices/http-api/repository"
	"yamdb/internal/microservices/http-api/service"
)

// app holds what every subcommand needs: configuration, logger, database.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.ConnectDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}

func (a *app) newMailer() (mail.Mailer, error) {
	switch a.cfg.MailTransport {
	case "nats":
		m, err := mail.NewNATSMailer(a.cfg.NATSURL, a.cfg.MailSubject, a.cfg.MailFrom)
		if err != nil {
			return nil, fmt.Errorf("connect mail transport: %w", err)
		}
		return m, nil
	default:
		return mail.NewLogMailer(a.logger, a.cfg.MailFrom), nil
	}
}

// repositories groups the GORM repositories over one pool.
type repositories struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	categories    repository.CategoryRepository
	genres        repository.GenreRepository
	titles        repository.TitleRepository
	reviews       repository.ReviewRepository
	comments      repository.CommentRepository
}

func (a *app) repositories() repositories {
	return repositories{
		users:         repository.NewUserRepository(a.db),
		refreshTokens: repository.NewRefreshTokenRepository(a.db),
		categories:    repository.NewCategoryRepository(a.db),
		genres:        repository.NewGenreRepository(a.db),
		titles:        repository.NewTitleRepository(a.db),
		reviews:       repository.NewReviewRepository(a.db),
		comments:      repository.NewCommentRepository(a.db),
	}
}

func (a *app) services(repos repositories, mailer mail.Mailer) handler.Services {
	return handler.Services{
		Auth:       service.NewAuthService(repos.users, repos.refreshTokens, mailer, a.cfg, a.logger),
		Users:      service.NewUserService(repos.users),
		Categories: service.NewCategoryService(repos.categories),
		Genres:     service.NewGenreService(repos.genres),
		Titles:     service.NewTitleService(repos.titles, repos.categories, repos.genres),
		Reviews:    service.NewReviewService(repos.reviews, repos.titles),
		Comments:   service.NewCommentService(repos.comments, repos.reviews),
	}
}
