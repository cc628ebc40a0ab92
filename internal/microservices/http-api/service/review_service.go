package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
)

const (
	MinScore = 1
	MaxScore = 10
)

// ErrDuplicateReview is wrapped by the conflict returned for a second review
// of the same title by the same author.
var ErrDuplicateReview = errors.New("you have already reviewed this title")

var scoreRange = fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)

// ValidateScore enforces the closed range [MinScore, MaxScore].
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return apperr.Validation("score", scoreRange)
	}
	return nil
}

type ReviewService interface {
	List(ctx context.Context, titleID int64, page dto.PageQuery) (*dto.PaginatedResponse[dto.ReviewResponse], error)
	Get(ctx context.Context, titleID, reviewID int64) (*dto.ReviewResponse, error)
	// Create allows one review per author and title; a second attempt is a conflict.
	Create(ctx context.Context, actor access.Actor, titleID int64, req dto.CreateReviewDTO) (*dto.ReviewResponse, error)
	Update(ctx context.Context, actor access.Actor, titleID, reviewID int64, req dto.UpdateReviewDTO) (*dto.ReviewResponse, error)
	Delete(ctx context.Context, actor access.Actor, titleID, reviewID int64) error
}

type reviewService struct {
	reviews repository.ReviewRepository
	titles  repository.TitleRepository
}

func NewReviewService(reviews repository.ReviewRepository, titles repository.TitleRepository) ReviewService {
	return &reviewService{reviews: reviews, titles: titles}
}

func (s *reviewService) List(ctx context.Context, titleID int64, page dto.PageQuery) (*dto.PaginatedResponse[dto.ReviewResponse], error) {
	if err := s.titleExists(ctx, titleID); err != nil {
		return nil, err
	}
	list, total, err := s.reviews.ListByTitle(ctx, titleID, toPage(page))
	if err != nil {
		return nil, apperr.Dependency("list reviews", err)
	}
	return dto.NewPaginatedResponse(dto.MapSlice(list, dto.FromModelToReviewResponse), total, page.Page, page.PageSize), nil
}

func (s *reviewService) Get(ctx context.Context, titleID, reviewID int64) (*dto.ReviewResponse, error) {
	r, err := s.reviews.GetByID(ctx, titleID, reviewID)
	if err != nil {
		return nil, lookupErr(err, "review", "get review")
	}
	resp := dto.FromModelToReviewResponse(r)
	return &resp, nil
}

func (s *reviewService) Create(ctx context.Context, actor access.Actor, titleID int64, req dto.CreateReviewDTO) (*dto.ReviewResponse, error) {
	if err := guardAnonymous(actor, access.ActionCreate, access.KindReview); err != nil {
		return nil, err
	}
	if err := s.titleExists(ctx, titleID); err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ActionCreate, access.Target{Kind: access.KindReview}); err != nil {
		return nil, err
	}
	if err := validateReview(dto.Check(req), &req.Text, &req.Score); err != nil {
		return nil, err
	}

	// title from the path and author from the actor, never from the payload
	review := &models.Review{
		TitleID:  titleID,
		AuthorID: actor.ID,
		Text:     req.Text,
		Score:    req.Score,
	}
	if err := s.reviews.CreateUnique(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %w", apperr.ErrConflict, ErrDuplicateReview)
		}
		return nil, apperr.Dependency("create review", err)
	}
	review.Author = models.User{ID: actor.ID, Username: actor.Username}

	resp := dto.FromModelToReviewResponse(review)
	return &resp, nil
}

func (s *reviewService) Update(ctx context.Context, actor access.Actor, titleID, reviewID int64, req dto.UpdateReviewDTO) (*dto.ReviewResponse, error) {
	review, err := s.resolveForWrite(ctx, actor, access.ActionUpdate, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := validateReview(dto.Check(req), req.Text, req.Score); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Text != nil {
		fields["text"] = *req.Text
		review.Text = *req.Text
	}
	if req.Score != nil {
		fields["score"] = *req.Score
		review.Score = *req.Score
	}
	if len(fields) > 0 {
		if err := s.reviews.Update(ctx, review.ID, fields); err != nil {
			return nil, lookupErr(err, "review", "update review")
		}
	}
	resp := dto.FromModelToReviewResponse(review)
	return &resp, nil
}

func (s *reviewService) Delete(ctx context.Context, actor access.Actor, titleID, reviewID int64) error {
	review, err := s.resolveForWrite(ctx, actor, access.ActionDelete, titleID, reviewID)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, review.ID); err != nil {
		return lookupErr(err, "review", "delete review")
	}
	return nil
}

// resolveForWrite runs the coordinator order for an existing review:
// anonymous guard, lookup under the title, then the ownership check.
func (s *reviewService) resolveForWrite(ctx context.Context, actor access.Actor, action access.Action, titleID, reviewID int64) (*models.Review, error) {
	if err := guardAnonymous(actor, action, access.KindReview); err != nil {
		return nil, err
	}
	review, err := s.reviews.GetByID(ctx, titleID, reviewID)
	if err != nil {
		return nil, lookupErr(err, "review", "get review")
	}
	if err := access.Authorize(actor, action, access.Target{Kind: access.KindReview, AuthorID: review.AuthorID}); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *reviewService) titleExists(ctx context.Context, titleID int64) error {
	ok, err := s.titles.Exists(ctx, titleID)
	if err != nil {
		return apperr.Dependency("find title", err)
	}
	if !ok {
		return apperr.NotFound("title")
	}
	return nil
}

func validateReview(ve *apperr.ValidationError, text *string, score *int) error {
	if text != nil && strings.TrimSpace(*text) == "" {
		ve.Add("text", "must not be blank")
	}
	if score != nil && ValidateScore(*score) != nil {
		ve.Add("score", scoreRange)
	}
	return ve.OrNil()
}
