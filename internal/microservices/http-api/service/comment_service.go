package service

import (
	"context"
	"strings"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
)

// CommentService addresses comments through their title and review, so a
// comment is only found under the review it belongs to.
type CommentService interface {
	List(ctx context.Context, titleID, reviewID int64, page dto.PageQuery) (*dto.PaginatedResponse[dto.CommentResponse], error)
	Get(ctx context.Context, titleID, reviewID, commentID int64) (*dto.CommentResponse, error)
	Create(ctx context.Context, actor access.Actor, titleID, reviewID int64, req dto.CreateCommentDTO) (*dto.CommentResponse, error)
	Update(ctx context.Context, actor access.Actor, titleID, reviewID, commentID int64, req dto.UpdateCommentDTO) (*dto.CommentResponse, error)
	Delete(ctx context.Context, actor access.Actor, titleID, reviewID, commentID int64) error
}

type commentService struct {
	comments repository.CommentRepository
	reviews  repository.ReviewRepository
}

func NewCommentService(comments repository.CommentRepository, reviews repository.ReviewRepository) CommentService {
	return &commentService{comments: comments, reviews: reviews}
}

func (s *commentService) List(ctx context.Context, titleID, reviewID int64, page dto.PageQuery) (*dto.PaginatedResponse[dto.CommentResponse], error) {
	review, err := s.resolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	list, total, err := s.comments.ListByReview(ctx, review.ID, toPage(page))
	if err != nil {
		return nil, apperr.Dependency("list comments", err)
	}
	return dto.NewPaginatedResponse(dto.MapSlice(list, dto.FromModelToCommentResponse), total, page.Page, page.PageSize), nil
}

func (s *commentService) Get(ctx context.Context, titleID, reviewID, commentID int64) (*dto.CommentResponse, error) {
	review, err := s.resolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.GetByID(ctx, review.ID, commentID)
	if err != nil {
		return nil, lookupErr(err, "comment", "get comment")
	}
	resp := dto.FromModelToCommentResponse(c)
	return &resp, nil
}

func (s *commentService) Create(ctx context.Context, actor access.Actor, titleID, reviewID int64, req dto.CreateCommentDTO) (*dto.CommentResponse, error) {
	if err := guardAnonymous(actor, access.ActionCreate, access.KindComment); err != nil {
		return nil, err
	}
	review, err := s.resolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ActionCreate, access.Target{Kind: access.KindComment}); err != nil {
		return nil, err
	}
	if err := validateText(dto.Check(req), req.Text); err != nil {
		return nil, err
	}

	c := &models.Comment{ReviewID: review.ID, AuthorID: actor.ID, Text: req.Text}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, apperr.Dependency("create comment", err)
	}
	c.Author = models.User{ID: actor.ID, Username: actor.Username}

	resp := dto.FromModelToCommentResponse(c)
	return &resp, nil
}

func (s *commentService) Update(ctx context.Context, actor access.Actor, titleID, reviewID, commentID int64, req dto.UpdateCommentDTO) (*dto.CommentResponse, error) {
	c, err := s.resolveForWrite(ctx, actor, access.ActionUpdate, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	if err := validateText(dto.Check(req), req.Text); err != nil {
		return nil, err
	}
	if err := s.comments.Update(ctx, c.ID, map[string]any{"text": req.Text}); err != nil {
		return nil, lookupErr(err, "comment", "update comment")
	}
	c.Text = req.Text

	resp := dto.FromModelToCommentResponse(c)
	return &resp, nil
}

func (s *commentService) Delete(ctx context.Context, actor access.Actor, titleID, reviewID, commentID int64) error {
	c, err := s.resolveForWrite(ctx, actor, access.ActionDelete, titleID, reviewID, commentID)
	if err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, c.ID); err != nil {
		return lookupErr(err, "comment", "delete comment")
	}
	return nil
}

func (s *commentService) resolveReview(ctx context.Context, titleID, reviewID int64) (*models.Review, error) {
	review, err := s.reviews.GetByID(ctx, titleID, reviewID)
	if err != nil {
		return nil, lookupErr(err, "review", "get review")
	}
	return review, nil
}

func (s *commentService) resolveForWrite(ctx context.Context, actor access.Actor, action access.Action, titleID, reviewID, commentID int64) (*models.Comment, error) {
	if err := guardAnonymous(actor, action, access.KindComment); err != nil {
		return nil, err
	}
	review, err := s.resolveReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.GetByID(ctx, review.ID, commentID)
	if err != nil {
		return nil, lookupErr(err, "comment", "get comment")
	}
	if err := access.Authorize(actor, action, access.Target{Kind: access.KindComment, AuthorID: c.AuthorID}); err != nil {
		return nil, err
	}
	return c, nil
}

func validateText(ve *apperr.ValidationError, text string) error {
	if strings.TrimSpace(text) == "" {
		ve.Add("text", "must not be blank")
	}
	return ve.OrNil()
}
