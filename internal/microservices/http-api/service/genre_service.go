package service

import (
	"context"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
)

type GenreService interface {
	List(ctx context.Context, search string, page dto.PageQuery) (*dto.PaginatedResponse[dto.GenreResponse], error)
	Create(ctx context.Context, actor access.Actor, req dto.TaxonomyWriteDTO) (*dto.GenreResponse, error)
	Update(ctx context.Context, actor access.Actor, slug string, req dto.TaxonomyUpdateDTO) (*dto.GenreResponse, error)
	// Delete removes the genre from every title; the titles stay.
	Delete(ctx context.Context, actor access.Actor, slug string) error
}

type genreService struct {
	repo repository.GenreRepository
}

func NewGenreService(repo repository.GenreRepository) GenreService {
	return &genreService{repo: repo}
}

func (s *genreService) List(ctx context.Context, search string, page dto.PageQuery) (*dto.PaginatedResponse[dto.GenreResponse], error) {
	list, total, err := s.repo.List(ctx, search, toPage(page))
	if err != nil {
		return nil, apperr.Dependency("list genres", err)
	}
	return dto.NewPaginatedResponse(dto.MapSlice(list, dto.FromModelToGenreResponse), total, page.Page, page.PageSize), nil
}

func (s *genreService) Create(ctx context.Context, actor access.Actor, req dto.TaxonomyWriteDTO) (*dto.GenreResponse, error) {
	if err := access.Authorize(actor, access.ActionCreate, access.Target{Kind: access.KindGenre}); err != nil {
		return nil, err
	}
	if err := validateSlugName(dto.Check(req), &req.Name, &req.Slug); err != nil {
		return nil, err
	}
	g := &models.Genre{Name: req.Name, Slug: req.Slug}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, writeErr(err, "create genre", "genre slug already exists")
	}
	resp := dto.FromModelToGenreResponse(g)
	return &resp, nil
}

func (s *genreService) Update(ctx context.Context, actor access.Actor, slug string, req dto.TaxonomyUpdateDTO) (*dto.GenreResponse, error) {
	if err := guardAnonymous(actor, access.ActionUpdate, access.KindGenre); err != nil {
		return nil, err
	}
	g, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, lookupErr(err, "genre", "find genre")
	}
	if err := access.Authorize(actor, access.ActionUpdate, access.Target{Kind: access.KindGenre}); err != nil {
		return nil, err
	}
	if err := validateSlugName(dto.Check(req), req.Name, req.Slug); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
		g.Name = *req.Name
	}
	if req.Slug != nil {
		fields["slug"] = *req.Slug
		g.Slug = *req.Slug
	}
	if len(fields) > 0 {
		if err := s.repo.Update(ctx, g.ID, fields); err != nil {
			return nil, writeErr(err, "update genre", "genre slug already exists")
		}
	}
	resp := dto.FromModelToGenreResponse(g)
	return &resp, nil
}

func (s *genreService) Delete(ctx context.Context, actor access.Actor, slug string) error {
	if err := guardAnonymous(actor, access.ActionDelete, access.KindGenre); err != nil {
		return err
	}
	g, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return lookupErr(err, "genre", "find genre")
	}
	if err := access.Authorize(actor, access.ActionDelete, access.Target{Kind: access.KindGenre}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, g.ID); err != nil {
		return lookupErr(err, "genre", "delete genre")
	}
	return nil
}
