package service

import (
	"context"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
)

type CategoryService interface {
	List(ctx context.Context, search string, page dto.PageQuery) (*dto.PaginatedResponse[dto.CategoryResponse], error)
	Create(ctx context.Context, actor access.Actor, req dto.TaxonomyWriteDTO) (*dto.CategoryResponse, error)
	Update(ctx context.Context, actor access.Actor, slug string, req dto.TaxonomyUpdateDTO) (*dto.CategoryResponse, error)
	// Delete leaves titles in place with no category.
	Delete(ctx context.Context, actor access.Actor, slug string) error
}

type categoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

func (s *categoryService) List(ctx context.Context, search string, page dto.PageQuery) (*dto.PaginatedResponse[dto.CategoryResponse], error) {
	list, total, err := s.repo.List(ctx, search, toPage(page))
	if err != nil {
		return nil, apperr.Dependency("list categories", err)
	}
	return dto.NewPaginatedResponse(dto.MapSlice(list, dto.FromModelToCategoryResponse), total, page.Page, page.PageSize), nil
}

func (s *categoryService) Create(ctx context.Context, actor access.Actor, req dto.TaxonomyWriteDTO) (*dto.CategoryResponse, error) {
	if err := access.Authorize(actor, access.ActionCreate, access.Target{Kind: access.KindCategory}); err != nil {
		return nil, err
	}
	if err := validateSlugName(dto.Check(req), &req.Name, &req.Slug); err != nil {
		return nil, err
	}
	c := &models.Category{Name: req.Name, Slug: req.Slug}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, writeErr(err, "create category", "category slug already exists")
	}
	resp := dto.FromModelToCategoryResponse(c)
	return &resp, nil
}

func (s *categoryService) Update(ctx context.Context, actor access.Actor, slug string, req dto.TaxonomyUpdateDTO) (*dto.CategoryResponse, error) {
	if err := guardAnonymous(actor, access.ActionUpdate, access.KindCategory); err != nil {
		return nil, err
	}
	c, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, lookupErr(err, "category", "find category")
	}
	if err := access.Authorize(actor, access.ActionUpdate, access.Target{Kind: access.KindCategory}); err != nil {
		return nil, err
	}
	if err := validateSlugName(dto.Check(req), req.Name, req.Slug); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
		c.Name = *req.Name
	}
	if req.Slug != nil {
		fields["slug"] = *req.Slug
		c.Slug = *req.Slug
	}
	if len(fields) > 0 {
		if err := s.repo.Update(ctx, c.ID, fields); err != nil {
			return nil, writeErr(err, "update category", "category slug already exists")
		}
	}
	resp := dto.FromModelToCategoryResponse(c)
	return &resp, nil
}

func (s *categoryService) Delete(ctx context.Context, actor access.Actor, slug string) error {
	if err := guardAnonymous(actor, access.ActionDelete, access.KindCategory); err != nil {
		return err
	}
	c, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return lookupErr(err, "category", "find category")
	}
	if err := access.Authorize(actor, access.ActionDelete, access.Target{Kind: access.KindCategory}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		return lookupErr(err, "category", "delete category")
	}
	return nil
}
