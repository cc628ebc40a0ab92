package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
)

type TitleService interface {
	List(ctx context.Context, q dto.TitleFilterQuery) (*dto.PaginatedResponse[dto.TitleResponse], error)
	Get(ctx context.Context, id int64) (*dto.TitleResponse, error)
	Create(ctx context.Context, actor access.Actor, req dto.TitleWriteDTO) (*dto.TitleResponse, error)
	Update(ctx context.Context, actor access.Actor, id int64, req dto.TitleUpdateDTO) (*dto.TitleResponse, error)
	// Delete also removes the title's reviews and their comments.
	Delete(ctx context.Context, actor access.Actor, id int64) error
}

type titleService struct {
	titles     repository.TitleRepository
	categories repository.CategoryRepository
	genres     repository.GenreRepository
	now        func() time.Time
}

func NewTitleService(titles repository.TitleRepository, categories repository.CategoryRepository, genres repository.GenreRepository) TitleService {
	return &titleService{titles: titles, categories: categories, genres: genres, now: time.Now}
}

var titleTarget = access.Target{Kind: access.KindTitle}

func (s *titleService) List(ctx context.Context, q dto.TitleFilterQuery) (*dto.PaginatedResponse[dto.TitleResponse], error) {
	filter := repository.TitleFilter{Name: q.Name, Year: q.Year, Category: q.Category, Genre: q.Genre}
	list, total, err := s.titles.List(ctx, filter, toPage(q.PageQuery))
	if err != nil {
		return nil, apperr.Dependency("list titles", err)
	}
	return dto.NewPaginatedResponse(dto.MapSlice(list, dto.FromModelToTitleResponse), total, q.Page, q.PageSize), nil
}

func (s *titleService) Get(ctx context.Context, id int64) (*dto.TitleResponse, error) {
	t, err := s.titles.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "title", "get title")
	}
	resp := dto.FromModelToTitleResponse(t)
	return &resp, nil
}

func (s *titleService) Create(ctx context.Context, actor access.Actor, req dto.TitleWriteDTO) (*dto.TitleResponse, error) {
	if err := access.Authorize(actor, access.ActionCreate, titleTarget); err != nil {
		return nil, err
	}

	ve := dto.Check(req)
	s.checkName(ve, &req.Name)
	s.checkYear(ve, &req.Year)
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	t := &models.Title{Name: strings.TrimSpace(req.Name), Year: req.Year, Description: req.Description}
	if req.Category != nil && *req.Category != "" {
		c, err := s.resolveCategory(ctx, *req.Category)
		if err != nil {
			return nil, err
		}
		t.CategoryID = &c.ID
	}
	genres, err := s.resolveGenres(ctx, req.Genre)
	if err != nil {
		return nil, err
	}
	t.Genres = genres

	if err := s.titles.Create(ctx, t); err != nil {
		return nil, writeErr(err, "create title", "title already exists")
	}
	return s.Get(ctx, t.ID)
}

func (s *titleService) Update(ctx context.Context, actor access.Actor, id int64, req dto.TitleUpdateDTO) (*dto.TitleResponse, error) {
	if err := guardAnonymous(actor, access.ActionUpdate, access.KindTitle); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, id); err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ActionUpdate, titleTarget); err != nil {
		return nil, err
	}

	ve := dto.Check(req)
	s.checkName(ve, req.Name)
	s.checkYear(ve, req.Year)
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	changes := repository.TitleChanges{Fields: map[string]any{}}
	if req.Name != nil {
		changes.Fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Year != nil {
		changes.Fields["year"] = *req.Year
	}
	if req.Description != nil {
		changes.Fields["description"] = *req.Description
	}
	if req.Category != nil {
		if *req.Category == "" {
			changes.Fields["category_id"] = nil
		} else {
			c, err := s.resolveCategory(ctx, *req.Category)
			if err != nil {
				return nil, err
			}
			changes.Fields["category_id"] = c.ID
		}
	}
	if req.Genre != nil {
		genres, err := s.resolveGenres(ctx, *req.Genre)
		if err != nil {
			return nil, err
		}
		changes.Genres = genres
		changes.ReplaceGenres = true
	}

	if err := s.titles.Update(ctx, id, changes); err != nil {
		return nil, writeErr(err, "update title", "title already exists")
	}
	return s.Get(ctx, id)
}

func (s *titleService) Delete(ctx context.Context, actor access.Actor, id int64) error {
	if err := guardAnonymous(actor, access.ActionDelete, access.KindTitle); err != nil {
		return err
	}
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	if err := access.Authorize(actor, access.ActionDelete, titleTarget); err != nil {
		return err
	}
	if err := s.titles.Delete(ctx, id); err != nil {
		return lookupErr(err, "title", "delete title")
	}
	return nil
}

func (s *titleService) mustExist(ctx context.Context, id int64) error {
	ok, err := s.titles.Exists(ctx, id)
	if err != nil {
		return apperr.Dependency("find title", err)
	}
	if !ok {
		return apperr.NotFound("title")
	}
	return nil
}

func (s *titleService) checkName(ve *apperr.ValidationError, name *string) {
	if name != nil && strings.TrimSpace(*name) == "" {
		ve.Add("name", "must not be blank")
	}
}

// checkYear rejects years after the current one.
func (s *titleService) checkYear(ve *apperr.ValidationError, year *int) {
	if year == nil {
		return
	}
	if *year > s.now().Year() {
		ve.Add("year", "must not be in the future")
	}
}

func (s *titleService) resolveCategory(ctx context.Context, slug string) (*models.Category, error) {
	c, err := s.categories.FindBySlug(ctx, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("category", "unknown category "+slug)
	}
	if err != nil {
		return nil, apperr.Dependency("find category", err)
	}
	return c, nil
}

// resolveGenres fails on the first slug that does not exist.
func (s *titleService) resolveGenres(ctx context.Context, slugs []string) ([]models.Genre, error) {
	if len(slugs) == 0 {
		return []models.Genre{}, nil
	}
	unique := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		unique[slug] = struct{}{}
	}

	found, err := s.genres.FindBySlugs(ctx, slugs)
	if err != nil {
		return nil, apperr.Dependency("find genres", err)
	}
	for _, g := range found {
		delete(unique, g.Slug)
	}
	if len(unique) > 0 {
		missing := make([]string, 0, len(unique))
		for slug := range unique {
			missing = append(missing, slug)
		}
		sort.Strings(missing)
		return nil, apperr.Validation("genre", "unknown genre "+strings.Join(missing, ", "))
	}
	return found, nil
}
