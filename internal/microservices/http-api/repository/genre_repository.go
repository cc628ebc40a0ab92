package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"yamdb/internal/microservices/http-api/models"
)

type GenreRepository interface {
	List(ctx context.Context, search string, page Page) ([]models.Genre, int64, error)
	FindBySlug(ctx context.Context, slug string) (*models.Genre, error)
	// FindBySlugs returns the genres matching slugs, in no particular order.
	FindBySlugs(ctx context.Context, slugs []string) ([]models.Genre, error)
	Create(ctx context.Context, g *models.Genre) error
	Update(ctx context.Context, id int64, fields map[string]any) error
	// Delete drops the genre's associations with titles, then the genre.
	Delete(ctx context.Context, id int64) error
}

type genreRepository struct {
	db *gorm.DB
}

func NewGenreRepository(db *gorm.DB) GenreRepository {
	return &genreRepository{db: db}
}

func (r *genreRepository) List(ctx context.Context, search string, page Page) ([]models.Genre, int64, error) {
	var list []models.Genre
	var total int64

	query := func() *gorm.DB {
		return searchByName(r.db.WithContext(ctx).Model(&models.Genre{}), search)
	}
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count genres: %w", err)
	}
	if err := query().Order("name asc, id asc").Limit(page.Size).Offset(page.Offset()).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("get genres: %w", err)
	}
	return list, total, nil
}

func (r *genreRepository) FindBySlug(ctx context.Context, slug string) (*models.Genre, error) {
	var g models.Genre
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *genreRepository) FindBySlugs(ctx context.Context, slugs []string) ([]models.Genre, error) {
	var list []models.Genre
	if len(slugs) == 0 {
		return list, nil
	}
	if err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("get genres by slug: %w", err)
	}
	return list, nil
}

func (r *genreRepository) Create(ctx context.Context, g *models.Genre) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create genre: %w", translateError(err))
	}
	return nil
}

func (r *genreRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.Genre{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update genre: %w", translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *genreRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("genre_id = ?", id).Delete(&models.TitleGenre{}).Error; err != nil {
			return fmt.Errorf("detach titles: %w", err)
		}
		result := tx.Delete(&models.Genre{}, id)
		if result.Error != nil {
			return fmt.Errorf("delete genre: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}, readCommitted)
}
