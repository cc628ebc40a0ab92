package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"yamdb/internal/microservices/http-api/models"
)

type CategoryRepository interface {
	List(ctx context.Context, search string, page Page) ([]models.Category, int64, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, id int64, fields map[string]any) error
	// Delete clears category_id on every title that referenced it, then
	// removes the category.
	Delete(ctx context.Context, id int64) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) List(ctx context.Context, search string, page Page) ([]models.Category, int64, error) {
	var list []models.Category
	var total int64

	query := func() *gorm.DB {
		return searchByName(r.db.WithContext(ctx).Model(&models.Category{}), search)
	}
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}
	if err := query().Order("name asc, id asc").Limit(page.Size).Offset(page.Offset()).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	return list, total, nil
}

func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) Create(ctx context.Context, c *models.Category) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create category: %w", translateError(err))
	}
	return nil
}

func (r *categoryRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update category: %w", translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Title{}).Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return fmt.Errorf("detach titles: %w", err)
		}
		result := tx.Delete(&models.Category{}, id)
		if result.Error != nil {
			return fmt.Errorf("delete category: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}, readCommitted)
}

// searchByName applies a case-insensitive substring match on name.
func searchByName(q *gorm.DB, search string) *gorm.DB {
	if search = strings.TrimSpace(search); search != "" {
		return q.Where("name ILIKE ?", "%"+search+"%")
	}
	return q
}
