package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"yamdb/internal/microservices/http-api/models"
)

// ratingColumn derives the rating from the reviews that exist right now.
// No reviews yields NULL, never zero.
const ratingColumn = "(SELECT AVG(reviews.score)::float8 FROM reviews WHERE reviews.title_id = titles.id) AS rating"

// TitleFilter narrows a title listing. Zero values are ignored.
type TitleFilter struct {
	Name     string
	Year     int
	Category string // category slug
	Genre    string // genre slug
}

// TitleChanges is a partial update. Genres is applied only when ReplaceGenres is set,
// so an empty slice clears the title's genres.
type TitleChanges struct {
	Fields        map[string]any
	Genres        []models.Genre
	ReplaceGenres bool
}

type TitleRepository interface {
	List(ctx context.Context, filter TitleFilter, page Page) ([]models.Title, int64, error)
	GetByID(ctx context.Context, id int64) (*models.Title, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, t *models.Title) error
	Update(ctx context.Context, id int64, changes TitleChanges) error
	// Delete removes the title, its genre links, its reviews and their comments.
	Delete(ctx context.Context, id int64) error
}

type titleRepository struct {
	db *gorm.DB
}

func NewTitleRepository(db *gorm.DB) TitleRepository {
	return &titleRepository{db: db}
}

func (r *titleRepository) withRating(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Title{}).
		Select("titles.*, " + ratingColumn).
		Preload("Category").
		Preload("Genres", func(db *gorm.DB) *gorm.DB { return db.Order("genres.name asc") })
}

func applyTitleFilter(q *gorm.DB, f TitleFilter) *gorm.DB {
	if name := strings.TrimSpace(f.Name); name != "" {
		q = q.Where("titles.name ILIKE ?", "%"+name+"%")
	}
	if f.Year != 0 {
		q = q.Where("titles.year = ?", f.Year)
	}
	if f.Category != "" {
		q = q.Where("titles.category_id IN (SELECT id FROM categories WHERE slug = ?)", f.Category)
	}
	if f.Genre != "" {
		q = q.Where(`EXISTS (SELECT 1 FROM title_genres tg JOIN genres g ON g.id = tg.genre_id
			WHERE tg.title_id = titles.id AND g.slug = ?)`, f.Genre)
	}
	return q
}

// List orders by rating, highest first, unrated last; id breaks ties.
func (r *titleRepository) List(ctx context.Context, filter TitleFilter, page Page) ([]models.Title, int64, error) {
	var list []models.Title
	var total int64

	if err := applyTitleFilter(r.db.WithContext(ctx).Model(&models.Title{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count titles: %w", err)
	}

	if err := applyTitleFilter(r.withRating(ctx), filter).
		Order("rating DESC NULLS LAST, titles.id ASC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("list titles: %w", err)
	}
	return list, total, nil
}

func (r *titleRepository) GetByID(ctx context.Context, id int64) (*models.Title, error) {
	var t models.Title
	if err := r.withRating(ctx).Where("titles.id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *titleRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Title{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *titleRepository) Create(ctx context.Context, t *models.Title) error {
	// genres and category already exist; only the join rows are written
	if err := r.db.WithContext(ctx).Omit("Category", "Genres.*").Create(t).Error; err != nil {
		return fmt.Errorf("create title: %w", translateError(err))
	}
	return nil
}

func (r *titleRepository) Update(ctx context.Context, id int64, changes TitleChanges) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Title
		if err := tx.First(&t, id).Error; err != nil {
			return err
		}
		if len(changes.Fields) > 0 {
			if err := tx.Model(&t).Updates(changes.Fields).Error; err != nil {
				return fmt.Errorf("update title: %w", translateError(err))
			}
		}
		if changes.ReplaceGenres {
			genres := changes.Genres
			if genres == nil {
				genres = []models.Genre{}
			}
			if err := tx.Model(&t).Omit("Genres.*").Association("Genres").Replace(genres); err != nil {
				return fmt.Errorf("replace genres: %w", err)
			}
		}
		return nil
	}, readCommitted)
}

func (r *titleRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := tx.Model(&models.Review{}).Select("id").Where("title_id = ?", id)
		if err := tx.Where("review_id IN (?)", reviews).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := tx.Where("title_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return fmt.Errorf("delete reviews: %w", err)
		}
		if err := tx.Where("title_id = ?", id).Delete(&models.TitleGenre{}).Error; err != nil {
			return fmt.Errorf("delete genre links: %w", err)
		}
		result := tx.Delete(&models.Title{}, id)
		if result.Error != nil {
			return fmt.Errorf("delete title: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}, readCommitted)
}
