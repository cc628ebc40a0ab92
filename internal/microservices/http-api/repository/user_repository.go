package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yamdb/internal/microservices/http-api/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, search string, page Page) ([]models.User, int64, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error

	// SetConfirmation replaces the outstanding confirmation code.
	SetConfirmation(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	// ConsumeConfirmation clears the code and activates the account only if
	// codeHash is still the outstanding one. It reports whether this call won.
	ConsumeConfirmation(ctx context.Context, id, codeHash string) (bool, error)
}

// userRepository is the GORM implementation of UserRepository.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository in a GORM implementation
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	return translateError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		// return nil rather than a zero-value user so callers never mistake it for a hit
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, search string, page Page) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.User{})
		if search = strings.TrimSpace(search); search != "" {
			q = q.Where("username ILIKE ?", "%"+search+"%")
		}
		return q
	}

	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query().
		Order("username ASC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if email, ok := fields["email"].(string); ok {
		fields["email"] = strings.ToLower(email)
	}
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the account together with everything it authored.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error; err != nil {
			return err
		}
		// comments by the user, and comments under the user's reviews
		if err := tx.Where("author_id = ? OR review_id IN (?)", id,
			tx.Model(&models.Review{}).Select("id").Where("author_id = ?", id),
		).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	}, readCommitted)
}

func (r *userRepository) SetConfirmation(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"confirmation_code_hash":  codeHash,
		"confirmation_expires_at": expiresAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) ConsumeConfirmation(ctx context.Context, id, codeHash string) (bool, error) {
	now := time.Now()
	// single conditional UPDATE: concurrent replays of the same code and a code
	// that expired after the caller checked it both see zero rows
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND confirmation_code_hash = ? AND confirmation_expires_at > ?", id, codeHash, now).
		Updates(map[string]any{
			"confirmation_code_hash":  nil,
			"confirmation_expires_at": nil,
			"is_active":               true,
			"last_login":              now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
