package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yamdb/internal/microservices/http-api/access"
)

type User struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	Username    string      `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email       string      `gorm:"size:254;uniqueIndex;not null" json:"email"` // stored lower-cased
	FirstName   string      `gorm:"size:150" json:"first_name"`
	LastName    string      `gorm:"size:150" json:"last_name"`
	Bio         string      `gorm:"type:text" json:"bio"`
	Role        access.Role `gorm:"type:varchar(16);default:'user';not null" json:"role"`
	IsSuperuser bool        `gorm:"default:false;not null" json:"-"`
	IsActive    bool        `gorm:"default:false;not null" json:"is_active"`

	// Outstanding confirmation code, bcrypt-hashed. Nil once consumed.
	ConfirmationCodeHash  *string    `gorm:"size:72" json:"-"`
	ConfirmationExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// BeforeCreate hook to set UUID before creating a User
func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = access.RoleUser
	}
	return
}

func (User) TableName() string {
	return "users"
}

// Actor converts the account into the identity used by permission checks.
func (user *User) Actor() access.Actor {
	return access.Actor{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		Superuser: user.IsSuperuser,
	}
}
