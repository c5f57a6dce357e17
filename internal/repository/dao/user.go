package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type User struct {
	WhatsApp string `gorm:"primaryKey;size:20"`
	Name     string `gorm:"not null"`
	Password string `gorm:"not null"`
	Role     string `gorm:"not null;default:member"` // "member" or "admin"

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type UserDAO struct {
	db *gorm.DB
}

func NewUserDAO(db *gorm.DB) *UserDAO {
	return &UserDAO{
		db: db,
	}
}

func (d *UserDAO) Insert(ctx context.Context, user User) (User, error) {
	result := d.db.WithContext(ctx).Create(&user)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return User{}, ErrUserExists
		}

		return User{}, result.Error
	}

	return user, nil
}

func (d *UserDAO) FindByWhatsApp(ctx context.Context, whatsapp string) (User, error) {
	var user User

	result := d.db.WithContext(ctx).First(&user, "whats_app = ?", whatsapp)
	if result.Error != nil {
		return User{}, notFound(result.Error, ErrUserNotFound)
	}

	return user, nil
}

func (d *UserDAO) UpdateRole(ctx context.Context, whatsapp, role string) error {
	result := d.db.WithContext(ctx).Model(&User{}).
		Where("whats_app = ?", whatsapp).
		Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}
