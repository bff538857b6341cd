package repository

import (
	"context"

	"github.com/sgavilanez/planea-api/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access. The planner only
// reads users; identity management lives in an external service.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindAdmins(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND status = ?", models.RoleAdmin, models.StatusActive).
		Find(&admins).Error
	return admins, err
}
