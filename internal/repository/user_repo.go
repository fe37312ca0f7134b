package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kindredapp/kindred/internal/db"
)

// UserRepository provides read access to users for the matching core.
// Profile writes belong to the profile subsystem and are not exposed here.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// FindActive returns all users in ACTIVE state.
func (r *UserRepository) FindActive(ctx context.Context) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("state = ?", db.UserStateActive).
		Order("id").
		Find(&users).Error
	return users, err
}

// Get fetches a single user by id.
// Returns gorm.ErrRecordNotFound if no row exists.
func (r *UserRepository) Get(ctx context.Context, id string) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs batch-loads users by id. Missing ids are simply absent from the
// result map.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]db.User, error) {
	result := make(map[string]db.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []db.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}
