package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kindredapp/kindred/internal/db"
)

// DailyPickRepository provides data access methods for the DailyPick model.
type DailyPickRepository struct {
	db *gorm.DB
}

// NewDailyPickRepository creates a new repository bound to the given DB connection.
func NewDailyPickRepository(database *gorm.DB) *DailyPickRepository {
	return &DailyPickRepository{db: database}
}

// Get fetches the pick for (userID, date). Returns (nil, nil) when no pick
// has been stored yet.
func (r *DailyPickRepository) Get(ctx context.Context, userID, date string) (*db.DailyPick, error) {
	var pick db.DailyPick
	err := r.db.WithContext(ctx).
		First(&pick, "user_id = ? AND pick_date = ?", userID, date).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pick, nil
}

// SaveIfAbsent persists a pick write-once: once a row exists for the date it
// is never overwritten, even under concurrent recomputation. Returns the row
// as persisted, which may be an earlier writer's pick.
func (r *DailyPickRepository) SaveIfAbsent(ctx context.Context, pick *db.DailyPick) (*db.DailyPick, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "pick_date"}},
			DoNothing: true,
		}).
		Create(pick).Error
	if err != nil {
		return nil, err
	}

	stored, err := r.Get(ctx, pick.UserID, pick.PickDate)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		// row vanished between insert and read; treat our value as current
		return pick, nil
	}
	return stored, nil
}

// Delete evicts the stored pick for a date. Used when the cached pick is no
// longer eligible (for example, blocked after caching).
func (r *DailyPickRepository) Delete(ctx context.Context, userID, date string) error {
	return r.db.WithContext(ctx).
		Delete(&db.DailyPick{}, "user_id = ? AND pick_date = ?", userID, date).Error
}

// MarkViewed flags the pick for the date as seen.
func (r *DailyPickRepository) MarkViewed(ctx context.Context, userID, date string) error {
	return r.db.WithContext(ctx).
		Model(&db.DailyPick{}).
		Where("user_id = ? AND pick_date = ?", userID, date).
		Update("viewed", true).Error
}
