package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kindredapp/kindred/internal/db"
)

// LikeRepository provides data access methods for the Like model.
// It encapsulates all queries related to likes/passes between users.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

// Save inserts a like from -> to.
//
// Behavior:
//   - If a row for (from_id, to_id) already exists, the insert is a no-op:
//     no duplicate row, no error. The first recorded swipe wins.
//
// Example:
//
//	repo.Save(ctx, &db.Like{FromID: a, ToID: b, Direction: db.DirectionLike})
func (r *LikeRepository) Save(ctx context.Context, like *db.Like) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_id"}, {Name: "to_id"}},
			DoNothing: true,
		}).
		Create(like).Error
}

// Exists reports whether any swipe (like or pass) from -> to was recorded.
func (r *LikeRepository) Exists(ctx context.Context, fromID, toID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_id = ? AND to_id = ?", fromID, toID).
		Count(&count).Error
	return count > 0, err
}

// HasLiked reports whether from liked to (LIKE or SUPERLIKE, not PASS).
// Used for mutual-like detection.
func (r *LikeRepository) HasLiked(ctx context.Context, fromID, toID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_id = ? AND to_id = ? AND direction IN ?",
			fromID, toID, []string{db.DirectionLike, db.DirectionSuperlike}).
		Count(&count).Error
	return count > 0, err
}

// Delete removes the swipe from -> to. Only undo calls this.
func (r *LikeRepository) Delete(ctx context.Context, fromID, toID string) error {
	return r.db.WithContext(ctx).
		Where("from_id = ? AND to_id = ?", fromID, toID).
		Delete(&db.Like{}).Error
}

// GetLikedOrPassedIDs returns every user the given user has already swiped
// on, in either direction of intent.
func (r *LikeRepository) GetLikedOrPassedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_id = ?", userID).
		Pluck("to_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// CountLikesSince counts LIKE/SUPERLIKE swipes by the user since the given
// instant. Used as the database fallback for the daily quota counter.
func (r *LikeRepository) CountLikesSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_id = ? AND direction IN ? AND created_at >= ?",
			userID, []string{db.DirectionLike, db.DirectionSuperlike}, since).
		Count(&count).Error
	return count, err
}

// LikerEntry pairs a liker with the time of their like.
type LikerEntry struct {
	FromID    string
	CreatedAt time.Time
}

// GetLikersWithTimes returns users who liked the given user (LIKE/SUPERLIKE),
// most recent first.
//
// Example:
//
//	repo.GetLikersWithTimes(ctx, userID) // for the "liked you" browser
func (r *LikeRepository) GetLikersWithTimes(ctx context.Context, userID string) ([]LikerEntry, error) {
	var entries []LikerEntry
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Select("from_id", "created_at").
		Where("to_id = ? AND direction IN ?",
			userID, []string{db.DirectionLike, db.DirectionSuperlike}).
		Order("created_at DESC, from_id DESC").
		Find(&entries).Error
	return entries, err
}
