package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kindredapp/kindred/internal/db"
)

// BlockRepository provides data access methods for the Block model.
type BlockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new repository bound to the given DB connection.
func NewBlockRepository(database *gorm.DB) *BlockRepository {
	return &BlockRepository{db: database}
}

// Save records a block, idempotently.
func (r *BlockRepository) Save(ctx context.Context, block *db.Block) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
			DoNothing: true,
		}).
		Create(block).Error
}

// GetBlockedIDs returns every user blocked by or blocking the given user.
// Blocks hide both users from each other, so both directions count.
func (r *BlockRepository) GetBlockedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	var blocks []db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == userID {
			set[b.BlockedID] = struct{}{}
		} else {
			set[b.BlockerID] = struct{}{}
		}
	}
	return set, nil
}

// IsBlocked reports whether either user has blocked the other.
func (r *BlockRepository) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}
