package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kindredapp/kindred/internal/db"
	"github.com/kindredapp/kindred/internal/pairid"
)

// MatchRepository provides data access methods for the Match model.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// UpsertActive inserts an ACTIVE match for the pair, idempotently.
//
// Behavior:
//   - The row is keyed by the deterministic pair id, participants stored in
//     canonical order (lower id first).
//   - Insert-or-ignore: when two mutual-like completions race from either
//     side, whichever write wins, both converge on the same row. The row as
//     persisted is returned either way.
//
// Example:
//
//	match, err := repo.UpsertActive(ctx, userA, userB)
func (r *MatchRepository) UpsertActive(ctx context.Context, a, b string) (*db.Match, error) {
	lo, hi := pairid.Ordered(a, b)
	match := db.Match{
		ID:    pairid.PairID(a, b),
		UserA: lo,
		UserB: hi,
		State: db.MatchStateActive,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&match).Error
	if err != nil {
		return nil, err
	}

	// Re-read so racing callers observe identical persisted state.
	return r.GetByPairID(ctx, match.ID)
}

// GetByPairID fetches a match by its deterministic pair id.
// Returns gorm.ErrRecordNotFound if no row exists.
func (r *MatchRepository) GetByPairID(ctx context.Context, pairID string) (*db.Match, error) {
	var match db.Match
	err := r.db.WithContext(ctx).First(&match, "id = ?", pairID).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// Delete hard-deletes a match. Only undo calls this, and only for the match
// its recorded swipe created.
func (r *MatchRepository) Delete(ctx context.Context, pairID string) error {
	return r.db.WithContext(ctx).Delete(&db.Match{}, "id = ?", pairID).Error
}

// End soft-deletes a match: marks it ENDED with who ended it and why.
// The row is kept for history and never reactivated.
func (r *MatchRepository) End(ctx context.Context, pairID, endedBy, reason string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND state = ?", pairID, db.MatchStateActive).
		Updates(map[string]interface{}{
			"state":      db.MatchStateEnded,
			"ended_at":   &now,
			"ended_by":   endedBy,
			"end_reason": reason,
		}).Error
}

// GetAllFor returns every match the user participates in, any state.
func (r *MatchRepository) GetAllFor(ctx context.Context, userID string) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Order("created_at DESC").
		Find(&matches).Error
	return matches, err
}
