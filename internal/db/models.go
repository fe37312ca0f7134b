package db

import (
	"time"
)

// User lifecycle states.
const (
	UserStateIncomplete = "INCOMPLETE"
	UserStateActive     = "ACTIVE"
	UserStatePaused     = "PAUSED"
	UserStateBanned     = "BANNED"
)

// Swipe directions.
const (
	DirectionLike      = "LIKE"
	DirectionPass      = "PASS"
	DirectionSuperlike = "SUPERLIKE"
)

// Match states.
const (
	MatchStateActive = "ACTIVE"
	MatchStateEnded  = "ENDED"
)

// Match end reasons.
const (
	EndReasonUnmatch = "UNMATCH"
	EndReasonBlock   = "BLOCK"
)

// User table. Owned by the profile subsystem; the matching core only reads it.
//
// InterestedIn and the Dealbreaker* columns are comma-separated sets; an
// empty dealbreaker set means "no preference".
type User struct {
	ID            string `gorm:"primaryKey;size:36"`
	Name          string `gorm:"size:64;not null"`
	Email         string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash  string `gorm:"size:255;not null"`
	State         string `gorm:"size:16;not null;default:ACTIVE;index"`
	Gender        string `gorm:"size:16;not null"`
	InterestedIn  string `gorm:"size:64;not null"`
	Age           int    `gorm:"not null"`
	MinAge        int    `gorm:"default:18"`
	MaxAge        int    `gorm:"default:99"`
	Lat           float64
	Lon           float64
	MaxDistanceKm float64 `gorm:"default:100"`

	// Lifestyle answers
	Smoking   string `gorm:"size:16"`
	Drinking  string `gorm:"size:16"`
	WantsKids string `gorm:"size:16"`

	// One-way hard filters: candidates outside these sets are never shown
	DealbreakerSmoking  string `gorm:"size:64"`
	DealbreakerDrinking string `gorm:"size:64"`
	DealbreakerKids     string `gorm:"size:64"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Like represents a swipe from one user on another.
//
// Composite PK: (FromID, ToID)
//   - At most one like per ordered pair; inserts are idempotent.
//
// Indexes:
//   - idx_to_direction(to_id, direction) for O(1) mutual-like checks and
//     "who liked me" listings.
//   - idx_from_created(from_id, created_at) for daily quota counting.
//
// Immutable once persisted except for deletion during undo.
type Like struct {
	FromID    string    `gorm:"primaryKey;size:36;index:idx_from_created,priority:1"`
	ToID      string    `gorm:"primaryKey;size:36;index:idx_to_direction,priority:1"`
	Direction string    `gorm:"size:12;not null;index:idx_to_direction,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_from_created,priority:2"`
}

// Match between two users who mutually liked each other.
//
// ID is derived deterministically from the unordered user pair, so the same
// two users always resolve to the same row regardless of like order.
// UserA is always the lower identifier. Ended matches are kept (soft delete);
// only undo hard-deletes a match, and only the one its swipe created.
type Match struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserA     string    `gorm:"size:36;not null;index"`
	UserB     string    `gorm:"size:36;not null;index"`
	State     string    `gorm:"size:16;not null;default:ACTIVE"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	EndedAt   *time.Time
	EndedBy   string `gorm:"size:36"`
	EndReason string `gorm:"size:32"`
}

// Block from one user against another. Exclusion applies in both directions.
type Block struct {
	BlockerID string    `gorm:"primaryKey;size:36"`
	BlockedID string    `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// DailyPick stores the deterministic "pick of the day" for a user.
//
// Composite PK: (UserID, PickDate). Write-once per date: once populated the
// row is never overwritten, even under concurrent recomputation.
type DailyPick struct {
	UserID    string    `gorm:"primaryKey;size:36"`
	PickDate  string    `gorm:"primaryKey;size:10"`
	PickedID  string    `gorm:"size:36;not null"`
	Viewed    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
