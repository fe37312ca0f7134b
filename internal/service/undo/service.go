// Package undo implements the time-bounded reversal of a user's last swipe.
package undo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kindredapp/kindred/internal/app"
	"github.com/kindredapp/kindred/internal/db"
	"github.com/kindredapp/kindred/internal/repository"
	"github.com/kindredapp/kindred/internal/session"
)

// Service remembers the most recent swipe per user for a bounded window and
// can atomically reverse it: delete the like and, when a match was formed by
// that exact swipe, retract the match too.
//
// Exactly one live record per user; each new swipe replaces the previous
// one. Records live only in memory; the window is seconds, so losing them
// on restart is acceptable.
type Service struct {
	appCtx  *app.AppContext
	stripes *session.Stripes
	window  time.Duration

	mu      sync.Mutex
	records map[string]*record

	now func() time.Time
}

type record struct {
	like       db.Like
	matchID    string // match created by this swipe, if any
	recordedAt time.Time
}

// Result of an undo attempt. Business outcomes (nothing to undo, window
// expired) are reported here, never as errors.
type Result struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	UndoneLike   *db.Like `json:"undone_like,omitempty"`
	MatchDeleted bool     `json:"match_deleted"`
}

// NewService creates the undo service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, stripes *session.Stripes) *Service {
	return &Service{
		appCtx:  appCtx,
		stripes: stripes,
		window:  time.Duration(appCtx.Config.Matching.UndoWindowSeconds) * time.Second,
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

// RecordSwipe stores the most recent swipe for the user, replacing any prior
// record. matchID is the match created by this swipe, or empty.
func (s *Service) RecordSwipe(userID string, like db.Like, matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = &record{like: like, matchID: matchID, recordedAt: s.now()}
}

// CanUndo reports whether an unexpired record exists. Expired records are
// dropped on access.
func (s *Service) CanUndo(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return false
	}
	if s.now().Sub(rec.recordedAt) > s.window {
		delete(s.records, userID)
		return false
	}
	return true
}

// SecondsRemaining returns how long the current record stays undoable.
// Zero when nothing is recorded or the window has elapsed.
func (s *Service) SecondsRemaining(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return 0
	}
	left := s.window - s.now().Sub(rec.recordedAt)
	if left < 0 {
		return 0
	}
	return int(left / time.Second)
}

// Clear drops the user's undo record.
func (s *Service) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
}

// Undo reverses the user's last swipe while holding the same stripe lock
// the swipe was recorded under.
//
// Behavior:
//   - No record, or record expired -> structured failure result, no-op.
//   - Otherwise the like row and, if formed by that swipe, the match row are
//     deleted in one transaction, and the record is cleared so a second call
//     is a no-op. An undone LIKE/SUPERLIKE releases its quota slot.
//   - Storage failures propagate as errors; the record is kept so the user
//     may retry.
func (s *Service) Undo(ctx context.Context, userID string) (*Result, error) {
	lock := s.stripes.For(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	rec, ok := s.records[userID]
	if ok && s.now().Sub(rec.recordedAt) > s.window {
		delete(s.records, userID)
		rec, ok = nil, false
		s.mu.Unlock()
		s.appCtx.Logger.Debug("undo rejected, window expired", "user", userID)
		return &Result{Success: false, Message: "Undo window expired."}, nil
	}
	s.mu.Unlock()

	if !ok {
		return &Result{Success: false, Message: "No swipe to undo."}, nil
	}

	matchDeleted := rec.matchID != ""
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := repository.NewLikeRepository(tx)
		if err := likes.Delete(ctx, rec.like.FromID, rec.like.ToID); err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if matchDeleted {
			matches := repository.NewMatchRepository(tx)
			if err := matches.Delete(ctx, rec.matchID); err != nil {
				return fmt.Errorf("delete match: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("undo swipe: %w", err)
	}

	s.Clear(userID)

	// an undone like gives the quota slot back; the counter is a cache, so
	// failures are logged and the database count stays authoritative
	if rec.like.Direction != db.DirectionPass {
		date := rec.recordedAt.UTC().Format("2006-01-02")
		if err := s.appCtx.RedisCache.DecrDailyLikes(ctx, userID, date); err != nil {
			s.appCtx.Logger.Warn("quota counter release failed", "user", userID, "err", err)
		}
	}

	s.appCtx.Logger.Info("swipe undone",
		"user", userID, "target", rec.like.ToID, "match_deleted", matchDeleted)

	like := rec.like
	return &Result{
		Success:      true,
		Message:      "Swipe undone.",
		UndoneLike:   &like,
		MatchDeleted: matchDeleted,
	}, nil
}
