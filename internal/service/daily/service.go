// Package daily owns the per-day state of the matching core: the like quota
// and the deterministic daily pick.
package daily

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/kindredapp/kindred/internal/app"
	"github.com/kindredapp/kindred/internal/db"
	"github.com/kindredapp/kindred/internal/repository"
)

const dateLayout = "2006-01-02"

// CandidateSupplier produces the current eligible candidate list for the
// user a pick is being computed for.
type CandidateSupplier func(ctx context.Context) ([]db.User, error)

// Service enforces the daily like quota and caches the daily pick.
//
// Quota counting is cache-first: a Redis counter keyed by user and date with
// a TTL to the next midnight, falling back to a database count on miss.
//
// The pick cache is a plain map guarded by a mutex scoped tightly around the
// check-and-insert, so the supplier runs at most once per (user, date) no
// matter how many callers race. Selection is seeded by date + user id hash,
// so a rebuilt cache reproduces the same pick mid-day.
type Service struct {
	appCtx    *app.AppContext
	likeRepo  *repository.LikeRepository
	userRepo  *repository.UserRepository
	blockRepo *repository.BlockRepository
	pickRepo  *repository.DailyPickRepository

	mu        sync.Mutex
	picks     map[string]string // userID|date -> picked user id
	picksDate string            // date the map entries belong to

	now func() time.Time
}

// NewService creates the daily service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		likeRepo:  repository.NewLikeRepository(appCtx.DB),
		userRepo:  repository.NewUserRepository(appCtx.DB),
		blockRepo: repository.NewBlockRepository(appCtx.DB),
		pickRepo:  repository.NewDailyPickRepository(appCtx.DB),
		picks:     make(map[string]string),
		now:       time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

// Today returns the current calendar date in UTC.
func (s *Service) Today() string {
	return s.now().UTC().Format(dateLayout)
}

func (s *Service) startOfToday() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) untilMidnight() time.Duration {
	return s.startOfToday().Add(24 * time.Hour).Sub(s.now().UTC())
}

// ================== Quota ==================

// CanLike reports whether the user has like quota left today.
// A non-positive configured limit means unlimited likes.
func (s *Service) CanLike(ctx context.Context, userID string) (bool, error) {
	limit := s.appCtx.Config.Matching.DailyLikeLimit
	if limit <= 0 {
		return true, nil
	}
	used, err := s.likesUsedToday(ctx, userID)
	if err != nil {
		return false, err
	}
	return used < int64(limit), nil
}

// RecordLike bumps the quota counter after a like was persisted.
// The counter is a cache; failures here are logged, never surfaced, since
// the database count remains the source of truth.
func (s *Service) RecordLike(ctx context.Context, userID string) {
	date := s.Today()
	_, ok, err := s.appCtx.RedisCache.GetDailyLikeCount(ctx, userID, date)
	if err != nil {
		s.appCtx.Logger.Warn("quota counter read failed", "user", userID, "err", err)
		return
	}
	if !ok {
		// prime from DB; the just-persisted like is already included
		count, err := s.likeRepo.CountLikesSince(ctx, userID, s.startOfToday())
		if err != nil {
			s.appCtx.Logger.Warn("quota counter prime failed", "user", userID, "err", err)
			return
		}
		if err := s.appCtx.RedisCache.SetDailyLikeCount(ctx, userID, date, count, s.untilMidnight()); err != nil {
			s.appCtx.Logger.Warn("quota counter write failed", "user", userID, "err", err)
		}
		return
	}
	if _, err := s.appCtx.RedisCache.IncrDailyLikes(ctx, userID, date, s.untilMidnight()); err != nil {
		s.appCtx.Logger.Warn("quota counter incr failed", "user", userID, "err", err)
	}
}

// likesUsedToday is cache-first with a database fallback, teacher-style:
// read the counter, on miss count from the likes table and prime the cache.
func (s *Service) likesUsedToday(ctx context.Context, userID string) (int64, error) {
	date := s.Today()

	if count, ok, err := s.appCtx.RedisCache.GetDailyLikeCount(ctx, userID, date); err == nil && ok {
		return count, nil
	} else if err != nil {
		s.appCtx.Logger.Warn("quota cache unavailable, using db", "user", userID, "err", err)
	}

	count, err := s.likeRepo.CountLikesSince(ctx, userID, s.startOfToday())
	if err != nil {
		return 0, fmt.Errorf("count likes today: %w", err)
	}

	if err := s.appCtx.RedisCache.SetDailyLikeCount(ctx, userID, date, count, s.untilMidnight()); err != nil {
		s.appCtx.Logger.Warn("quota counter write failed", "user", userID, "err", err)
	}
	return count, nil
}

// Status reports the user's quota usage for today.
type Status struct {
	Date           string    `json:"date"`
	LikesUsed      int       `json:"likes_used"`
	LikesRemaining int       `json:"likes_remaining"`
	ResetAt        time.Time `json:"reset_at"`
}

// GetStatus returns likes used/remaining and the next reset time.
func (s *Service) GetStatus(ctx context.Context, userID string) (*Status, error) {
	used, err := s.likesUsedToday(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := s.appCtx.Config.Matching.DailyLikeLimit
	remaining := -1 // unlimited
	if limit > 0 {
		remaining = limit - int(used)
		if remaining < 0 {
			remaining = 0
		}
	}

	return &Status{
		Date:           s.Today(),
		LikesUsed:      int(used),
		LikesRemaining: remaining,
		ResetAt:        s.startOfToday().Add(24 * time.Hour),
	}, nil
}

// ================== Daily pick ==================

// Pick is the resolved daily pick for a user.
type Pick struct {
	User   db.User `json:"user"`
	Date   string  `json:"date"`
	Viewed bool    `json:"viewed"`
}

// GetOrComputeDailyPick returns today's pick for the seeker, computing it at
// most once per (user, date) under any concurrency level. Every caller for
// the same key observes the same candidate.
//
// If the cached pick has since become ineligible (blocked either direction,
// already swiped on, or no longer active) the entry is evicted and the pick
// recomputed. That re-validation is layered above the cache, not part of the
// atomic compute-if-absent.
//
// Returns (nil, nil) when no eligible candidates exist.
func (s *Service) GetOrComputeDailyPick(ctx context.Context, seeker *db.User, supplier CandidateSupplier) (*Pick, error) {
	date := s.Today()

	pickedID, err := s.getOrCompute(ctx, seeker.ID, date, supplier)
	if err != nil {
		return nil, err
	}
	if pickedID == "" {
		return nil, nil
	}

	ok, err := s.stillEligible(ctx, seeker.ID, pickedID)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.appCtx.Logger.Debug("daily pick no longer eligible, recomputing",
			"user", seeker.ID, "pick", pickedID)
		if err := s.evict(ctx, seeker.ID, date); err != nil {
			return nil, err
		}
		pickedID, err = s.getOrCompute(ctx, seeker.ID, date, supplier)
		if err != nil {
			return nil, err
		}
		if pickedID == "" {
			return nil, nil
		}
	}

	picked, err := s.userRepo.Get(ctx, pickedID)
	if err != nil {
		return nil, fmt.Errorf("load daily pick: %w", err)
	}

	viewed := false
	if row, err := s.pickRepo.Get(ctx, seeker.ID, date); err == nil && row != nil {
		viewed = row.Viewed
	}

	return &Pick{User: *picked, Date: date, Viewed: viewed}, nil
}

// MarkViewed flags today's pick as seen.
func (s *Service) MarkViewed(ctx context.Context, userID string) error {
	return s.pickRepo.MarkViewed(ctx, userID, s.Today())
}

// getOrCompute is the atomic compute-if-absent. The lock covers the
// check-and-insert and the single supplier invocation; losers of the race
// block until the winner has stored, then read the winning value.
func (s *Service) getOrCompute(ctx context.Context, userID, date string, supplier CandidateSupplier) (string, error) {
	key := userID + "|" + date

	s.mu.Lock()
	defer s.mu.Unlock()

	// day rollover: yesterday's entries can never be read again
	if s.picksDate != date {
		s.picks = make(map[string]string)
		s.picksDate = date
	}

	if id, ok := s.picks[key]; ok {
		return id, nil
	}

	// a restarted process finds the persisted write-once row first
	if row, err := s.pickRepo.Get(ctx, userID, date); err != nil {
		return "", fmt.Errorf("read daily pick: %w", err)
	} else if row != nil {
		s.picks[key] = row.PickedID
		return row.PickedID, nil
	}

	candidates, err := supplier(ctx)
	if err != nil {
		return "", fmt.Errorf("daily pick candidates: %w", err)
	}
	if len(candidates) == 0 {
		return "", nil // not cached; a candidate may appear later today
	}

	chosen := deterministicPick(userID, date, candidates)
	stored, err := s.pickRepo.SaveIfAbsent(ctx, &db.DailyPick{
		UserID:   userID,
		PickDate: date,
		PickedID: chosen.ID,
	})
	if err != nil {
		return "", fmt.Errorf("store daily pick: %w", err)
	}

	s.picks[key] = stored.PickedID
	return stored.PickedID, nil
}

func (s *Service) evict(ctx context.Context, userID, date string) error {
	s.mu.Lock()
	delete(s.picks, userID+"|"+date)
	s.mu.Unlock()
	return s.pickRepo.Delete(ctx, userID, date)
}

// stillEligible re-checks a cached pick against current state without
// invoking the candidate supplier.
func (s *Service) stillEligible(ctx context.Context, seekerID, pickedID string) (bool, error) {
	picked, err := s.userRepo.Get(ctx, pickedID)
	if err != nil {
		return false, nil // picked user gone: ineligible, not an error
	}
	if picked.State != db.UserStateActive {
		return false, nil
	}
	if blocked, err := s.blockRepo.IsBlocked(ctx, seekerID, pickedID); err != nil {
		return false, err
	} else if blocked {
		return false, nil
	}
	if swiped, err := s.likeRepo.Exists(ctx, seekerID, pickedID); err != nil {
		return false, err
	} else if swiped {
		return false, nil
	}
	return true, nil
}

// deterministicPick selects from candidates seeded by date + user id hash.
// FNV is stable across processes, so recomputation after a restart lands on
// the same candidate for the same snapshot.
func deterministicPick(userID, date string, candidates []db.User) db.User {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))

	epochDay := int64(0)
	if t, err := time.Parse(dateLayout, date); err == nil {
		epochDay = t.Unix() / 86400
	}

	r := rand.New(rand.NewSource(epochDay + int64(h.Sum64())))
	return candidates[r.Intn(len(candidates))]
}
