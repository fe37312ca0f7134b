// Package matching implements candidate selection and the swipe pipeline:
// quota check, like persistence, mutual-like detection and atomic match
// formation, all serialized per user by stripe locks.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/kindredapp/kindred/internal/app"
	"github.com/kindredapp/kindred/internal/db"
	svcErr "github.com/kindredapp/kindred/internal/errors"
	"github.com/kindredapp/kindred/internal/pairid"
	"github.com/kindredapp/kindred/internal/repository"
	"github.com/kindredapp/kindred/internal/service/daily"
	"github.com/kindredapp/kindred/internal/service/undo"
	"github.com/kindredapp/kindred/internal/session"
)

// Service coordinates swipes and matches on top of the repository layer.
type Service struct {
	appCtx    *app.AppContext
	likeRepo  *repository.LikeRepository
	matchRepo *repository.MatchRepository
	userRepo  *repository.UserRepository
	blockRepo *repository.BlockRepository

	daily   *daily.Service
	undoSvc *undo.Service
	stripes *session.Stripes
}

// NewService creates the matching service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, dailySvc *daily.Service, undoSvc *undo.Service, stripes *session.Stripes) *Service {
	return &Service{
		appCtx:    appCtx,
		likeRepo:  repository.NewLikeRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
		userRepo:  repository.NewUserRepository(appCtx.DB),
		blockRepo: repository.NewBlockRepository(appCtx.DB),
		daily:     dailySvc,
		undoSvc:   undoSvc,
		stripes:   stripes,
	}
}

// SwipeResult is the structured outcome of a swipe. Business rejections
// (daily limit) come back here with Success=false, never as errors.
type SwipeResult struct {
	Success bool      `json:"success"`
	Matched bool      `json:"matched"`
	Match   *db.Match `json:"match,omitempty"`
	Like    *db.Like  `json:"like,omitempty"`
	Message string    `json:"message"`
}

func matchedResult(m *db.Match, l *db.Like) *SwipeResult {
	return &SwipeResult{Success: true, Matched: true, Match: m, Like: l, Message: "It's a match!"}
}

func likedResult(l *db.Like) *SwipeResult {
	return &SwipeResult{Success: true, Like: l, Message: "Liked!"}
}

func passedResult(l *db.Like) *SwipeResult {
	return &SwipeResult{Success: true, Like: l, Message: "Passed."}
}

func dailyLimitResult() *SwipeResult {
	return &SwipeResult{Success: false, Message: "Daily like limit reached."}
}

// FindCandidatesForUser fetches active users and the seeker's exclusions
// (already swiped on, blocked either direction) and runs the candidate
// filter.
func (s *Service) FindCandidatesForUser(ctx context.Context, seeker *db.User) ([]db.User, error) {
	s.appCtx.Logger.Debug("FindCandidatesForUser called", "user", seeker.ID)

	active, err := s.userRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active users: %w", err)
	}

	excluded, err := s.likeRepo.GetLikedOrPassedIDs(ctx, seeker.ID)
	if err != nil {
		return nil, fmt.Errorf("load swiped ids: %w", err)
	}
	blocked, err := s.blockRepo.GetBlockedIDs(ctx, seeker.ID)
	if err != nil {
		return nil, fmt.Errorf("load blocked ids: %w", err)
	}
	for id := range blocked {
		excluded[id] = struct{}{}
	}

	candidates := FindCandidates(seeker, active, excluded)

	s.appCtx.Logger.Debug("FindCandidatesForUser result",
		"user", seeker.ID, "candidates", len(candidates), "active", len(active))
	return candidates, nil
}

// ProcessSwipe records a like/pass from user on candidate and returns the
// structured outcome.
//
// Runs under the swiper's stripe lock so all operations for one user are
// totally ordered. Steps:
//  1. Quota pre-check (LIKE/SUPERLIKE only), read-only, outside the
//     transaction.
//  2. Persist the like idempotently, check for the reverse like and upsert
//     the match in one transaction, no partial state observable.
//  3. Record undo state and bump the quota counter.
func (s *Service) ProcessSwipe(ctx context.Context, user, candidate *db.User, direction string) (*SwipeResult, error) {
	switch direction {
	case db.DirectionLike, db.DirectionPass, db.DirectionSuperlike:
	default:
		return nil, svcErr.InvalidArgument("direction must be LIKE, PASS or SUPERLIKE")
	}
	if user.ID == candidate.ID {
		return nil, svcErr.InvalidArgument("cannot swipe on yourself")
	}

	s.appCtx.Logger.Debug("ProcessSwipe called",
		"user", user.ID, "candidate", candidate.ID, "direction", direction)

	lock := s.stripes.For(user.ID)
	lock.Lock()
	defer lock.Unlock()

	if direction != db.DirectionPass {
		ok, err := s.daily.CanLike(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("quota check: %w", err)
		}
		if !ok {
			s.appCtx.Logger.Info("daily like limit reached", "user", user.ID)
			return dailyLimitResult(), nil
		}
	}

	like := db.Like{FromID: user.ID, ToID: candidate.ID, Direction: direction}
	var match *db.Match

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := s.likeRepo.WithTx(tx)

		if err := likes.Save(ctx, &like); err != nil {
			return fmt.Errorf("persist like: %w", err)
		}
		if direction == db.DirectionPass {
			return nil
		}

		mutual, err := likes.HasLiked(ctx, candidate.ID, user.ID)
		if err != nil {
			return fmt.Errorf("mutual check: %w", err)
		}
		if !mutual {
			return nil
		}

		match, err = s.formMatch(ctx, s.matchRepo.WithTx(tx), user.ID, candidate.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if direction != db.DirectionPass {
		s.daily.RecordLike(ctx, user.ID)
	}

	matchID := ""
	if match != nil {
		matchID = match.ID
	}
	s.undoSvc.RecordSwipe(user.ID, like, matchID)

	switch {
	case match != nil:
		s.appCtx.Logger.Info("match formed",
			"match", match.ID, "user_a", match.UserA, "user_b", match.UserB)
		return matchedResult(match, &like), nil
	case direction == db.DirectionPass:
		return passedResult(&like), nil
	default:
		return likedResult(&like), nil
	}
}

// formMatch upserts the ACTIVE match for the pair. The upsert is
// insert-or-ignore, so concurrent completions from either side converge on
// one row. Drivers that surface the conflict as a duplicate-key error
// instead get a fallback read, itself guarded: a fallback failure is logged
// and swallowed because the swipe already succeeded.
func (s *Service) formMatch(ctx context.Context, matches *repository.MatchRepository, userID, candidateID string) (*db.Match, error) {
	match, err := matches.UpsertActive(ctx, userID, candidateID)
	if err != nil {
		pairID := pairid.PairID(userID, candidateID)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create match %s: %w", pairID, err)
		}

		s.appCtx.Logger.Warn("match save conflict", "match", pairID, "err", err)
		existing, ferr := matches.GetByPairID(ctx, pairID)
		if ferr != nil {
			s.appCtx.Logger.Error("fallback match lookup failed", "match", pairID, "err", ferr)
			return nil, nil
		}
		match = existing
	}

	if match != nil && match.State != db.MatchStateActive {
		// pair matched before and ended; the new mutual like does not revive it
		return nil, nil
	}
	return match, nil
}

// PendingLiker is a user who liked the current user and has not been
// responded to.
type PendingLiker struct {
	User    db.User   `json:"user"`
	LikedAt time.Time `json:"liked_at"`
}

// FindPendingLikers returns users who liked the given user, excluding anyone
// already swiped on, blocked either direction, or already matched. Most
// recent like first.
func (s *Service) FindPendingLikers(ctx context.Context, userID string) ([]PendingLiker, error) {
	likers, err := s.likeRepo.GetLikersWithTimes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load likers: %w", err)
	}

	excluded, err := s.likeRepo.GetLikedOrPassedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load swiped ids: %w", err)
	}
	blocked, err := s.blockRepo.GetBlockedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load blocked ids: %w", err)
	}
	for id := range blocked {
		excluded[id] = struct{}{}
	}
	matches, err := s.matchRepo.GetAllFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	for _, m := range matches {
		if m.UserA == userID {
			excluded[m.UserB] = struct{}{}
		} else {
			excluded[m.UserA] = struct{}{}
		}
	}

	ids := make([]string, 0, len(likers))
	for _, entry := range likers {
		if _, skip := excluded[entry.FromID]; !skip {
			ids = append(ids, entry.FromID)
		}
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load likers batch: %w", err)
	}

	result := make([]PendingLiker, 0, len(ids))
	for _, entry := range likers {
		liker, ok := users[entry.FromID]
		if !ok || liker.State != db.UserStateActive {
			continue
		}
		result = append(result, PendingLiker{User: liker, LikedAt: entry.CreatedAt})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LikedAt.After(result[j].LikedAt)
	})
	return result, nil
}

// GetDailyPick resolves today's deterministic pick for the user, feeding the
// candidate filter into the daily cache as its supplier.
func (s *Service) GetDailyPick(ctx context.Context, seeker *db.User) (*daily.Pick, error) {
	return s.daily.GetOrComputeDailyPick(ctx, seeker, func(ctx context.Context) ([]db.User, error) {
		return s.FindCandidatesForUser(ctx, seeker)
	})
}

// Unmatch ends the match between the two users, keeping the row for
// history. The pair id makes the lookup direction-independent.
func (s *Service) Unmatch(ctx context.Context, userID, otherID string) error {
	if err := s.matchRepo.End(ctx, pairid.PairID(userID, otherID), userID, db.EndReasonUnmatch); err != nil {
		return fmt.Errorf("end match: %w", err)
	}
	return nil
}

// GetUser loads a user for the API layer.
func (s *Service) GetUser(ctx context.Context, id string) (*db.User, error) {
	return s.userRepo.Get(ctx, id)
}
