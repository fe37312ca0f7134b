package daily_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kindredapp/kindred/internal/app"
	"github.com/kindredapp/kindred/internal/cache"
	"github.com/kindredapp/kindred/internal/config"
	"github.com/kindredapp/kindred/internal/db"
	"github.com/kindredapp/kindred/internal/repository"
	"github.com/kindredapp/kindred/internal/service/daily"
)

func setupAppCtx(t *testing.T, limit int) *app.AppContext {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&db.User{}, &db.Like{}, &db.Match{}, &db.Block{}, &db.DailyPick{}))

	mr := miniredis.RunT(t)
	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Matching.DailyLikeLimit = limit

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return app.New(database, cache.NewRedisCache(cfg), log, cfg)
}

func activeUser(id string) db.User {
	return db.User{
		ID:           id,
		Name:         "user " + id,
		Email:        id + "@example.test",
		PasswordHash: "x",
		State:        db.UserStateActive,
		Gender:       "FEMALE",
		InterestedIn: "MALE",
		Age:          30,
	}
}

func seedUsers(t *testing.T, appCtx *app.AppContext, ids ...string) []db.User {
	t.Helper()
	users := make([]db.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, activeUser(id))
	}
	require.NoError(t, appCtx.DB.Create(&users).Error)
	return users
}

func staticSupplier(users []db.User) daily.CandidateSupplier {
	return func(ctx context.Context) ([]db.User, error) { return users, nil }
}

func TestDailyPick_SameUserSameDaySamePick(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 25)
	svc := daily.NewService(appCtx)

	users := seedUsers(t, appCtx, "seeker", "c1", "c2", "c3", "c4")
	seeker := users[0]

	first, err := svc.GetOrComputeDailyPick(ctx, &seeker, staticSupplier(users[1:]))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.GetOrComputeDailyPick(ctx, &seeker, staticSupplier(users[1:]))
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, first.Date, second.Date)
}

func TestDailyPick_SupplierRunsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 25)
	svc := daily.NewService(appCtx)

	users := seedUsers(t, appCtx, "seeker", "c1", "c2", "c3")
	seeker := users[0]

	var calls atomic.Int32
	supplier := func(ctx context.Context) ([]db.User, error) {
		calls.Add(1)
		return users[1:], nil
	}

	const goroutines = 50
	picks := make([]string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pick, err := svc.GetOrComputeDailyPick(ctx, &seeker, supplier)
			if err == nil && pick != nil {
				picks[i] = pick.User.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "supplier must run once per user per day")
	for i := 1; i < goroutines; i++ {
		assert.Equal(t, picks[0], picks[i], "every caller sees the same pick")
	}
}

func TestDailyPick_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 25)

	users := seedUsers(t, appCtx, "seeker", "c1", "c2", "c3")
	seeker := users[0]

	first, err := daily.NewService(appCtx).GetOrComputeDailyPick(ctx, &seeker, staticSupplier(users[1:]))
	require.NoError(t, err)
	require.NotNil(t, first)

	// fresh service over the same database: the persisted row wins, the
	// supplier is never consulted
	rebuilt := daily.NewService(appCtx)
	failing := func(ctx context.Context) ([]db.User, error) {
		t.Fatal("supplier must not run when a pick is already persisted")
		return nil, nil
	}
	second, err := rebuilt.GetOrComputeDailyPick(ctx, &seeker, failing)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestDailyPick_EvictsIneligiblePick(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 25)
	svc := daily.NewService(appCtx)

	users := seedUsers(t, appCtx, "seeker", "c1", "c2")
	seeker := users[0]

	first, err := svc.GetOrComputeDailyPick(ctx, &seeker, staticSupplier(users[1:]))
	require.NoError(t, err)
	require.NotNil(t, first)

	// blocking the picked user invalidates the cached entry
	blocks := repository.NewBlockRepository(appCtx.DB)
	require.NoError(t, blocks.Save(ctx, &db.Block{BlockerID: seeker.ID, BlockedID: first.User.ID}))

	var remaining []db.User
	for _, u := range users[1:] {
		if u.ID != first.User.ID {
			remaining = append(remaining, u)
		}
	}
	second, err := svc.GetOrComputeDailyPick(ctx, &seeker, staticSupplier(remaining))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.User.ID, second.User.ID)
}

func TestDailyPick_NoCandidatesNotCached(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 25)
	svc := daily.NewService(appCtx)

	users := seedUsers(t, appCtx, "seeker", "c1")
	seeker := users[0]

	pick, err := svc.GetOrComputeDailyPick(ctx, &seeker, staticSupplier(nil))
	require.NoError(t, err)
	assert.Nil(t, pick)

	// a candidate appearing later the same day is still reachable
	pick, err = svc.GetOrComputeDailyPick(ctx, &seeker, staticSupplier(users[1:]))
	require.NoError(t, err)
	require.NotNil(t, pick)
	assert.Equal(t, "c1", pick.User.ID)
}

func TestDailyPick_MarkViewed(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 25)
	svc := daily.NewService(appCtx)

	users := seedUsers(t, appCtx, "seeker", "c1")
	seeker := users[0]

	pick, err := svc.GetOrComputeDailyPick(ctx, &seeker, staticSupplier(users[1:]))
	require.NoError(t, err)
	require.NotNil(t, pick)
	assert.False(t, pick.Viewed)

	require.NoError(t, svc.MarkViewed(ctx, seeker.ID))

	pick, err = svc.GetOrComputeDailyPick(ctx, &seeker, staticSupplier(users[1:]))
	require.NoError(t, err)
	require.NotNil(t, pick)
	assert.True(t, pick.Viewed)
}

func TestCanLike_DatabaseFallback(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 2)
	svc := daily.NewService(appCtx)
	likes := repository.NewLikeRepository(appCtx.DB)

	seedUsers(t, appCtx, "u1", "a", "b")

	ok, err := svc.CanLike(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, likes.Save(ctx, &db.Like{FromID: "u1", ToID: "a", Direction: db.DirectionLike}))
	svc.RecordLike(ctx, "u1")
	require.NoError(t, likes.Save(ctx, &db.Like{FromID: "u1", ToID: "b", Direction: db.DirectionLike}))
	svc.RecordLike(ctx, "u1")

	ok, err = svc.CanLike(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "limit of 2 is exhausted")
}

func TestCanLike_CacheFirst(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 5)
	svc := daily.NewService(appCtx)

	// counter at the limit with an empty likes table: the cache wins
	require.NoError(t, appCtx.RedisCache.SetDailyLikeCount(ctx, "u1", svc.Today(), 5, time.Minute))

	ok, err := svc.CanLike(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanLike_UnlimitedWhenNoLimit(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 0)
	svc := daily.NewService(appCtx)

	ok, err := svc.CanLike(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t, 10)
	svc := daily.NewService(appCtx)

	require.NoError(t, appCtx.RedisCache.SetDailyLikeCount(ctx, "u1", svc.Today(), 3, time.Minute))

	status, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, svc.Today(), status.Date)
	assert.Equal(t, 3, status.LikesUsed)
	assert.Equal(t, 7, status.LikesRemaining)
	assert.True(t, status.ResetAt.After(time.Now().UTC()))
}
