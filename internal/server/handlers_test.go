package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kindredapp/kindred/internal/app"
	"github.com/kindredapp/kindred/internal/cache"
	"github.com/kindredapp/kindred/internal/config"
	"github.com/kindredapp/kindred/internal/db"
	"github.com/kindredapp/kindred/internal/server"
	"github.com/kindredapp/kindred/internal/service/daily"
	"github.com/kindredapp/kindred/internal/service/matching"
	"github.com/kindredapp/kindred/internal/service/undo"
	"github.com/kindredapp/kindred/internal/session"
)

func setupRouter(t *testing.T) (http.Handler, *app.AppContext) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&db.User{}, &db.Like{}, &db.Match{}, &db.Block{}, &db.DailyPick{}))

	mr := miniredis.RunT(t)
	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Matching.DailyLikeLimit = 25

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(database, cache.NewRedisCache(cfg), log, cfg)

	stripes := session.New(8)
	dailySvc := daily.NewService(appCtx)
	undoSvc := undo.NewService(appCtx, stripes)
	matchingSvc := matching.NewService(appCtx, dailySvc, undoSvc, stripes)

	return server.NewRouter(server.NewHandler(appCtx, matchingSvc, dailySvc, undoSvc)), appCtx
}

func createUser(t *testing.T, appCtx *app.AppContext, id, gender, interestedIn string) {
	t.Helper()
	u := db.User{
		ID:            id,
		Name:          "user " + id,
		Email:         id + "@example.test",
		PasswordHash:  "x",
		State:         db.UserStateActive,
		Gender:        gender,
		InterestedIn:  interestedIn,
		Age:           30,
		MinAge:        18,
		MaxAge:        99,
		MaxDistanceKm: 100,
	}
	require.NoError(t, appCtx.DB.Create(&u).Error)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestSwipeEndpoint(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")
	createUser(t, appCtx, "u2", "FEMALE", "MALE")

	rec := doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{
		"user_id": "u1", "candidate_id": "u2", "direction": "LIKE",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Success bool   `json:"success"`
		Matched bool   `json:"matched"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.False(t, res.Matched)
	assert.Equal(t, "Liked!", res.Message)

	// reverse swipe reports the match
	rec = doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{
		"user_id": "u2", "candidate_id": "u1", "direction": "LIKE",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Matched)
	assert.Equal(t, "It's a match!", res.Message)
}

func TestSwipeEndpoint_BadRequests(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")
	createUser(t, appCtx, "u2", "FEMALE", "MALE")

	rec := doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{
		"user_id": "u1", "candidate_id": "u2", "direction": "MAYBE",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/swipes", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwipeEndpoint_UnknownUser(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")

	rec := doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{
		"user_id": "u1", "candidate_id": "ghost", "direction": "LIKE",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCandidatesEndpoint(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")
	createUser(t, appCtx, "u2", "FEMALE", "MALE")
	createUser(t, appCtx, "u3", "MALE", "FEMALE")

	rec := doJSON(t, router, http.MethodGet, "/api/users/u1/candidates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Candidates []db.User `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "u2", res.Candidates[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/users/ghost/candidates", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDailyPickEndpoints(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")
	createUser(t, appCtx, "u2", "FEMALE", "MALE")

	rec := doJSON(t, router, http.MethodGet, "/api/users/u1/daily-pick", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Pick *struct {
			User   db.User `json:"user"`
			Viewed bool    `json:"viewed"`
		} `json:"pick"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Pick)
	assert.Equal(t, "u2", res.Pick.User.ID)
	assert.False(t, res.Pick.Viewed)

	rec = doJSON(t, router, http.MethodPost, "/api/users/u1/daily-pick/viewed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/u1/daily-pick", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Pick)
	assert.True(t, res.Pick.Viewed)
}

func TestDailyStatusEndpoint(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")
	createUser(t, appCtx, "u2", "FEMALE", "MALE")

	rec := doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{
		"user_id": "u1", "candidate_id": "u2", "direction": "LIKE",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/u1/daily-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status daily.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.LikesUsed)
	assert.Equal(t, 24, status.LikesRemaining)
}

func TestLikedYouEndpoint(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")
	createUser(t, appCtx, "u2", "FEMALE", "MALE")

	rec := doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{
		"user_id": "u2", "candidate_id": "u1", "direction": "LIKE",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/u1/liked-you", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Likers []matching.PendingLiker `json:"likers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Likers, 1)
	assert.Equal(t, "u2", res.Likers[0].User.ID)
}

func TestUndoEndpoint(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")
	createUser(t, appCtx, "u2", "FEMALE", "MALE")

	// nothing recorded yet
	rec := doJSON(t, router, http.MethodPost, "/api/users/u1/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Equal(t, "No swipe to undo.", res.Message)

	rec = doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{
		"user_id": "u1", "candidate_id": "u2", "direction": "LIKE",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/users/u1/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "Swipe undone.", res.Message)
}

func TestUnmatchEndpoint(t *testing.T) {
	router, appCtx := setupRouter(t)
	createUser(t, appCtx, "u1", "MALE", "FEMALE")
	createUser(t, appCtx, "u2", "FEMALE", "MALE")

	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		rec := doJSON(t, router, http.MethodPost, "/api/swipes", map[string]string{
			"user_id": pair[0], "candidate_id": pair[1], "direction": "LIKE",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/users/u1/unmatch", map[string]string{"other_id": "u2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/users/u1/unmatch", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
