package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestGormConfig_TranslatesDuplicateKey(t *testing.T) {
	database, err := gorm.Open(
		sqlite.Open("file:TestGormConfig_TranslatesDuplicateKey?mode=memory&cache=shared"),
		gormConfig(),
	)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&Match{}))

	match := Match{ID: "m1", UserA: "a", UserB: "b", State: MatchStateActive}
	require.NoError(t, database.Create(&match).Error)

	// a raw duplicate insert must surface the gorm sentinel, not a bare
	// driver error, so conflict fallbacks can match on it
	dup := Match{ID: "m1", UserA: "a", UserB: "b", State: MatchStateActive}
	err = database.Create(&dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
