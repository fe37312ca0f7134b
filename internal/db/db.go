package db

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kindredapp/kindred/internal/config"
)

// Opener creates the underlying connection pool. Injectable for tests.
type Opener func(cfg *config.Config) (*gorm.DB, error)

// Gateway lazily creates and exclusively owns the pooled connection source.
// The first caller of DB opens the pool; every other caller observes the
// fully constructed pool and never triggers a second open.
type Gateway struct {
	cfg  *config.Config
	open Opener

	mu          sync.Mutex
	initialized atomic.Bool
	db          atomic.Pointer[gorm.DB]
}

// NewGateway creates a gateway backed by the MySQL pool from config.
func NewGateway(cfg *config.Config) *Gateway {
	return &Gateway{cfg: cfg, open: openMySQL}
}

// NewGatewayWithOpener creates a gateway with a custom pool opener.
func NewGatewayWithOpener(cfg *config.Config, open Opener) *Gateway {
	return &Gateway{cfg: cfg, open: open}
}

// DB returns the shared connection handle, opening the pool on first use.
//
// Double-checked initialization: the flag is read lock-free on the fast
// path, re-checked under the mutex, and only set after the pool pointer is
// published. Open/migrate failures propagate to the caller and leave the
// flag unset, so a later call retries.
func (g *Gateway) DB() (*gorm.DB, error) {
	if g.initialized.Load() {
		return g.db.Load(), nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized.Load() {
		return g.db.Load(), nil
	}

	database, err := g.open(g.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// AutoMigrate ensures schema is in sync with models.
	if err := database.AutoMigrate(&User{}, &Like{}, &Match{}, &Block{}, &DailyPick{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	g.db.Store(database)
	g.initialized.Store(true)
	return database, nil
}

func openMySQL(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(cfg.DB.DSN), gormConfig())
}

// gormConfig is the pool configuration for production openers.
// TranslateError maps driver duplicate-key errors onto
// gorm.ErrDuplicatedKey, which the match upsert fallback matches on.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
}
