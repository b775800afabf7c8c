package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridoystarlord/casemigrate/utils"
)

type lazyPool struct {
	once sync.Once
	pool *pgxpool.Pool
	err  error
}

var (
	targetPool lazyPool
	legacyPool lazyPool
)

// GetPool returns the singleton pool for the target store (DATABASE_URL).
func GetPool() (*pgxpool.Pool, error) {
	return targetPool.get("DATABASE_URL", utils.GetDatabaseURL)
}

// GetLegacyPool returns the singleton pool for the read-only legacy replica
// (LEGACY_DATABASE_URL).
func GetLegacyPool() (*pgxpool.Pool, error) {
	return legacyPool.get("LEGACY_DATABASE_URL", utils.GetLegacyDatabaseURL)
}

func (l *lazyPool) get(name string, url func() string) (*pgxpool.Pool, error) {
	l.once.Do(func() {
		utils.LoadEnv()
		connStr := url()
		if connStr == "" {
			l.err = fmt.Errorf("%s not set in environment", name)
			return
		}

		ctx := context.Background()
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			l.err = fmt.Errorf("unable to create connection pool for %s: %w", name, err)
			return
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			l.err = fmt.Errorf("unable to ping database %s: %w", name, err)
			return
		}
		l.pool = pool
	})

	return l.pool, l.err
}

// ClosePools closes both pools (should be called on application shutdown)
func ClosePools() {
	if targetPool.pool != nil {
		targetPool.pool.Close()
	}
	if legacyPool.pool != nil {
		legacyPool.pool.Close()
	}
}
