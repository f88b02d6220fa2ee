package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"fundsync/internal/config"
)

// DB wraps the sql connection pool.
type DB struct {
	*sql.DB
	config *config.DatabaseConfig
	stats  *PoolStats
	mu     sync.RWMutex
}

// PoolStats represents connection pool statistics.
type PoolStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	LastUpdated        time.Time
}

// NewConnection creates a new database connection pool.
func NewConnection(cfg *config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = 25
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = time.Hour
	}
	if cfg.ConnMaxIdleTime <= 0 {
		cfg.ConnMaxIdleTime = 15 * time.Minute
	}

	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	var pingErr error
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		log.Printf("Database ping attempt %d/%d failed: %v", i+1, maxRetries, pingErr)
		if i < maxRetries-1 {
			time.Sleep(time.Second * time.Duration(i+1))
		}
	}
	if pingErr != nil {
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxRetries, pingErr)
	}

	database := &DB{
		DB:     db,
		config: cfg,
		stats:  &PoolStats{},
	}

	go database.monitorPoolStats()

	return database, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthCheck performs a health check on the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// GetPoolStats returns current connection pool statistics.
func (db *DB) GetPoolStats() *PoolStats {
	db.mu.RLock()
	defer db.mu.RUnlock()
	stats := *db.stats
	return &stats
}

func (db *DB) monitorPoolStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := db.DB.Stats()

		db.mu.Lock()
		db.stats.MaxOpenConnections = stats.MaxOpenConnections
		db.stats.OpenConnections = stats.OpenConnections
		db.stats.InUse = stats.InUse
		db.stats.Idle = stats.Idle
		db.stats.WaitCount = stats.WaitCount
		db.stats.WaitDuration = stats.WaitDuration
		db.stats.LastUpdated = time.Now()
		db.mu.Unlock()

		if stats.WaitCount > 0 {
			log.Printf("Database connection pool under pressure: wait_count=%d, wait_duration=%v, in_use=%d, idle=%d",
				stats.WaitCount, stats.WaitDuration, stats.InUse, stats.Idle)
		}
	}
}
