// Package domain defines the core interfaces and types for Shrike.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Product catalog operations
	SaveProduct(ctx context.Context, tenantID string, product *Product) error
	GetProduct(ctx context.Context, tenantID string, productID string) (*Product, error)
	CountProductsBySource(ctx context.Context, tenantID string, source string, since time.Time) (int64, error)

	// Score operations
	SaveScore(ctx context.Context, tenantID string, score *ProductScore) error
	GetScore(ctx context.Context, tenantID string, scoreID string) (*ProductScore, error)
	GetScoreByProduct(ctx context.Context, tenantID string, productID string) (*ProductScore, error)
	ListScores(ctx context.Context, tenantID string, recommendation string, limit, offset int) ([]*ProductScore, error)

	// Exclusion rule operations
	SaveExclusionRule(ctx context.Context, tenantID string, rule *ExclusionRule) error
	GetExclusionRule(ctx context.Context, tenantID string, ruleID string) (*ExclusionRule, error)
	ListExclusionRules(ctx context.Context, tenantID string) ([]*ExclusionRule, error)
	DeleteExclusionRule(ctx context.Context, tenantID string, ruleID string) error

	// Scoring settings (one row per tenant; absent row means defaults)
	SaveSettings(ctx context.Context, tenantID string, cfg ScoringConfig) error
	GetSettings(ctx context.Context, tenantID string) (ScoringConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
