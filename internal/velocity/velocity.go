// Package velocity tracks per-source ingest rates.
package velocity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// DefaultWindow is the lookback used when counting products from a
// source. Exclusion rules use the count to cap per-supplier intake.
const DefaultWindow = 24 * time.Hour

// Service counts recent product ingests per supplier source.
type Service struct {
	repo   domain.Repository
	cache  domain.Cache
	db     *sql.DB // Direct DB access for custom queries
	window time.Duration
}

// NewService creates a new source velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		window: DefaultWindow,
	}
}

// GetSourceCount returns how many products a tenant has ingested from a
// source within the lookback window. This is the SourceCountGetter
// signature expected by the rule engine.
func (s *Service) GetSourceCount(ctx context.Context, tenantID, source string) (int64, error) {
	if tenantID == "" || source == "" {
		return 0, fmt.Errorf("tenantID and source are required")
	}

	since := time.Now().Add(-s.window)

	if s.db != nil {
		return s.countFromDB(ctx, tenantID, source, since)
	}

	if s.repo != nil {
		return s.repo.CountProductsBySource(ctx, tenantID, source, since)
	}

	return 0, fmt.Errorf("no data source available")
}

// RecordIngest bumps the rolling counter for a source. Best effort; a
// cache miss never blocks the pipeline.
func (s *Service) RecordIngest(ctx context.Context, tenantID, source string) {
	if s.cache == nil || source == "" {
		return
	}
	_, _ = s.cache.IncrementCounter(ctx, tenantID, "ingest:"+source, s.window)
}

// countFromDB queries the database directly for the product count.
func (s *Service) countFromDB(ctx context.Context, tenantID, source string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM products
		WHERE tenant_id = ?
		AND source = ?
		AND created_at >= ?
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, tenantID, source, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}

	return count, nil
}

// GetSourceCountGetter returns a SourceCountGetter for the rule engine.
func (s *Service) GetSourceCountGetter() func(ctx context.Context, tenantID, source string) (int64, error) {
	return s.GetSourceCount
}
