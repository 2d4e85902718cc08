// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-commerce/shrike/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveProduct stores a product with tenant isolation. Re-saving the same
// product ID updates the listing in place; rescores rely on this.
func (r *SQLRepository) SaveProduct(ctx context.Context, tenantID string, p *domain.Product) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO products (
			id, tenant_id, name, product_cost, shipping_cost, selling_price,
			category, weight_grams, is_fragile, requires_sizing,
			supplier_rating, supplier_age_months, supplier_feedback_count,
			shipping_days_min, shipping_days_max, has_fast_shipping,
			estimated_cpc, monthly_search_volume,
			amazon_prime_exists, amazon_review_count,
			source, source_url, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			product_cost = excluded.product_cost,
			shipping_cost = excluded.shipping_cost,
			selling_price = excluded.selling_price,
			category = excluded.category,
			weight_grams = excluded.weight_grams,
			is_fragile = excluded.is_fragile,
			requires_sizing = excluded.requires_sizing,
			supplier_rating = excluded.supplier_rating,
			supplier_age_months = excluded.supplier_age_months,
			supplier_feedback_count = excluded.supplier_feedback_count,
			shipping_days_min = excluded.shipping_days_min,
			shipping_days_max = excluded.shipping_days_max,
			has_fast_shipping = excluded.has_fast_shipping,
			estimated_cpc = excluded.estimated_cpc,
			monthly_search_volume = excluded.monthly_search_volume,
			amazon_prime_exists = excluded.amazon_prime_exists,
			amazon_review_count = excluded.amazon_review_count,
			source = excluded.source,
			source_url = excluded.source_url
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, tenantID, p.Name,
		p.ProductCost, p.ShippingCost, p.SellingPrice,
		string(p.Category), p.WeightGrams,
		boolToInt(p.IsFragile), boolToInt(p.RequiresSizing),
		p.SupplierRating, p.SupplierAgeMonths, p.SupplierFeedbackCount,
		p.ShippingDaysMin, p.ShippingDaysMax, boolToInt(p.HasFastShipping),
		p.EstimatedCPC, p.MonthlySearchVolume,
		boolToInt(p.AmazonPrimeExists), p.AmazonReviewCount,
		p.Source, p.SourceURL, p.CreatedAt,
	)
	return err
}

// GetProduct retrieves a product by ID with tenant isolation.
func (r *SQLRepository) GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, product_cost, shipping_cost, selling_price,
			   category, weight_grams, is_fragile, requires_sizing,
			   supplier_rating, supplier_age_months, supplier_feedback_count,
			   shipping_days_min, shipping_days_max, has_fast_shipping,
			   estimated_cpc, monthly_search_volume,
			   amazon_prime_exists, amazon_review_count,
			   source, source_url, created_at
		FROM products
		WHERE tenant_id = ? AND id = ?
	`

	var p domain.Product
	var category string
	var fragile, sizing, fastShip, prime int
	var source, sourceURL sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, productID).Scan(
		&p.ID, &p.TenantID, &p.Name,
		&p.ProductCost, &p.ShippingCost, &p.SellingPrice,
		&category, &p.WeightGrams, &fragile, &sizing,
		&p.SupplierRating, &p.SupplierAgeMonths, &p.SupplierFeedbackCount,
		&p.ShippingDaysMin, &p.ShippingDaysMax, &fastShip,
		&p.EstimatedCPC, &p.MonthlySearchVolume,
		&prime, &p.AmazonReviewCount,
		&source, &sourceURL, &p.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Category = domain.Category(category)
	p.IsFragile = fragile == 1
	p.RequiresSizing = sizing == 1
	p.HasFastShipping = fastShip == 1
	p.AmazonPrimeExists = prime == 1
	p.Source = source.String
	p.SourceURL = sourceURL.String

	return &p, nil
}

// CountProductsBySource counts products ingested from a source since the
// given time, with tenant isolation.
func (r *SQLRepository) CountProductsBySource(ctx context.Context, tenantID string, source string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM products
		WHERE tenant_id = ? AND source = ? AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, source, since).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SaveScore stores a product score with tenant isolation. Scores are
// append-only; every scoring run gets its own row.
func (r *SQLRepository) SaveScore(ctx context.Context, tenantID string, score *domain.ProductScore) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(score.RejectionReasons)
	metadata, _ := json.Marshal(score.Metadata)

	var points sql.NullInt64
	var rankScore sql.NullFloat64
	var breakdown sql.NullString
	if score.Points != nil {
		points = sql.NullInt64{Int64: int64(*score.Points), Valid: true}
	}
	if score.RankScore != nil {
		rankScore = sql.NullFloat64{Float64: *score.RankScore, Valid: true}
	}
	if score.PointBreakdown != nil {
		b, _ := json.Marshal(score.PointBreakdown)
		breakdown = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO product_scores (
			id, tenant_id, product_id, product_name,
			cogs, gross_margin, net_margin, max_cpc, cpc_buffer,
			passed_filters, rejection_reasons,
			points, point_breakdown, rank_score,
			recommendation, scored_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		score.ID, tenantID, score.ProductID, score.ProductName,
		score.COGS, score.GrossMargin, score.NetMargin, score.MaxCPC, score.CPCBuffer,
		boolToInt(score.PassedFilters), string(reasons),
		points, breakdown, rankScore,
		score.Recommendation, score.ScoredAt, string(metadata),
	)
	return err
}

// GetScore retrieves a score by ID with tenant isolation.
func (r *SQLRepository) GetScore(ctx context.Context, tenantID string, scoreID string) (*domain.ProductScore, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := scoreSelect + ` WHERE tenant_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, scoreID)
	score, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return score, err
}

// GetScoreByProduct retrieves the most recent score for a product.
func (r *SQLRepository) GetScoreByProduct(ctx context.Context, tenantID string, productID string) (*domain.ProductScore, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := scoreSelect + `
		WHERE tenant_id = ? AND product_id = ?
		ORDER BY scored_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, productID)
	score, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return score, err
}

// ListScores retrieves scores for a tenant, newest first, optionally
// filtered by recommendation tier.
func (r *SQLRepository) ListScores(ctx context.Context, tenantID string, recommendation string, limit, offset int) ([]*domain.ProductScore, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := scoreSelect + ` WHERE tenant_id = ?`
	args := []any{tenantID}
	if recommendation != "" {
		query += ` AND recommendation = ?`
		args = append(args, recommendation)
	}
	query += ` ORDER BY scored_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*domain.ProductScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	return scores, rows.Err()
}

const scoreSelect = `
	SELECT id, tenant_id, product_id, product_name,
		   cogs, gross_margin, net_margin, max_cpc, cpc_buffer,
		   passed_filters, rejection_reasons,
		   points, point_breakdown, rank_score,
		   recommendation, scored_at, metadata
	FROM product_scores
`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*domain.ProductScore, error) {
	var score domain.ProductScore
	var passed int
	var reasons, metadata string
	var points sql.NullInt64
	var rankScore sql.NullFloat64
	var breakdown sql.NullString

	err := row.Scan(
		&score.ID, &score.TenantID, &score.ProductID, &score.ProductName,
		&score.COGS, &score.GrossMargin, &score.NetMargin, &score.MaxCPC, &score.CPCBuffer,
		&passed, &reasons,
		&points, &breakdown, &rankScore,
		&score.Recommendation, &score.ScoredAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	score.PassedFilters = passed == 1
	if reasons != "" {
		json.Unmarshal([]byte(reasons), &score.RejectionReasons)
	}
	if points.Valid {
		v := int(points.Int64)
		score.Points = &v
	}
	if rankScore.Valid {
		v := rankScore.Float64
		score.RankScore = &v
	}
	if breakdown.Valid && breakdown.String != "" {
		json.Unmarshal([]byte(breakdown.String), &score.PointBreakdown)
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &score.Metadata)
	}

	return &score, nil
}

// SaveExclusionRule stores an exclusion rule with tenant isolation.
func (r *SQLRepository) SaveExclusionRule(ctx context.Context, tenantID string, rule *domain.ExclusionRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := boolToInt(rule.Enabled)
	now := time.Now().UTC()
	createdAt := rule.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO exclusion_rules (
			id, tenant_id, name, description, version, expression, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Reason, enabled,
		createdAt, now,
	)
	return err
}

// GetExclusionRule retrieves an exclusion rule with tenant isolation.
func (r *SQLRepository) GetExclusionRule(ctx context.Context, tenantID string, ruleID string) (*domain.ExclusionRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, reason, enabled, created_at, updated_at
		FROM exclusion_rules
		WHERE tenant_id = ? AND id = ?
	`

	var rule domain.ExclusionRule
	var description, reason sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description,
		&rule.Version, &rule.Expression, &reason, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Reason = reason.String
	rule.Enabled = enabled == 1

	return &rule, nil
}

// ListExclusionRules retrieves all exclusion rules for a tenant,
// including disabled ones; callers filter on Enabled.
func (r *SQLRepository) ListExclusionRules(ctx context.Context, tenantID string) ([]*domain.ExclusionRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, reason, enabled, created_at, updated_at
		FROM exclusion_rules
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ExclusionRule
	for rows.Next() {
		var rule domain.ExclusionRule
		var description, reason sql.NullString
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &description,
			&rule.Version, &rule.Expression, &reason, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Description = description.String
		rule.Reason = reason.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteExclusionRule removes an exclusion rule.
func (r *SQLRepository) DeleteExclusionRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM exclusion_rules WHERE tenant_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveSettings stores a tenant's scoring config, replacing any previous.
func (r *SQLRepository) SaveSettings(ctx context.Context, tenantID string, cfg domain.ScoringConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	query := `
		INSERT INTO scoring_settings (tenant_id, config, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			config = excluded.config,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query), tenantID, string(payload), time.Now().UTC())
	return err
}

// GetSettings returns the tenant's scoring config. A tenant without a
// stored row runs on defaults.
func (r *SQLRepository) GetSettings(ctx context.Context, tenantID string) (domain.ScoringConfig, error) {
	if tenantID == "" {
		return domain.ScoringConfig{}, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT config FROM scoring_settings WHERE tenant_id = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultScoringConfig(), nil
	}
	if err != nil {
		return domain.ScoringConfig{}, err
	}

	var cfg domain.ScoringConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	return cfg, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
