package repository

// Schema definitions for the Shrike database.
// Compatible with both SQLite and PostgreSQL.

const schemaProducts = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    product_cost REAL NOT NULL,
    shipping_cost REAL NOT NULL,
    selling_price REAL NOT NULL,
    category TEXT NOT NULL,
    weight_grams INTEGER NOT NULL,
    is_fragile INTEGER NOT NULL DEFAULT 0,
    requires_sizing INTEGER NOT NULL DEFAULT 0,
    supplier_rating REAL NOT NULL,
    supplier_age_months INTEGER NOT NULL,
    supplier_feedback_count INTEGER NOT NULL,
    shipping_days_min INTEGER NOT NULL,
    shipping_days_max INTEGER NOT NULL,
    has_fast_shipping INTEGER NOT NULL DEFAULT 0,
    estimated_cpc REAL NOT NULL,
    monthly_search_volume INTEGER NOT NULL,
    amazon_prime_exists INTEGER NOT NULL DEFAULT 0,
    amazon_review_count INTEGER NOT NULL,
    source TEXT,
    source_url TEXT,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_products_tenant ON products(tenant_id);
CREATE INDEX IF NOT EXISTS idx_products_source ON products(tenant_id, source, created_at);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(tenant_id, category);
`

const schemaScores = `
CREATE TABLE IF NOT EXISTS product_scores (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    product_name TEXT NOT NULL,
    cogs REAL NOT NULL,
    gross_margin REAL NOT NULL,
    net_margin REAL NOT NULL,
    max_cpc REAL NOT NULL,
    cpc_buffer REAL NOT NULL,
    passed_filters INTEGER NOT NULL,
    rejection_reasons TEXT,
    points INTEGER,
    point_breakdown TEXT,
    rank_score REAL,
    recommendation TEXT NOT NULL,
    scored_at TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_tenant ON product_scores(tenant_id);
CREATE INDEX IF NOT EXISTS idx_scores_product ON product_scores(tenant_id, product_id, scored_at);
CREATE INDEX IF NOT EXISTS idx_scores_recommendation ON product_scores(tenant_id, recommendation);
`

const schemaExclusionRules = `
CREATE TABLE IF NOT EXISTS exclusion_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    reason TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_exclusion_rules_tenant ON exclusion_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_exclusion_rules_enabled ON exclusion_rules(tenant_id, enabled);
`

// scoring_settings holds one config row per tenant. An absent row means
// the tenant runs on defaults.
const schemaSettings = `
CREATE TABLE IF NOT EXISTS scoring_settings (
    tenant_id TEXT PRIMARY KEY,
    config TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProducts,
		schemaScores,
		schemaExclusionRules,
		schemaSettings,
	}
}
