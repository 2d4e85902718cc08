package domain

import (
	"time"
)

// Recommendation tiers. REJECT is reserved for hard-filter failures; a
// product that passed the filters always lands in one of the other four.
const (
	RecommendationStrongBuy = "STRONG BUY"
	RecommendationViable    = "VIABLE"
	RecommendationMarginal  = "MARGINAL"
	RecommendationWeak      = "WEAK"
	RecommendationReject    = "REJECT"
)

// ProductScore is the complete financial verdict for one product under
// one config. Created once per scoring call and never mutated; a rescore
// produces a brand-new record.
type ProductScore struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`

	// Calculated financials (money/ratios rounded to 2 dp, margins to 4)
	COGS        float64 `json:"cogs"`
	GrossMargin float64 `json:"grossMargin"`
	NetMargin   float64 `json:"netMargin"`
	MaxCPC      float64 `json:"maxCpc"`
	CPCBuffer   float64 `json:"cpcBuffer"`

	// Filter outcome
	PassedFilters    bool     `json:"passedFilters"`
	RejectionReasons []string `json:"rejectionReasons,omitempty"`

	// Point scoring, present only when filters passed
	Points         *int           `json:"points,omitempty"`
	PointBreakdown map[string]int `json:"pointBreakdown,omitempty"`
	RankScore      *float64       `json:"rankScore,omitempty"`

	Recommendation string    `json:"recommendation"`
	ScoredAt       time.Time `json:"scoredAt"`

	// Processing metadata
	Metadata ScoreMetadata `json:"metadata"`
}

// ScoreMetadata carries processing information for diagnostics.
type ScoreMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	FiltersRun    int    `json:"filtersRun"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// FilterResult is the outcome of the hard-filter gate.
type FilterResult struct {
	Passed  bool     `json:"passed"`
	Reasons []string `json:"reasons,omitempty"`
}

// AddRejection records a failing check. Reasons keep evaluation order.
func (r *FilterResult) AddRejection(reason string) {
	r.Passed = false
	r.Reasons = append(r.Reasons, reason)
}
