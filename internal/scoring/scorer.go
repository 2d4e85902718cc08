package scoring

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-commerce/shrike/internal/domain"
)

// EngineVersion is recorded on every score for auditability.
const EngineVersion = "shrike-1.0"

// Point breakdown factor names.
const (
	FactorCPC         = "cpc"
	FactorMargin      = "margin"
	FactorAOV         = "aov"
	FactorCompetition = "competition"
	FactorVolume      = "volume"
	FactorRefundRisk  = "refund_risk"
	FactorShipping    = "shipping"
	FactorPassion     = "passion"
)

// maxBufferSentinel caps the persisted CPC buffer when the raw value is
// infinite; encoding/json cannot encode +Inf.
const maxBufferSentinel = 999.99

// CalculatePoints scores a product on the eight-factor rubric and
// returns the 0-100 total with the per-factor breakdown. Pure and
// callable independently of the filter gate; only meaningful for
// products that passed it.
func CalculatePoints(p *domain.Product, cfg domain.ScoringConfig) (int, map[string]int) {
	breakdown := make(map[string]int, 8)

	// CPC (20 max): lower is better.
	switch {
	case p.EstimatedCPC < 0.30:
		breakdown[FactorCPC] = 20
	case p.EstimatedCPC < 0.50:
		breakdown[FactorCPC] = 15
	case p.EstimatedCPC < 0.75:
		breakdown[FactorCPC] = 10
	default:
		breakdown[FactorCPC] = 5
	}

	// Margin (20 max): higher is better.
	gm := GrossMargin(p)
	switch {
	case gm > 0.75:
		breakdown[FactorMargin] = 20
	case gm > 0.70:
		breakdown[FactorMargin] = 15
	case gm > 0.65:
		breakdown[FactorMargin] = 10
	default:
		breakdown[FactorMargin] = 5
	}

	// AOV (15 max): the $100-150 band leaves the most margin room.
	switch {
	case p.SellingPrice >= 100 && p.SellingPrice <= 150:
		breakdown[FactorAOV] = 15
	case p.SellingPrice >= 75 && p.SellingPrice < 100:
		breakdown[FactorAOV] = 12
	case p.SellingPrice >= 50 && p.SellingPrice < 75:
		breakdown[FactorAOV] = 8
	default:
		breakdown[FactorAOV] = 3
	}

	// Competition (15 max): less Amazon presence is better.
	switch {
	case !p.AmazonPrimeExists:
		breakdown[FactorCompetition] = 15
	case p.AmazonReviewCount < 50:
		breakdown[FactorCompetition] = 10
	case p.AmazonReviewCount < 200:
		breakdown[FactorCompetition] = 5
	default:
		breakdown[FactorCompetition] = 0
	}

	// Search volume (10 max): the 1k-10k sweet spot wins; above 10k the
	// keyword is too competitive.
	switch {
	case p.MonthlySearchVolume >= 1000 && p.MonthlySearchVolume <= 10000:
		breakdown[FactorVolume] = 10
	case p.MonthlySearchVolume >= 500 && p.MonthlySearchVolume < 1000:
		breakdown[FactorVolume] = 7
	case p.MonthlySearchVolume >= 100 && p.MonthlySearchVolume < 500:
		breakdown[FactorVolume] = 4
	case p.MonthlySearchVolume > 10000:
		breakdown[FactorVolume] = 5
	default:
		breakdown[FactorVolume] = 2
	}

	// Refund risk (10 max): category baseline rate.
	refundRate, ok := p.Category.RefundRate()
	if !ok {
		refundRate = cfg.DefaultRefundRate
	}
	switch {
	case refundRate <= 0.05:
		breakdown[FactorRefundRisk] = 10
	case refundRate <= 0.08:
		breakdown[FactorRefundRisk] = 7
	case refundRate <= 0.10:
		breakdown[FactorRefundRisk] = 4
	default:
		breakdown[FactorRefundRisk] = 0
	}

	// Shipping (5 max): light and sturdy ships cheapest.
	switch {
	case p.WeightGrams < 500 && !p.IsFragile:
		breakdown[FactorShipping] = 5
	case p.WeightGrams < 1000:
		breakdown[FactorShipping] = 3
	default:
		breakdown[FactorShipping] = 2
	}

	// Niche passion (5 max): hobbyist categories get a bonus.
	if p.Category.PassionNiche() {
		breakdown[FactorPassion] = 5
	} else {
		breakdown[FactorPassion] = 2
	}

	total := 0
	for _, pts := range breakdown {
		total += pts
	}
	return total, breakdown
}

// ScoreProduct is the single entry point for scoring a product: it
// computes the financial metrics, runs the hard-filter gate and, for
// passing products, the point rubric and rank classification. Two calls
// with identical inputs produce identical output.
func ScoreProduct(p *domain.Product, cfg domain.ScoringConfig) *domain.ProductScore {
	start := time.Now()

	cogs := COGS(p)
	grossMargin := GrossMargin(p)
	netMargin := NetMargin(p, cfg)
	maxCPC := MaxCPC(p, cfg)
	cpcBuffer := CPCBuffer(p, cfg)

	filterResult := ApplyHardFilters(p, cfg)

	score := &domain.ProductScore{
		ID:               uuid.New().String(),
		TenantID:         p.TenantID,
		ProductID:        p.ID,
		ProductName:      p.Name,
		COGS:             round2(cogs),
		GrossMargin:      round4(grossMargin),
		NetMargin:        round4(netMargin),
		MaxCPC:           round2(maxCPC),
		CPCBuffer:        round2(clampBuffer(cpcBuffer)),
		PassedFilters:    filterResult.Passed,
		RejectionReasons: filterResult.Reasons,
		Recommendation:   domain.RecommendationReject,
		ScoredAt:         time.Now().UTC(),
	}

	if filterResult.Passed {
		points, breakdown := CalculatePoints(p, cfg)
		rankScore := float64(points)*0.6 + clampBuffer(cpcBuffer)*25

		rounded := round2(rankScore)
		score.Points = &points
		score.PointBreakdown = breakdown
		score.RankScore = &rounded
		score.Recommendation = classify(rankScore)
	}

	score.Metadata = domain.ScoreMetadata{
		FiltersRun:    FilterCount,
		TotalMs:       time.Since(start).Milliseconds(),
		EngineVersion: EngineVersion,
	}

	return score
}

// ScoreExcluded builds the score record for a product knocked out by
// exclusion rules before the filter gate. Financial metrics are still
// computed and reported; points and rank are never assigned.
func ScoreExcluded(p *domain.Product, cfg domain.ScoringConfig, reasons []string) *domain.ProductScore {
	return &domain.ProductScore{
		ID:               uuid.New().String(),
		TenantID:         p.TenantID,
		ProductID:        p.ID,
		ProductName:      p.Name,
		COGS:             round2(COGS(p)),
		GrossMargin:      round4(GrossMargin(p)),
		NetMargin:        round4(NetMargin(p, cfg)),
		MaxCPC:           round2(MaxCPC(p, cfg)),
		CPCBuffer:        round2(clampBuffer(CPCBuffer(p, cfg))),
		PassedFilters:    false,
		RejectionReasons: reasons,
		Recommendation:   domain.RecommendationReject,
		ScoredAt:         time.Now().UTC(),
		Metadata: domain.ScoreMetadata{
			EngineVersion: EngineVersion,
		},
	}
}

// classify maps a rank score to a recommendation tier. REJECT never
// appears here; it is reserved for filter failures.
func classify(rankScore float64) string {
	switch {
	case rankScore >= 95:
		return domain.RecommendationStrongBuy
	case rankScore >= 75:
		return domain.RecommendationViable
	case rankScore >= 60:
		return domain.RecommendationMarginal
	default:
		return domain.RecommendationWeak
	}
}

func clampBuffer(buffer float64) float64 {
	if math.IsInf(buffer, 1) || buffer > maxBufferSentinel {
		return maxBufferSentinel
	}
	return buffer
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
