package scoring

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/opensource-commerce/shrike/internal/domain"
)

func TestPerfectProductScoresFullPoints(t *testing.T) {
	// Max bucket in every factor: CPC < 0.30, margin > 75%, AOV in
	// [100,150], no Prime, volume in [1k,10k], crafts (5% refund,
	// passion niche), light and sturdy.
	p := baselineProduct()

	total, breakdown := CalculatePoints(p, domain.DefaultScoringConfig())
	if total != 100 {
		t.Fatalf("expected 100 points, got %d: %v", total, breakdown)
	}

	want := map[string]int{
		FactorCPC:         20,
		FactorMargin:      20,
		FactorAOV:         15,
		FactorCompetition: 15,
		FactorVolume:      10,
		FactorRefundRisk:  10,
		FactorShipping:    5,
		FactorPassion:     5,
	}
	if !reflect.DeepEqual(breakdown, want) {
		t.Errorf("breakdown mismatch:\n got %v\nwant %v", breakdown, want)
	}
}

func TestPointsMatchBreakdownSum(t *testing.T) {
	cfg := domain.DefaultScoringConfig()

	products := []*domain.Product{baselineProduct()}

	mid := baselineProduct()
	mid.EstimatedCPC = 0.55
	mid.SellingPrice = 60
	mid.Category = domain.CategoryKitchen
	mid.MonthlySearchVolume = 250
	mid.AmazonPrimeExists = true
	mid.AmazonReviewCount = 120
	mid.WeightGrams = 800
	products = append(products, mid)

	low := baselineProduct()
	low.EstimatedCPC = 0.90
	low.SellingPrice = 30
	low.Category = domain.CategoryShoes
	low.MonthlySearchVolume = 50
	low.AmazonPrimeExists = true
	low.AmazonReviewCount = 5000
	low.WeightGrams = 1500
	low.IsFragile = true
	products = append(products, low)

	for i, p := range products {
		total, breakdown := CalculatePoints(p, cfg)
		sum := 0
		for _, pts := range breakdown {
			sum += pts
		}
		if total != sum {
			t.Errorf("product %d: total %d != breakdown sum %d", i, total, sum)
		}
		if total < 0 || total > 100 {
			t.Errorf("product %d: total %d out of [0,100]", i, total)
		}
		if len(breakdown) != 8 {
			t.Errorf("product %d: expected 8 factors, got %d", i, len(breakdown))
		}
	}
}

// TestPointBucketBoundaries pins the exact operator choice at each bucket
// edge so scoring never drifts against historical outputs.
func TestPointBucketBoundaries(t *testing.T) {
	cfg := domain.DefaultScoringConfig()

	tests := []struct {
		name   string
		mutate func(p *domain.Product)
		factor string
		want   int
	}{
		// CPC uses strict <: exactly 0.30 falls to the next bucket.
		{"CPCExactly030", func(p *domain.Product) { p.EstimatedCPC = 0.30 }, FactorCPC, 15},
		{"CPCJustUnder030", func(p *domain.Product) { p.EstimatedCPC = 0.299 }, FactorCPC, 20},
		{"CPCExactly050", func(p *domain.Product) { p.EstimatedCPC = 0.50 }, FactorCPC, 10},
		{"CPCExactly075", func(p *domain.Product) { p.EstimatedCPC = 0.75 }, FactorCPC, 5},

		// Margin uses strict >: exactly 0.75 falls to the lower bucket.
		// 120 selling with 30 COGS = exactly 75% margin.
		{"MarginExactly075", func(p *domain.Product) { p.ProductCost = 25; p.ShippingCost = 5 }, FactorMargin, 15},
		// 17 COGS at 120 = 85.8%
		{"MarginAbove075", func(p *domain.Product) {}, FactorMargin, 20},
		// 42 COGS at 120 = exactly 65%
		{"MarginExactly065", func(p *domain.Product) { p.ProductCost = 37; p.ShippingCost = 5 }, FactorMargin, 5},

		// AOV band is inclusive at both ends of [100,150].
		{"AOVExactly100", func(p *domain.Product) { p.SellingPrice = 100 }, FactorAOV, 15},
		{"AOVExactly150", func(p *domain.Product) { p.SellingPrice = 150 }, FactorAOV, 15},
		{"AOVJustUnder100", func(p *domain.Product) { p.SellingPrice = 99.99 }, FactorAOV, 12},
		{"AOVExactly50", func(p *domain.Product) { p.SellingPrice = 50 }, FactorAOV, 8},
		{"AOVUnder50", func(p *domain.Product) { p.SellingPrice = 49 }, FactorAOV, 3},

		// Volume band [1000,10000] is inclusive; above 10000 is "too
		// competitive" and drops to 5, below 100 to 2.
		{"VolumeExactly1000", func(p *domain.Product) { p.MonthlySearchVolume = 1000 }, FactorVolume, 10},
		{"VolumeExactly10000", func(p *domain.Product) { p.MonthlySearchVolume = 10000 }, FactorVolume, 10},
		{"VolumeAbove10000", func(p *domain.Product) { p.MonthlySearchVolume = 10001 }, FactorVolume, 5},
		{"VolumeExactly999", func(p *domain.Product) { p.MonthlySearchVolume = 999 }, FactorVolume, 7},
		{"VolumeExactly99", func(p *domain.Product) { p.MonthlySearchVolume = 99 }, FactorVolume, 2},

		// Competition: review thresholds use strict <.
		{"CompetitionReviews49", func(p *domain.Product) { p.AmazonPrimeExists = true; p.AmazonReviewCount = 49 }, FactorCompetition, 10},
		{"CompetitionReviews50", func(p *domain.Product) { p.AmazonPrimeExists = true; p.AmazonReviewCount = 50 }, FactorCompetition, 5},
		{"CompetitionReviews200", func(p *domain.Product) { p.AmazonPrimeExists = true; p.AmazonReviewCount = 200 }, FactorCompetition, 0},

		// Refund risk uses <=: office (0.04) and crafts (0.05) top out,
		// kitchen (0.08) and jewelry (0.10) step down, shoes (0.18) zero.
		{"RefundOffice", func(p *domain.Product) { p.Category = domain.CategoryOffice }, FactorRefundRisk, 10},
		{"RefundKitchen", func(p *domain.Product) { p.Category = domain.CategoryKitchen }, FactorRefundRisk, 7},
		{"RefundJewelry", func(p *domain.Product) { p.Category = domain.CategoryJewelry }, FactorRefundRisk, 4},
		{"RefundShoes", func(p *domain.Product) { p.Category = domain.CategoryShoes }, FactorRefundRisk, 0},

		// Shipping: a fragile product never gets the top bucket.
		{"ShippingLightFragile", func(p *domain.Product) { p.IsFragile = true }, FactorShipping, 3},
		{"ShippingExactly500g", func(p *domain.Product) { p.WeightGrams = 500 }, FactorShipping, 3},
		{"ShippingExactly1000g", func(p *domain.Product) { p.WeightGrams = 1000 }, FactorShipping, 2},

		// Passion niche bonus
		{"PassionGarden", func(p *domain.Product) { p.Category = domain.CategoryGarden }, FactorPassion, 5},
		{"PassionTools", func(p *domain.Product) { p.Category = domain.CategoryTools }, FactorPassion, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baselineProduct()
			tt.mutate(p)

			_, breakdown := CalculatePoints(p, cfg)
			if got := breakdown[tt.factor]; got != tt.want {
				t.Errorf("factor %s: expected %d points, got %d", tt.factor, tt.want, got)
			}
		})
	}
}

func TestScoreProductPassing(t *testing.T) {
	p := baselineProduct()
	cfg := domain.DefaultScoringConfig()

	score := ScoreProduct(p, cfg)

	if !score.PassedFilters {
		t.Fatalf("expected pass, got %v", score.RejectionReasons)
	}
	if score.Points == nil || *score.Points != 100 {
		t.Fatalf("expected 100 points, got %v", score.Points)
	}
	if score.RankScore == nil {
		t.Fatal("expected rank score")
	}

	// rank = points*0.6 + buffer*25 with the raw (unrounded) buffer
	rawBuffer := CPCBuffer(p, cfg)
	wantRank := math.Round((100*0.6+rawBuffer*25)*100) / 100
	if *score.RankScore != wantRank {
		t.Errorf("expected rank %.2f, got %.2f", wantRank, *score.RankScore)
	}
	if score.Recommendation == domain.RecommendationReject {
		t.Error("passing product must never be REJECT")
	}
	if score.Metadata.FiltersRun != FilterCount {
		t.Errorf("expected %d filters recorded, got %d", FilterCount, score.Metadata.FiltersRun)
	}
}

func TestScoreProductRejected(t *testing.T) {
	p := baselineProduct()
	p.Category = domain.CategoryMedical
	p.IsFragile = true

	score := ScoreProduct(p, domain.DefaultScoringConfig())

	if score.PassedFilters {
		t.Fatal("expected rejection")
	}
	if score.Recommendation != domain.RecommendationReject {
		t.Errorf("expected REJECT, got %s", score.Recommendation)
	}
	if score.Points != nil || score.PointBreakdown != nil || score.RankScore != nil {
		t.Error("rejected product must carry no point or rank data")
	}
	if len(score.RejectionReasons) != 2 {
		t.Errorf("expected 2 reasons, got %v", score.RejectionReasons)
	}

	// Financial metrics are still reported for rejected products.
	if score.COGS != 17.00 {
		t.Errorf("expected COGS 17.00, got %.2f", score.COGS)
	}
}

// TestScoreProductDocumentedScenario reproduces the worked example:
// $12 cost + $5 shipping at $75, crafts, CPC $0.45, CVR 1.5%, no
// new-account penalty.
func TestScoreProductDocumentedScenario(t *testing.T) {
	p := baselineProduct()
	p.ProductCost = 12.00
	p.ShippingCost = 5.00
	p.SellingPrice = 75.00
	p.EstimatedCPC = 0.45

	cfg := domain.DefaultScoringConfig().With(
		domain.WithCVR(0.015),
		domain.WithCPCMultiplier(1.0),
	)

	score := ScoreProduct(p, cfg)

	if score.COGS != 17.00 {
		t.Errorf("expected COGS 17.00, got %.2f", score.COGS)
	}
	if score.GrossMargin != 0.7733 {
		t.Errorf("expected gross margin 0.7733, got %.4f", score.GrossMargin)
	}
	if score.NetMargin != 0.6883 {
		t.Errorf("expected net margin 0.6883, got %.4f", score.NetMargin)
	}
	if score.MaxCPC != 0.77 {
		t.Errorf("expected max CPC 0.77, got %.2f", score.MaxCPC)
	}
	if score.CPCBuffer != 1.72 {
		t.Errorf("expected buffer 1.72, got %.2f", score.CPCBuffer)
	}
	if !score.PassedFilters {
		t.Fatalf("expected pass, got %v", score.RejectionReasons)
	}
	if score.Recommendation != domain.RecommendationStrongBuy &&
		score.Recommendation != domain.RecommendationViable {
		t.Errorf("expected STRONG BUY or VIABLE, got %s", score.Recommendation)
	}
}

func TestScoreProductDeterministic(t *testing.T) {
	p := baselineProduct()
	cfg := domain.DefaultScoringConfig()

	a := ScoreProduct(p, cfg)
	b := ScoreProduct(p, cfg)

	// IDs and timestamps differ per call; the verdict must not.
	if a.COGS != b.COGS || a.GrossMargin != b.GrossMargin ||
		a.NetMargin != b.NetMargin || a.MaxCPC != b.MaxCPC ||
		a.CPCBuffer != b.CPCBuffer {
		t.Error("financial metrics differ between identical calls")
	}
	if a.PassedFilters != b.PassedFilters {
		t.Error("filter outcome differs between identical calls")
	}
	if *a.Points != *b.Points || *a.RankScore != *b.RankScore {
		t.Error("point outcome differs between identical calls")
	}
	if a.Recommendation != b.Recommendation {
		t.Error("recommendation differs between identical calls")
	}
	if !reflect.DeepEqual(a.RejectionReasons, b.RejectionReasons) {
		t.Error("rejection reasons differ between identical calls")
	}
}

func TestRecommendationTiers(t *testing.T) {
	tests := []struct {
		rank float64
		want string
	}{
		{95.0, domain.RecommendationStrongBuy},
		{120.5, domain.RecommendationStrongBuy},
		{94.99, domain.RecommendationViable},
		{75.0, domain.RecommendationViable},
		{74.99, domain.RecommendationMarginal},
		{60.0, domain.RecommendationMarginal},
		{59.99, domain.RecommendationWeak},
		{0, domain.RecommendationWeak},
	}

	for _, tt := range tests {
		if got := classify(tt.rank); got != tt.want {
			t.Errorf("rank %.2f: expected %s, got %s", tt.rank, tt.want, got)
		}
	}
}

func TestInfiniteBufferClampedForSerialization(t *testing.T) {
	p := baselineProduct()
	p.EstimatedCPC = 0 // upstream contract violation, defensively handled

	score := ScoreProduct(p, domain.DefaultScoringConfig())

	if math.IsInf(score.CPCBuffer, 1) {
		t.Fatal("stored buffer must be finite")
	}
	if score.CPCBuffer != maxBufferSentinel {
		t.Errorf("expected sentinel %.2f, got %.2f", maxBufferSentinel, score.CPCBuffer)
	}
	if _, err := json.Marshal(score); err != nil {
		t.Errorf("score must stay JSON-serializable: %v", err)
	}
}
