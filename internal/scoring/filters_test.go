package scoring

import (
	"strings"
	"testing"

	"github.com/opensource-commerce/shrike/internal/domain"
)

func TestFiltersPassOnCleanProduct(t *testing.T) {
	result := ApplyHardFilters(baselineProduct(), domain.DefaultScoringConfig())

	if !result.Passed {
		t.Fatalf("expected pass, got rejections: %v", result.Reasons)
	}
	if len(result.Reasons) != 0 {
		t.Errorf("expected no reasons, got %v", result.Reasons)
	}
}

// TestFilterIndependence triggers each check in isolation: every mutation
// fails exactly one filter while all other checks stay green.
func TestFilterIndependence(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.Product)
		want   string // substring of the single expected reason
	}{
		{
			name:   "RestrictedCategory",
			mutate: func(p *domain.Product) { p.Category = domain.CategorySupplements },
			want:   "Restricted category",
		},
		{
			name: "SellingPriceBelowMinimum",
			mutate: func(p *domain.Product) {
				// Cheap COGS and CPC keep margin and buffer green.
				p.SellingPrice = 40
				p.ProductCost = 2
				p.ShippingCost = 1
				p.EstimatedCPC = 0.10
			},
			want: "Selling price $40.00 < minimum",
		},
		{
			name:   "SellingPriceAboveMaximum",
			mutate: func(p *domain.Product) { p.SellingPrice = 250 },
			want:   "Selling price $250.00 > maximum",
		},
		{
			name: "GrossMarginBelowMinimum",
			mutate: func(p *domain.Product) {
				p.ProductCost = 40
				p.ShippingCost = 5
				p.EstimatedCPC = 0.10
			},
			want: "Gross margin",
		},
		{
			name: "EstimatedCPCAboveThreshold",
			mutate: func(p *domain.Product) {
				p.SellingPrice = 200
				p.ProductCost = 2
				p.ShippingCost = 1
				p.EstimatedCPC = 0.80
			},
			want: "Estimated CPC $0.80 > maximum",
		},
		{
			name:   "CPCBufferBelowMinimum",
			mutate: func(p *domain.Product) { p.EstimatedCPC = 0.70 },
			want:   "CPC buffer",
		},
		{
			name:   "RequiresSizing",
			mutate: func(p *domain.Product) { p.RequiresSizing = true },
			want:   "requires sizing",
		},
		{
			name:   "Fragile",
			mutate: func(p *domain.Product) { p.IsFragile = true },
			want:   "fragile",
		},
		{
			name:   "Overweight",
			mutate: func(p *domain.Product) { p.WeightGrams = 2500 },
			want:   "Weight 2500g > maximum",
		},
		{
			name:   "SlowShipping",
			mutate: func(p *domain.Product) { p.ShippingDaysMax = 35 },
			want:   "Max shipping 35 days",
		},
		{
			name:   "NoFastShipping",
			mutate: func(p *domain.Product) { p.HasFastShipping = false },
			want:   "No fast shipping",
		},
		{
			name:   "LowSupplierRating",
			mutate: func(p *domain.Product) { p.SupplierRating = 4.2 },
			want:   "Supplier rating 4.2 < minimum",
		},
		{
			name:   "YoungSupplier",
			mutate: func(p *domain.Product) { p.SupplierAgeMonths = 6 },
			want:   "Supplier age 6 months",
		},
		{
			name:   "LowSupplierFeedback",
			mutate: func(p *domain.Product) { p.SupplierFeedbackCount = 100 },
			want:   "Supplier feedback 100 < minimum",
		},
		{
			name: "StrongAmazonCompetition",
			mutate: func(p *domain.Product) {
				p.AmazonPrimeExists = true
				p.AmazonReviewCount = 600
			},
			want: "Amazon Prime competitor with 600 reviews",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baselineProduct()
			tt.mutate(p)

			result := ApplyHardFilters(p, domain.DefaultScoringConfig())
			if result.Passed {
				t.Fatal("expected rejection")
			}
			if len(result.Reasons) != 1 {
				t.Fatalf("expected exactly 1 reason, got %d: %v", len(result.Reasons), result.Reasons)
			}
			if !strings.Contains(result.Reasons[0], tt.want) {
				t.Errorf("expected reason containing %q, got %q", tt.want, result.Reasons[0])
			}
		})
	}
}

func TestFiltersDoNotShortCircuit(t *testing.T) {
	p := baselineProduct()
	p.Category = domain.CategoryWeapons
	p.RequiresSizing = true
	p.IsFragile = true
	p.HasFastShipping = false
	p.SupplierRating = 1.0

	result := ApplyHardFilters(p, domain.DefaultScoringConfig())
	if result.Passed {
		t.Fatal("expected rejection")
	}
	if len(result.Reasons) != 5 {
		t.Errorf("expected 5 accumulated reasons, got %d: %v", len(result.Reasons), result.Reasons)
	}
	// Evaluation order is fixed: category first.
	if !strings.Contains(result.Reasons[0], "Restricted category") {
		t.Errorf("expected category rejection first, got %q", result.Reasons[0])
	}
}

func TestRestrictedCategoryAlwaysRejected(t *testing.T) {
	restricted := []domain.Category{
		domain.CategorySupplements,
		domain.CategoryCosmetics,
		domain.CategoryFood,
		domain.CategoryMedical,
		domain.CategoryWeapons,
		domain.CategoryChildren,
	}

	for _, cat := range restricted {
		t.Run(string(cat), func(t *testing.T) {
			p := baselineProduct()
			p.Category = cat

			result := ApplyHardFilters(p, domain.DefaultScoringConfig())
			if result.Passed {
				t.Fatal("restricted category must never pass")
			}
			found := false
			for _, r := range result.Reasons {
				if strings.Contains(r, "Restricted category") {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a restricted-category reason, got %v", result.Reasons)
			}
		})
	}
}

func TestAmazonFilterRequiresBothConditions(t *testing.T) {
	cfg := domain.DefaultScoringConfig()

	// Prime with few reviews passes
	p := baselineProduct()
	p.AmazonPrimeExists = true
	p.AmazonReviewCount = 100
	if result := ApplyHardFilters(p, cfg); !result.Passed {
		t.Errorf("prime with 100 reviews should pass, got %v", result.Reasons)
	}

	// Many reviews without prime passes
	p = baselineProduct()
	p.AmazonPrimeExists = false
	p.AmazonReviewCount = 10000
	if result := ApplyHardFilters(p, cfg); !result.Passed {
		t.Errorf("no prime should pass regardless of reviews, got %v", result.Reasons)
	}
}

func TestFilterThresholdOverrides(t *testing.T) {
	p := baselineProduct()
	p.WeightGrams = 1800

	cfg := domain.DefaultScoringConfig().With(domain.WithMaxWeightGrams(1500))
	result := ApplyHardFilters(p, cfg)
	if result.Passed {
		t.Fatal("expected rejection under tightened weight limit")
	}

	// The shared default config is untouched.
	if result := ApplyHardFilters(p, domain.DefaultScoringConfig()); !result.Passed {
		t.Errorf("default config should still pass 1800g, got %v", result.Reasons)
	}
}
