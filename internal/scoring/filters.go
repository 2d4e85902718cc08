package scoring

import (
	"fmt"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// ApplyHardFilters runs the fixed sequence of hard-reject checks against
// a product. Checks are independent and never short-circuit: a badly
// broken product accumulates every applicable reason, in evaluation
// order, for diagnostics. A product with zero reasons has Passed = true.
func ApplyHardFilters(p *domain.Product, cfg domain.ScoringConfig) domain.FilterResult {
	result := domain.FilterResult{Passed: true}

	// Category
	if p.Category.Restricted() {
		result.AddRejection(fmt.Sprintf("Restricted category: %s", p.Category))
	}

	// Pricing
	if p.SellingPrice < cfg.MinSellingPrice {
		result.AddRejection(fmt.Sprintf("Selling price $%.2f < minimum $%.2f",
			p.SellingPrice, cfg.MinSellingPrice))
	}
	if p.SellingPrice > cfg.MaxSellingPrice {
		result.AddRejection(fmt.Sprintf("Selling price $%.2f > maximum $%.2f",
			p.SellingPrice, cfg.MaxSellingPrice))
	}
	if gm := GrossMargin(p); gm < cfg.MinGrossMargin {
		result.AddRejection(fmt.Sprintf("Gross margin %.1f%% < minimum %.1f%%",
			gm*100, cfg.MinGrossMargin*100))
	}

	// CPC
	if p.EstimatedCPC > cfg.MaxCPCThreshold {
		result.AddRejection(fmt.Sprintf("Estimated CPC $%.2f > maximum $%.2f",
			p.EstimatedCPC, cfg.MaxCPCThreshold))
	}
	if buffer := CPCBuffer(p, cfg); buffer < cfg.MinCPCBuffer {
		result.AddRejection(fmt.Sprintf("CPC buffer %.2fx < minimum %.2fx",
			buffer, cfg.MinCPCBuffer))
	}

	// Product attributes
	if p.RequiresSizing {
		result.AddRejection("Product requires sizing (high return risk)")
	}
	if p.IsFragile {
		result.AddRejection("Product is fragile (damage claim risk)")
	}
	if p.WeightGrams > cfg.MaxWeightGrams {
		result.AddRejection(fmt.Sprintf("Weight %dg > maximum %dg",
			p.WeightGrams, cfg.MaxWeightGrams))
	}

	// Shipping
	if p.ShippingDaysMax > cfg.MaxShippingDays {
		result.AddRejection(fmt.Sprintf("Max shipping %d days > limit %d days",
			p.ShippingDaysMax, cfg.MaxShippingDays))
	}
	if !p.HasFastShipping {
		result.AddRejection("No fast shipping option")
	}

	// Supplier trust
	if p.SupplierRating < cfg.MinSupplierRating {
		result.AddRejection(fmt.Sprintf("Supplier rating %.1f < minimum %.1f",
			p.SupplierRating, cfg.MinSupplierRating))
	}
	if p.SupplierAgeMonths < cfg.MinSupplierAgeMonths {
		result.AddRejection(fmt.Sprintf("Supplier age %d months < minimum %d months",
			p.SupplierAgeMonths, cfg.MinSupplierAgeMonths))
	}
	if p.SupplierFeedbackCount < cfg.MinSupplierFeedback {
		result.AddRejection(fmt.Sprintf("Supplier feedback %d < minimum %d",
			p.SupplierFeedbackCount, cfg.MinSupplierFeedback))
	}

	// Competition
	if p.AmazonPrimeExists && p.AmazonReviewCount > cfg.MaxAmazonReviewsForCompetition {
		result.AddRejection(fmt.Sprintf("Amazon Prime competitor with %d reviews (> %d)",
			p.AmazonReviewCount, cfg.MaxAmazonReviewsForCompetition))
	}

	return result
}

// FilterCount is the number of hard-filter checks run per product.
const FilterCount = 15
