// Package scoring implements the product scoring engine: pure financial
// calculations, the hard-filter gate, the point rubric and the
// orchestrator that assembles a ProductScore.
//
// Core formulas:
//
//	COGS       = Product Cost + Shipping Cost
//	Gross Mgn  = (Selling Price - COGS) / Selling Price
//	Net Mgn    = Gross Mgn - Payment Fees - Refund Rate - Chargeback Rate
//	Max CPC    = CVR x Selling Price x Net Mgn
//	CPC Buffer = Max CPC / (Estimated CPC x CPC Multiplier)
//
// Every function is a pure computation over its arguments: no I/O, no
// shared state, safe to call from any number of goroutines.
package scoring

import (
	"math"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// COGS returns the cost of goods sold: product cost plus shipping cost.
func COGS(p *domain.Product) float64 {
	return p.ProductCost + p.ShippingCost
}

// GrossMargin returns the gross margin as a decimal (0.65 = 65%).
// A non-positive selling price yields 0 instead of dividing by zero; the
// min-margin hard filter then rejects the product naturally. A negative
// result (cost exceeds price) is valid and meaningful.
func GrossMargin(p *domain.Product) float64 {
	if p.SellingPrice <= 0 {
		return 0
	}
	return (p.SellingPrice - COGS(p)) / p.SellingPrice
}

// NetMargin returns the margin left after payment fees, the category's
// baseline refund rate and the expected chargeback rate. Categories
// missing from the refund table fall back to cfg.DefaultRefundRate.
func NetMargin(p *domain.Product, cfg domain.ScoringConfig) float64 {
	refundRate, ok := p.Category.RefundRate()
	if !ok {
		refundRate = cfg.DefaultRefundRate
	}
	return GrossMargin(p) - cfg.PaymentFeeRate - refundRate - cfg.ChargebackRate
}

// MaxCPC returns the highest cost-per-click the product can sustain:
// CVR x selling price x net margin, clamped at zero. A negative net
// margin never reports a negative affordable CPC.
func MaxCPC(p *domain.Product, cfg domain.ScoringConfig) float64 {
	return math.Max(0, cfg.CVR*p.SellingPrice*NetMargin(p, cfg))
}

// CPCBuffer returns the ratio of affordable CPC to the penalty-adjusted
// market CPC. >1 means profitable headroom. A non-positive denominator
// returns +Inf (no competitive pressure); estimated CPC is constrained
// positive upstream, so this is a defensive sentinel only.
func CPCBuffer(p *domain.Product, cfg domain.ScoringConfig) float64 {
	adjusted := p.EstimatedCPC * cfg.CPCMultiplier
	if adjusted <= 0 {
		return math.Inf(1)
	}
	return MaxCPC(p, cfg) / adjusted
}
