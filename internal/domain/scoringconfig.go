package domain

// ScoringConfig holds the tunable thresholds and rate assumptions for the
// scoring engine. Build one with DefaultScoringConfig and adjust it with
// With; it is never mutated mid-calculation.
type ScoringConfig struct {
	// Fee assumptions
	PaymentFeeRate    float64 `json:"paymentFeeRate"`    // payment processor fee (default 3%)
	ChargebackRate    float64 `json:"chargebackRate"`    // expected chargeback rate (default 0.5%)
	DefaultRefundRate float64 `json:"defaultRefundRate"` // refund rate when category is unmapped

	// CVR assumption
	CVR float64 `json:"cvr"` // assumed conversion rate (default 1%)

	// CPC penalty for new ad accounts
	CPCMultiplier float64 `json:"cpcMultiplier"`

	// Hard filter thresholds
	MaxCPCThreshold                float64 `json:"maxCpcThreshold"`
	MinGrossMargin                 float64 `json:"minGrossMargin"`
	MinSellingPrice                float64 `json:"minSellingPrice"`
	MaxSellingPrice                float64 `json:"maxSellingPrice"`
	MaxShippingDays                int     `json:"maxShippingDays"`
	MinSupplierRating              float64 `json:"minSupplierRating"`
	MinSupplierAgeMonths           int     `json:"minSupplierAgeMonths"`
	MinSupplierFeedback            int     `json:"minSupplierFeedback"`
	MaxAmazonReviewsForCompetition int     `json:"maxAmazonReviewsForCompetition"`
	MinCPCBuffer                   float64 `json:"minCpcBuffer"`
	MaxWeightGrams                 int     `json:"maxWeightGrams"`
}

// DefaultScoringConfig returns the baseline threshold set.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		PaymentFeeRate:                 0.03,
		ChargebackRate:                 0.005,
		DefaultRefundRate:              0.08,
		CVR:                            0.01,
		CPCMultiplier:                  1.3,
		MaxCPCThreshold:                0.75,
		MinGrossMargin:                 0.65,
		MinSellingPrice:                50.0,
		MaxSellingPrice:                200.0,
		MaxShippingDays:                30,
		MinSupplierRating:              4.6,
		MinSupplierAgeMonths:           12,
		MinSupplierFeedback:            500,
		MaxAmazonReviewsForCompetition: 500,
		MinCPCBuffer:                   1.5,
		MaxWeightGrams:                 2000,
	}
}

// ScoringOption adjusts a single named threshold on a copy of the config.
type ScoringOption func(*ScoringConfig)

// With returns a copy of the config with the given options applied. The
// receiver is untouched, so a shared settings value stays immutable.
func (c ScoringConfig) With(opts ...ScoringOption) ScoringConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithPaymentFeeRate(v float64) ScoringOption { return func(c *ScoringConfig) { c.PaymentFeeRate = v } }
func WithChargebackRate(v float64) ScoringOption { return func(c *ScoringConfig) { c.ChargebackRate = v } }
func WithDefaultRefundRate(v float64) ScoringOption {
	return func(c *ScoringConfig) { c.DefaultRefundRate = v }
}
func WithCVR(v float64) ScoringOption           { return func(c *ScoringConfig) { c.CVR = v } }
func WithCPCMultiplier(v float64) ScoringOption { return func(c *ScoringConfig) { c.CPCMultiplier = v } }
func WithMaxCPCThreshold(v float64) ScoringOption {
	return func(c *ScoringConfig) { c.MaxCPCThreshold = v }
}
func WithMinGrossMargin(v float64) ScoringOption {
	return func(c *ScoringConfig) { c.MinGrossMargin = v }
}
func WithMinSellingPrice(v float64) ScoringOption {
	return func(c *ScoringConfig) { c.MinSellingPrice = v }
}
func WithMaxSellingPrice(v float64) ScoringOption {
	return func(c *ScoringConfig) { c.MaxSellingPrice = v }
}
func WithMaxShippingDays(v int) ScoringOption {
	return func(c *ScoringConfig) { c.MaxShippingDays = v }
}
func WithMinSupplierRating(v float64) ScoringOption {
	return func(c *ScoringConfig) { c.MinSupplierRating = v }
}
func WithMinSupplierAgeMonths(v int) ScoringOption {
	return func(c *ScoringConfig) { c.MinSupplierAgeMonths = v }
}
func WithMinSupplierFeedback(v int) ScoringOption {
	return func(c *ScoringConfig) { c.MinSupplierFeedback = v }
}
func WithMaxAmazonReviews(v int) ScoringOption {
	return func(c *ScoringConfig) { c.MaxAmazonReviewsForCompetition = v }
}
func WithMinCPCBuffer(v float64) ScoringOption { return func(c *ScoringConfig) { c.MinCPCBuffer = v } }
func WithMaxWeightGrams(v int) ScoringOption {
	return func(c *ScoringConfig) { c.MaxWeightGrams = v }
}

// ScoringOverrides is the wire form of a partial config: nil fields keep
// the stored/default value. Used by the API and the ingest message.
type ScoringOverrides struct {
	PaymentFeeRate                 *float64 `json:"paymentFeeRate,omitempty"`
	ChargebackRate                 *float64 `json:"chargebackRate,omitempty"`
	DefaultRefundRate              *float64 `json:"defaultRefundRate,omitempty"`
	CVR                            *float64 `json:"cvr,omitempty"`
	CPCMultiplier                  *float64 `json:"cpcMultiplier,omitempty"`
	MaxCPCThreshold                *float64 `json:"maxCpcThreshold,omitempty"`
	MinGrossMargin                 *float64 `json:"minGrossMargin,omitempty"`
	MinSellingPrice                *float64 `json:"minSellingPrice,omitempty"`
	MaxSellingPrice                *float64 `json:"maxSellingPrice,omitempty"`
	MaxShippingDays                *int     `json:"maxShippingDays,omitempty"`
	MinSupplierRating              *float64 `json:"minSupplierRating,omitempty"`
	MinSupplierAgeMonths           *int     `json:"minSupplierAgeMonths,omitempty"`
	MinSupplierFeedback            *int     `json:"minSupplierFeedback,omitempty"`
	MaxAmazonReviewsForCompetition *int     `json:"maxAmazonReviewsForCompetition,omitempty"`
	MinCPCBuffer                   *float64 `json:"minCpcBuffer,omitempty"`
	MaxWeightGrams                 *int     `json:"maxWeightGrams,omitempty"`
}

// Options converts the non-nil override fields to ScoringOptions.
func (o *ScoringOverrides) Options() []ScoringOption {
	if o == nil {
		return nil
	}
	var opts []ScoringOption
	if o.PaymentFeeRate != nil {
		opts = append(opts, WithPaymentFeeRate(*o.PaymentFeeRate))
	}
	if o.ChargebackRate != nil {
		opts = append(opts, WithChargebackRate(*o.ChargebackRate))
	}
	if o.DefaultRefundRate != nil {
		opts = append(opts, WithDefaultRefundRate(*o.DefaultRefundRate))
	}
	if o.CVR != nil {
		opts = append(opts, WithCVR(*o.CVR))
	}
	if o.CPCMultiplier != nil {
		opts = append(opts, WithCPCMultiplier(*o.CPCMultiplier))
	}
	if o.MaxCPCThreshold != nil {
		opts = append(opts, WithMaxCPCThreshold(*o.MaxCPCThreshold))
	}
	if o.MinGrossMargin != nil {
		opts = append(opts, WithMinGrossMargin(*o.MinGrossMargin))
	}
	if o.MinSellingPrice != nil {
		opts = append(opts, WithMinSellingPrice(*o.MinSellingPrice))
	}
	if o.MaxSellingPrice != nil {
		opts = append(opts, WithMaxSellingPrice(*o.MaxSellingPrice))
	}
	if o.MaxShippingDays != nil {
		opts = append(opts, WithMaxShippingDays(*o.MaxShippingDays))
	}
	if o.MinSupplierRating != nil {
		opts = append(opts, WithMinSupplierRating(*o.MinSupplierRating))
	}
	if o.MinSupplierAgeMonths != nil {
		opts = append(opts, WithMinSupplierAgeMonths(*o.MinSupplierAgeMonths))
	}
	if o.MinSupplierFeedback != nil {
		opts = append(opts, WithMinSupplierFeedback(*o.MinSupplierFeedback))
	}
	if o.MaxAmazonReviewsForCompetition != nil {
		opts = append(opts, WithMaxAmazonReviews(*o.MaxAmazonReviewsForCompetition))
	}
	if o.MinCPCBuffer != nil {
		opts = append(opts, WithMinCPCBuffer(*o.MinCPCBuffer))
	}
	if o.MaxWeightGrams != nil {
		opts = append(opts, WithMaxWeightGrams(*o.MaxWeightGrams))
	}
	return opts
}
