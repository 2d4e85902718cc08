package domain

import (
	"fmt"
	"time"
)

// Product is a candidate supplier listing to be scored.
// Immutable once constructed; the scoring engine never mutates it.
type Product struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`

	// Pricing (USD)
	ProductCost  float64 `json:"productCost"`
	ShippingCost float64 `json:"shippingCost"`
	SellingPrice float64 `json:"sellingPrice"`

	// Classification
	Category Category `json:"category"`

	// Physical attributes
	WeightGrams    int  `json:"weightGrams"`
	IsFragile      bool `json:"isFragile"`
	RequiresSizing bool `json:"requiresSizing"`

	// Supplier trust signals
	SupplierRating        float64 `json:"supplierRating"`
	SupplierAgeMonths     int     `json:"supplierAgeMonths"`
	SupplierFeedbackCount int     `json:"supplierFeedbackCount"`

	// Logistics
	ShippingDaysMin int  `json:"shippingDaysMin"`
	ShippingDaysMax int  `json:"shippingDaysMax"`
	HasFastShipping bool `json:"hasFastShipping"`

	// Market signals
	EstimatedCPC        float64 `json:"estimatedCpc"`
	MonthlySearchVolume int     `json:"monthlySearchVolume"`

	// Competition signals
	AmazonPrimeExists bool `json:"amazonPrimeExists"`
	AmazonReviewCount int  `json:"amazonReviewCount"`

	// Provenance (not used in calculations)
	Source    string `json:"source,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ProductRequest is the API request payload for scoring a product.
type ProductRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	ProductCost  float64 `json:"productCost"`
	ShippingCost float64 `json:"shippingCost"`
	SellingPrice float64 `json:"sellingPrice"`

	Category string `json:"category"`

	WeightGrams    int  `json:"weightGrams"`
	IsFragile      bool `json:"isFragile"`
	RequiresSizing bool `json:"requiresSizing"`

	SupplierRating        float64 `json:"supplierRating"`
	SupplierAgeMonths     int     `json:"supplierAgeMonths"`
	SupplierFeedbackCount int     `json:"supplierFeedbackCount"`

	ShippingDaysMin int  `json:"shippingDaysMin"`
	ShippingDaysMax int  `json:"shippingDaysMax"`
	HasFastShipping bool `json:"hasFastShipping"`

	EstimatedCPC        float64 `json:"estimatedCpc"`
	MonthlySearchVolume int     `json:"monthlySearchVolume"`

	AmazonPrimeExists bool `json:"amazonPrimeExists"`
	AmazonReviewCount int  `json:"amazonReviewCount"`

	Source    string `json:"source,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`

	// Optional per-request threshold overrides, merged over the
	// tenant's persisted settings.
	Config *ScoringOverrides `json:"config,omitempty"`
}

// Validate checks the Product construction invariants. Violations are a
// caller contract error; the scoring engine itself assumes valid input.
func (r *ProductRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if r.ProductCost <= 0 {
		return fmt.Errorf("%w: productCost must be positive", ErrInvalidInput)
	}
	if r.ShippingCost < 0 {
		return fmt.Errorf("%w: shippingCost must not be negative", ErrInvalidInput)
	}
	if r.SellingPrice <= 0 {
		return fmt.Errorf("%w: sellingPrice must be positive", ErrInvalidInput)
	}
	if !ParseCategory(r.Category).Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, r.Category)
	}
	if r.WeightGrams < 0 {
		return fmt.Errorf("%w: weightGrams must not be negative", ErrInvalidInput)
	}
	if r.SupplierRating < 0 || r.SupplierRating > 5 {
		return fmt.Errorf("%w: supplierRating must be between 0 and 5", ErrInvalidInput)
	}
	if r.SupplierAgeMonths < 0 || r.SupplierFeedbackCount < 0 {
		return fmt.Errorf("%w: supplier age and feedback must not be negative", ErrInvalidInput)
	}
	if r.ShippingDaysMin < 0 || r.ShippingDaysMax < 0 {
		return fmt.Errorf("%w: shipping days must not be negative", ErrInvalidInput)
	}
	if r.ShippingDaysMin > r.ShippingDaysMax {
		return fmt.Errorf("%w: shippingDaysMin must not exceed shippingDaysMax", ErrInvalidInput)
	}
	if r.EstimatedCPC <= 0 {
		return fmt.Errorf("%w: estimatedCpc must be positive", ErrInvalidInput)
	}
	if r.MonthlySearchVolume < 0 {
		return fmt.Errorf("%w: monthlySearchVolume must not be negative", ErrInvalidInput)
	}
	if r.AmazonReviewCount < 0 {
		return fmt.Errorf("%w: amazonReviewCount must not be negative", ErrInvalidInput)
	}
	return nil
}

// ToProduct converts a request to a Product domain object.
func (r *ProductRequest) ToProduct(tenantID string) *Product {
	return &Product{
		ID:                    r.ID,
		TenantID:              tenantID,
		Name:                  r.Name,
		ProductCost:           r.ProductCost,
		ShippingCost:          r.ShippingCost,
		SellingPrice:          r.SellingPrice,
		Category:              ParseCategory(r.Category),
		WeightGrams:           r.WeightGrams,
		IsFragile:             r.IsFragile,
		RequiresSizing:        r.RequiresSizing,
		SupplierRating:        r.SupplierRating,
		SupplierAgeMonths:     r.SupplierAgeMonths,
		SupplierFeedbackCount: r.SupplierFeedbackCount,
		ShippingDaysMin:       r.ShippingDaysMin,
		ShippingDaysMax:       r.ShippingDaysMax,
		HasFastShipping:       r.HasFastShipping,
		EstimatedCPC:          r.EstimatedCPC,
		MonthlySearchVolume:   r.MonthlySearchVolume,
		AmazonPrimeExists:     r.AmazonPrimeExists,
		AmazonReviewCount:     r.AmazonReviewCount,
		Source:                r.Source,
		SourceURL:             r.SourceURL,
		CreatedAt:             time.Now().UTC(),
	}
}
