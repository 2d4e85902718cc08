package domain

import "time"

// ExclusionRule knocks products out of the pipeline before scoring.
// Expression is a CEL predicate over product fields; when it evaluates
// true the product is excluded with the rule's reason.
type ExclusionRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// CEL expression, must return bool
	Expression string `json:"expression"`

	// Human-readable reason recorded on excluded products
	Reason string `json:"reason"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ExclusionMatch is the outcome of one rule evaluation against a product.
type ExclusionMatch struct {
	RuleID    string `json:"ruleId"`
	RuleName  string `json:"ruleName"`
	Reason    string `json:"reason"`
	ProcessMs int64  `json:"processMs,omitempty"`
}
