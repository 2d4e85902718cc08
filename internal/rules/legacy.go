package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-commerce/shrike/internal/domain"
)

// Typed shorthand rules. Operators who don't want to write CEL can post
// a type/value pair and get a generated predicate.
const (
	LegacyTypeCategory = "category"
	LegacyTypeKeyword  = "keyword"
	LegacyTypeSource   = "source"
)

// LegacyRule is the typed shorthand form of an exclusion rule.
type LegacyRule struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// ToExclusionRule expands a typed shorthand into a full CEL-backed rule.
// Values are normalized the same way regardless of how the rule arrives:
// categories and keywords are lowercased, sources kept verbatim.
func (l LegacyRule) ToExclusionRule(tenantID string) (*domain.ExclusionRule, error) {
	value := strings.TrimSpace(l.Value)
	if value == "" {
		return nil, fmt.Errorf("%w: exclusion value is required", domain.ErrInvalidInput)
	}

	var expression string
	switch l.Type {
	case LegacyTypeCategory:
		value = strings.ToLower(value)
		expression = fmt.Sprintf("category == %s", strconv.Quote(value))
	case LegacyTypeKeyword:
		value = strings.ToLower(value)
		expression = fmt.Sprintf("name.lowerAscii().contains(%s)", strconv.Quote(value))
	case LegacyTypeSource:
		expression = fmt.Sprintf("source == %s", strconv.Quote(value))
	default:
		return nil, fmt.Errorf("%w: unknown exclusion type %q", domain.ErrInvalidInput, l.Type)
	}

	reason := l.Reason
	if reason == "" {
		reason = fmt.Sprintf("Excluded %s: %s", l.Type, value)
	}

	now := time.Now().UTC()
	return &domain.ExclusionRule{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Name:       fmt.Sprintf("%s-%s", l.Type, value),
		Version:    "1.0",
		Expression: expression,
		Reason:     reason,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
