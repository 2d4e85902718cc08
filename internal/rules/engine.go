// Package rules provides the CEL-Go based exclusion rule engine.
package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/ext"
	"github.com/opensource-commerce/shrike/internal/domain"
)

// Engine compiles and evaluates CEL exclusion predicates against
// products. Rules run before the scoring pipeline: a product that
// matches any enabled rule never reaches the filter gate.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	sourceCounter SourceCountGetter
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.ExclusionRule
	Program cel.Program
}

// SourceCountGetter returns how many products a tenant has already
// ingested from a supplier source. Exposed to rules as source_count so
// operators can cap per-source intake.
type SourceCountGetter func(ctx context.Context, tenantID, source string) (int64, error)

// NewEngine creates a new exclusion rule engine.
func NewEngine(sourceCounter SourceCountGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment with product variables. ext.Strings adds
	// lowerAscii for case-insensitive keyword rules.
	env, err := cel.NewEnv(
		ext.Strings(),
		cel.Variable("product", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("name", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("selling_price", cel.DoubleType),
		cel.Variable("supplier_rating", cel.DoubleType),
		cel.Variable("weight_grams", cel.IntType),
		cel.Variable("estimated_cpc", cel.DoubleType),
		cel.Variable("source_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		sourceCounter: sourceCounter,
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded set.
func (e *Engine) ValidateRule(rule *domain.ExclusionRule) error {
	if rule == nil {
		return fmt.Errorf("exclusion rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.ExclusionRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled

	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(rules []*domain.ExclusionRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// Evaluate runs every loaded rule against the product in parallel and
// returns the matches. An empty result means the product may proceed to
// scoring. Rules that error at eval time are skipped; a broken rule must
// not block the pipeline.
func (e *Engine) Evaluate(ctx context.Context, p *domain.Product) ([]domain.ExclusionMatch, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	var sourceCount int64
	if e.sourceCounter != nil && p.Source != "" {
		count, err := e.sourceCounter(ctx, p.TenantID, p.Source)
		if err == nil {
			sourceCount = count
		}
	}

	activation := map[string]any{
		"product": map[string]any{
			"id":           p.ID,
			"name":         p.Name,
			"category":     string(p.Category),
			"source":       p.Source,
			"sellingPrice": p.SellingPrice,
		},
		"name":            p.Name,
		"category":        string(p.Category),
		"source":          p.Source,
		"selling_price":   p.SellingPrice,
		"supplier_rating": p.SupplierRating,
		"weight_grams":    int64(p.WeightGrams),
		"estimated_cpc":   p.EstimatedCPC,
		"source_count":    sourceCount,
	}

	// Parallel evaluation bounded by a semaphore
	matches := make([]*domain.ExclusionMatch, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			matches[idx] = e.evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	result := make([]domain.ExclusionMatch, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			result = append(result, *m)
		}
	}
	return result, nil
}

// evaluateRule runs one compiled rule and returns a match or nil.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any) *domain.ExclusionMatch {
	start := time.Now()

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		return nil
	}

	matched, ok := out.(types.Bool)
	if !ok || !bool(matched) {
		return nil
	}

	reason := rule.Rule.Reason
	if reason == "" {
		reason = fmt.Sprintf("excluded by rule %s", rule.Rule.Name)
	}

	return &domain.ExclusionMatch{
		RuleID:    rule.Rule.ID,
		RuleName:  rule.Rule.Name,
		Reason:    reason,
		ProcessMs: time.Since(start).Milliseconds(),
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules swaps the loaded set atomically. This enables
// hot-reloading of rules from the database.
func (e *Engine) ReloadRules(rules []*domain.ExclusionRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule definitions.
func (e *Engine) GetLoadedRules() []*domain.ExclusionRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ExclusionRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.ExclusionRule) (*CompiledRule, error) {
	if strings.TrimSpace(rule.Expression) == "" {
		return nil, fmt.Errorf("rule %s: expression is required", rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}
