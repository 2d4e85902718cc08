package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-commerce/shrike/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "repo-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
		os.Remove(tmpPath)
	})

	return repo
}

func sampleProduct(id string) *domain.Product {
	return &domain.Product{
		ID:                    id,
		TenantID:              "tenant-001",
		Name:                  "Ceramic Plant Pot",
		ProductCost:           8.50,
		ShippingCost:          3.20,
		SellingPrice:          64.99,
		Category:              domain.CategoryGarden,
		WeightGrams:           450,
		IsFragile:             false,
		RequiresSizing:        false,
		SupplierRating:        4.8,
		SupplierAgeMonths:     30,
		SupplierFeedbackCount: 2400,
		ShippingDaysMin:       6,
		ShippingDaysMax:       14,
		HasFastShipping:       true,
		EstimatedCPC:          0.28,
		MonthlySearchVolume:   4200,
		AmazonPrimeExists:     true,
		AmazonReviewCount:     120,
		Source:                "aliexpress",
		SourceURL:             "https://example.com/listing/123",
		CreatedAt:             time.Now().UTC().Truncate(time.Second),
	}
}

func sampleScore(id, productID string, passed bool) *domain.ProductScore {
	score := &domain.ProductScore{
		ID:          id,
		TenantID:    "tenant-001",
		ProductID:   productID,
		ProductName: "Ceramic Plant Pot",
		COGS:        11.70,
		GrossMargin: 0.82,
		NetMargin:   0.705,
		MaxCPC:      0.46,
		CPCBuffer:   1.26,
		ScoredAt:    time.Now().UTC().Truncate(time.Second),
		Metadata: domain.ScoreMetadata{
			FiltersRun:    15,
			TotalMs:       2,
			EngineVersion: "shrike-1.0",
		},
	}

	if passed {
		points := 87
		rank := 83.7
		score.PassedFilters = true
		score.Points = &points
		score.PointBreakdown = map[string]int{"cpc": 20, "margin": 20}
		score.RankScore = &rank
		score.Recommendation = domain.RecommendationViable
	} else {
		score.Recommendation = domain.RecommendationReject
		score.RejectionReasons = []string{"Product is fragile (damage claim risk)"}
	}

	return score
}

func TestProductRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := sampleProduct("prod-001")
	if err := repo.SaveProduct(ctx, "tenant-001", p); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}

	got, err := repo.GetProduct(ctx, "tenant-001", "prod-001")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}

	if got.Name != p.Name || got.Category != p.Category ||
		got.SellingPrice != p.SellingPrice || got.Source != p.Source {
		t.Errorf("product mismatch:\n got %+v\nwant %+v", got, p)
	}
	if !got.HasFastShipping || !got.AmazonPrimeExists || got.IsFragile {
		t.Error("boolean fields did not survive the round trip")
	}
}

func TestProductNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetProduct(context.Background(), "tenant-001", "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProductTenantIsolation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveProduct(ctx, "tenant-001", sampleProduct("prod-001")); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}

	_, err := repo.GetProduct(ctx, "tenant-002", "prod-001")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestProductUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := sampleProduct("prod-001")
	if err := repo.SaveProduct(ctx, "tenant-001", p); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}

	p.SellingPrice = 79.99
	p.EstimatedCPC = 0.35
	if err := repo.SaveProduct(ctx, "tenant-001", p); err != nil {
		t.Fatalf("SaveProduct update: %v", err)
	}

	got, err := repo.GetProduct(ctx, "tenant-001", "prod-001")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.SellingPrice != 79.99 || got.EstimatedCPC != 0.35 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestCountProductsBySource(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p := sampleProduct(fmt.Sprintf("prod-%d", i))
		if err := repo.SaveProduct(ctx, "tenant-001", p); err != nil {
			t.Fatalf("SaveProduct: %v", err)
		}
	}

	other := sampleProduct("prod-other")
	other.Source = "cj-dropshipping"
	if err := repo.SaveProduct(ctx, "tenant-001", other); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}

	since := time.Now().Add(-time.Hour)
	count, err := repo.CountProductsBySource(ctx, "tenant-001", "aliexpress", since)
	if err != nil {
		t.Fatalf("CountProductsBySource: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}

	// Nothing ingested before the window
	count, err = repo.CountProductsBySource(ctx, "tenant-001", "aliexpress", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountProductsBySource: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 in future window, got %d", count)
	}
}

func TestScoreRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Passing", func(t *testing.T) {
		score := sampleScore("score-001", "prod-001", true)
		if err := repo.SaveScore(ctx, "tenant-001", score); err != nil {
			t.Fatalf("SaveScore: %v", err)
		}

		got, err := repo.GetScore(ctx, "tenant-001", "score-001")
		if err != nil {
			t.Fatalf("GetScore: %v", err)
		}

		if !got.PassedFilters {
			t.Error("expected PassedFilters true")
		}
		if got.Points == nil || *got.Points != 87 {
			t.Errorf("expected points 87, got %v", got.Points)
		}
		if got.RankScore == nil || *got.RankScore != 83.7 {
			t.Errorf("expected rank 83.7, got %v", got.RankScore)
		}
		if got.PointBreakdown["cpc"] != 20 {
			t.Errorf("breakdown not preserved: %v", got.PointBreakdown)
		}
		if got.Recommendation != domain.RecommendationViable {
			t.Errorf("expected VIABLE, got %s", got.Recommendation)
		}
		if got.Metadata.EngineVersion != "shrike-1.0" {
			t.Errorf("metadata not preserved: %+v", got.Metadata)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		score := sampleScore("score-002", "prod-002", false)
		if err := repo.SaveScore(ctx, "tenant-001", score); err != nil {
			t.Fatalf("SaveScore: %v", err)
		}

		got, err := repo.GetScore(ctx, "tenant-001", "score-002")
		if err != nil {
			t.Fatalf("GetScore: %v", err)
		}

		if got.PassedFilters {
			t.Error("expected PassedFilters false")
		}
		if got.Points != nil || got.RankScore != nil {
			t.Error("rejected score must have nil points and rank")
		}
		if len(got.RejectionReasons) != 1 {
			t.Errorf("expected 1 rejection reason, got %v", got.RejectionReasons)
		}
	})
}

func TestGetScoreByProductReturnsLatest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	older := sampleScore("score-old", "prod-001", true)
	older.ScoredAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	if err := repo.SaveScore(ctx, "tenant-001", older); err != nil {
		t.Fatalf("SaveScore: %v", err)
	}

	newer := sampleScore("score-new", "prod-001", true)
	if err := repo.SaveScore(ctx, "tenant-001", newer); err != nil {
		t.Fatalf("SaveScore: %v", err)
	}

	got, err := repo.GetScoreByProduct(ctx, "tenant-001", "prod-001")
	if err != nil {
		t.Fatalf("GetScoreByProduct: %v", err)
	}
	if got.ID != "score-new" {
		t.Errorf("expected latest score, got %s", got.ID)
	}
}

func TestListScores(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 4; i++ {
		score := sampleScore(fmt.Sprintf("score-%d", i), fmt.Sprintf("prod-%d", i), i%2 == 0)
		score.ScoredAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.SaveScore(ctx, "tenant-001", score); err != nil {
			t.Fatalf("SaveScore: %v", err)
		}
	}

	t.Run("All", func(t *testing.T) {
		scores, err := repo.ListScores(ctx, "tenant-001", "", 10, 0)
		if err != nil {
			t.Fatalf("ListScores: %v", err)
		}
		if len(scores) != 4 {
			t.Errorf("expected 4 scores, got %d", len(scores))
		}
	})

	t.Run("FilterByRecommendation", func(t *testing.T) {
		scores, err := repo.ListScores(ctx, "tenant-001", domain.RecommendationReject, 10, 0)
		if err != nil {
			t.Fatalf("ListScores: %v", err)
		}
		if len(scores) != 2 {
			t.Errorf("expected 2 rejected scores, got %d", len(scores))
		}
		for _, s := range scores {
			if s.Recommendation != domain.RecommendationReject {
				t.Errorf("filter leaked %s", s.Recommendation)
			}
		}
	})

	t.Run("Pagination", func(t *testing.T) {
		page, err := repo.ListScores(ctx, "tenant-001", "", 2, 0)
		if err != nil {
			t.Fatalf("ListScores: %v", err)
		}
		if len(page) != 2 {
			t.Fatalf("expected 2 scores, got %d", len(page))
		}
		// Newest first
		if page[0].ID != "score-3" {
			t.Errorf("expected score-3 first, got %s", page[0].ID)
		}
	})

	t.Run("OtherTenantSeesNothing", func(t *testing.T) {
		scores, err := repo.ListScores(ctx, "tenant-002", "", 10, 0)
		if err != nil {
			t.Fatalf("ListScores: %v", err)
		}
		if len(scores) != 0 {
			t.Errorf("expected 0 scores for other tenant, got %d", len(scores))
		}
	})
}

func TestExclusionRuleCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.ExclusionRule{
		ID:         "rule-001",
		TenantID:   "tenant-001",
		Name:       "block-apparel",
		Version:    "1.0",
		Expression: `category == "apparel"`,
		Reason:     "Excluded category: apparel",
		Enabled:    true,
	}

	if err := repo.SaveExclusionRule(ctx, "tenant-001", rule); err != nil {
		t.Fatalf("SaveExclusionRule: %v", err)
	}

	got, err := repo.GetExclusionRule(ctx, "tenant-001", "rule-001")
	if err != nil {
		t.Fatalf("GetExclusionRule: %v", err)
	}
	if got.Expression != rule.Expression || !got.Enabled {
		t.Errorf("rule mismatch: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps must be set on save")
	}

	// Upsert flips enabled
	rule.Enabled = false
	if err := repo.SaveExclusionRule(ctx, "tenant-001", rule); err != nil {
		t.Fatalf("SaveExclusionRule update: %v", err)
	}
	got, err = repo.GetExclusionRule(ctx, "tenant-001", "rule-001")
	if err != nil {
		t.Fatalf("GetExclusionRule: %v", err)
	}
	if got.Enabled {
		t.Error("expected rule disabled after update")
	}

	rules, err := repo.ListExclusionRules(ctx, "tenant-001")
	if err != nil {
		t.Fatalf("ListExclusionRules: %v", err)
	}
	if len(rules) != 1 {
		t.Errorf("expected 1 rule, got %d", len(rules))
	}

	if err := repo.DeleteExclusionRule(ctx, "tenant-001", "rule-001"); err != nil {
		t.Fatalf("DeleteExclusionRule: %v", err)
	}
	if err := repo.DeleteExclusionRule(ctx, "tenant-001", "rule-001"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSettingsDefaultWhenAbsent(t *testing.T) {
	repo := newTestRepo(t)

	cfg, err := repo.GetSettings(context.Background(), "tenant-001")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if cfg != domain.DefaultScoringConfig() {
		t.Errorf("expected defaults for unseen tenant, got %+v", cfg)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cfg := domain.DefaultScoringConfig().With(
		domain.WithMinGrossMargin(0.70),
		domain.WithCPCMultiplier(1.0),
	)

	if err := repo.SaveSettings(ctx, "tenant-001", cfg); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	got, err := repo.GetSettings(ctx, "tenant-001")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got != cfg {
		t.Errorf("settings mismatch:\n got %+v\nwant %+v", got, cfg)
	}

	// Other tenant still on defaults
	other, err := repo.GetSettings(ctx, "tenant-002")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if other != domain.DefaultScoringConfig() {
		t.Errorf("settings leaked across tenants: %+v", other)
	}
}
