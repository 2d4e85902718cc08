// Package worker provides async product processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/rules"
	"github.com/opensource-commerce/shrike/internal/scoring"
	"github.com/opensource-commerce/shrike/internal/velocity"
)

// scoreCacheTTL bounds how long a cached score can serve repeat lookups.
const scoreCacheTTL = 15 * time.Minute

// Worker scores ingested products asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	engine   *rules.Engine
	velocity *velocity.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *rules.Engine, vel *velocity.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		engine:   engine,
		velocity: vel,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicProductIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicProductIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processProduct(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicProductIngested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processProduct(ctx, msg.TenantID, msg)
}

// ProductMessage is the message payload for async product scoring.
type ProductMessage struct {
	TenantID string                `json:"tenantId"`
	TraceID  string                `json:"traceId,omitempty"`
	Product  domain.ProductRequest `json:"product"`
}

// processProduct runs one product through the scoring pipeline:
// exclusion rules, then the filter gate and point rubric, then
// persistence and result publication.
func (w *Worker) processProduct(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var pm ProductMessage
	if err := json.Unmarshal(msg.Payload, &pm); err != nil {
		slog.Error("failed to parse product message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if pm.TenantID != "" {
		tenantID = pm.TenantID
	}

	traceID := pm.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	if err := pm.Product.Validate(); err != nil {
		slog.Error("invalid product message",
			"message_id", msg.ID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	product := pm.Product.ToProduct(tenantID)
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	slog.Debug("processing product",
		"product_id", product.ID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// Tenant settings plus any per-message overrides
	cfg := domain.DefaultScoringConfig()
	if w.repo != nil {
		stored, err := w.repo.GetSettings(ctx, tenantID)
		if err == nil {
			cfg = stored
		}
	}
	cfg = cfg.With(pm.Product.Config.Options()...)

	// 1. Exclusion rules run before anything else
	var score *domain.ProductScore
	if w.engine != nil {
		matches, err := w.engine.Evaluate(ctx, product)
		if err != nil {
			slog.Error("exclusion evaluation failed",
				"product_id", product.ID,
				"error", err,
			)
			return err
		}
		if len(matches) > 0 {
			reasons := make([]string, len(matches))
			for i, m := range matches {
				reasons[i] = m.Reason
			}
			score = scoring.ScoreExcluded(product, cfg, reasons)
		}
	}

	// 2. Full scoring for products that cleared the exclusions
	if score == nil {
		score = scoring.ScoreProduct(product, cfg)
	}
	score.Metadata.TraceID = traceID
	score.Metadata.TotalMs = time.Since(start).Milliseconds()

	// 3. Persist product and score
	if w.repo != nil {
		if err := w.repo.SaveProduct(ctx, tenantID, product); err != nil {
			slog.Error("failed to save product",
				"product_id", product.ID,
				"error", err,
			)
		}
		if err := w.repo.SaveScore(ctx, tenantID, score); err != nil {
			slog.Error("failed to save score",
				"product_id", product.ID,
				"error", err,
			)
		}
	}

	if w.cache != nil {
		_ = w.cache.SetScore(ctx, tenantID, product.ID, score, scoreCacheTTL)
	}

	if w.velocity != nil {
		w.velocity.RecordIngest(ctx, tenantID, product.Source)
	}

	// 4. Publish the verdict
	resultPayload, _ := json.Marshal(score)

	topic := domain.TopicProductScored
	if !score.PassedFilters {
		topic = domain.TopicProductRejected
	}
	if err := w.bus.Publish(ctx, tenantID, topic, resultPayload); err != nil {
		slog.Error("failed to publish score",
			"product_id", product.ID,
			"error", err,
		)
	}

	// Strong buys additionally fan out to their own topic
	if score.Recommendation == domain.RecommendationStrongBuy {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicStrongBuy, resultPayload); err != nil {
			slog.Error("failed to publish strong buy",
				"product_id", product.ID,
				"error", err,
			)
		}
	}

	slog.Info("product processed",
		"product_id", product.ID,
		"tenant_id", tenantID,
		"recommendation", score.Recommendation,
		"passed_filters", score.PassedFilters,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
