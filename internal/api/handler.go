package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/rules"
	"github.com/opensource-commerce/shrike/internal/scoring"
	"github.com/opensource-commerce/shrike/internal/velocity"
)

// scoreCacheTTL bounds how long a cached score can serve repeat lookups.
const scoreCacheTTL = 15 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *rules.Engine
	velocity *velocity.Service
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, vel *velocity.Service, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		velocity: vel,
		version:  version,
	}
}

// ScoreResponse is the response for POST /score.
type ScoreResponse struct {
	Score    *domain.ProductScore `json:"score"`
	Metadata struct {
		TraceID  string `json:"traceId"`
		IngestMs int64  `json:"ingestMs"`
		TotalMs  int64  `json:"totalMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// Score handles POST /score: the synchronous scoring path. The product
// runs through exclusion rules, the filter gate and the point rubric in
// one request, and the verdict is persisted and published before the
// response is written.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	product := req.ToProduct(tenantID)
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	ingestMs := time.Since(start).Milliseconds()

	cfg := h.effectiveConfig(ctx, tenantID, req.Config)
	score := h.runPipeline(ctx, tenantID, product, cfg)
	score.Metadata.TraceID = traceID
	score.Metadata.TotalMs = time.Since(start).Milliseconds()

	h.persistAndPublish(ctx, tenantID, product, score)

	resp := ScoreResponse{Score: score}
	resp.Metadata.TraceID = traceID
	resp.Metadata.IngestMs = ingestMs
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// effectiveConfig layers per-request overrides over the tenant's
// persisted settings, falling back to defaults when no row exists.
func (h *Handler) effectiveConfig(ctx context.Context, tenantID string, overrides *domain.ScoringOverrides) domain.ScoringConfig {
	cfg := domain.DefaultScoringConfig()
	if h.repo != nil {
		stored, err := h.repo.GetSettings(ctx, tenantID)
		if err == nil {
			cfg = stored
		}
	}
	return cfg.With(overrides.Options()...)
}

// runPipeline applies exclusion rules and then the scoring engine.
func (h *Handler) runPipeline(ctx context.Context, tenantID string, product *domain.Product, cfg domain.ScoringConfig) *domain.ProductScore {
	if h.engine != nil {
		matches, err := h.engine.Evaluate(ctx, product)
		if err == nil && len(matches) > 0 {
			reasons := make([]string, len(matches))
			for i, m := range matches {
				reasons[i] = m.Reason
			}
			return scoring.ScoreExcluded(product, cfg, reasons)
		}
	}
	return scoring.ScoreProduct(product, cfg)
}

// persistAndPublish saves the product and its score, refreshes the
// cache and fans the verdict out on the bus. Failures here are logged,
// never surfaced; the caller already has the score.
func (h *Handler) persistAndPublish(ctx context.Context, tenantID string, product *domain.Product, score *domain.ProductScore) {
	if h.repo != nil {
		if err := h.repo.SaveProduct(ctx, tenantID, product); err != nil {
			slog.Error("failed to save product", "product_id", product.ID, "error", err)
		}
		if err := h.repo.SaveScore(ctx, tenantID, score); err != nil {
			slog.Error("failed to save score", "product_id", product.ID, "error", err)
		}
	}

	if h.cache != nil {
		_ = h.cache.SetScore(ctx, tenantID, product.ID, score, scoreCacheTTL)
	}

	if h.velocity != nil {
		h.velocity.RecordIngest(ctx, tenantID, product.Source)
	}

	if h.bus != nil {
		payload, _ := json.Marshal(score)
		topic := domain.TopicProductScored
		if !score.PassedFilters {
			topic = domain.TopicProductRejected
		}
		if err := h.bus.Publish(ctx, tenantID, topic, payload); err != nil {
			slog.Error("failed to publish score", "product_id", product.ID, "error", err)
		}
		if score.Recommendation == domain.RecommendationStrongBuy {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicStrongBuy, payload); err != nil {
				slog.Error("failed to publish strong buy", "product_id", product.ID, "error", err)
			}
		}
	}
}

// GetScore retrieves a stored score by score ID.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	scoreID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	score, err := h.repo.GetScore(ctx, tenantID, scoreID)
	if err != nil {
		writeStorageError(w, "score", err)
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// GetProduct retrieves a stored product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	productID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	product, err := h.repo.GetProduct(ctx, tenantID, productID)
	if err != nil {
		writeStorageError(w, "product", err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// GetProductScore returns the latest score for a product, served from
// cache when warm.
func (h *Handler) GetProductScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	productID := chi.URLParam(r, "id")

	if h.cache != nil {
		if cached, err := h.cache.GetScore(ctx, tenantID, productID); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	score, err := h.repo.GetScoreByProduct(ctx, tenantID, productID)
	if err != nil {
		writeStorageError(w, "score", err)
		return
	}

	if h.cache != nil {
		_ = h.cache.SetScore(ctx, tenantID, productID, score, scoreCacheTTL)
	}

	writeJSON(w, http.StatusOK, score)
}

// Rescore re-runs a stored product through the pipeline with the
// tenant's current settings and rules. The previous score stays in the
// history; scores are append-only.
func (h *Handler) Rescore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)
	productID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	product, err := h.repo.GetProduct(ctx, tenantID, productID)
	if err != nil {
		writeStorageError(w, "product", err)
		return
	}

	cfg := h.effectiveConfig(ctx, tenantID, nil)
	score := h.runPipeline(ctx, tenantID, product, cfg)
	score.Metadata.TraceID = traceID
	score.Metadata.TotalMs = time.Since(start).Milliseconds()

	if err := h.repo.SaveScore(ctx, tenantID, score); err != nil {
		slog.Error("failed to save rescore", "product_id", productID, "error", err)
	}
	if h.cache != nil {
		_ = h.cache.SetScore(ctx, tenantID, productID, score, scoreCacheTTL)
	}

	writeJSON(w, http.StatusOK, score)
}

// ListScored returns stored scores for the tenant, newest first,
// optionally filtered by recommendation tier.
func (h *Handler) ListScored(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	recommendation := r.URL.Query().Get("recommendation")
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	scores, err := h.repo.ListScores(ctx, tenantID, recommendation, limit, offset)
	if err != nil {
		slog.Error("failed to list scores", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list scores",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scores": scores,
		"count":  len(scores),
		"limit":  limit,
		"offset": offset,
	})
}

// CreateExclusionRequest is the request body for POST /exclusions. A
// body with Type set is the typed shorthand form; otherwise Expression
// carries a raw CEL predicate.
type CreateExclusionRequest struct {
	// Typed shorthand (category / keyword / source)
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`

	// Raw CEL form
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression,omitempty"`

	Reason  string `json:"reason,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// CreateExclusion creates an exclusion rule, validates its CEL, saves
// it and loads it into the live engine.
func (h *Handler) CreateExclusion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateExclusionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rule, err := req.toRule(tenantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.engine != nil {
		if err := h.engine.ValidateRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveExclusionRule(ctx, tenantID, rule); err != nil {
			slog.Error("failed to save exclusion rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save exclusion rule",
			})
			return
		}
	}

	if h.engine != nil && rule.Enabled {
		if err := h.engine.LoadRule(rule); err != nil {
			slog.Error("failed to load exclusion rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("exclusion rule created", "id", rule.ID, "name", rule.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, rule)
}

func (req *CreateExclusionRequest) toRule(tenantID string) (*domain.ExclusionRule, error) {
	if req.Type != "" {
		legacy := rules.LegacyRule{Type: req.Type, Value: req.Value, Reason: req.Reason}
		return legacy.ToExclusionRule(tenantID)
	}

	if req.Name == "" || req.Expression == "" {
		return nil, errors.New("name and expression are required")
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now().UTC()
	return &domain.ExclusionRule{
		ID:          id,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0",
		Expression:  req.Expression,
		Reason:      req.Reason,
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ListExclusions returns the tenant's exclusion rules.
func (h *Handler) ListExclusions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		// Without storage, the live engine set is the source of truth.
		loaded := h.engine.GetLoadedRules()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"rules": loaded,
			"count": len(loaded),
		})
		return
	}

	ruleList, err := h.repo.ListExclusionRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list exclusion rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list exclusion rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": ruleList,
		"count": len(ruleList),
	})
}

// GetExclusion retrieves an exclusion rule by ID.
func (h *Handler) GetExclusion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if h.repo == nil {
		for _, rule := range h.engine.GetLoadedRules() {
			if rule.ID == ruleID {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "exclusion rule not found",
		})
		return
	}

	rule, err := h.repo.GetExclusionRule(ctx, tenantID, ruleID)
	if err != nil {
		writeStorageError(w, "exclusion rule", err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// DeleteExclusion removes an exclusion rule and reloads the engine so
// the deletion takes effect immediately.
func (h *Handler) DeleteExclusion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteExclusionRule(ctx, tenantID, ruleID); err != nil {
		writeStorageError(w, "exclusion rule", err)
		return
	}

	if h.engine != nil {
		remaining, err := h.repo.ListExclusionRules(ctx, tenantID)
		if err != nil {
			slog.Error("failed to reload rules after delete", "error", err)
		} else if err := h.engine.ReloadRules(remaining); err != nil {
			slog.Error("failed to reload rules after delete", "error", err)
		}
	}

	slog.Info("exclusion rule deleted", "id", ruleID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "exclusion rule deleted",
	})
}

// ReloadExclusions hot-reloads the engine from the stored rule set.
func (h *Handler) ReloadExclusions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil || h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository or rule engine not available",
		})
		return
	}

	stored, err := h.repo.ListExclusionRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list exclusion rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load exclusion rules",
		})
		return
	}

	if err := h.engine.ReloadRules(stored); err != nil {
		slog.Error("failed to reload exclusion rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload exclusion rules: " + err.Error(),
		})
		return
	}

	slog.Info("exclusion rules reloaded", "count", h.engine.RulesCount(), "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "exclusion rules reloaded",
		"count":   h.engine.RulesCount(),
	})
}

// GetSettings returns the tenant's scoring settings; defaults when
// nothing is stored.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	cfg := domain.DefaultScoringConfig()
	if h.repo != nil {
		stored, err := h.repo.GetSettings(ctx, tenantID)
		if err != nil {
			slog.Error("failed to get settings", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load settings",
			})
			return
		}
		cfg = stored
	}

	writeJSON(w, http.StatusOK, cfg)
}

// UpdateSettings applies a partial settings update over the tenant's
// current config and persists the result.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var overrides domain.ScoringOverrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	current, err := h.repo.GetSettings(ctx, tenantID)
	if err != nil {
		slog.Error("failed to get settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load settings",
		})
		return
	}

	updated := current.With(overrides.Options()...)
	if err := h.repo.SaveSettings(ctx, tenantID, updated); err != nil {
		slog.Error("failed to save settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save settings",
		})
		return
	}

	slog.Info("settings updated", "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, updated)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeStorageError maps repository errors to HTTP status codes.
func writeStorageError(w http.ResponseWriter, entity string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": entity + " not found",
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("storage error", "entity", entity, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
