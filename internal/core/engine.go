package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/sumandas0/querygate/internal/cache"
	"github.com/sumandas0/querygate/internal/integration"
	"github.com/sumandas0/querygate/internal/lock"
	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/internal/query"
	"github.com/sumandas0/querygate/internal/resilience"
	"github.com/sumandas0/querygate/internal/security"
	"github.com/sumandas0/querygate/internal/store"
	"github.com/sumandas0/querygate/pkg/utils"
)

// Engine orchestrates search request normalization and index definition
// management. Search reads a per-request registry snapshot so that the field
// catalog cannot change between resolver stages; definition writes serialize
// per index through the lock manager.
type Engine struct {
	registry     store.IndexRegistry
	searchEngine store.SearchEngine
	cacheManager *cache.Manager
	lockManager  *lock.IndexLockManager

	sanitizer     *security.SearchSanitizer
	obsManager    *integration.ObservabilityManager
	engineBreaker *resilience.EngineCircuitBreaker
	engineRetry   *resilience.EngineRetryWrapper

	logger zerolog.Logger
}

func NewEngine(
	registry store.IndexRegistry,
	searchEngine store.SearchEngine,
	cacheManager *cache.Manager,
	lockManager *lock.IndexLockManager,
) *Engine {
	return &Engine{
		registry:     registry,
		searchEngine: searchEngine,
		cacheManager: cacheManager,
		lockManager:  lockManager,
		logger:       zerolog.Nop(),
	}
}

// SetObservability wires logging, metrics and tracing into the engine.
func (e *Engine) SetObservability(obsManager *integration.ObservabilityManager) {
	e.obsManager = obsManager
	e.logger = obsManager.GetLogging().GetZerologLogger()
}

// SetResilience wires circuit breaking and retries around engine calls.
func (e *Engine) SetResilience(res *integration.ResilienceManager) {
	e.engineBreaker = resilience.NewEngineCircuitBreaker(res.GetCircuitBreaker())
	e.engineRetry = resilience.NewEngineRetryWrapper(res.GetRetryManager())
}

// SetSanitizer wires input sanitization into the engine.
func (e *Engine) SetSanitizer(sanitizer *security.SearchSanitizer) {
	e.sanitizer = sanitizer
}

// Search normalizes the raw query against a snapshot of the index definition
// and executes the resulting specification. The definition cache is bypassed
// on purpose: every resolver stage in one request must see the same fields.
func (e *Engine) Search(ctx context.Context, indexUID string, raw *models.RawSearchQuery) (*models.SearchResult, error) {
	start := time.Now()

	if e.obsManager != nil {
		var span trace.Span
		ctx, span = e.obsManager.GetTracing().StartSearchOperation(ctx, indexUID, raw.Query)
		defer span.End()
	}

	if e.sanitizer != nil {
		if err := e.sanitizer.ValidateIndexUID(indexUID); err != nil {
			e.recordSearch(indexUID, "rejected", start, 0)
			return nil, utils.NewAppError(utils.CodeValidation, err.Error(), err)
		}
		sanitized, err := e.sanitizer.SanitizeQuery(raw.Query)
		if err != nil {
			e.recordSearch(indexUID, "rejected", start, 0)
			return nil, utils.NewAppError(utils.CodeValidation, err.Error(), err)
		}
		// The incoming RawSearchQuery is immutable; normalization works on a
		// copy carrying the sanitized query text.
		if sanitized != raw.Query {
			cleaned := *raw
			cleaned.Query = sanitized
			raw = &cleaned
		}
	}

	def, err := e.registry.GetIndexSnapshot(ctx, indexUID)
	if err != nil {
		e.recordSearch(indexUID, "not_found", start, 0)
		return nil, err
	}
	if len(def.Fields) == 0 {
		e.recordSearch(indexUID, "error", start, 0)
		return nil, utils.NewAppError(utils.CodeInternal,
			fmt.Sprintf("index %s has no field catalog", indexUID), nil)
	}

	spec, err := e.normalize(ctx, indexUID, def, raw)
	if err != nil {
		e.recordSearch(indexUID, "rejected", start, 0)
		return nil, err
	}

	result, err := e.execute(ctx, indexUID, spec)
	if err != nil {
		e.recordSearch(indexUID, "error", start, 0)
		if resilience.IsCircuitBreakerError(err) {
			return nil, utils.NewAppError(utils.CodeUpstream, "search engine unavailable", err)
		}
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, utils.NewAppError(utils.CodeUpstream, "search execution failed", err)
	}

	result.Query = raw.Query
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	e.recordSearch(indexUID, "success", start, len(result.Hits))
	e.logger.Debug().
		Str("index_uid", indexUID).
		Str("query", raw.Query).
		Int("hits", len(result.Hits)).
		Int64("nb_hits", result.NbHits).
		Dur("took", time.Since(start)).
		Msg("search completed")

	return result, nil
}

func (e *Engine) normalize(ctx context.Context, indexUID string, def *models.IndexDefinition, raw *models.RawSearchQuery) (*models.SearchSpecification, error) {
	if e.obsManager != nil {
		_, span := e.obsManager.GetTracing().StartNormalization(ctx, indexUID)
		defer span.End()
	}

	schema := models.NewSchema(def)
	assembler := query.NewAssembler(schema, e.logger.With().Str("index_uid", indexUID).Logger())

	spec, err := assembler.BuildSpec(raw)
	if err != nil {
		return nil, e.translateNormalizationError(err)
	}
	return spec, nil
}

// translateNormalizationError maps resolver failures onto client-addressable
// application errors and records which facet stage rejected the request.
func (e *Engine) translateNormalizationError(err error) error {
	var facetCount *query.FacetCountError
	if errors.As(err, &facetCount) {
		e.recordFacetError(facetCountKind(facetCount.Kind))
		return utils.NewAppError(utils.CodeValidation, facetCount.Error(), err)
	}

	var facetFilter *query.FacetFilterError
	if errors.As(err, &facetFilter) {
		e.recordFacetError("filter")
		return utils.NewAppError(utils.CodeValidation, facetFilter.Error(), err)
	}

	return utils.NewAppError(utils.CodeValidation, err.Error(), err)
}

func facetCountKind(kind query.FacetCountErrorKind) string {
	switch kind {
	case query.FacetCountJSON:
		return "json"
	case query.FacetCountUnexpectedToken:
		return "token"
	case query.FacetCountAttributeNotSet:
		return "attribute_not_set"
	case query.FacetCountNoFacetSet:
		return "no_facet_set"
	default:
		return "unknown"
	}
}

func (e *Engine) execute(ctx context.Context, indexUID string, spec *models.SearchSpecification) (*models.SearchResult, error) {
	run := func(ctx context.Context) (*models.SearchResult, error) {
		return e.searchEngine.Execute(ctx, indexUID, spec)
	}

	if e.engineBreaker == nil && e.engineRetry == nil {
		return run(ctx)
	}

	call := func() (any, error) {
		if e.engineBreaker != nil {
			return e.engineBreaker.Execute(ctx, "search", func(ctx context.Context) (any, error) {
				return run(ctx)
			})
		}
		return run(ctx)
	}

	var raw any
	var err error
	if e.engineRetry != nil {
		raw, err = e.engineRetry.ExecuteWithResult(ctx, call)
	} else {
		raw, err = call()
	}
	if err != nil {
		return nil, err
	}

	result, ok := raw.(*models.SearchResult)
	if !ok {
		return nil, utils.NewAppError(utils.CodeInternal, "unexpected search result type", nil)
	}
	return result, nil
}

// CreateIndex registers a new index definition and provisions the backing
// search collection. The registry row is rolled back if provisioning fails.
func (e *Engine) CreateIndex(ctx context.Context, uid string, fields []models.FieldDefinition) (*models.IndexDefinition, error) {
	start := time.Now()

	if e.sanitizer != nil {
		if err := e.sanitizer.ValidateIndexUID(uid); err != nil {
			return nil, utils.NewAppError(utils.CodeValidation, err.Error(), err)
		}
		for _, f := range fields {
			if err := e.sanitizer.ValidateAttributeName(f.Name); err != nil {
				return nil, utils.NewAppError(utils.CodeValidation, err.Error(), err)
			}
		}
	}
	if len(fields) == 0 {
		return nil, utils.NewAppError(utils.CodeValidation, "index requires at least one field", nil)
	}
	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		if _, dup := seen[fields[i].Name]; dup {
			return nil, utils.NewAppError(utils.CodeValidation,
				fmt.Sprintf("duplicate field name: %s", fields[i].Name), nil)
		}
		seen[fields[i].Name] = struct{}{}
		// Field identifiers follow declaration order so that wildcard
		// expansions and facet lists stay deterministic.
		fields[i].ID = models.FieldID(i)
	}

	guard, err := e.lockManager.GuardIndex(uid)
	if err != nil {
		return nil, utils.NewAppError(utils.CodeTimeout, "could not acquire index lock", err)
	}
	defer guard.Release()

	def := models.NewIndexDefinition(uid, fields)

	if err := e.registry.CreateIndex(ctx, def); err != nil {
		e.recordIndexOp("create", "error", start)
		return nil, err
	}

	if err := e.searchEngine.CreateCollection(ctx, def); err != nil {
		if delErr := e.registry.DeleteIndex(ctx, uid); delErr != nil {
			e.logger.Error().Err(delErr).Str("index_uid", uid).
				Msg("failed to roll back registry entry after collection provisioning failure")
		}
		e.recordIndexOp("create", "error", start)
		return nil, utils.NewAppError(utils.CodeUpstream, "failed to provision search collection", err)
	}

	if e.cacheManager != nil {
		e.cacheManager.SetIndex(uid, def)
	}

	e.recordIndexOp("create", "success", start)
	e.logger.Info().Str("index_uid", uid).Int("fields", len(fields)).Msg("index created")

	return def, nil
}

// GetIndex returns an index definition, served from the definition cache.
func (e *Engine) GetIndex(ctx context.Context, uid string) (*models.IndexDefinition, error) {
	if e.cacheManager != nil {
		return e.cacheManager.GetIndex(ctx, uid)
	}
	return e.registry.GetIndex(ctx, uid)
}

// ListIndexes returns all index definitions in creation order.
func (e *Engine) ListIndexes(ctx context.Context) ([]*models.IndexDefinition, error) {
	return e.registry.ListIndexes(ctx)
}

// DeleteIndex removes the definition and tears down the backing collection.
// Collection teardown failures are logged but do not resurrect the index.
func (e *Engine) DeleteIndex(ctx context.Context, uid string) error {
	start := time.Now()

	guard, err := e.lockManager.GuardIndex(uid)
	if err != nil {
		return utils.NewAppError(utils.CodeTimeout, "could not acquire index lock", err)
	}
	defer guard.Release()

	if err := e.registry.DeleteIndex(ctx, uid); err != nil {
		e.recordIndexOp("delete", "error", start)
		return err
	}

	if err := e.searchEngine.DeleteCollection(ctx, uid); err != nil {
		e.logger.Warn().Err(err).Str("index_uid", uid).
			Msg("failed to delete search collection; definition already removed")
	}

	if e.cacheManager != nil {
		e.cacheManager.Invalidate(uid)
	}

	e.recordIndexOp("delete", "success", start)
	e.logger.Info().Str("index_uid", uid).Msg("index deleted")

	return nil
}

// UpdateDisplayedAttributes replaces the displayed flag assignment of an
// index. Unknown attribute names reject the whole update.
func (e *Engine) UpdateDisplayedAttributes(ctx context.Context, uid string, names []string) (*models.IndexDefinition, error) {
	return e.updateFlags(ctx, uid, "update_displayed", names, func(def *models.IndexDefinition, names []string) []string {
		return def.SetDisplayedAttributes(names)
	})
}

// UpdateFacetedAttributes replaces the set of facet-enabled attributes.
// Unknown attribute names reject the whole update.
func (e *Engine) UpdateFacetedAttributes(ctx context.Context, uid string, names []string) (*models.IndexDefinition, error) {
	return e.updateFlags(ctx, uid, "update_faceted", names, func(def *models.IndexDefinition, names []string) []string {
		return def.SetFacetedAttributes(names)
	})
}

func (e *Engine) updateFlags(ctx context.Context, uid, operation string, names []string, apply func(*models.IndexDefinition, []string) []string) (*models.IndexDefinition, error) {
	start := time.Now()

	if e.sanitizer != nil {
		for _, name := range names {
			if err := e.sanitizer.ValidateAttributeName(name); err != nil {
				return nil, utils.NewAppError(utils.CodeValidation, err.Error(), err)
			}
		}
	}

	guard, err := e.lockManager.GuardIndex(uid)
	if err != nil {
		return nil, utils.NewAppError(utils.CodeTimeout, "could not acquire index lock", err)
	}
	defer guard.Release()

	// Read through the registry, not the cache: the update is applied on top
	// of the current persisted version for optimistic concurrency to hold.
	def, err := e.registry.GetIndex(ctx, uid)
	if err != nil {
		e.recordIndexOp(operation, "error", start)
		return nil, err
	}

	if unknown := apply(def, names); len(unknown) > 0 {
		e.recordIndexOp(operation, "rejected", start)
		return nil, utils.NewAppError(utils.CodeValidation,
			fmt.Sprintf("unknown attributes: %v", unknown), nil).
			WithDetail("unknown_attributes", unknown)
	}

	if err := e.registry.UpdateIndex(ctx, def); err != nil {
		e.recordIndexOp(operation, "error", start)
		return nil, err
	}

	if e.cacheManager != nil {
		e.cacheManager.Invalidate(uid)
	}

	e.recordIndexOp(operation, "success", start)
	e.logger.Info().Str("index_uid", uid).Str("operation", operation).
		Strs("attributes", names).Msg("index settings updated")

	return def, nil
}

func (e *Engine) recordSearch(indexUID, status string, start time.Time, resultCount int) {
	if e.obsManager == nil {
		return
	}
	e.obsManager.GetMetrics().RecordSearchRequest(indexUID, status, time.Since(start), resultCount)
}

func (e *Engine) recordIndexOp(operation, status string, start time.Time) {
	if e.obsManager == nil {
		return
	}
	e.obsManager.GetMetrics().RecordIndexOperation(operation, status, time.Since(start))
}

func (e *Engine) recordFacetError(kind string) {
	if e.obsManager == nil {
		return
	}
	e.obsManager.GetMetrics().RecordFacetError(kind)
}
