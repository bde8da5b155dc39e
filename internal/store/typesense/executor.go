package typesense

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sumandas0/querygate/internal/integration"
	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/internal/observability"
	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
	"github.com/typesense/typesense-go/typesense/api/pointer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultLimit = 20

// TypesenseEngine implements the SearchEngine interface on Typesense. It
// consumes validated search specifications; no request validation happens
// here.
type TypesenseEngine struct {
	client     *typesense.Client
	obsManager *integration.ObservabilityManager
	logger     zerolog.Logger
	tracer     trace.Tracer
	tracing    *observability.TracingManager
}

func NewTypesenseEngine(serverURL, apiKey string) (*TypesenseEngine, error) {
	client := typesense.NewClient(
		typesense.WithServer(serverURL),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	return &TypesenseEngine{
		client: client,
	}, nil
}

func (e *TypesenseEngine) SetObservability(obsManager *integration.ObservabilityManager) {
	if obsManager != nil {
		e.obsManager = obsManager
		e.logger = obsManager.GetLogging().GetZerologLogger()
		e.tracer = obsManager.GetTracing().GetTracer()
		e.tracing = obsManager.GetTracing()
	}
}

func (e *TypesenseEngine) Execute(ctx context.Context, indexUID string, spec *models.SearchSpecification) (*models.SearchResult, error) {
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "typesense.search")
		defer span.End()
		span.SetAttributes(
			attribute.String("index.uid", indexUID),
			attribute.String("search.query", spec.Query),
		)
	}

	limit := defaultLimit
	if spec.Limit != nil {
		limit = *spec.Limit
	}
	offset := 0
	if spec.Offset != nil {
		offset = *spec.Offset
	}

	searchParams := buildSearchParams(spec, offset, limit)

	startTime := time.Now()
	result, err := e.client.Collection(collectionName(indexUID)).Documents().Search(ctx, searchParams)
	if err != nil {
		if e.tracing != nil {
			e.tracing.SetSpanError(span, err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return e.convertResult(result, spec, offset, limit, time.Since(startTime)), nil
}

func (e *TypesenseEngine) convertResult(result *api.SearchResult, spec *models.SearchSpecification, offset, limit int, took time.Duration) *models.SearchResult {
	out := models.NewSearchResult(spec.Query, took)
	out.Offset = offset
	out.Limit = limit

	if result.Found != nil {
		out.NbHits = int64(*result.Found)
	}

	if result.Hits != nil {
		for _, hit := range *result.Hits {
			converted := models.SearchHit{}
			if hit.Document != nil {
				converted.Document = *hit.Document
			}
			if hit.Highlights != nil {
				converted.Formatted = formattedFromHighlights(*hit.Highlights)
				if spec.Matches {
					converted.MatchesInfo = matchesFromHighlights(*hit.Highlights, converted.Document)
				}
			}
			out.Hits = append(out.Hits, converted)
		}
	}

	if result.FacetCounts != nil && len(spec.FacetDistribution) > 0 {
		distribution := make(map[string]map[string]int64)
		for _, facet := range *result.FacetCounts {
			if facet.FieldName == nil || facet.Counts == nil {
				continue
			}
			values := make(map[string]int64)
			for _, count := range *facet.Counts {
				if count.Value != nil && count.Count != nil {
					values[*count.Value] = int64(*count.Count)
				}
			}
			distribution[*facet.FieldName] = values
		}
		out.FacetsDistribution = distribution
	}

	return out
}

// buildSearchParams translates a validated specification into Typesense
// search parameters. Typesense paginates by page number rather than raw
// offset, so offsets are quantized down to the page boundary containing
// them: offset 5 with limit 20 resolves to page 1, the same page as
// offset 0.
func buildSearchParams(spec *models.SearchSpecification, offset, limit int) *api.SearchCollectionParams {
	searchParams := &api.SearchCollectionParams{
		Q:       spec.Query,
		QueryBy: "*",
		Page:    pointer.Int(offset/limit + 1),
		PerPage: pointer.Int(limit),
	}

	if len(spec.RetrievableAttributes) > 0 {
		searchParams.IncludeFields = pointer.String(strings.Join(spec.RetrievableAttributes, ","))
	}

	if highlight := highlightFields(spec); highlight != "" {
		searchParams.HighlightFields = pointer.String(highlight)
	}

	// Engine-side crop maps onto snippet thresholds; per-attribute lengths
	// collapse to the smallest configured one.
	if len(spec.AttributesToCrop) > 0 {
		shortest := 0
		for _, length := range spec.AttributesToCrop {
			if shortest == 0 || length < shortest {
				shortest = length
			}
		}
		searchParams.SnippetThreshold = pointer.Int(shortest)
	}

	if filter := buildFilterBy(spec); filter != "" {
		searchParams.FilterBy = pointer.String(filter)
	}

	if len(spec.FacetDistribution) > 0 {
		names := make([]string, 0, len(spec.FacetDistribution))
		for _, entry := range spec.FacetDistribution {
			names = append(names, entry.Name)
		}
		searchParams.FacetBy = pointer.String(strings.Join(names, ","))
	}

	return searchParams
}

func highlightFields(spec *models.SearchSpecification) string {
	names := make(map[string]struct{}, len(spec.AttributesToHighlight)+len(spec.AttributesToCrop))
	for name := range spec.AttributesToHighlight {
		names[name] = struct{}{}
	}
	for name := range spec.AttributesToCrop {
		names[name] = struct{}{}
	}
	if len(names) == 0 {
		return ""
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func buildFilterBy(spec *models.SearchSpecification) string {
	var parts []string

	if spec.Filters != nil && *spec.Filters != "" {
		parts = append(parts, *spec.Filters)
	}

	if spec.FacetFilter != nil {
		for _, clause := range spec.FacetFilter.Clauses {
			conditions := make([]string, 0, len(clause))
			for _, cond := range clause {
				conditions = append(conditions, fmt.Sprintf("%s:=%s", cond.Name, cond.Value))
			}
			if len(conditions) == 1 {
				parts = append(parts, conditions[0])
			} else if len(conditions) > 1 {
				parts = append(parts, "("+strings.Join(conditions, " || ")+")")
			}
		}
	}

	return strings.Join(parts, " && ")
}

func formattedFromHighlights(highlights []api.SearchHighlight) map[string]any {
	if len(highlights) == 0 {
		return nil
	}
	formatted := make(map[string]any, len(highlights))
	for _, h := range highlights {
		if h.Field == nil {
			continue
		}
		if h.Snippet != nil {
			formatted[*h.Field] = *h.Snippet
		} else if h.Value != nil {
			formatted[*h.Field] = *h.Value
		}
	}
	return formatted
}

func matchesFromHighlights(highlights []api.SearchHighlight, document map[string]any) map[string][]models.Match {
	matches := make(map[string][]models.Match)
	for _, h := range highlights {
		if h.Field == nil || h.MatchedTokens == nil {
			continue
		}
		text, _ := document[*h.Field].(string)
		for _, token := range *h.MatchedTokens {
			word, ok := token.(string)
			if !ok {
				continue
			}
			start := strings.Index(text, word)
			if start < 0 {
				start = 0
			}
			matches[*h.Field] = append(matches[*h.Field], models.Match{
				Start:  start,
				Length: len(word),
			})
		}
	}
	if len(matches) == 0 {
		return nil
	}
	return matches
}

func (e *TypesenseEngine) CreateCollection(ctx context.Context, def *models.IndexDefinition) error {
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "typesense.create_collection")
		defer span.End()
		span.SetAttributes(attribute.String("index.uid", def.UID))
	}

	fields := make([]api.Field, 0, len(def.Fields))
	for _, f := range def.Fields {
		fields = append(fields, api.Field{
			Name:     f.Name,
			Type:     "string",
			Facet:    pointer.True(),
			Optional: pointer.True(),
		})
	}

	collectionSchema := &api.CollectionSchema{
		Name:   collectionName(def.UID),
		Fields: fields,
	}

	_, err := e.client.Collections().Create(ctx, collectionSchema)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		if e.tracing != nil {
			e.tracing.SetSpanError(span, err)
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func (e *TypesenseEngine) DeleteCollection(ctx context.Context, indexUID string) error {
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "typesense.delete_collection")
		defer span.End()
		span.SetAttributes(attribute.String("index.uid", indexUID))
	}

	_, err := e.client.Collection(collectionName(indexUID)).Delete(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		if e.tracing != nil {
			e.tracing.SetSpanError(span, err)
		}
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	return nil
}

func (e *TypesenseEngine) Ping(ctx context.Context) error {
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "typesense.ping")
		defer span.End()
	}

	_, err := e.client.Health(ctx, 5*time.Second)
	if err != nil && e.tracing != nil {
		e.tracing.SetSpanError(span, err)
	}
	return err
}

func (e *TypesenseEngine) Close() error {
	return nil
}

func collectionName(indexUID string) string {
	name := strings.ToLower(indexUID)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return "index_" + name
}
