package query

import (
	"github.com/rs/zerolog"
	"github.com/sumandas0/querygate/internal/models"
)

// Assembler converts a raw search query into a validated SearchSpecification
// against a single schema snapshot. It is request-local and holds no state
// beyond the snapshot and a logger for unknown-attribute warnings.
type Assembler struct {
	schema *models.Schema
	logger zerolog.Logger
}

func NewAssembler(schema *models.Schema, logger zerolog.Logger) *Assembler {
	return &Assembler{
		schema: schema,
		logger: logger,
	}
}

// BuildSpec runs the resolvers in a fixed order: attributes to retrieve,
// facet filters, facet distribution, crop, highlight, then the pass-through
// parameters. The restricted attribute set computed by the first stage is the
// wildcard-expansion basis for crop and highlight. The first terminal error
// aborts assembly; no partial specification is ever returned.
func (a *Assembler) BuildSpec(raw *models.RawSearchQuery) (*models.SearchSpecification, error) {
	spec := &models.SearchSpecification{
		Query:  raw.Query,
		Offset: raw.Offset,
		Limit:  raw.Limit,
	}

	restricted := a.resolveRetrievable(raw.AttributesToRetrieve, spec)

	if raw.FacetFilters != nil {
		// Faceting not being configured at all makes facet filters a no-op,
		// unlike the distribution request below which must fail loudly.
		if attrs := a.schema.AttributesForFaceting(); attrs != nil {
			expr, err := ParseFacetFilters(*raw.FacetFilters, a.schema, attrs)
			if err != nil {
				return nil, err
			}
			spec.FacetFilter = expr
		}
	}

	if raw.FacetsDistribution != nil {
		attrs := a.schema.AttributesForFaceting()
		if attrs == nil {
			return nil, ErrNoFacetSet()
		}
		entries, err := PrepareFacetList(*raw.FacetsDistribution, a.schema, attrs)
		if err != nil {
			return nil, err
		}
		spec.FacetDistribution = entries
	}

	a.resolveCrop(raw.AttributesToCrop, raw.CropLength, restricted, spec)
	a.resolveHighlight(raw.AttributesToHighlight, restricted, spec)

	if raw.Filters != nil {
		filters := *raw.Filters
		spec.Filters = &filters
	}
	if raw.Matches != nil && *raw.Matches {
		spec.Matches = true
	}

	return spec, nil
}
