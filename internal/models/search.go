package models

import "time"

// RawSearchQuery is the untyped parameter surface of a search request,
// captured once from the incoming request and never mutated. Optional
// parameters stay nil when absent so that "absent" and "empty" remain
// distinguishable during normalization. The query text must be present but
// may be empty.
type RawSearchQuery struct {
	Query                 string  `json:"q"`
	Offset                *int    `json:"offset,omitempty"`
	Limit                 *int    `json:"limit,omitempty"`
	AttributesToRetrieve  *string `json:"attributesToRetrieve,omitempty"`
	AttributesToCrop      *string `json:"attributesToCrop,omitempty"`
	CropLength            *int    `json:"cropLength,omitempty"`
	AttributesToHighlight *string `json:"attributesToHighlight,omitempty"`
	Filters               *string `json:"filters,omitempty"`
	Matches               *bool   `json:"matches,omitempty"`
	FacetFilters          *string `json:"facetFilters,omitempty"`
	FacetsDistribution    *string `json:"facetsDistribution,omitempty"`
}

// FacetEntry pairs a facet-enabled field id with its resolved name. Order in
// a distribution request is significant and duplicates are preserved.
type FacetEntry struct {
	ID   FieldID `json:"id"`
	Name string  `json:"name"`
}

// FacetFilterClause is a disjunction of (field, value) conditions; a facet
// filter expression is the conjunction of its clauses.
type FacetFilterClause []FacetCondition

type FacetCondition struct {
	Field FieldID `json:"field"`
	Name  string  `json:"name"`
	Value string  `json:"value"`
}

// FacetFilterExpr is the validated predicate tree parsed from the
// facetFilters parameter. Every referenced field is known to the schema and
// facet-enabled; the expression is otherwise opaque to the gateway.
type FacetFilterExpr struct {
	Clauses []FacetFilterClause `json:"clauses"`
}

// SearchSpecification is the validated, immutable output of request
// normalization, consumed exactly once by the execution engine.
type SearchSpecification struct {
	Query                 string
	Offset                *int
	Limit                 *int
	RetrievableAttributes []string
	AttributesToCrop      map[string]int
	AttributesToHighlight map[string]struct{}
	Filters               *string
	FacetFilter           *FacetFilterExpr
	FacetDistribution     []FacetEntry
	Matches               bool
}

type SearchResult struct {
	Hits               []SearchHit                 `json:"hits"`
	Offset             int                         `json:"offset"`
	Limit              int                         `json:"limit"`
	NbHits             int64                       `json:"nbHits"`
	ProcessingTimeMs   int64                       `json:"processingTimeMs"`
	Query              string                      `json:"query"`
	FacetsDistribution map[string]map[string]int64 `json:"facetsDistribution,omitempty"`
}

type SearchHit struct {
	Document    map[string]any     `json:"document"`
	Formatted   map[string]any     `json:"_formatted,omitempty"`
	MatchesInfo map[string][]Match `json:"_matchesInfo,omitempty"`
}

type Match struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

func NewSearchResult(query string, took time.Duration) *SearchResult {
	return &SearchResult{
		Hits:             []SearchHit{},
		Query:            query,
		ProcessingTimeMs: took.Milliseconds(),
	}
}
