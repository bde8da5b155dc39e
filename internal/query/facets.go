package query

import (
	"encoding/json"
	"strings"

	"github.com/sumandas0/querygate/internal/models"
)

// PrepareFacetList parses the facetsDistribution parameter into the ordered
// list of facet-enabled fields for which distribution counts are requested.
//
// The input must be a JSON array of attribute names. A literal "*" anywhere
// in the array short-circuits to every facet-enabled field in declared order,
// ignoring the other elements. Explicit names keep input order and
// duplicates; unknown names are skipped, while a known attribute that is not
// facet-enabled is a hard error so that a caller relying on aggregation the
// index never configured sees the failure instead of silently wrong counts.
func PrepareFacetList(facets string, schema *models.Schema, facetAttrs []models.FieldID) ([]models.FacetEntry, error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(facets), &parsed); err != nil {
		return nil, newFacetCountJSONError(err)
	}

	values, ok := parsed.([]interface{})
	if !ok {
		return nil, newUnexpectedTokenError(jsonTypeName(parsed), "[String]")
	}

	for _, v := range values {
		if s, ok := v.(string); ok && s == "*" {
			entries := make([]models.FacetEntry, 0, len(facetAttrs))
			for _, id := range facetAttrs {
				if name, ok := schema.Name(id); ok {
					entries = append(entries, models.FacetEntry{ID: id, Name: name})
				}
			}
			return entries, nil
		}
	}

	entries := make([]models.FacetEntry, 0, len(facetAttrs))
	for _, v := range values {
		name, ok := v.(string)
		if !ok {
			return nil, newUnexpectedTokenError(jsonTypeName(v), "String")
		}
		id, known := schema.ID(name)
		if !known {
			continue
		}
		if !containsFieldID(facetAttrs, id) {
			return nil, newAttributeNotSetError(name)
		}
		entries = append(entries, models.FacetEntry{ID: id, Name: name})
	}
	return entries, nil
}

// ParseFacetFilters parses the facetFilters expression into a validated
// predicate tree: a JSON array whose elements are either "attribute:value"
// strings or arrays of such strings. Top-level elements are combined with
// AND, nested arrays with OR. Every referenced attribute must exist in the
// schema and be facet-enabled.
func ParseFacetFilters(input string, schema *models.Schema, facetAttrs []models.FieldID) (*models.FacetFilterExpr, error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(input), &parsed); err != nil {
		return nil, &FacetFilterError{Message: "expression is not valid JSON", Err: err}
	}

	values, ok := parsed.([]interface{})
	if !ok {
		return nil, newFacetFilterError("expected an array of filters, found %s", jsonTypeName(parsed))
	}

	expr := &models.FacetFilterExpr{Clauses: make([]models.FacetFilterClause, 0, len(values))}
	for _, v := range values {
		switch value := v.(type) {
		case string:
			cond, err := parseFacetCondition(value, schema, facetAttrs)
			if err != nil {
				return nil, err
			}
			expr.Clauses = append(expr.Clauses, models.FacetFilterClause{cond})
		case []interface{}:
			clause := make(models.FacetFilterClause, 0, len(value))
			for _, inner := range value {
				s, ok := inner.(string)
				if !ok {
					return nil, newFacetFilterError("expected a facet filter string, found %s", jsonTypeName(inner))
				}
				cond, err := parseFacetCondition(s, schema, facetAttrs)
				if err != nil {
					return nil, err
				}
				clause = append(clause, cond)
			}
			expr.Clauses = append(expr.Clauses, clause)
		default:
			return nil, newFacetFilterError("expected a facet filter string or array, found %s", jsonTypeName(v))
		}
	}
	return expr, nil
}

func parseFacetCondition(s string, schema *models.Schema, facetAttrs []models.FieldID) (models.FacetCondition, error) {
	name, value, found := strings.Cut(s, ":")
	if !found || name == "" {
		return models.FacetCondition{}, newFacetFilterError("filter %q must use the attribute:value form", s)
	}
	id, known := schema.ID(name)
	if !known {
		return models.FacetCondition{}, newFacetFilterError("attribute %s is unknown", name)
	}
	if !containsFieldID(facetAttrs, id) {
		return models.FacetCondition{}, newFacetFilterError("attribute %s is not set as facet", name)
	}
	return models.FacetCondition{Field: id, Name: name, Value: value}, nil
}

func containsFieldID(ids []models.FieldID, id models.FieldID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "Bool"
	case float64:
		return "Number"
	case string:
		return "String"
	case []interface{}:
		return "Array"
	case map[string]interface{}:
		return "Object"
	default:
		return "Unknown"
	}
}
