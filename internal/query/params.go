package query

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/pkg/utils"
)

// searchParams lists every accepted query parameter name; anything else is
// rejected outright rather than passed through.
var searchParams = map[string]struct{}{
	"q":                     {},
	"offset":                {},
	"limit":                 {},
	"attributesToRetrieve":  {},
	"attributesToCrop":      {},
	"cropLength":            {},
	"attributesToHighlight": {},
	"filters":               {},
	"matches":               {},
	"facetFilters":          {},
	"facetsDistribution":    {},
}

// ParseSearchParams decodes the URL query surface into a RawSearchQuery.
// Unknown parameter names, unparsable numerics and a missing q are all
// validation errors.
func ParseSearchParams(values url.Values) (*models.RawSearchQuery, error) {
	for name := range values {
		if _, ok := searchParams[name]; !ok {
			return nil, utils.NewAppError(utils.CodeValidation,
				fmt.Sprintf("unknown query parameter %q", name), nil).
				WithDetail("parameter", name)
		}
	}

	// q must be present on the request but may be the empty string; an
	// empty query is a valid browse-everything search.
	if !values.Has("q") {
		return nil, utils.NewAppError(utils.CodeValidation,
			"missing query parameter \"q\"", nil).
			WithDetail("parameter", "q")
	}

	raw := &models.RawSearchQuery{
		Query: values.Get("q"),
	}

	var err error
	if raw.Offset, err = optionalInt(values, "offset"); err != nil {
		return nil, err
	}
	if raw.Limit, err = optionalInt(values, "limit"); err != nil {
		return nil, err
	}
	if raw.CropLength, err = optionalInt(values, "cropLength"); err != nil {
		return nil, err
	}

	// Bounds are checked here rather than via struct tags: omitempty-style
	// tags cannot tell an absent pointer from an explicit zero.
	if raw.Offset != nil && *raw.Offset < 0 {
		return nil, invalidParam("offset", values.Get("offset"))
	}
	if raw.Limit != nil && (*raw.Limit < 1 || *raw.Limit > 1000) {
		return nil, invalidParam("limit", values.Get("limit"))
	}
	if raw.CropLength != nil && *raw.CropLength < 1 {
		return nil, invalidParam("cropLength", values.Get("cropLength"))
	}

	raw.AttributesToRetrieve = optionalString(values, "attributesToRetrieve")
	raw.AttributesToCrop = optionalString(values, "attributesToCrop")
	raw.AttributesToHighlight = optionalString(values, "attributesToHighlight")
	raw.Filters = optionalString(values, "filters")
	raw.FacetFilters = optionalString(values, "facetFilters")
	raw.FacetsDistribution = optionalString(values, "facetsDistribution")

	if values.Has("matches") {
		matches, err := strconv.ParseBool(values.Get("matches"))
		if err != nil {
			return nil, invalidParam("matches", values.Get("matches"))
		}
		raw.Matches = &matches
	}

	return raw, nil
}

func optionalString(values url.Values, name string) *string {
	if !values.Has(name) {
		return nil
	}
	v := values.Get(name)
	return &v
}

func optionalInt(values url.Values, name string) (*int, error) {
	if !values.Has(name) {
		return nil, nil
	}
	v, err := strconv.Atoi(values.Get(name))
	if err != nil {
		return nil, invalidParam(name, values.Get(name))
	}
	return &v, nil
}

func invalidParam(name, value string) error {
	return utils.NewAppError(utils.CodeValidation,
		fmt.Sprintf("parameter %q is not valid", name), nil).
		WithDetail("parameter", name).
		WithDetail("value", value)
}
