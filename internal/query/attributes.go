package query

import (
	"strconv"
	"strings"

	"github.com/sumandas0/querygate/internal/models"
)

// DefaultCropLength applies to crop tokens that carry no explicit length and
// to requests without a cropLength parameter.
const DefaultCropLength = 200

// unknownAttributePolicy makes the warn-vs-error split between parameter
// groups explicit: attributesToRetrieve, attributesToCrop and
// attributesToHighlight tolerate unknown names, facetsDistribution does not.
type unknownAttributePolicy int

const (
	policyWarnAndSkip unknownAttributePolicy = iota
	policyReject
)

// resolveRetrievable reconciles the attributesToRetrieve parameter against
// the displayed attributes and returns the restricted attribute set used as
// the wildcard-expansion basis for crop and highlight.
//
// Absent parameter and a list containing "*" both resolve to the full
// displayed set without registering individual retrievable fields; only an
// explicit list restricts the engine to named fields.
func (a *Assembler) resolveRetrievable(param *string, spec *models.SearchSpecification) map[string]struct{} {
	available := a.schema.DisplayedNames()
	if param == nil {
		return available
	}

	tokens := strings.Split(*param, ",")
	for _, token := range tokens {
		if token == "*" {
			return available
		}
	}

	restricted := make(map[string]struct{}, len(tokens))
	for _, attr := range tokens {
		if _, ok := available[attr]; !ok {
			a.handleUnknown(policyWarnAndSkip, "attributesToRetrieve", attr)
			continue
		}
		if _, dup := restricted[attr]; !dup {
			spec.RetrievableAttributes = append(spec.RetrievableAttributes, attr)
		}
		restricted[attr] = struct{}{}
	}
	return restricted
}

// resolveCrop parses attributesToCrop tokens of the form name[:length] into
// the crop mapping. Tokens are processed left to right and later tokens
// overwrite earlier ones, including wildcard expansions.
func (a *Assembler) resolveCrop(param *string, cropLength *int, restricted map[string]struct{}, spec *models.SearchSpecification) {
	if param == nil {
		return
	}

	defaultLength := DefaultCropLength
	if cropLength != nil {
		defaultLength = *cropLength
	}

	attributes := make(map[string]int)
	for _, token := range strings.Split(*param, ",") {
		name, rest, _ := strings.Cut(token, ":")
		length := defaultLength
		if parsed, err := strconv.ParseUint(rest, 10, 32); err == nil {
			length = int(parsed)
		}

		switch {
		case name == "*":
			for attr := range restricted {
				attributes[attr] = length
			}
		case name == "":
			// Malformed token such as a leading colon; nothing to crop.
		case a.schema.IsDisplayed(name):
			attributes[name] = length
		default:
			a.handleUnknown(policyWarnAndSkip, "attributesToCrop", name)
		}
	}
	spec.AttributesToCrop = attributes
}

// resolveHighlight parses attributesToHighlight into the highlight set,
// expanding "*" over the restricted attribute set.
func (a *Assembler) resolveHighlight(param *string, restricted map[string]struct{}, spec *models.SearchSpecification) {
	if param == nil {
		return
	}

	attributes := make(map[string]struct{})
	for _, attr := range strings.Split(*param, ",") {
		switch {
		case attr == "*":
			for name := range restricted {
				attributes[name] = struct{}{}
			}
		case a.schema.IsDisplayed(attr):
			attributes[attr] = struct{}{}
		default:
			a.handleUnknown(policyWarnAndSkip, "attributesToHighlight", attr)
		}
	}
	spec.AttributesToHighlight = attributes
}

// handleUnknown applies the unknown-attribute policy for a parameter group.
// The warn path keeps the request alive; the caller cannot distinguish an
// ignored attribute from one that was never requested.
func (a *Assembler) handleUnknown(policy unknownAttributePolicy, parameter, attribute string) {
	switch policy {
	case policyWarnAndSkip:
		a.logger.Warn().
			Str("parameter", parameter).
			Str("attribute", attribute).
			Msg("ignoring unknown attribute")
	case policyReject:
		// Rejection is handled by the facet resolvers, which surface typed
		// errors instead of dropping the attribute.
	}
}
