package query

import (
	"fmt"
	"strings"
)

// FacetCountErrorKind discriminates the failure modes of facet distribution
// list preparation.
type FacetCountErrorKind int

const (
	FacetCountJSON FacetCountErrorKind = iota
	FacetCountUnexpectedToken
	FacetCountAttributeNotSet
	FacetCountNoFacetSet
)

// FacetCountError is a terminal, client-addressable failure raised while
// resolving the facetsDistribution parameter.
type FacetCountError struct {
	Kind      FacetCountErrorKind
	Attribute string
	Found     string
	Expected  []string
	Err       error
}

func (e *FacetCountError) Error() string {
	switch e.Kind {
	case FacetCountJSON:
		return fmt.Sprintf("invalid facet count request: %v", e.Err)
	case FacetCountUnexpectedToken:
		return fmt.Sprintf("unexpected token %s, expected %s", e.Found, strings.Join(e.Expected, ", "))
	case FacetCountAttributeNotSet:
		return fmt.Sprintf("attribute %s is not set as facet", e.Attribute)
	case FacetCountNoFacetSet:
		return "no attributes are set as facets"
	default:
		return "facet count error"
	}
}

func (e *FacetCountError) Unwrap() error {
	return e.Err
}

func newFacetCountJSONError(err error) *FacetCountError {
	return &FacetCountError{Kind: FacetCountJSON, Err: err}
}

func newUnexpectedTokenError(found string, expected ...string) *FacetCountError {
	return &FacetCountError{Kind: FacetCountUnexpectedToken, Found: found, Expected: expected}
}

func newAttributeNotSetError(attribute string) *FacetCountError {
	return &FacetCountError{Kind: FacetCountAttributeNotSet, Attribute: attribute}
}

// ErrNoFacetSet is raised when a facet distribution is requested on an index
// with no facet-enabled attributes at all.
func ErrNoFacetSet() *FacetCountError {
	return &FacetCountError{Kind: FacetCountNoFacetSet}
}

// FacetFilterError is a terminal failure raised while parsing the
// facetFilters expression: syntactically invalid input, or a reference to an
// unknown or non-facetable attribute.
type FacetFilterError struct {
	Message string
	Err     error
}

func (e *FacetFilterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid facet filter: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("invalid facet filter: %s", e.Message)
}

func (e *FacetFilterError) Unwrap() error {
	return e.Err
}

func newFacetFilterError(format string, args ...interface{}) *FacetFilterError {
	return &FacetFilterError{Message: fmt.Sprintf(format, args...)}
}
