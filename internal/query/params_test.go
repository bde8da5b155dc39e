package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/querygate/pkg/utils"
)

func TestParseSearchParams(t *testing.T) {
	values := url.Values{}
	values.Set("q", "dune")
	values.Set("offset", "10")
	values.Set("limit", "5")
	values.Set("attributesToRetrieve", "title,genre")
	values.Set("cropLength", "80")
	values.Set("matches", "true")
	values.Set("filters", "year > 1990")

	raw, err := ParseSearchParams(values)

	require.NoError(t, err)
	assert.Equal(t, "dune", raw.Query)
	assert.Equal(t, 10, *raw.Offset)
	assert.Equal(t, 5, *raw.Limit)
	assert.Equal(t, "title,genre", *raw.AttributesToRetrieve)
	assert.Equal(t, 80, *raw.CropLength)
	assert.True(t, *raw.Matches)
	assert.Equal(t, "year > 1990", *raw.Filters)
	assert.Nil(t, raw.AttributesToCrop)
	assert.Nil(t, raw.FacetFilters)
	assert.Nil(t, raw.FacetsDistribution)
}

func TestParseSearchParams_UnknownParameterRejected(t *testing.T) {
	values := url.Values{}
	values.Set("q", "dune")
	values.Set("attributesToRetreive", "title")

	_, err := ParseSearchParams(values)

	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
	assert.Contains(t, err.Error(), "attributesToRetreive")
}

func TestParseSearchParams_MissingQueryRejected(t *testing.T) {
	values := url.Values{}
	values.Set("limit", "5")

	_, err := ParseSearchParams(values)

	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
}

func TestParseSearchParams_EmptyQueryAccepted(t *testing.T) {
	values := url.Values{}
	values.Set("q", "")

	raw, err := ParseSearchParams(values)

	require.NoError(t, err)
	assert.Equal(t, "", raw.Query)
}

func TestParseSearchParams_BadNumericValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"offset not a number", "offset", "ten"},
		{"negative offset", "offset", "-1"},
		{"limit not a number", "limit", "5.5"},
		{"zero limit", "limit", "0"},
		{"cropLength not a number", "cropLength", "long"},
		{"matches not a bool", "matches", "yes please"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			values.Set("q", "dune")
			values.Set(tt.key, tt.value)

			_, err := ParseSearchParams(values)

			require.Error(t, err)
			assert.True(t, utils.IsValidation(err))
		})
	}
}
