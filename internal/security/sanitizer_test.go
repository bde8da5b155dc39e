package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledConfig() SanitizerConfig {
	return SanitizerConfig{
		Enabled:        true,
		MaxQueryLength: 100,
	}
}

func TestSearchSanitizer_SanitizeQuery(t *testing.T) {
	ss := NewSearchSanitizer(enabledConfig())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text untouched",
			input: "captain america",
			want:  "captain america",
		},
		{
			name:  "script tags stripped",
			input: `<script>alert(1)</script>moana`,
			want:  "moana",
		},
		{
			name:  "null bytes removed",
			input: "pixar\x00",
			want:  "pixar",
		},
		{
			name:  "javascript scheme stripped",
			input: "javascript:payload",
			want:  "payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ss.SanitizeQuery(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchSanitizer_DisabledPassthrough(t *testing.T) {
	ss := NewSearchSanitizer(SanitizerConfig{Enabled: false})

	got, err := ss.SanitizeQuery("<b>anything goes</b>")
	require.NoError(t, err)
	assert.Equal(t, "<b>anything goes</b>", got)

	assert.NoError(t, ss.ValidateIndexUID("anything goes"))
}

func TestSearchSanitizer_ValidateIndexUID(t *testing.T) {
	ss := NewSearchSanitizer(enabledConfig())

	assert.NoError(t, ss.ValidateIndexUID("movies"))
	assert.NoError(t, ss.ValidateIndexUID("movies_2024-archive"))

	assert.Error(t, ss.ValidateIndexUID(""))
	assert.Error(t, ss.ValidateIndexUID("has spaces"))
	assert.Error(t, ss.ValidateIndexUID("-leading-dash"))
}

func TestSearchSanitizer_ValidateAttributeName(t *testing.T) {
	ss := NewSearchSanitizer(enabledConfig())

	assert.NoError(t, ss.ValidateAttributeName("title"))
	assert.Error(t, ss.ValidateAttributeName(""))
	assert.Error(t, ss.ValidateAttributeName("bad<name>"))
}
