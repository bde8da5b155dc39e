package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

type SanitizerConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	MaxQueryLength  int  `yaml:"max_query_length" mapstructure:"max_query_length"`
	MaxFilterLength int  `yaml:"max_filter_length" mapstructure:"max_filter_length"`
	StrictMode      bool `yaml:"strict_mode" mapstructure:"strict_mode"`
}

// InputSanitizer strips markup and script payloads from free-text request
// fields. Query text is user-controlled and echoed back in responses, so it
// is cleaned before it reaches the engine or a log line.
type InputSanitizer struct {
	config     SanitizerConfig
	htmlPolicy *bluemonday.Policy
	jsPattern  *regexp.Regexp
	xssPattern *regexp.Regexp
}

func NewInputSanitizer(config SanitizerConfig) *InputSanitizer {
	sanitizer := &InputSanitizer{
		config: config,
	}

	if config.Enabled {
		sanitizer.htmlPolicy = bluemonday.StrictPolicy()
		sanitizer.jsPattern = regexp.MustCompile(`(?i)(javascript:|vbscript:|data:|eval\(|alert\(|confirm\(|prompt\()`)
		sanitizer.xssPattern = regexp.MustCompile(`(?i)(<script|</script|<iframe|</iframe|<object|</object|<embed|</embed|<link|<meta|<style|</style|on\w+\s*=)`)
	}

	return sanitizer
}

func (is *InputSanitizer) SanitizeString(input string, maxLength int) (string, error) {
	if !is.config.Enabled {
		return input, nil
	}

	if maxLength > 0 && len(input) > maxLength {
		if is.config.StrictMode {
			return "", fmt.Errorf("input exceeds maximum allowed length of %d", maxLength)
		}
		input = input[:maxLength]
	}

	if !utf8.ValidString(input) {
		if is.config.StrictMode {
			return "", fmt.Errorf("invalid UTF-8 string")
		}
		input = strings.ToValidUTF8(input, "")
	}

	input = strings.ReplaceAll(input, "\x00", "")

	if is.jsPattern.MatchString(input) {
		if is.config.StrictMode {
			return "", fmt.Errorf("potential script injection detected")
		}
		input = is.jsPattern.ReplaceAllString(input, "")
	}

	if is.xssPattern.MatchString(input) {
		if is.config.StrictMode {
			return "", fmt.Errorf("potential XSS detected")
		}
		input = is.xssPattern.ReplaceAllString(input, "")
	}

	input = is.htmlPolicy.Sanitize(input)

	return strings.TrimSpace(input), nil
}

func (is *InputSanitizer) IsEnabled() bool {
	return is.config.Enabled
}

// SearchSanitizer cleans the free-text fields of a search request.
type SearchSanitizer struct {
	sanitizer  *InputSanitizer
	uidPattern *regexp.Regexp
}

func NewSearchSanitizer(config SanitizerConfig) *SearchSanitizer {
	return &SearchSanitizer{
		sanitizer:  NewInputSanitizer(config),
		uidPattern: regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`),
	}
}

// SanitizeQuery cleans the q parameter. Filter syntax characters stay intact;
// only markup and script fragments are removed.
func (ss *SearchSanitizer) SanitizeQuery(query string) (string, error) {
	maxLength := ss.sanitizer.config.MaxQueryLength
	if maxLength <= 0 {
		maxLength = 1000
	}
	return ss.sanitizer.SanitizeString(query, maxLength)
}

// SanitizeFilters cleans the raw filters expression.
func (ss *SearchSanitizer) SanitizeFilters(filters string) (string, error) {
	maxLength := ss.sanitizer.config.MaxFilterLength
	if maxLength <= 0 {
		maxLength = 2000
	}
	return ss.sanitizer.SanitizeString(filters, maxLength)
}

// ValidateIndexUID checks that an index uid is well formed. UIDs appear in
// URLs and engine collection names, so the accepted alphabet is narrow.
func (ss *SearchSanitizer) ValidateIndexUID(uid string) error {
	if !ss.sanitizer.config.Enabled {
		return nil
	}

	if len(uid) == 0 || len(uid) > 100 {
		return fmt.Errorf("index uid length must be between 1 and 100 characters")
	}

	if !ss.uidPattern.MatchString(uid) {
		return fmt.Errorf("index uid contains invalid characters")
	}

	return nil
}

// ValidateAttributeName checks that a field name declared in index settings
// is well formed.
func (ss *SearchSanitizer) ValidateAttributeName(name string) error {
	if !ss.sanitizer.config.Enabled {
		return nil
	}

	if len(name) == 0 || len(name) > 200 {
		return fmt.Errorf("attribute name length must be between 1 and 200 characters")
	}

	if strings.ContainsAny(name, "<>\x00") {
		return fmt.Errorf("attribute name contains invalid characters")
	}

	return nil
}
