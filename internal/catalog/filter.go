package catalog

import (
	"regexp"
	"strings"
)

// Matches reports whether a scenario name matches any of the include
// patterns, case-insensitively. An empty pattern list matches everything.
func Matches(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// Scenario variants are generated with a trailing gas-value suffix
// ("_45M", "_7", "_45M_2"); stripping it yields the warmup identity
// shared by all variants.
var gasSuffix = regexp.MustCompile(`(?i)_[0-9]+m?$`)

// NormalizeName strips trailing gas-value suffixes from a scenario name
// so repeated variants resolve to one warmup payload.
func NormalizeName(name string) string {
	for {
		trimmed := gasSuffix.ReplaceAllString(name, "")
		if trimmed == name || trimmed == "" {
			return name
		}
		name = trimmed
	}
}
