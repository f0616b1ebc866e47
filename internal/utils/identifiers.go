package utils

import (
	"regexp"
	"strings"
)

var (
	identifierSeparators = regexp.MustCompile(`[,;\s]+`)
	hwidPattern          = regexp.MustCompile(`^[0-9]{1,2}:[0-9a-f]{64}$`)

	identifierPatterns = map[string]*regexp.Regexp{
		"steam":    regexp.MustCompile(`^1100001[0-9a-f]{8}$`),
		"license":  regexp.MustCompile(`^[0-9a-f]{40}$`),
		"license2": regexp.MustCompile(`^[0-9a-f]{40}$`),
		"xbl":      regexp.MustCompile(`^\d{14,20}$`),
		"live":     regexp.MustCompile(`^\d{14,20}$`),
		"discord":  regexp.MustCompile(`^\d{7,20}$`),
		"fivem":    regexp.MustCompile(`^\d{1,8}$`),
	}
)

// ParsedIdentifiers is the result of ParseIdentifiers.
type ParsedIdentifiers struct {
	IDs      []string
	HWIDs    []string
	Invalids []string
}

// ParseIdentifiers splits a free-form list of player identifiers on commas,
// semicolons and whitespace. Tokens are lower-cased and sorted into typed ids
// ("discord:123...") and hardware ids ("2:<64 hex>"); everything else is
// returned in Invalids.
func ParseIdentifiers(input string) ParsedIdentifiers {
	var parsed ParsedIdentifiers
	seen := map[string]struct{}{}

	for _, token := range identifierSeparators.Split(strings.ToLower(input), -1) {
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}

		switch {
		case IsValidIdentifier(token):
			parsed.IDs = append(parsed.IDs, token)
		case hwidPattern.MatchString(token):
			parsed.HWIDs = append(parsed.HWIDs, token)
		default:
			parsed.Invalids = append(parsed.Invalids, token)
		}
	}

	return parsed
}

// IsValidIdentifier reports whether id is a well formed "scheme:value" player identifier.
func IsValidIdentifier(id string) bool {
	scheme, value, ok := strings.Cut(id, ":")
	if !ok {
		return false
	}
	pattern, known := identifierPatterns[scheme]
	return known && pattern.MatchString(value)
}
