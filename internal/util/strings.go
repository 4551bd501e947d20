package util

import "strings"

// SafeTruncate safely truncates a string to maxLen characters without panicking.
// Returns the original string if it's shorter than maxLen, otherwise returns
// the first maxLen characters. Used when logging credentials, where only a
// prefix may be shown.
//
// If maxLen is negative, it's treated as 0 and returns an empty string.
//
//	SafeTruncate("very-long-token-abc123", 8) // "very-lon"
//	SafeTruncate("short", 10)                  // "short"
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// SplitScope splits a space-delimited OAuth scope parameter (RFC 6749 Section 3.3).
// Repeated whitespace is ignored and duplicates are dropped, keeping first-seen order.
func SplitScope(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil
	}
	return Dedupe(fields)
}

// JoinScopes joins scopes into a space-delimited scope parameter
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// Dedupe returns values without duplicates, preserving first-seen order
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ContainsAll reports whether every element of want is present in have.
// Comparison is exact and case-sensitive.
func ContainsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// Contains reports whether value is an element of values
func Contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
