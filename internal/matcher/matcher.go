package matcher

import "strings"

// Matches reports whether every token of keyword appears in at least one of
// the fields, case-insensitively. Spaces and '+' separate tokens.
func Matches(keyword string, fields ...string) bool {
	tokens := tokenize(keyword)
	if len(tokens) == 0 {
		return false
	}
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, tok := range tokens {
		if !strings.Contains(haystack, tok) {
			return false
		}
	}
	return true
}

// MatchedKeywords returns primary followed by every other keyword in
// candidates that Matches the fields, without duplicates.
func MatchedKeywords(primary string, candidates []string, fields ...string) []string {
	out := []string{primary}
	seen := map[string]bool{strings.ToLower(primary): true}
	for _, k := range candidates {
		lk := strings.ToLower(k)
		if seen[lk] {
			continue
		}
		if Matches(k, fields...) {
			seen[lk] = true
			out = append(out, k)
		}
	}
	return out
}

func tokenize(pattern string) []string {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return nil
	}
	pattern = strings.ReplaceAll(pattern, "+", " ")
	return strings.Fields(pattern)
}
