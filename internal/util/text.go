package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reSpaces    = regexp.MustCompile(`\s+`)
	reURL       = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	reNonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	placeholder = map[string]struct{}{
		"": {}, "unknown": {}, "n/a": {}, "na": {}, "none": {}, "null": {}, "nil": {}, "-": {},
	}
)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func StripURLs(input string) string {
	return reURL.ReplaceAllString(input, "")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

func FirstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// IsPlaceholder reports values models emit when a field is absent.
func IsPlaceholder(s string) bool {
	_, ok := placeholder[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// NormalizeKey folds a label to lower-case alphanumerics for loose comparison.
func NormalizeKey(input string) string {
	return reNonAlnum.ReplaceAllString(strings.ToLower(input), "")
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}
