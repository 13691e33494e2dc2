package retrieval

import (
	"strings"
	"unicode"
)

// dedupe drops results whose text is a near-duplicate of a higher-ranked
// result. Results arrive ordered by score descending, so the first of a
// duplicate pair always survives.
func dedupe(results []Result, threshold float64) []Result {
	if len(results) < 2 {
		return results
	}

	kept := make([]Result, 0, len(results))
	keptSets := make([]map[string]struct{}, 0, len(results))

	for _, result := range results {
		words := wordSet(result.Text)
		duplicate := false
		for _, other := range keptSets {
			if jaccard(words, other) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, result)
		keptSets = append(keptSets, words)
	}

	return kept
}

// wordSet normalizes text into a set of lowercased words.
func wordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// jaccard is |a ∩ b| / |a ∪ b|; two empty sets count as identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
