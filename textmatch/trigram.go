package textmatch

import "strings"

// trigrams returns the pg_trgm trigram set of s: each alphanumeric word is
// folded and padded with two leading blanks and one trailing blank.
func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(s) {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for g := range a {
		if _, ok := b[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// Similarity returns the trigram similarity of a and b in [0,1]:
// shared trigrams divided by the union of both trigram sets.
func Similarity(a, b string) float64 {
	return jaccard(trigrams(a), trigrams(b))
}

// WordSimilarity returns the best Similarity between needle and any run of
// consecutive words in haystack up to one word longer than needle.
// It suits long free-text fields where the identifier is a small part.
func WordSimilarity(needle, haystack string) float64 {
	needleSet := trigrams(needle)
	if len(needleSet) == 0 {
		return 0
	}
	words := Words(haystack)
	span := len(Words(needle)) + 1

	best := 0.0
	for i := range words {
		for j := i + 1; j <= len(words) && j-i <= span; j++ {
			if s := jaccard(needleSet, trigrams(strings.Join(words[i:j], " "))); s > best {
				best = s
			}
		}
	}
	return best
}
