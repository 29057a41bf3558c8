package cluster

import (
	"strings"
	"unicode"
)

// Punctuation stripped before computing headline similarity. Disclosure
// titles decorate heavily with these; they carry no signal.
var similarityPunct = map[rune]bool{
	'、': true, '。': true, '・': true, '「': true, '」': true,
	'『': true, '』': true, '（': true, '）': true, '｜': true,
	'！': true, '？': true, '…': true, '【': true, '】': true,
	'(': true, ')': true, '|': true, '!': true, '?': true,
	',': true, '.': true, ':': true, ';': true,
}

// Similarity computes Jaccard similarity over character-bigram sets of
// two titles, after stripping whitespace and punctuation and
// lower-casing. Identical non-empty normalized strings score exactly
// 1.0; strings with no shared bigrams score 0.0. Strings shorter than
// two runes have an empty bigram set, so the result degenerates to 0 —
// including the empty/empty case, which is defined as 0 rather than
// letting 0/0 produce NaN.
func Similarity(a, b string) float64 {
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	intersection := 0
	for g := range ba {
		if bb[g] {
			intersection++
		}
	}
	union := len(ba) + len(bb) - intersection
	return float64(intersection) / float64(union)
}

func bigrams(s string) map[string]bool {
	var runes []rune
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || similarityPunct[r] {
			continue
		}
		runes = append(runes, r)
	}

	set := make(map[string]bool)
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = true
	}
	return set
}
