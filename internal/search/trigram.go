package search

// trigrams returns the set of trigrams of a normalized string using pg_trgm
// rules: every word is padded with two blanks in front and one behind.
func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words(s) {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity returns the trigram similarity of a and b in [0, 1], computed
// on their normalized forms. Either side producing no trigrams yields 0.
func Similarity(a, b string) float64 {
	return similarityOf(trigrams(Normalize(a)), trigrams(Normalize(b)))
}

func similarityOf(ta, tb map[string]struct{}) float64 {
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}
