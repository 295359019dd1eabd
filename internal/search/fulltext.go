package search

// textQuery is a parsed plain-text query: the distinct lexemes that must all
// be present in a document for it to match.
type textQuery []string

func parseTextQuery(normalized string) textQuery {
	seen := make(map[string]struct{})
	var q textQuery
	for _, w := range words(normalized) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		q = append(q, w)
	}
	return q
}

// matches reports whether every lexeme of q occurs in doc. An empty query
// matches nothing.
func (q textQuery) matches(doc []string) bool {
	if len(q) == 0 {
		return false
	}
	present := make(map[string]struct{}, len(doc))
	for _, w := range doc {
		present[w] = struct{}{}
	}
	for _, lex := range q {
		if _, ok := present[lex]; !ok {
			return false
		}
	}
	return true
}

// rank computes cover density the way ts_rank_cd does for a vector whose
// lexemes all carry weight A. Each minimal window of doc that contains every
// query lexeme contributes 1/(1+noise), where noise counts the positions in
// the window not occupied by query lexemes.
func (q textQuery) rank(doc []string) float64 {
	if len(q) == 0 {
		return 0
	}
	index := make(map[string]int, len(q))
	for i, lex := range q {
		index[lex] = i
	}

	last := make([]int, len(q))
	for i := range last {
		last[i] = -1
	}
	var hits []int
	total := 0.0
	prevStart := -1

	for pos, w := range doc {
		i, ok := index[w]
		if !ok {
			continue
		}
		last[i] = pos
		hits = append(hits, pos)

		start := pos
		complete := true
		for _, p := range last {
			if p < 0 {
				complete = false
				break
			}
			if p < start {
				start = p
			}
		}
		if !complete || start == prevStart {
			continue
		}
		prevStart = start

		inCover := 0
		for _, h := range hits {
			if h >= start && h <= pos {
				inCover++
			}
		}
		noise := (pos - start) - (inCover - 1)
		if noise < 0 {
			noise = 0
		}
		total += 1 / float64(1+noise)
	}
	return total
}
