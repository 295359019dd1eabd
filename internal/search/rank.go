package search

import (
	"strings"
	"time"
)

// SimilarityThreshold is the trigram similarity a row must exceed to be
// admitted on similarity alone.
const SimilarityThreshold = 0.15

// Prefix rank buckets. Lower sorts first.
const (
	RankPrefix     = 1
	RankFullText   = 2
	RankSimilarity = 3
	RankSubstring  = 4
)

// Candidate is one searchable row.
type Candidate struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Facet     string    `json:"facet,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Scored is a Candidate with the signals computed for one query.
type Scored struct {
	Candidate
	PrefixRank int     `json:"prefix_rank"`
	Similarity float64 `json:"similarity"`
	TextRank   float64 `json:"text_rank"`

	normalized string
	admitted   bool
}

// Admitted reports whether the candidate passed the admission predicate.
func (s Scored) Admitted() bool {
	return s.admitted
}

// scorer holds the per-query state shared across candidates.
type scorer struct {
	raw      string
	folded   string
	grams    map[string]struct{}
	ftsQuery textQuery
}

func newScorer(query string) *scorer {
	norm := Normalize(query)
	return &scorer{
		raw:      query,
		folded:   strings.ToLower(query),
		grams:    trigrams(norm),
		ftsQuery: parseTextQuery(norm),
	}
}

func (s *scorer) score(c Candidate) Scored {
	norm := Normalize(c.Text)
	doc := words(norm)
	folded := strings.ToLower(c.Text)

	out := Scored{Candidate: c, normalized: norm}
	out.Similarity = similarityOf(trigrams(norm), s.grams)
	fts := s.ftsQuery.matches(doc)
	if fts {
		out.TextRank = s.ftsQuery.rank(doc)
	}
	substring := strings.Contains(folded, s.folded)

	switch {
	case strings.HasPrefix(folded, s.folded):
		out.PrefixRank = RankPrefix
	case fts:
		out.PrefixRank = RankFullText
	case out.Similarity > SimilarityThreshold:
		out.PrefixRank = RankSimilarity
	default:
		out.PrefixRank = RankSubstring
	}

	out.admitted = out.Similarity > SimilarityThreshold || fts || substring
	return out
}

// Score computes the ranking signals of c against query.
func Score(query string, c Candidate) Scored {
	return newScorer(query).score(c)
}

// Less reports whether a sorts before b.
func Less(a, b Scored) bool {
	if a.PrefixRank != b.PrefixRank {
		return a.PrefixRank < b.PrefixRank
	}
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.TextRank != b.TextRank {
		return a.TextRank > b.TextRank
	}
	an, bn := a.normalized, b.normalized
	if an == "" && a.Text != "" {
		an = Normalize(a.Text)
	}
	if bn == "" && b.Text != "" {
		bn = Normalize(b.Text)
	}
	if an != bn {
		return an < bn
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Compare is Less expressed as a three-way comparison for slices.SortFunc.
func Compare(a, b Scored) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}
