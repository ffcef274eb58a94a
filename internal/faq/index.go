package faq

import (
	"errors"
	"math"
	"sort"
	"strings"

	"supportbot/internal/domain"
)

// DefaultThreshold is the minimum cosine similarity for a query to count as an FAQ hit.
const DefaultThreshold = 0.3

// scoreTolerance absorbs float rounding so an identical question scores at least 1.0.
const scoreTolerance = 1e-9

var (
	ErrEmptyCorpus = errors.New("faq: empty corpus")
	ErrNoTokens    = errors.New("faq: no tokens found in corpus questions")
	ErrEmptyQuery  = errors.New("faq: empty query")
)

// Options tunes how the index tokenizes text.
type Options struct {
	// Stopwords drops common English words from questions and queries.
	Stopwords bool
}

// Index is a TF-IDF vector space over the corpus questions.
// It is immutable after Build and safe for concurrent use.
type Index struct {
	entries    []domain.FAQEntry
	vocabulary map[string]int
	idf        []float64
	postings   [][]posting
	tok        *tokenizer
}

type posting struct {
	doc    int
	weight float64
}

// component is one non-zero coordinate of a sparse vector.
type component struct {
	term   int
	weight float64
}

// Build fits the vectorizer on the questions of entries and indexes every document.
// Corpus updates require a new Build.
func Build(entries []domain.FAQEntry, opts Options) (*Index, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCorpus
	}
	tok := newTokenizer(opts.Stopwords)

	docs := make([][]string, len(entries))
	df := make(map[string]int)
	for i, e := range entries {
		tokens := tok.tokenize(e.Question)
		docs[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	if len(df) == 0 {
		return nil, ErrNoTokens
	}

	// Stable vocabulary ordering
	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	idx := &Index{
		entries:    append([]domain.FAQEntry(nil), entries...),
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
		postings:   make([][]posting, len(terms)),
		tok:        tok,
	}
	n := float64(len(entries))
	for i, t := range terms {
		idx.vocabulary[t] = i
		// Smoothed IDF
		idx.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1.0
	}
	for d, tokens := range docs {
		for _, c := range idx.vectorize(tokens) {
			idx.postings[c.term] = append(idx.postings[c.term], posting{doc: d, weight: c.weight})
		}
	}
	return idx, nil
}

// Len returns the number of corpus entries.
func (idx *Index) Len() int { return len(idx.entries) }

// VocabularySize returns the number of distinct terms in the fitted vocabulary.
func (idx *Index) VocabularySize() int { return len(idx.vocabulary) }

// Entry returns the i-th corpus entry.
func (idx *Index) Entry(i int) domain.FAQEntry { return idx.entries[i] }

// Search returns the corpus entry whose question is most similar to query.
// The boolean is false when the best score is below threshold or the query shares
// no terms with the corpus. Ties resolve to the lowest corpus index.
func (idx *Index) Search(query string, threshold float64) (domain.FAQMatch, bool, error) {
	if strings.TrimSpace(query) == "" {
		return domain.FAQMatch{}, false, ErrEmptyQuery
	}
	qvec := idx.vectorize(idx.tok.tokenize(query))
	if len(qvec) == 0 {
		return domain.FAQMatch{}, false, nil
	}

	// Accumulate in ascending term order so identical documents get bit-identical scores.
	scores := make([]float64, len(idx.entries))
	for _, c := range qvec {
		for _, p := range idx.postings[c.term] {
			scores[p.doc] += c.weight * p.weight
		}
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	score := clamp01(scores[best])
	if score == 0 || score+scoreTolerance < threshold {
		return domain.FAQMatch{}, false, nil
	}
	return domain.FAQMatch{Entry: idx.entries[best], Index: best, Score: score}, true, nil
}

// vectorize turns tokens into an L2-normalized TF-IDF vector sorted by term index.
// Out-of-vocabulary tokens are ignored.
func (idx *Index) vectorize(tokens []string) []component {
	tf := make(map[int]int)
	for _, t := range tokens {
		if i, ok := idx.vocabulary[t]; ok {
			tf[i]++
		}
	}
	if len(tf) == 0 {
		return nil
	}
	vec := make([]component, 0, len(tf))
	for i, count := range tf {
		vec = append(vec, component{term: i, weight: float64(count) * idx.idf[i]})
	}
	sort.Slice(vec, func(a, b int) bool { return vec[a].term < vec[b].term })
	// L2 normalize
	norm := 0.0
	for _, c := range vec {
		norm += c.weight * c.weight
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].weight /= norm
	}
	return vec
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
