package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/tokenizer"
)

// BM25 parameters matching the engine, so reference scores line up with
// what Search returns.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// ScoredDoc is one entry of a reference ranking.
type ScoredDoc struct {
	ExternalID string
	Score      float32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
// This is how real-world term frequencies are distributed (power law).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	// Normalization constant (harmonic number with exponent s).
	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Inverse transform sampling.
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1 // 0-indexed
		}
	}

	return n - 1
}

// Vocabulary returns n distinct synthetic terms, term000 through term(n-1).
func Vocabulary(n int) []string {
	terms := make([]string, n)
	for i := range terms {
		terms[i] = fmt.Sprintf("term%03d", i)
	}
	return terms
}

// GenerateCorpus builds num documents whose terms are drawn from vocab with
// a Zipfian distribution of skew s, so the corpus mixes common and rare
// terms the way real text does. Document lengths are uniform in
// [minTerms, maxTerms]. The same RNG state produces the same corpus.
func (r *RNG) GenerateCorpus(num int, vocab []string, minTerms, maxTerms int, s float64) []model.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]model.Document, num)
	for i := range docs {
		terms := minTerms
		if maxTerms > minTerms {
			terms += r.rand.Intn(maxTerms - minTerms + 1)
		}
		var sb strings.Builder
		for j := 0; j < terms; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(vocab[r.zipfLocked(len(vocab), s)])
		}
		docs[i] = model.Document{
			ExternalID: fmt.Sprintf("doc-%05d", i),
			Text:       sb.String(),
		}
	}
	return docs
}

func uniqueTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for term := range tokenizer.Terms(query) {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// ExactTopK scores query against docs by brute force and returns the top k
// by (score desc, ingestion order asc). The slice is treated as one
// segment: document frequency and average length are computed over all of
// docs, with the engine's BM25 scheme. Against a single-segment index the
// reference ranking therefore matches Search exactly for the unquantized
// profiles.
func ExactTopK(docs []model.Document, query string, k int) []ScoredDoc {
	terms := uniqueTerms(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}

	freqs := make([]map[string]int, len(docs))
	lengths := make([]int, len(docs))
	totalTokens := 0
	for i, doc := range docs {
		freqs[i] = tokenizer.Frequencies(doc.Text)
		for _, tf := range freqs[i] {
			lengths[i] += tf
		}
		totalTokens += lengths[i]
	}

	avgLen := 1.0
	if len(docs) > 0 && totalTokens > 0 {
		avgLen = float64(totalTokens) / float64(len(docs))
	}

	df := make(map[string]int, len(terms))
	for _, term := range terms {
		for i := range docs {
			if freqs[i][term] > 0 {
				df[term]++
			}
		}
	}

	type scored struct {
		idx   int
		score float32
	}
	var hits []scored
	for i := range docs {
		var score float32
		matched := false
		for _, term := range terms {
			tf := freqs[i][term]
			if tf == 0 {
				continue
			}
			matched = true
			idf := math.Log(1 + (float64(len(docs))-float64(df[term])+0.5)/(float64(df[term])+0.5))
			norm := float64(tf) * (bm25K1 + 1) /
				(float64(tf) + bm25K1*(1-bm25B+bm25B*float64(lengths[i])/avgLen))
			score += float32(idf * norm)
		}
		if matched {
			hits = append(hits, scored{idx: i, score: score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].idx < hits[b].idx
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]ScoredDoc, len(hits))
	for i, h := range hits {
		out[i] = ScoredDoc{ExternalID: docs[h.idx].ExternalID, Score: h.score}
	}
	return out
}

// CountMatches returns the number of documents containing at least one
// query term, the reference value for TotalMatches.
func CountMatches(docs []model.Document, query string) uint64 {
	terms := uniqueTerms(query)
	if len(terms) == 0 {
		return 0
	}
	var n uint64
	for _, doc := range docs {
		freqs := tokenizer.Frequencies(doc.Text)
		for _, term := range terms {
			if freqs[term] > 0 {
				n++
				break
			}
		}
	}
	return n
}

// ComputeRecall computes recall@k by comparing search hits against the
// reference ranking.
func ComputeRecall(groundTruth []ScoredDoc, results []model.Hit) float64 {
	if len(groundTruth) == 0 || len(results) == 0 {
		if len(groundTruth) == 0 && len(results) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(results), len(groundTruth))

	truthSet := make(map[string]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ExternalID] = struct{}{}
	}

	hits := 0
	for _, r := range results {
		if _, ok := truthSet[r.ExternalID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}
