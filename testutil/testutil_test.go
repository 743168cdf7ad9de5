package testutil_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/testutil"
	"github.com/hupe1980/lexgo/tokenizer"
)

func TestRNGDeterminism(t *testing.T) {
	vocab := testutil.Vocabulary(20)

	a := testutil.NewRNG(42).GenerateCorpus(50, vocab, 3, 12, 1.2)
	b := testutil.NewRNG(42).GenerateCorpus(50, vocab, 3, 12, 1.2)
	assert.Equal(t, a, b)

	rng := testutil.NewRNG(7)
	first := rng.GenerateCorpus(10, vocab, 3, 12, 1.2)
	rng.Reset()
	second := rng.GenerateCorpus(10, vocab, 3, 12, 1.2)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 7, rng.Seed())
}

func TestVocabulary(t *testing.T) {
	vocab := testutil.Vocabulary(120)
	require.Len(t, vocab, 120)
	assert.Equal(t, "term000", vocab[0])
	assert.Equal(t, "term119", vocab[119])

	seen := make(map[string]struct{}, len(vocab))
	for _, term := range vocab {
		seen[term] = struct{}{}
	}
	assert.Len(t, seen, 120)
}

func TestGenerateCorpusBounds(t *testing.T) {
	vocab := testutil.Vocabulary(30)
	docs := testutil.NewRNG(1).GenerateCorpus(200, vocab, 4, 16, 1.2)
	require.Len(t, docs, 200)

	ids := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		ids[doc.ExternalID] = struct{}{}
		n := tokenizer.Count(doc.Text)
		assert.GreaterOrEqual(t, n, 4)
		assert.LessOrEqual(t, n, 16)
	}
	assert.Len(t, ids, 200)
}

func TestZipfSkew(t *testing.T) {
	rng := testutil.NewRNG(3)
	counts := make([]int, 10)
	for i := 0; i < 2000; i++ {
		v := rng.Zipf(10, 1.2)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 10)
		counts[v]++
	}
	// The head of the distribution dominates the tail.
	assert.Greater(t, counts[0], counts[9]*2)
}

func TestExactTopKTwoDocScenario(t *testing.T) {
	docs := []model.Document{
		{ExternalID: "1", Text: "the quick fox"},
		{ExternalID: "2", Text: "the lazy fox"},
	}

	both := testutil.ExactTopK(docs, "fox", 10)
	require.Len(t, both, 2)
	assert.Equal(t, "1", both[0].ExternalID)
	assert.Equal(t, "2", both[1].ExternalID)
	assert.Equal(t, both[0].Score, both[1].Score)

	only := testutil.ExactTopK(docs, "quick", 10)
	require.Len(t, only, 1)
	assert.Equal(t, "1", only[0].ExternalID)

	assert.Empty(t, testutil.ExactTopK(docs, "", 10))
	assert.Empty(t, testutil.ExactTopK(docs, "fox", 0))
}

func TestExactTopKOrdering(t *testing.T) {
	docs := make([]model.Document, 6)
	for i := range docs {
		docs[i] = model.Document{
			ExternalID: fmt.Sprintf("d-%d", i),
			Text:       strings.Repeat("target ", i+1) + fmt.Sprintf("filler%d", i),
		}
	}

	top := testutil.ExactTopK(docs, "target", 3)
	require.Len(t, top, 3)
	assert.Equal(t, "d-5", top[0].ExternalID)
	assert.Equal(t, "d-4", top[1].ExternalID)
	assert.Equal(t, "d-3", top[2].ExternalID)
	assert.Greater(t, top[0].Score, top[1].Score)
	assert.Greater(t, top[1].Score, top[2].Score)
}

func TestCountMatches(t *testing.T) {
	docs := []model.Document{
		{ExternalID: "1", Text: "the quick fox"},
		{ExternalID: "2", Text: "the lazy fox"},
		{ExternalID: "3", Text: "something else"},
	}

	assert.EqualValues(t, 2, testutil.CountMatches(docs, "fox"))
	assert.EqualValues(t, 1, testutil.CountMatches(docs, "quick"))
	assert.EqualValues(t, 3, testutil.CountMatches(docs, "fox else"))
	assert.EqualValues(t, 0, testutil.CountMatches(docs, "absent"))
	assert.EqualValues(t, 0, testutil.CountMatches(docs, ""))
}

func TestComputeRecall(t *testing.T) {
	want := []testutil.ScoredDoc{{ExternalID: "a"}, {ExternalID: "b"}}

	full := []model.Hit{{ExternalID: "a"}, {ExternalID: "b"}}
	assert.Equal(t, 1.0, testutil.ComputeRecall(want, full))

	half := []model.Hit{{ExternalID: "a"}, {ExternalID: "x"}}
	assert.Equal(t, 0.5, testutil.ComputeRecall(want, half))

	assert.Equal(t, 1.0, testutil.ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, testutil.ComputeRecall(want, nil))
}
