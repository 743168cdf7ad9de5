package query

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/internal/cache"
	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/internal/segment"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/postings"
)

var testWords = []string{
	"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog",
	"ranked", "search", "engine", "term", "weight", "score", "corpus",
}

// genDocs builds a deterministic corpus with idPrefix-<n> external ids.
// Every fifth document leads with testWords[0].
func genDocs(n int, seed int64, idPrefix string) []model.Document {
	rng := rand.New(rand.NewSource(seed))
	docs := make([]model.Document, n)
	for i := range docs {
		k := 3 + rng.Intn(12)
		words := make([]string, 0, k+1)
		if i%5 == 0 {
			words = append(words, testWords[0])
		}
		for j := 0; j < k; j++ {
			words = append(words, testWords[rng.Intn(len(testWords))])
		}
		docs[i] = model.Document{
			ExternalID: fmt.Sprintf("%s-%04d", idPrefix, i),
			Text:       strings.Join(words, " "),
		}
	}
	return docs
}

func fillBuilder(t *testing.T, profile model.Profile, docs []model.Document) *segment.Builder {
	t.Helper()
	b, err := segment.NewBuilder(profile, nil)
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, b.Add(d))
	}
	return b
}

// sealedSource builds, seals and reopens a segment over docs.
func sealedSource(t *testing.T, profile model.Profile, docs []model.Document, id model.SegmentID) *segment.Segment {
	t.Helper()
	ctx := context.Background()
	b := fillBuilder(t, profile, docs)

	dir := t.TempDir()
	info, err := b.Seal(ctx, fs.Default, dir, id)
	require.NoError(t, err)

	bc, err := cache.NewBlockCache(64)
	require.NoError(t, err)
	seg, err := segment.Open(ctx, blobstore.NewLocalStore(dir), bc, profile, info)
	require.NoError(t, err)
	t.Cleanup(func() { seg.Close() })
	return seg
}

// liveSource wraps an unsealed builder over docs.
func liveSource(t *testing.T, profile model.Profile, docs []model.Document, id model.SegmentID) *BuilderSource {
	t.Helper()
	return NewBuilderSource(fillBuilder(t, profile, docs), id)
}

// bruteScores sums each matching document's term weights by full decode.
func bruteScores(t *testing.T, src Source, terms []string) map[model.Location]float32 {
	t.Helper()
	scores := make(map[model.Location]float32)
	for _, term := range terms {
		it, ok, err := src.Postings(context.Background(), term)
		require.NoError(t, err)
		if !ok {
			continue
		}
		for it.Next() {
			loc := model.Location{SegmentID: src.ID(), DocID: model.DocID(it.Doc())}
			scores[loc] += it.Weight()
		}
	}
	return scores
}

// rankBrute orders brute-force scores with the search tie rule.
func rankBrute(scores map[model.Location]float32) []hit {
	hits := make([]hit, 0, len(scores))
	for loc, s := range scores {
		hits = append(hits, hit{loc: loc, score: s})
	}
	sort.Slice(hits, func(i, j int) bool { return better(hits[i], hits[j]) })
	return hits
}

func TestSearchMatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	for _, profile := range model.Profiles() {
		t.Run(profile.String(), func(t *testing.T) {
			docs := genDocs(300, 7, "doc")
			src := sealedSource(t, profile, docs, 1)

			// Two query terms keep the summed scores bit-identical
			// between the brute force and the merge, so the expected
			// ranking is exact.
			query := testWords[0] + " " + testWords[3]
			want := rankBrute(bruteScores(t, src, []string{testWords[0], testWords[3]}))
			require.NotEmpty(t, want)

			res, err := New(profile).Search(ctx, []Source{src}, query, 10, 0)
			require.NoError(t, err)

			assert.Equal(t, profile.String(), res.Profile)
			assert.Equal(t, uint64(len(want)), res.TotalMatches)
			assert.Greater(t, res.Duration, time.Duration(0))
			require.Len(t, res.Hits, min(10, len(want)))

			for i, h := range res.Hits {
				assert.Equal(t, want[i].loc, h.Loc, "rank %d", i)
				assert.InDelta(t, want[i].score, h.Score, 1e-4, "rank %d", i)
				assert.Equal(t, docs[h.Loc.DocID].ExternalID, h.ExternalID)
				assert.Equal(t, docs[h.Loc.DocID].Text, h.Text)
			}
		})
	}
}

func TestSearchPaging(t *testing.T) {
	ctx := context.Background()
	for _, profile := range []model.Profile{model.ProfileSpeed, model.ProfileBalanced} {
		t.Run(profile.String(), func(t *testing.T) {
			src := sealedSource(t, profile, genDocs(200, 11, "doc"), 1)
			exec := New(profile)

			query := testWords[0] + " " + testWords[4]
			full, err := exec.Search(ctx, []Source{src}, query, 10, 0)
			require.NoError(t, err)
			require.Len(t, full.Hits, 10)

			first, err := exec.Search(ctx, []Source{src}, query, 5, 0)
			require.NoError(t, err)
			second, err := exec.Search(ctx, []Source{src}, query, 5, 5)
			require.NoError(t, err)

			require.Len(t, first.Hits, 5)
			require.Len(t, second.Hits, 5)
			assert.Equal(t, full.TotalMatches, first.TotalMatches)
			assert.Equal(t, full.TotalMatches, second.TotalMatches)

			// Two half pages concatenate to the full page.
			for i := range 5 {
				assert.Equal(t, full.Hits[i].Loc, first.Hits[i].Loc, "rank %d", i)
				assert.Equal(t, full.Hits[i+5].Loc, second.Hits[i].Loc, "rank %d", i+5)
			}
		})
	}
}

func TestSearchAcrossSources(t *testing.T) {
	ctx := context.Background()
	profile := model.ProfileBalanced

	segA := sealedSource(t, profile, genDocs(120, 3, "a"), 1)
	segB := sealedSource(t, profile, genDocs(90, 4, "b"), 2)
	live := liveSource(t, profile, genDocs(60, 5, "c"), 3)
	sources := []Source{segA, segB, live}

	terms := []string{testWords[0], testWords[5]}
	var total uint64
	merged := make(map[model.Location]float32)
	for _, src := range sources {
		scores := bruteScores(t, src, terms)
		total += uint64(len(scores))
		for loc, s := range scores {
			merged[loc] = s
		}
	}
	want := rankBrute(merged)

	res, err := New(profile).Search(ctx, sources, strings.Join(terms, " "), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, total, res.TotalMatches)
	require.Len(t, res.Hits, min(20, len(want)))

	// External ids carry the per-source prefix, so a hit materialized from
	// the wrong source would be caught here.
	prefixes := map[model.SegmentID]string{1: "a-", 2: "b-", 3: "c-"}
	segsSeen := make(map[model.SegmentID]bool)
	for i, h := range res.Hits {
		assert.Equal(t, want[i].loc, h.Loc, "rank %d", i)
		assert.InDelta(t, want[i].score, h.Score, 1e-4, "rank %d", i)
		assert.True(t, strings.HasPrefix(h.ExternalID, prefixes[h.Loc.SegmentID]), h.ExternalID)
		segsSeen[h.Loc.SegmentID] = true
	}
	assert.Greater(t, len(segsSeen), 1, "expected hits from more than one source")
}

func TestSearchTieBreakAcrossSegments(t *testing.T) {
	ctx := context.Background()
	profile := model.ProfileSpeed

	// Identical tie-free corpora in both segments: scores are distinct
	// within a segment, and every rank is a cross-segment tie decided by
	// the lower segment id.
	docs := wandCorpus(40)
	segA := sealedSource(t, profile, docs, 1)
	segB := sealedSource(t, profile, docs, 2)

	res, err := New(profile).Search(ctx, []Source{segB, segA}, "alpha beta", 12, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Hits), 2)

	for i := 0; i+1 < len(res.Hits); i++ {
		cur, next := res.Hits[i], res.Hits[i+1]
		if cur.Score == next.Score {
			assert.True(t, cur.Loc.Less(next.Loc), "rank %d: %v !< %v", i, cur.Loc, next.Loc)
		} else {
			assert.Greater(t, cur.Score, next.Score, "rank %d", i)
		}
	}

	// Twin documents pair up adjacent with segment 1 first.
	assert.Equal(t, res.Hits[0].Score, res.Hits[1].Score)
	assert.Equal(t, model.SegmentID(1), res.Hits[0].Loc.SegmentID)
	assert.Equal(t, model.SegmentID(2), res.Hits[1].Loc.SegmentID)
	assert.Equal(t, res.Hits[0].Loc.DocID, res.Hits[1].Loc.DocID)
}

func TestSearchEmptyAndMiss(t *testing.T) {
	ctx := context.Background()
	src := sealedSource(t, model.ProfileBalanced, genDocs(50, 2, "doc"), 1)
	exec := New(model.ProfileBalanced)

	for _, query := range []string{"", "   ", "!!! ???"} {
		res, err := exec.Search(ctx, []Source{src}, query, 10, 0)
		require.NoError(t, err, query)
		assert.Empty(t, res.Hits, query)
		assert.Equal(t, uint64(0), res.TotalMatches, query)
		assert.Equal(t, "balanced", res.Profile, query)
	}

	// Recognized tokens that match nothing.
	res, err := exec.Search(ctx, []Source{src}, "zzzdoesnotexist", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, uint64(0), res.TotalMatches)
}

func TestSearchLimitAndOffsetEdges(t *testing.T) {
	ctx := context.Background()
	src := sealedSource(t, model.ProfileSpeed, genDocs(80, 6, "doc"), 1)
	exec := New(model.ProfileSpeed)

	matches := uint64(len(bruteScores(t, src, []string{testWords[0]})))
	require.GreaterOrEqual(t, matches, uint64(16), "every fifth doc leads with the term")

	// limit 0 returns no hits but still counts matches.
	res, err := exec.Search(ctx, []Source{src}, testWords[0], 0, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, matches, res.TotalMatches)

	// Offset beyond the matches drains the page, not the count.
	res, err = exec.Search(ctx, []Source{src}, testWords[0], 10, 1000)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, matches, res.TotalMatches)

	// Limit beyond the matches returns everything.
	res, err = exec.Search(ctx, []Source{src}, testWords[0], 1000, 0)
	require.NoError(t, err)
	assert.Len(t, res.Hits, int(matches))
}

func TestSearchCancelled(t *testing.T) {
	src := sealedSource(t, model.ProfileBalanced, genDocs(50, 8, "doc"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(model.ProfileBalanced).Search(ctx, []Source{src}, testWords[0], 10, 0)
	require.ErrorIs(t, err, context.Canceled)
}

// wandCorpus builds a tie-free corpus: the (tf, tf, length) triple is unique
// per document, so all scores are distinct and rankings have one valid
// order.
func wandCorpus(n int) []model.Document {
	docs := make([]model.Document, n)
	for i := range docs {
		var sb strings.Builder
		for range 1 + i%4 {
			sb.WriteString("alpha ")
		}
		for range 1 + i%3 {
			sb.WriteString("beta ")
		}
		if i%5 == 0 {
			sb.WriteString("gamma ")
		}
		for range i {
			sb.WriteString("pad ")
		}
		docs[i] = model.Document{
			ExternalID: fmt.Sprintf("w-%04d", i),
			Text:       sb.String(),
		}
	}
	return docs
}

func TestWANDMatchesLinear(t *testing.T) {
	ctx := context.Background()
	for _, profile := range []model.Profile{model.ProfileBalanced, model.ProfileCompact} {
		t.Run(profile.String(), func(t *testing.T) {
			src := sealedSource(t, profile, wandCorpus(240), 1)

			open := func(terms []string) []postings.Iterator {
				var its []postings.Iterator
				for _, term := range terms {
					it, ok, err := src.Postings(ctx, term)
					require.NoError(t, err)
					if ok {
						its = append(its, it)
					}
				}
				return its
			}

			for _, tc := range []struct {
				name  string
				terms []string
				k     int
			}{
				{"single/k1", []string{"alpha"}, 1},
				{"single/k7", []string{"alpha"}, 7},
				{"pair/k3", []string{"alpha", "beta"}, 3},
				{"pair/k25", []string{"alpha", "beta"}, 25},
				{"pair/all", []string{"alpha", "beta"}, 500},
				{"rare/k10", []string{"gamma", "beta"}, 10},
				{"miss/k5", []string{"alpha", "nosuchterm"}, 5},
			} {
				t.Run(tc.name, func(t *testing.T) {
					linear := newHitHeap(tc.k)
					require.NoError(t, mergeLinear(ctx, open(tc.terms), 1, linear))
					wand := newHitHeap(tc.k)
					require.NoError(t, mergeWAND(ctx, open(tc.terms), 1, wand))

					lh, wh := linear.Sorted(), wand.Sorted()
					require.Equal(t, len(lh), len(wh))
					for i := range lh {
						assert.Equal(t, lh[i].loc, wh[i].loc, "rank %d", i)
						assert.InDelta(t, lh[i].score, wh[i].score, 1e-5, "rank %d", i)
					}
				})
			}
		})
	}
}

func TestWANDThreeTerms(t *testing.T) {
	// Three addends per document may round differently between merge
	// orders, so ranks only have to agree up to score equality.
	ctx := context.Background()
	src := sealedSource(t, model.ProfileBalanced, wandCorpus(180), 1)

	open := func() []postings.Iterator {
		var its []postings.Iterator
		for _, term := range []string{"alpha", "beta", "gamma"} {
			it, ok, err := src.Postings(ctx, term)
			require.NoError(t, err)
			require.True(t, ok)
			its = append(its, it)
		}
		return its
	}

	linear := newHitHeap(15)
	require.NoError(t, mergeLinear(ctx, open(), 1, linear))
	wand := newHitHeap(15)
	require.NoError(t, mergeWAND(ctx, open(), 1, wand))

	lh, wh := linear.Sorted(), wand.Sorted()
	require.Equal(t, len(lh), len(wh))
	for i := range lh {
		assert.InDelta(t, lh[i].score, wh[i].score, 1e-5, "rank %d", i)
	}
}

func TestProfilesAgree(t *testing.T) {
	ctx := context.Background()
	docs := genDocs(250, 21, "doc")
	query := testWords[0] + " " + testWords[6]
	terms := []string{testWords[0], testWords[6]}

	perLoc := make(map[model.Profile]map[model.Location]float32)
	var totals []uint64
	for _, profile := range model.Profiles() {
		src := sealedSource(t, profile, docs, 1)

		res, err := New(profile).Search(ctx, []Source{src}, query, 1000, 0)
		require.NoError(t, err)
		totals = append(totals, res.TotalMatches)

		// Each profile must agree with a full decode of its own postings.
		want := rankBrute(bruteScores(t, src, terms))
		require.Len(t, res.Hits, len(want))
		got := make(map[model.Location]float32, len(res.Hits))
		for i, h := range res.Hits {
			assert.Equal(t, want[i].loc, h.Loc, "%s rank %d", profile, i)
			got[h.Loc] = h.Score
		}
		perLoc[profile] = got
	}

	assert.Equal(t, totals[0], totals[1])
	assert.Equal(t, totals[1], totals[2])

	speed := perLoc[model.ProfileSpeed]
	for loc, s := range speed {
		assert.InDelta(t, s, perLoc[model.ProfileBalanced][loc], 1e-5, "%v", loc)
		// Compact differs only by uint16 weight quantization.
		assert.InDelta(t, s, perLoc[model.ProfileCompact][loc], 2e-2, "%v", loc)
	}
	assert.Equal(t, len(speed), len(perLoc[model.ProfileBalanced]))
	assert.Equal(t, len(speed), len(perLoc[model.ProfileCompact]))
}

func TestHitHeap(t *testing.T) {
	h := newHitHeap(3)
	assert.Equal(t, float32(-1), h.Threshold())

	loc := func(d uint32) model.Location {
		return model.Location{SegmentID: 1, DocID: model.DocID(d)}
	}
	for _, x := range []hit{
		{loc(0), 1.0}, {loc(1), 5.0}, {loc(2), 3.0},
		{loc(3), 4.0}, {loc(4), 0.5}, {loc(5), 5.0},
	} {
		h.Push(x)
	}
	assert.True(t, h.Full())
	assert.Equal(t, float32(4.0), h.Threshold())

	got := h.Sorted()
	require.Len(t, got, 3)
	// 5.0 at doc 1 beats the 5.0 tie at doc 5 by location.
	assert.Equal(t, []hit{{loc(1), 5.0}, {loc(5), 5.0}, {loc(3), 4.0}}, got)
	assert.Equal(t, 0, h.Len())
}

func TestHitHeapZeroCapacity(t *testing.T) {
	h := newHitHeap(0)
	h.Push(hit{model.Location{SegmentID: 1, DocID: 2}, 9.0})
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Sorted())
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"the", "quick", "fox"}, queryTerms("The quick THE Quick fox"))
	assert.Nil(t, queryTerms("!!! ??? ..."))
	assert.Nil(t, queryTerms(""))
}
