// Package testutil provides testing utilities for lexgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating synthetic corpora, computing exact
// reference rankings, and verifying ranking agreement.
//
// # Corpus Generation
//
//	rng := testutil.NewRNG(seed)
//	vocab := testutil.Vocabulary(100)
//	docs := rng.GenerateCorpus(500, vocab, 4, 32, 1.2)
//
// # Exact Search (Ground Truth)
//
//	want := testutil.ExactTopK(docs, "term007 term023", 10)
//
// # Agreement Verification
//
//	recall := testutil.ComputeRecall(want, res.Hits)
package testutil
