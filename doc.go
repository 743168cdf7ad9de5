// Package lexgo provides an embedded full-text search engine for Go.
//
// Lexgo indexes documents into immutable on-disk segments and answers
// ranked keyword queries with BM25 scoring. It is commit-oriented: writes
// accumulate in an in-memory builder that is searchable immediately, and
// Commit freezes the state into memory-mapped segment files plus an atomic
// manifest.
//
// # Quick Start
//
//	idx, err := lexgo.Create("./data", model.ProfileBalanced)
//	if err != nil {
//	    panic(err)
//	}
//	defer idx.Close()
//
//	ctx := context.Background()
//	docs := []model.Document{
//	    {ExternalID: "1", Text: "the quick brown fox"},
//	    {ExternalID: "2", Text: "the lazy dog"},
//	}
//	indexed, _ := idx.IngestBatch(ctx, docs, nil)
//	_ = idx.Commit(ctx)
//
//	res, _ := idx.Search(ctx, "quick fox", 10, 0)
//	for _, hit := range res.Hits {
//	    fmt.Printf("%s %.3f %s\n", hit.ExternalID, hit.Score, hit.Text)
//	}
//
// Reopen an existing index with Open; it fails with ErrNotFound when
// nothing was ever created at the path.
//
// # Profiles
//
// The profile picks the postings representation and is fixed at creation:
//
//   - ProfileSpeed: raw uncompressed postings, fastest scans.
//   - ProfileBalanced: delta varint doc ids in skippable blocks, float32
//     weights, Block-Max WAND search.
//   - ProfileCompact: Elias-Fano doc ids with quantized weights, smallest
//     footprint.
//
// All profiles rank identically; Compact scores differ only by weight
// quantization.
//
// # Ingestion and Durability
//
// One goroutine at a time may ingest; a directory LOCK file extends the
// single-writer rule across processes. Ingested documents are searchable
// immediately through the live builder. When the builder reaches the
// segment ceiling (WithMaxSegmentDocs) it seals into a durable segment in
// place, bounding memory. Sealed segments become crash-durable only at
// Commit, which writes them into the manifest atomically; segment files
// orphaned by a crash between seal and commit are swept on the next Create.
//
// Any number of goroutines may search concurrently with ingestion. Each
// search works on an atomic snapshot of the segment set, so it never
// observes a half-applied seal or commit.
package lexgo
