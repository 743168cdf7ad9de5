// Package model defines core types used throughout lexgo.
//
// # Identity Types
//
//   - SegmentID: Unique identifier for a segment (uint64)
//   - DocID: Segment-local document identifier (uint32)
//   - Location: Global document identity (SegmentID, DocID)
//
// # Data Types
//
//   - Document: External id plus raw text, the unit of ingestion
//   - Hit: Search result with external id, score and stored text
//   - SearchResult: Ranked hits plus match count and timing
//   - MemoryStats: Byte-level accounting of an open index
package model
