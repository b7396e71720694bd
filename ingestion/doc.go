// Package ingestion turns transcripts into indexed knowledge items.
//
// A Pipeline processes one Source per session: the text is chunked, every
// chunk goes through the extraction adapter, candidates are merged by a
// per-session Deduplicator and the touched items are written through the
// index.Manager before the next chunk starts. Progress is checkpointed per
// chunk, so an interrupted run resumes after the last committed chunk and
// everything committed so far stays searchable.
//
// A session whose file hash is already in the session log is skipped unless
// the caller bypasses deduplication. ProcessBatch runs several sessions
// concurrently on a worker pool; index writes stay serialized by the manager.
package ingestion
