// Package reembed embeds knowledge items that are missing a vector, or
// re-embeds every item after an embedding model change.
//
// Items are read from the canonical store in batches, embedded with retry and
// exponential backoff, normalized to unit length and written to the vector
// index. A successfully embedded item has its pending flag cleared and the
// embedding model recorded.
package reembed
