// Package chunk splits long transcripts into overlapping, token-bounded chunks.
//
// A Tokenizer maps text to token spans that tile the text. The Chunker walks
// those spans, cutting each chunk at the token budget but snapping back to a
// paragraph or sentence boundary when one lies within the tolerance window.
// Consecutive chunks share exactly Overlap tokens, so dropping each chunk's
// leading overlap and concatenating reproduces the input.
package chunk
