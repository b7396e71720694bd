// Package extract adapts an ai.Extractor to the chunk pipeline.
//
// The Adapter calls the model once per chunk inside a bounded retry loop.
// Every failure is classified before the loop decides to try again, each
// attempt runs under its own timeout, and the raw items that come back are
// cleaned and turned into core.CandidateItem values tagged with their chunk.
package extract
