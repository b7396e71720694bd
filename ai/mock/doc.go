// Package mock provides test doubles for the ai service interfaces.
//
// The mocks run without any model server. Behavior is injected through
// function fields and call counts are recorded for assertions.
//
//	extractor := mock.NewMockExtractor()
//	extractor.ExtractItemsFunc = func(ctx context.Context, text string) ([]ai.ExtractedItem, error) {
//	    return []ai.ExtractedItem{{Category: "decisions", Text: "Use Postgres"}}, nil
//	}
//
// By default MockEmbedder returns a deterministic unit vector derived from an
// FNV hash of the text, and MockExtractor returns no items.
package mock
