package mock

import (
	"context"
	"sync"

	"github.com/poiesic/minutes/ai"
)

// MockExtractor is a test double for ai.Extractor.
type MockExtractor struct {
	// ExtractItemsFunc is called by ExtractItems if set.
	// If nil, no items are returned.
	ExtractItemsFunc func(ctx context.Context, text string) ([]ai.ExtractedItem, error)

	mu        sync.Mutex
	callCount int
	texts     []string
}

// NewMockExtractor creates a mock extractor that finds nothing.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// ExtractItems records the call and delegates to ExtractItemsFunc.
func (m *MockExtractor) ExtractItems(ctx context.Context, text string) ([]ai.ExtractedItem, error) {
	m.mu.Lock()
	m.callCount++
	m.texts = append(m.texts, text)
	fn := m.ExtractItemsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return []ai.ExtractedItem{}, nil
}

// CallCount returns the number of times ExtractItems was called.
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Texts returns the inputs seen so far, in call order.
func (m *MockExtractor) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears the call history and custom function.
func (m *MockExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.texts = nil
	m.ExtractItemsFunc = nil
}
