package chunk

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/minutes/core"
)

const (
	DefaultMaxTokens = 2000
	DefaultOverlap   = 50
)

// Config bounds chunk sizes in tokens.
type Config struct {
	MaxTokens int
	Overlap   int
	// Tolerance is how far before the budget a boundary may be snapped to.
	// Zero means MaxTokens/4.
	Tolerance int
}

// DefaultConfig returns the default chunk sizes.
func DefaultConfig() Config {
	return Config{MaxTokens: DefaultMaxTokens, Overlap: DefaultOverlap}
}

// Validate checks the sizes.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxTokens {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, c.Overlap, c.MaxTokens)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: negative tolerance", ErrInvalidConfig)
	}
	return nil
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithTokenizer replaces the default WordTokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) {
		c.tokenizer = t
	}
}

// Chunker splits text into overlapping chunks. It holds no per-call state and
// is safe for concurrent use if its Tokenizer is.
type Chunker struct {
	cfg       Config
	tokenizer Tokenizer
}

// New creates a Chunker.
func New(cfg Config, opts ...Option) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = cfg.MaxTokens / 4
	}
	c := &Chunker{cfg: cfg, tokenizer: WordTokenizer{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Split returns all chunks of text.
func (c *Chunker) Split(text string) []core.Chunk {
	return slices.Collect(c.Chunks(text))
}

// Chunks lazily yields the chunks of text in order. Each iteration starts
// over from the beginning of the text.
func (c *Chunker) Chunks(text string) iter.Seq[core.Chunk] {
	return func(yield func(core.Chunk) bool) {
		spans := alignRunes(text, c.tokenizer.Tokenize(text))
		n := len(spans)
		if n == 0 {
			return
		}

		start, seq := 0, 0
		for {
			end := n
			if hard := start + c.cfg.MaxTokens; hard < n {
				end = c.snap(text, spans, start, hard)
			}

			lo, hi := spans[start].Start, spans[end-1].End
			chunk := core.Chunk{
				SequenceIndex: seq,
				Text:          text[lo:hi],
				StartOffset:   lo,
				EndOffset:     hi,
				TokenCount:    end - start,
			}
			if !yield(chunk) || end == n {
				return
			}
			start = end - c.cfg.Overlap
			seq++
		}
	}
}

// snap picks the token index that ends a chunk starting at start. It looks
// for a paragraph break, then a sentence break, in the window
// [hard-Tolerance, hard], and falls back to hard. The window never reaches
// below start+Overlap+1 so every chunk advances.
func (c *Chunker) snap(text string, spans []Span, start, hard int) int {
	low := max(hard-c.cfg.Tolerance, start+c.cfg.Overlap+1)
	for _, isBoundary := range []func(string, int) bool{paragraphBreak, sentenceBreak} {
		for end := hard; end >= low; end-- {
			if isBoundary(text, spans[end].Start) {
				return end
			}
		}
	}
	return hard
}

// paragraphBreak reports whether the whitespace around byte offset b holds a
// blank line.
func paragraphBreak(text string, b int) bool {
	lo, hi := b, b
	for lo > 0 && isSpaceByte(text[lo-1]) {
		lo--
	}
	for hi < len(text) && isSpaceByte(text[hi]) {
		hi++
	}
	return strings.Count(text[lo:hi], "\n") >= 2
}

// sentenceBreak reports whether b sits in the whitespace after a
// terminating '.', '!' or '?'.
func sentenceBreak(text string, b int) bool {
	lo := b
	for lo > 0 && isSpaceByte(text[lo-1]) {
		lo--
	}
	hasSpace := lo < b || (b < len(text) && isSpaceByte(text[b]))
	return hasSpace && lo > 0 && strings.IndexByte(".!?", text[lo-1]) >= 0
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// Tier maps a file size range to a token budget.
type Tier struct {
	// Below is the exclusive upper bound of the file size in bytes.
	Below     int64
	MaxTokens int
}

// DefaultTiers grows the budget for larger transcripts, capped so a chunk
// still fits a 32K context window.
var DefaultTiers = []Tier{
	{Below: 1_000_000, MaxTokens: 2000},
	{Below: 10_000_000, MaxTokens: 3000},
	{Below: 50_000_000, MaxTokens: 4000},
	{Below: math.MaxInt64, MaxTokens: 4000},
}

// TierFor returns the budget for a file of the given size. Sizes past the
// last tier use the last budget.
func TierFor(tiers []Tier, size int64) int {
	if len(tiers) == 0 {
		return DefaultMaxTokens
	}
	for _, t := range tiers {
		if size < t.Below {
			return t.MaxTokens
		}
	}
	return tiers[len(tiers)-1].MaxTokens
}
