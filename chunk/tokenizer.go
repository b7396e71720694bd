package chunk

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Span is the byte range [Start, End) of one token.
type Span struct {
	Start int
	End   int
}

// Tokenizer splits text into token spans. The spans must be contiguous and
// cover the whole text: the first starts at 0, each starts where the previous
// ended, and the last ends at len(text). Spans that end inside a multi-byte
// rune are merged with the next one by the Chunker.
type Tokenizer interface {
	Tokenize(text string) []Span
}

// WordTokenizer makes one token per word together with the whitespace that
// follows it. Leading whitespace belongs to the first token.
type WordTokenizer struct{}

// Tokenize implements Tokenizer.
func (WordTokenizer) Tokenize(text string) []Span {
	var spans []Span
	start := 0
	// Leading whitespace
	i := skipWhile(text, 0, unicode.IsSpace)
	for i < len(text) {
		i = skipWhile(text, i, func(r rune) bool { return !unicode.IsSpace(r) })
		i = skipWhile(text, i, unicode.IsSpace)
		spans = append(spans, Span{Start: start, End: i})
		start = i
	}
	if start < len(text) {
		// Whitespace-only input
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

func skipWhile(text string, i int, pred func(rune) bool) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !pred(r) {
			break
		}
		i += size
	}
	return i
}

// TiktokenTokenizer counts BPE tokens with an OpenAI encoding such as
// cl100k_base. Encoding tables are fetched and cached by tiktoken-go on first use.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the named encoding.
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnknownEncoding, encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// NewTiktokenTokenizerFrom wraps an encoding that is already loaded.
func NewTiktokenTokenizerFrom(enc *tiktoken.Tiktoken) *TiktokenTokenizer {
	return &TiktokenTokenizer{enc: enc}
}

// Tokenize implements Tokenizer. Each token's byte length is recovered by
// decoding it on its own; ordinary encoding round-trips, so the spans tile.
// Byte-level tokens that split a rune are merged, so a multi-byte rune may
// count as one token.
func (t *TiktokenTokenizer) Tokenize(text string) []Span {
	ids := t.enc.EncodeOrdinary(text)
	spans := make([]Span, 0, len(ids))
	pos := 0
	for _, id := range ids {
		n := len(t.enc.Decode([]int{id}))
		spans = append(spans, Span{Start: pos, End: pos + n})
		pos += n
	}
	if len(spans) > 0 && pos != len(text) {
		spans[len(spans)-1].End = len(text)
	}
	return alignRunes(text, spans)
}

// alignRunes merges spans so that none ends inside a UTF-8 sequence.
func alignRunes(text string, spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		if n := len(out); n > 0 && !runeBoundary(text, out[n-1].End) {
			out[n-1].End = s.End
			continue
		}
		out = append(out, s)
	}
	return out
}

func runeBoundary(text string, i int) bool {
	return i <= 0 || i >= len(text) || utf8.RuneStart(text[i])
}

// NewTokenizer returns the tokenizer for a configuration name: "words" (or
// empty) selects WordTokenizer, anything else is taken as a tiktoken encoding.
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", "words", "word":
		return WordTokenizer{}, nil
	default:
		return NewTiktokenTokenizer(name)
	}
}
