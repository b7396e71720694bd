package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/minutes/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func tokenTexts(text string, c core.Chunk) []string {
	var out []string
	for _, s := range (WordTokenizer{}).Tokenize(text[c.StartOffset:c.EndOffset]) {
		out = append(out, text[c.StartOffset+s.Start:c.StartOffset+s.End])
	}
	return out
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero overlap", Config{MaxTokens: 10}, false},
		{"zero max", Config{MaxTokens: 0}, true},
		{"negative max", Config{MaxTokens: -1}, true},
		{"overlap equals max", Config{MaxTokens: 10, Overlap: 10}, true},
		{"negative overlap", Config{MaxTokens: 10, Overlap: -1}, true},
		{"negative tolerance", Config{MaxTokens: 10, Tolerance: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := New(Config{MaxTokens: 5, Overlap: 5})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	c, err := New(Config{MaxTokens: 100, Overlap: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, c.Config().Tolerance)
}

func TestChunker_EmptyAndShort(t *testing.T) {
	c, err := New(Config{MaxTokens: 10, Overlap: 3})
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))

	text := "We decided to use Postgres."
	chunks := c.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, core.Chunk{SequenceIndex: 0, Text: text, StartOffset: 0, EndOffset: len(text), TokenCount: 5}, chunks[0])

	exact := words("w", 10)
	chunks = c.Split(exact)
	require.Len(t, chunks, 1)
	assert.Equal(t, 10, chunks[0].TokenCount)
}

func TestChunker_OverlapIsExact(t *testing.T) {
	text := words("w", 97)
	c, err := New(Config{MaxTokens: 10, Overlap: 3})
	require.NoError(t, err)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.SequenceIndex)
		assert.LessOrEqual(t, ch.TokenCount, 10)
		assert.Equal(t, text[ch.StartOffset:ch.EndOffset], ch.Text)
		if i == 0 {
			continue
		}
		prev := tokenTexts(text, chunks[i-1])
		cur := tokenTexts(text, ch)
		assert.Equal(t, prev[len(prev)-3:], cur[:3], "chunk %d", i)
	}

	// Dropping each chunk's overlap reconstructs the input
	var b strings.Builder
	b.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		b.WriteString(text[chunks[i-1].EndOffset:chunks[i].EndOffset])
	}
	assert.Equal(t, text, b.String())
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
}

// byteTokenizer makes one token per byte.
type byteTokenizer struct{}

func (byteTokenizer) Tokenize(text string) []Span {
	spans := make([]Span, len(text))
	for i := range spans {
		spans[i] = Span{Start: i, End: i + 1}
	}
	return spans
}

func TestChunker_MultiByteRunes(t *testing.T) {
	text := strings.Repeat("会议决定使用数据库🙂", 3)

	tests := []struct {
		name      string
		tokenizer Tokenizer
	}{
		{"byte tokens", byteTokenizer{}},
		{"byte-level bpe", NewTiktokenTokenizerFrom(byteLevelEncoding(t))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{MaxTokens: 7, Overlap: 2}, WithTokenizer(tt.tokenizer))
			require.NoError(t, err)

			chunks := c.Split(text)
			require.Len(t, chunks, 6)
			for i, ch := range chunks {
				assert.True(t, utf8.ValidString(ch.Text), "chunk %d: %q", i, ch.Text)
				assert.Equal(t, text[ch.StartOffset:ch.EndOffset], ch.Text)
				assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 7)
				if i > 0 {
					assert.Equal(t, []rune(chunks[i-1].Text)[5:], []rune(ch.Text)[:2], "chunk %d overlap", i)
				}
			}
			assert.Equal(t, 0, chunks[0].StartOffset)
			assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
		})
	}
}

func TestChunker_HardSplitWithoutBoundaries(t *testing.T) {
	c, err := New(Config{MaxTokens: 10})
	require.NoError(t, err)

	chunks := c.Split(words("w", 25))
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{10, 10, 5}, []int{chunks[0].TokenCount, chunks[1].TokenCount, chunks[2].TokenCount})
}

func TestChunker_SnapsToBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		cfg       Config
		wantFirst string
	}{
		{
			name:      "paragraph",
			text:      words("a", 7) + " a7.\n\n" + words("b", 12),
			cfg:       Config{MaxTokens: 10, Overlap: 2},
			wantFirst: words("a", 7) + " a7.\n\n",
		},
		{
			name:      "sentence",
			text:      words("s", 8) + " end. " + words("t", 5),
			cfg:       Config{MaxTokens: 10},
			wantFirst: words("s", 8) + " end. ",
		},
		{
			name:      "paragraph preferred over nearer sentence",
			text:      words("p", 7) + " x.\n\ny1 y2. " + words("z", 5),
			cfg:       Config{MaxTokens: 10, Tolerance: 3},
			wantFirst: words("p", 7) + " x.\n\n",
		},
		{
			name:      "boundary outside tolerance ignored",
			text:      "one. " + words("w", 20),
			cfg:       Config{MaxTokens: 10},
			wantFirst: "one. " + words("w", 9) + " ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			require.NoError(t, err)
			chunks := c.Split(tt.text)
			require.Greater(t, len(chunks), 1)
			assert.Equal(t, tt.wantFirst, chunks[0].Text)
		})
	}
}

func TestChunker_IteratorRestartsAndStops(t *testing.T) {
	text := words("w", 40)
	c, err := New(Config{MaxTokens: 10, Overlap: 2})
	require.NoError(t, err)

	seq := c.Chunks(text)
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, first, second)

	taken := 0
	for ch := range seq {
		taken++
		if ch.SequenceIndex == 1 {
			break
		}
	}
	assert.Equal(t, 2, taken)
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		size int64
		want int
	}{
		{0, 2000},
		{999_999, 2000},
		{1_000_000, 3000},
		{9_999_999, 3000},
		{10_000_000, 4000},
		{50_000_000, 4000},
		{1 << 40, 4000},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.size), func(t *testing.T) {
			assert.Equal(t, tt.want, TierFor(DefaultTiers, tt.size))
		})
	}
	assert.Equal(t, DefaultMaxTokens, TierFor(nil, 10))
	assert.Equal(t, 7, TierFor([]Tier{{Below: 5, MaxTokens: 3}, {Below: 10, MaxTokens: 7}}, 50))
}
