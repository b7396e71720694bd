package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Knowledge items derive it from their content; session records use a sequence.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID as 16 lowercase hex digits.
// This is the external id used by the keyword and vector indexes.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// ParseID parses the hex form produced by ID.String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(v), nil
}

// ItemID computes the stable identity of a knowledge item from its project,
// category and normalized text.
func ItemID(project string, category Category, normalized string) ID {
	return IDFromContent(project + "\x00" + category.String() + "\x00" + normalized)
}

// Category classifies an extracted knowledge item.
type Category int

const (
	// CategoryDecision is something the participants agreed to do or not do.
	CategoryDecision Category = iota + 1
	// CategoryIdea is a proposal, problem statement or opportunity.
	CategoryIdea
	// CategoryQuestion is an open question raised in the session.
	CategoryQuestion
	// CategoryActionItem is a task with an optional owner and deadline.
	CategoryActionItem
	// CategoryConcept is a domain concept that was explained.
	CategoryConcept
	// CategoryTerm is a piece of project terminology.
	CategoryTerm
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryDecision,
	CategoryIdea,
	CategoryQuestion,
	CategoryActionItem,
	CategoryConcept,
	CategoryTerm,
}

var categoryNames = map[Category]string{
	CategoryDecision:   "decision",
	CategoryIdea:       "idea",
	CategoryQuestion:   "question",
	CategoryActionItem: "action_item",
	CategoryConcept:    "concept",
	CategoryTerm:       "term",
}

// String returns the canonical lowercase name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// ParseCategory maps a category name to a Category.
// Both singular names ("action_item") and the plural keys used in
// extraction responses ("action_items") are accepted, case-insensitively.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	for c, n := range categoryNames {
		if name == n || name == n+"s" {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Chunk is a bounded, overlapping slice of normalized transcript text.
// Offsets are byte offsets into the source text; EndOffset is exclusive.
type Chunk struct {
	SequenceIndex int
	Text          string
	StartOffset   int
	EndOffset     int
	TokenCount    int
}

// CandidateItem is an unverified extraction result from a single chunk.
// It is never persisted.
type CandidateItem struct {
	Category    Category
	Text        string
	Metadata    map[string]string
	SourceChunk int
}

// KnowledgeItem is a canonical, deduplicated item.
// Id and Category never change once the item exists. Text may be replaced
// by a longer variant while merging duplicates.
type KnowledgeItem struct {
	Id              ID
	Category        Category
	Text            string
	Metadata        map[string]string
	OccurrenceCount int
	FirstSeenChunk  int
	SessionID       string
	Project         string
	VectorPending   bool   // Present in the keyword index but not yet embedded
	EmbeddingModel  string // Model that produced the stored vector, empty while pending
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SessionRecord is one entry of the append-only session log.
type SessionRecord struct {
	Seq          uint64
	SessionID    string
	Project      string
	FileHash     string
	ProcessedAt  time.Time
	ItemCount    int
	DroppedCount int
	FailedChunks int
}

// ChunkCheckpoint records the last chunk of a session whose items were committed.
type ChunkCheckpoint struct {
	SessionID string
	FileHash  string
	LastChunk int
	UpdatedAt time.Time
}

// SearchMode selects which indexes a query runs against.
type SearchMode int

const (
	// SearchModeHybrid fuses keyword and vector rankings.
	SearchModeHybrid SearchMode = iota
	// SearchModeKeyword uses only the keyword index.
	SearchModeKeyword
	// SearchModeVector uses only the vector index.
	SearchModeVector
)

// String returns the lowercase mode name.
func (m SearchMode) String() string {
	switch m {
	case SearchModeKeyword:
		return "keyword"
	case SearchModeVector:
		return "vector"
	case SearchModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseSearchMode maps a mode name to a SearchMode.
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keyword", "fts", "text":
		return SearchModeKeyword, nil
	case "vector", "semantic":
		return SearchModeVector, nil
	case "hybrid", "":
		return SearchModeHybrid, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSearchMode, s)
}

// SearchResult is a knowledge item with its relevance score.
// KeywordRank and VectorRank are 1-based positions in the individual
// rankings, or 0 when the item did not appear in that ranking.
type SearchResult struct {
	Item        *KnowledgeItem
	Score       float64
	KeywordRank int
	VectorRank  int
}
