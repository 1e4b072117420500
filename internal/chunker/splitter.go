package chunker

import (
	"strings"

	"docchat/internal/rag"
)

const (
	// DefaultChunkSize is the maximum number of runes per chunk.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of runes shared by consecutive chunks.
	DefaultOverlap = 200
)

// separators are tried in order: paragraph break, line break, word break.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(" "),
}

// Splitter splits text into overlapping chunks of bounded size.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New creates a Splitter. overlap must be smaller than chunkSize.
func New(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, &rag.ValidationError{Field: "chunk_size", Message: "must be greater than 0"}
	}
	if overlap < 0 {
		return nil, &rag.ValidationError{Field: "chunk_overlap", Message: "cannot be negative"}
	}
	if overlap >= chunkSize {
		return nil, &rag.ValidationError{Field: "chunk_overlap", Message: "must be smaller than chunk_size"}
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the configured maximum chunk length in runes.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split splits text into chunks. Each chunk is an exact substring of text, so
// text equals the first chunk followed by every later chunk minus its first
// Overlap() runes. Blank text yields no chunks.
func (s *Splitter) Split(text string) []rag.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []rag.Chunk
	start := 0
	for {
		end := start + s.chunkSize
		if end >= n {
			chunks = append(chunks, rag.Chunk{
				Index:  len(chunks),
				Text:   string(runes[start:]),
				Offset: start,
			})
			return chunks
		}

		cut := s.breakPoint(runes, start, end)
		chunks = append(chunks, rag.Chunk{
			Index:  len(chunks),
			Text:   string(runes[start:cut]),
			Offset: start,
		})
		start = cut - s.overlap
	}
}

// breakPoint returns the exclusive end of the chunk starting at start. The cut
// lands right after the latest separator inside runes[start:end] and must leave
// more than overlap runes in the chunk, otherwise the next start would not advance.
func (s *Splitter) breakPoint(runes []rune, start, end int) int {
	minCut := start + s.overlap + 1
	for _, sep := range separators {
		for i := end - len(sep); i >= start; i-- {
			cut := i + len(sep)
			if cut < minCut {
				break
			}
			if hasPrefixAt(runes, i, sep) {
				return cut
			}
		}
	}
	return end
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	if i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
