package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"docchat/internal/rag"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   bool
	}{
		{"defaults", DefaultChunkSize, DefaultOverlap, false},
		{"no overlap", 10, 0, false},
		{"zero size", 0, 0, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals size", 10, 10, true},
		{"overlap exceeds size", 10, 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.chunkSize, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var vErr *rag.ValidationError
				if !errors.As(err, &vErr) {
					t.Errorf("New() error = %T, want *rag.ValidationError", err)
				}
				return
			}
			if s.ChunkSize() != tt.chunkSize || s.Overlap() != tt.overlap {
				t.Errorf("New() = (%d, %d), want (%d, %d)", s.ChunkSize(), s.Overlap(), tt.chunkSize, tt.overlap)
			}
		})
	}
}

// reconstruct rebuilds the source text from chunks by dropping the overlap prefix.
func reconstruct(chunks []rag.Chunk, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Text)
			continue
		}
		b.WriteString(string([]rune(c.Text)[overlap:]))
	}
	return b.String()
}

func TestSplitter_Split(t *testing.T) {
	long := strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 40)
	paragraphs := strings.Repeat("First paragraph with a few words.\n\nSecond one follows here.\nAnd a line.\n\n", 20)

	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		check     func(t *testing.T, chunks []rag.Chunk)
	}{
		{
			name:      "empty text",
			text:      "",
			chunkSize: 20,
			overlap:   5,
			check: func(t *testing.T, chunks []rag.Chunk) {
				if chunks != nil {
					t.Errorf("Split() = %v, want nil", chunks)
				}
			},
		},
		{
			name:      "whitespace only",
			text:      " \n\t\n ",
			chunkSize: 20,
			overlap:   5,
			check: func(t *testing.T, chunks []rag.Chunk) {
				if len(chunks) != 0 {
					t.Errorf("Split() returned %d chunks, want 0", len(chunks))
				}
			},
		},
		{
			name:      "shorter than chunk size",
			text:      "short text",
			chunkSize: 20,
			overlap:   5,
			check: func(t *testing.T, chunks []rag.Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("Split() returned %d chunks, want 1", len(chunks))
				}
				if chunks[0].Text != "short text" || chunks[0].Offset != 0 || chunks[0].Index != 0 {
					t.Errorf("Split()[0] = %+v", chunks[0])
				}
			},
		},
		{
			name:      "sky and grass",
			text:      "The sky is blue. Grass is green.",
			chunkSize: 20,
			overlap:   5,
			check: func(t *testing.T, chunks []rag.Chunk) {
				if len(chunks) < 2 {
					t.Fatalf("Split() returned %d chunks, want at least 2", len(chunks))
				}
				if chunks[0].Text != "The sky is blue. " {
					t.Errorf("Split()[0].Text = %q, want %q", chunks[0].Text, "The sky is blue. ")
				}
				if chunks[1].Offset != 12 {
					t.Errorf("Split()[1].Offset = %d, want 12", chunks[1].Offset)
				}
			},
		},
		{
			name:      "hard cut without separators",
			text:      strings.Repeat("x", 25),
			chunkSize: 10,
			overlap:   2,
			check: func(t *testing.T, chunks []rag.Chunk) {
				wantOffsets := []int{0, 8, 16}
				if len(chunks) != len(wantOffsets) {
					t.Fatalf("Split() returned %d chunks, want %d", len(chunks), len(wantOffsets))
				}
				for i, c := range chunks {
					if c.Offset != wantOffsets[i] {
						t.Errorf("chunk %d offset = %d, want %d", i, c.Offset, wantOffsets[i])
					}
				}
			},
		},
		{
			name:      "prefers paragraph breaks",
			text:      "aaaa bbbb\n\ncccc dddd eeee",
			chunkSize: 16,
			overlap:   0,
			check: func(t *testing.T, chunks []rag.Chunk) {
				if chunks[0].Text != "aaaa bbbb\n\n" {
					t.Errorf("Split()[0].Text = %q, want %q", chunks[0].Text, "aaaa bbbb\n\n")
				}
			},
		},
		{
			name:      "multibyte runes",
			text:      strings.Repeat("héllo wörld ", 10),
			chunkSize: 15,
			overlap:   3,
			check: func(t *testing.T, chunks []rag.Chunk) {
				for i, c := range chunks {
					if !utf8.ValidString(c.Text) {
						t.Errorf("chunk %d is not valid UTF-8", i)
					}
				}
			},
		},
		{
			name:      "long prose",
			text:      long,
			chunkSize: DefaultChunkSize,
			overlap:   DefaultOverlap,
		},
		{
			name:      "paragraphs",
			text:      paragraphs,
			chunkSize: 50,
			overlap:   10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.chunkSize, tt.overlap)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			chunks := s.Split(tt.text)

			if len(chunks) > 0 {
				if got := reconstruct(chunks, tt.overlap); got != tt.text {
					t.Errorf("reconstructed text differs from input\n got: %q\nwant: %q", got, tt.text)
				}
			}
			runes := []rune(tt.text)
			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("chunk %d Index = %d", i, c.Index)
				}
				n := utf8.RuneCountInString(c.Text)
				if n > tt.chunkSize {
					t.Errorf("chunk %d has %d runes, want <= %d", i, n, tt.chunkSize)
				}
				if string(runes[c.Offset:c.Offset+n]) != c.Text {
					t.Errorf("chunk %d text does not match source at offset %d", i, c.Offset)
				}
				if i > 0 {
					prev := chunks[i-1]
					prevEnd := prev.Offset + utf8.RuneCountInString(prev.Text)
					if overlap := prevEnd - c.Offset; overlap != tt.overlap {
						t.Errorf("overlap between chunks %d and %d = %d, want %d", i-1, i, overlap, tt.overlap)
					}
				}
			}

			if tt.check != nil {
				tt.check(t, chunks)
			}
		})
	}
}
