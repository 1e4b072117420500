package service

import (
	"math"
	"slices"
	"unicode/utf8"

	"docchat/internal/rag"
)

// ChunkStats summarises chunk lengths in runes.
type ChunkStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

func computeChunkStats(chunks []rag.Chunk) ChunkStats {
	if len(chunks) == 0 {
		return ChunkStats{}
	}

	sizes := make([]int, len(chunks))
	sum := 0
	for i, c := range chunks {
		sizes[i] = utf8.RuneCountInString(c.Text)
		sum += sizes[i]
	}
	slices.Sort(sizes)

	p95Index := int(math.Ceil(float64(len(sizes))*0.95)) - 1
	p95Index = max(0, min(p95Index, len(sizes)-1))

	mean := float64(sum) / float64(len(sizes))
	return ChunkStats{
		Min:  sizes[0],
		Max:  sizes[len(sizes)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sizes[p95Index],
	}
}
