package summarizer

import "fmt"

// Chunk is one window over the source text. Index is stable across a
// chunking run and drives the ordering of the map phase results.
type Chunk struct {
	Index int    `json:"index"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// ChunkByChars splits text into consecutive windows of size characters,
// each overlapping the previous one by overlap characters. The step
// between window starts is size-overlap, so coverage is gap-free and
// deterministic. Windows are measured in runes so a boundary never
// splits a multi-byte character; Start and End are rune offsets. Empty
// text yields an empty slice.
func ChunkByChars(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", size, overlap)
	}
	if text == "" {
		return []Chunk{}, nil
	}

	runes := []rune(text)
	step := size - overlap
	var chunks []Chunk
	for start := 0; ; start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end >= len(runes) {
			break
		}
	}
	return chunks, nil
}
