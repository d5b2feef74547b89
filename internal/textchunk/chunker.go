package textchunk

// Chunk is one bounded slice of the input text
type Chunk struct {
	Index int    // Position in the original text (0-based)
	Text  string // Raw text, at most the configured number of runes
}

// Split cuts text into consecutive chunks of at most maxLen runes.
// Lengths are counted in code points, not bytes, so a multi-byte
// character is never split across two chunks. Joining every chunk's Text
// in index order gives back the input exactly.
func Split(text string, maxLen int) []Chunk {
	if maxLen <= 0 {
		panic("textchunk: maxLen must be positive")
	}
	if text == "" {
		return nil
	}

	chunks := make([]Chunk, 0, len(text)/maxLen+1)
	start, runes := 0, 0
	for i := range text {
		if runes == maxLen {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: text[start:i]})
			start, runes = i, 0
		}
		runes++
	}
	chunks = append(chunks, Chunk{Index: len(chunks), Text: text[start:]})

	return chunks
}
