package memory

// Ingest chunking defaults.
const (
	ChunkSize    = 1500
	ChunkOverlap = 200
)

// Chunk splits text into windows of at most size runes, each starting overlap runes
// before the previous one ended. The final window always ends at the end of text.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
