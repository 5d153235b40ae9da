package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_ShortTextIsOneChunk(t *testing.T) {
	chunks := Chunk("short note", ChunkSize, ChunkOverlap)

	assert.Equal(t, []string{"short note"}, chunks)
}

func TestChunk_OverlapAndTermination(t *testing.T) {
	text := strings.Repeat("a", 10) + strings.Repeat("b", 5)

	chunks := Chunk(text, 10, 3)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 10), chunks[0])
	assert.Equal(t, "aaa"+strings.Repeat("b", 5), chunks[1])
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestChunk_ExactMultipleDoesNotRepeatTail(t *testing.T) {
	chunks := Chunk(strings.Repeat("x", 20), 10, 0)

	assert.Len(t, chunks, 2)
}

func TestChunk_CountsRunes(t *testing.T) {
	chunks := Chunk("ćaoćaoćao", 3, 0)

	assert.Equal(t, []string{"ćao", "ćao", "ćao"}, chunks)
}

func TestChunk_Degenerate(t *testing.T) {
	assert.Empty(t, Chunk("", 10, 2))
	assert.Nil(t, Chunk("abc", 0, 0))
	// overlap at or above size would never advance, so it is ignored
	assert.Equal(t, []string{"ab", "c"}, Chunk("abc", 2, 5))
}
