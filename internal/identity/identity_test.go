package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageDocumentID_Deterministic(t *testing.T) {
	a := MessageDocumentID("C123456", "1700000000.000100")
	b := MessageDocumentID("C123456", "1700000000.000100")

	assert.Equal(t, a, b)
}

func TestMessageDocumentID_UUIDShaped(t *testing.T) {
	id := MessageDocumentID("C123456", "1700000000.000100")

	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestMessageDocumentID_DistinctInputs(t *testing.T) {
	assert.NotEqual(t,
		MessageDocumentID("C123456", "1700000000.000100"),
		MessageDocumentID("C123456", "1700000000.000200"))
	assert.NotEqual(t,
		MessageDocumentID("C123456", "1700000000.000100"),
		MessageDocumentID("C654321", "1700000000.000100"))
}

func TestContentHash(t *testing.T) {
	// SHA-1 of "hello".
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", ContentHash("hello"))
	assert.Equal(t, ContentHash("hello"), ContentHash("hello"))
	assert.NotEqual(t, ContentHash("hello"), ContentHash("hello "))
}

func TestChunkID_SingleChunkKeepsParentID(t *testing.T) {
	assert.Equal(t, "page-1", ChunkID("page-1", 0, 1))
	assert.Equal(t, "page-1", ChunkID("page-1", 0, 0))
}

func TestChunkID_MultiChunk(t *testing.T) {
	assert.Equal(t, "page-1#0", ChunkID("page-1", 0, 3))
	assert.Equal(t, "page-1#2", ChunkID("page-1", 2, 3))
}
