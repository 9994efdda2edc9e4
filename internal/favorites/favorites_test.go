package favorites

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeIDs(t *testing.T) {
	assert.Equal(t, "a,b,c", EncodeIDs([]string{"a", "b", "c"}))
	assert.Equal(t, "a,c", EncodeIDs([]string{" a ", "", "c"}))
	assert.Equal(t, "", EncodeIDs(nil))
}

func TestDecodeIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, DecodeIDs("a,b,c"))
	assert.Equal(t, []string{"a", "c"}, DecodeIDs("a,,c, "))
	assert.Empty(t, DecodeIDs(""))
}

func TestRoundTrip(t *testing.T) {
	ids := []string{"doc-1", "doc-2"}
	assert.Equal(t, ids, DecodeIDs(EncodeIDs(ids)))
}
