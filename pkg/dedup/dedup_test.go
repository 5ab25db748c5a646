package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_InsertContains(t *testing.T) {
	s := NewSet()

	assert.False(t, s.Contains("A"))
	s.Insert("A")
	assert.True(t, s.Contains("A"))
	assert.Equal(t, 1, s.Len())
}

func TestSet_InsertIsIdempotent(t *testing.T) {
	s := NewSet()

	s.Insert("A")
	s.Insert("A")
	assert.Equal(t, 1, s.Len())
}

func TestSet_CaseSensitive(t *testing.T) {
	s := NewSet()

	s.Insert("sku")
	assert.False(t, s.Contains("SKU"))
	s.Insert("SKU")
	assert.Equal(t, 2, s.Len())
}

func TestSet_Clear(t *testing.T) {
	s := NewSet()

	s.Insert("A")
	s.Insert("B")
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains("A"))

	// Usable after clearing
	s.Insert("C")
	assert.True(t, s.Contains("C"))
}
