package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog(buildBanners(t, bannersYAML))
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "Quick", c.All()[0].Name())

	b, ok := c.Lookup("WISH")
	require.True(t, ok)
	assert.Equal(t, wishID, b.ID().String())

	b2, ok := c.Lookup(wishID)
	require.True(t, ok)
	assert.Same(t, b, b2)

	_, ok = c.Lookup(uuid.NewString())
	assert.False(t, ok)

	at, ok := c.At(altar)
	require.True(t, ok)
	assert.Same(t, b, at)
}
