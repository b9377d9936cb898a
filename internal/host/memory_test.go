package host

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

func TestRecipientOnlyWhileOnline(t *testing.T) {
	m := NewMemory(2, nil)
	id := uuid.New()
	_, ok := m.Recipient(id)
	assert.False(t, ok)

	m.Connect(id, "Steve")
	r, ok := m.Recipient(id)
	require.True(t, ok)
	assert.Equal(t, "Steve", r.Name())
	assert.Equal(t, []uuid.UUID{id}, m.Online())

	m.Disconnect(id)
	_, ok = m.Recipient(id)
	assert.False(t, ok)
	assert.Empty(t, m.Online())
}

func TestGrantOverflowDrops(t *testing.T) {
	m := NewMemory(1, nil)
	id := uuid.New()
	p := m.Connect(id, "Alex")
	rw := gacha.NewReward("gems", []gacha.Item{
		{Material: "DIAMOND", Amount: 3},
		{Material: "EMERALD", Amount: 1},
	}, []string{"give %player% xp 10"}, gacha.Item{})

	require.NoError(t, rw.Grant(p, m))
	require.Len(t, p.Inventory(), 1)
	assert.Equal(t, "DIAMOND", p.Inventory()[0].Material)
	require.Len(t, p.Dropped(), 1)
	assert.Equal(t, "EMERALD", p.Dropped()[0].Material)
	assert.Equal(t, []string{"give Alex xp 10"}, m.Commands())
}

func TestReconnectKeepsInventory(t *testing.T) {
	m := NewMemory(0, nil)
	id := uuid.New()
	p := m.Connect(id, "")
	assert.Equal(t, id.String(), p.Name())
	p.AddItem(gacha.Item{Material: "STONE", Amount: 1})
	m.Disconnect(id)
	p2 := m.Connect(id, "Notch")
	assert.Same(t, p, p2)
	assert.Equal(t, "Notch", p2.Name())
	assert.Len(t, p2.Inventory(), 1)
}
