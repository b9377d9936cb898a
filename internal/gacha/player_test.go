package gacha

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceClampedAtZero(t *testing.T) {
	b := mkBanner(t, "Wish", wishTiers())
	p := NewPlayerState(uuid.New())

	p.SetPulls(b, 5)
	assert.Equal(t, 0, p.AddPulls(b, -8))
	assert.Equal(t, 0, p.Pulls(b))

	p.SetPulls(b, -4)
	assert.Equal(t, 0, p.Pulls(b))
	assert.Equal(t, 3, p.AddPulls(b, 3))
}

func TestGuaranteeIgnoredOutsideFiftyFifty(t *testing.T) {
	plain := mkBanner(t, "Plain", wishTiers())
	limited := mkBanner(t, "Limited", wishTiers(), withFiftyFifty("crown"))
	p := NewPlayerState(uuid.New())

	p.SetGuaranteed(plain, true)
	p.SetGuaranteed(limited, true)
	assert.False(t, p.Guaranteed(plain))
	assert.True(t, p.Guaranteed(limited))

	snap := p.Snapshot()
	assert.NotContains(t, snap.Banners, plain.ID())
	require.Contains(t, snap.Banners, limited.ID())
	require.NotNil(t, snap.Banners[limited.ID()].Guaranteed)
	assert.True(t, *snap.Banners[limited.ID()].Guaranteed)
}

func TestSnapshotIsACopy(t *testing.T) {
	b := mkBanner(t, "Wish", wishTiers())
	p := NewPlayerState(uuid.New())
	top := mustTier(t, b, "FIVE-STAR")
	p.SetPulls(b, 2)
	p.SetPity(b, top, 4)

	snap := p.Snapshot()
	snap.Banners[b.ID()].Pity["five-star"] = 99
	assert.Equal(t, 4, p.Pity(b, top))

	bp := snap.Banners[b.ID()]
	assert.Equal(t, 2, bp.Pulls)
	assert.Nil(t, bp.Guaranteed)
}

func TestPityKeyIsCaseInsensitive(t *testing.T) {
	b := mkBanner(t, "Wish", wishTiers())
	p := NewPlayerState(uuid.New())
	upper := mustTier(t, b, "Five-Star")
	p.SetPity(b, upper, 3)
	assert.Equal(t, 3, p.Snapshot().Banners[b.ID()].Pity["five-star"])
}
