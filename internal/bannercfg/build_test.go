package bannercfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

const wishYAML = `
Crates:
  Wish:
    UUID: 5f0c8a4e-3a71-4a43-9a57-1f1f4a2b9c10
    Animation-Type: physical
    Is-Limited-5050-Banner: true
    Featured-5Star-Reward-Names: [crown]
    Reward-Tiers:
      common:
        Chance: 90
        Rewards:
          stick:
            Chance: 50
            Items: ["STICK 4"]
          stone:
            Chance: 50
            Commands: ["give %player% stone 1"]
      rare:
        Chance: 9
        Pity: true
        Pity-Limit: 5
        Color: {R: 0, G: 128}
        Rewards:
          emerald:
            Chance: 100
      five-star:
        Chance: 1
        Pity: true
        Pity-Limit: 10
        Display-Item: "NETHER_STAR name:&6Five_Star"
        Rewards:
          crown: {Chance: 50}
          sword: {Chance: 50}
    Locations:
      - world 10 64 -3
      - world ten 64 -3
`

func build(t *testing.T, src string) ([]*gacha.Banner, Diagnostics) {
	t.Helper()
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	return Build(doc)
}

func messages(ds Diagnostics) string {
	var sb strings.Builder
	for _, d := range ds {
		sb.WriteString(d.String() + "\n")
	}
	return sb.String()
}

func TestBuildWish(t *testing.T) {
	banners, ds := build(t, wishYAML)
	require.Len(t, banners, 1)
	b := banners[0]

	assert.Equal(t, "Wish", b.Name())
	assert.Equal(t, "5f0c8a4e-3a71-4a43-9a57-1f1f4a2b9c10", b.ID().String())
	assert.Equal(t, gacha.AnimationPhysical, b.Animation())
	assert.True(t, b.FiftyFifty().Enabled)
	assert.Equal(t, "five-star", b.FiftyFifty().TopTier)
	assert.False(t, b.FeaturedWeapon().Enabled)
	assert.InDelta(t, 1.0, b.ChanceSum(), 1e-9)

	rare, ok := b.Tier("RARE")
	require.True(t, ok)
	assert.True(t, rare.PityEnabled())
	assert.Equal(t, 5, rare.PityLimit())
	assert.Equal(t, gacha.Color{R: 0, G: 128, B: 255}, rare.Color())

	top, ok := b.Tier("five-star")
	require.True(t, ok)
	assert.Equal(t, "NETHER_STAR", top.Display().Material)

	common, _ := b.Tier("common")
	stick, ok := common.Reward("stick")
	require.True(t, ok)
	assert.Equal(t, 4, stick.Items()[0].Amount)
	assert.Equal(t, gacha.White, common.Color())

	assert.Equal(t, []gacha.Location{{World: "world", X: 10, Y: 64, Z: -3}}, b.Locations())
	severe := ds.Severe()
	require.Len(t, severe, 1, messages(ds))
	assert.Equal(t, "Locations.1", severe[0].Path)
}

func TestBuildDefaultsAndWarnings(t *testing.T) {
	banners, ds := build(t, `
Crates:
  Plain:
    Animation-Type: sparkles
    Reward-Tiers:
      only:
        Chance: 80
        Pity: true
        Rewards:
          thing: {}
      hollow:
`)
	require.Len(t, banners, 1)
	b := banners[0]
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", b.ID().String())
	assert.Equal(t, gacha.AnimationInterface, b.Animation())

	only, ok := b.Tier("only")
	require.True(t, ok)
	assert.False(t, only.PityEnabled())
	thing, ok := only.Reward("thing")
	require.True(t, ok)
	assert.InDelta(t, 0.10, only.Chance(thing), 1e-9)
	assert.Equal(t, "AMETHYST_SHARD", thing.Display().Material)

	text := messages(ds)
	assert.Contains(t, text, "no UUID")
	assert.Contains(t, text, "invalid animation type")
	assert.Contains(t, text, "do not sum to 100% (sum: 80.00%)")
	assert.Contains(t, text, "pity enabled without a positive limit")
	assert.Contains(t, text, "missing configuration section")
	assert.Empty(t, ds.Severe())
}

func TestBuildRangeViolationsAreWarnings(t *testing.T) {
	_, ds := build(t, `
Crates:
  Odd:
    UUID: not-a-uuid
    Animation-Type: NONE
    Reward-Tiers:
      big:
        Chance: 150
        Pity-Limit: -2
        Color: {R: 300}
        Rewards:
          a: {Chance: -5}
`)
	text := messages(ds)
	assert.Contains(t, text, "invalid UUID")
	assert.Contains(t, text, "Reward-Tiers.big.Chance: must be less than or equal to 100")
	assert.Contains(t, text, "Reward-Tiers.big.Pity-Limit: must be greater than or equal to 0")
	assert.Contains(t, text, "Reward-Tiers.big.Color.R: must be less than or equal to 255")
	assert.Contains(t, text, "Reward-Tiers.big.Rewards.a.Chance: must be greater than or equal to 0")
}

func TestBuildDuplicateNamesSkipped(t *testing.T) {
	banners, ds := build(t, `
Crates:
  wish:
    Animation-Type: NONE
  Wish:
    Animation-Type: NONE
`)
	require.Len(t, banners, 1)
	assert.Equal(t, "Wish", banners[0].Name())
	require.Len(t, ds.Severe(), 1)
	assert.Equal(t, "wish", ds.Severe()[0].Banner)
}

func TestBuildMechanicWarnings(t *testing.T) {
	_, ds := build(t, `
Crates:
  Both:
    UUID: 0b6c3f9e-2f0e-4c55-8a44-3c8c3b3e7d11
    Animation-Type: NONE
    Is-Limited-5050-Banner: true
    Featured-5Star-Reward-Names: [ghost]
    Is-Guaranteed-Featured-Weapon-Banner: true
    Featured-Weapon-Names: [blade]
    Reward-Tiers:
      five-star:
        Chance: 100
        Rewards:
          blade: {Chance: 100}
`)
	text := messages(ds)
	assert.Contains(t, text, `featured reward "ghost" is not in tier "five-star"`)
	assert.Contains(t, text, "featured weapon rule wins")
	assert.NotContains(t, text, `"blade" is not`)
}

func TestBuildEmpty(t *testing.T) {
	banners, ds := Build(Document{})
	assert.Empty(t, banners)
	assert.Empty(t, ds)
}
