package gacha

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// scriptedRNG replays fixed values; once a script runs out the last value
// repeats.
type scriptedRNG struct {
	floats []float64
	ints   []int
	bools  []bool
}

func (s *scriptedRNG) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	if len(s.floats) > 1 {
		s.floats = s.floats[1:]
	}
	return v
}

func (s *scriptedRNG) IntN(n int) int {
	if len(s.ints) == 0 || n <= 0 {
		return 0
	}
	v := s.ints[0]
	if len(s.ints) > 1 {
		s.ints = s.ints[1:]
	}
	return v % n
}

func (s *scriptedRNG) Bool() bool {
	if len(s.bools) == 0 {
		return false
	}
	v := s.bools[0]
	if len(s.bools) > 1 {
		s.bools = s.bools[1:]
	}
	return v
}

type tierDef struct {
	name    string
	chance  float64
	pity    int // 0 disables pity
	rewards []string
}

func mkTier(t *testing.T, d tierDef) *Tier {
	t.Helper()
	var rcs []RewardChance
	for _, name := range d.rewards {
		rcs = append(rcs, RewardChance{
			Reward: NewReward(name, []Item{{Material: "DIAMOND", Amount: 1, CustomModelData: -1}}, []string{"say %player% got " + name}, Item{}),
			Chance: 1 / float64(len(d.rewards)),
		})
	}
	tier, err := NewTier(TierSpec{Name: d.name, Rewards: rcs, PityEnabled: d.pity > 0, PityLimit: d.pity})
	require.NoError(t, err)
	return tier
}

func mkBanner(t *testing.T, name string, defs []tierDef, opts ...func(*BannerSpec)) *Banner {
	t.Helper()
	spec := BannerSpec{ID: uuid.New(), Name: name, Animation: AnimationInterface}
	for _, d := range defs {
		spec.Tiers = append(spec.Tiers, TierChance{Tier: mkTier(t, d), Chance: d.chance})
	}
	for _, o := range opts {
		o(&spec)
	}
	b, err := NewBanner(spec)
	require.NoError(t, err)
	return b
}

// wishTiers is the standard three tier table.
func wishTiers() []tierDef {
	return []tierDef{
		{name: "common", chance: 0.9, rewards: []string{"stick", "stone"}},
		{name: "rare", chance: 0.09, pity: 5, rewards: []string{"emerald"}},
		{name: "five-star", chance: 0.01, pity: 10, rewards: []string{"sword", "bow", "crown"}},
	}
}

func withFiftyFifty(featured ...string) func(*BannerSpec) {
	return func(s *BannerSpec) {
		s.FiftyFifty = Mechanic{Enabled: true, TopTier: DefaultTopTier, Featured: featured}
	}
}

func withWeapon(featured ...string) func(*BannerSpec) {
	return func(s *BannerSpec) {
		s.FeaturedWeapon = Mechanic{Enabled: true, TopTier: DefaultTopTier, Featured: featured}
	}
}

func withLocations(locs ...Location) func(*BannerSpec) {
	return func(s *BannerSpec) { s.Locations = locs }
}

func mustTier(t *testing.T, b *Banner, name string) *Tier {
	t.Helper()
	tier, ok := b.Tier(name)
	require.True(t, ok, "tier %s", name)
	return tier
}
