package gacha

import (
	"fmt"
	"strings"
)

// Color is the RGB color reveal effects use for a tier.
type Color struct {
	R, G, B uint8
}

// White is the tier color used when none is configured.
var White = Color{R: 255, G: 255, B: 255}

// RewardChance pairs a reward with its probability inside a tier.
type RewardChance struct {
	Reward *Reward
	Chance float64 // fraction in [0,1]
}

// TierSpec is the input to NewTier.
type TierSpec struct {
	Name        string
	Rewards     []RewardChance
	PityEnabled bool
	PityLimit   int
	Display     Item
	Color       Color
}

// Tier is a named bucket of rewards. Immutable after load.
type Tier struct {
	name        string
	rewards     []weighted[*Reward]
	pityEnabled bool
	pityLimit   int
	display     Item
	color       Color
}

// NewTier validates each chance and stores the rewards in ascending-chance
// order.
func NewTier(spec TierSpec) (*Tier, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("tier name is empty")
	}
	t := &Tier{
		name:        spec.Name,
		pityEnabled: spec.PityEnabled,
		pityLimit:   max(spec.PityLimit, 0),
		display:     spec.Display,
		color:       spec.Color,
	}
	if t.display.Material == "" {
		t.display = Item{Material: "WHITE_STAINED_GLASS_PANE", Amount: 1, Name: "&7" + spec.Name, CustomModelData: -1}
	}
	seen := make(map[string]bool, len(spec.Rewards))
	for _, rc := range spec.Rewards {
		if rc.Reward == nil {
			continue
		}
		if err := validateProb(rc.Chance); err != nil {
			return nil, fmt.Errorf("tier %q reward %q: %w", spec.Name, rc.Reward.Name(), err)
		}
		if seen[rc.Reward.Name()] {
			return nil, fmt.Errorf("tier %q: duplicate reward %q", spec.Name, rc.Reward.Name())
		}
		seen[rc.Reward.Name()] = true
		t.rewards = append(t.rewards, weighted[*Reward]{value: rc.Reward, name: rc.Reward.Name(), chance: rc.Chance})
	}
	sortTable(t.rewards)
	return t, nil
}

func (t *Tier) Name() string { return t.name }

// PityEnabled reports whether pity applies. A tier with pity switched on
// but no positive limit behaves as if pity were off.
func (t *Tier) PityEnabled() bool { return t.pityEnabled && t.pityLimit >= 1 }

func (t *Tier) PityLimit() int { return t.pityLimit }

func (t *Tier) Display() Item { return t.display.clone() }

func (t *Tier) Color() Color { return t.color }

// Is reports whether name refers to this tier (case-insensitive).
func (t *Tier) Is(name string) bool { return strings.EqualFold(t.name, name) }

// Rewards returns the tier's rewards in table order.
func (t *Tier) Rewards() []*Reward {
	out := make([]*Reward, len(t.rewards))
	for i, row := range t.rewards {
		out[i] = row.value
	}
	return out
}

// Reward looks a reward up by exact name.
func (t *Tier) Reward(name string) (*Reward, bool) {
	for _, row := range t.rewards {
		if row.name == name {
			return row.value, true
		}
	}
	return nil, false
}

// Chance returns the configured probability of a reward inside the tier.
func (t *Tier) Chance(r *Reward) float64 {
	for _, row := range t.rewards {
		if row.value == r {
			return row.chance
		}
	}
	return 0
}

// ChanceSum is the total probability of the tier's reward table.
func (t *Tier) ChanceSum() float64 { return tableSum(t.rewards) }

// drawReward performs the weighted pass over the tier's reward table.
// matched is false when the fallback to the first reward was used.
func (t *Tier) drawReward(rng RandomSource) (r *Reward, matched bool, err error) {
	r, matched, err = pick(t.rewards, rng.Float64())
	if err != nil {
		return nil, false, fmt.Errorf("tier %q: %w", t.name, err)
	}
	return r, matched, nil
}

// maxPity is the highest value a pity counter may hold for this tier.
func (t *Tier) maxPity() int {
	if !t.PityEnabled() {
		return 0
	}
	return t.pityLimit - 1
}
