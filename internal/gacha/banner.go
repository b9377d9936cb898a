package gacha

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// DefaultTopTier is the tier key the special mechanics target when the
// banner file does not name one.
const DefaultTopTier = "five-star"

// Mechanic configures one special top-tier rule (fifty-fifty or
// guaranteed-featured-weapon).
type Mechanic struct {
	Enabled  bool
	TopTier  string
	Featured []string
}

// IsFeatured reports whether a reward name is in the featured set.
func (m Mechanic) IsFeatured(name string) bool {
	return slices.Contains(m.Featured, name)
}

// AppliesTo reports whether the mechanic resolves rewards for tier t.
func (m Mechanic) AppliesTo(t *Tier) bool {
	return m.Enabled && t != nil && t.Is(m.TopTier)
}

func (m Mechanic) clone() Mechanic {
	m.Featured = slices.Clone(m.Featured)
	return m
}

// TierChance pairs a tier with its top-level probability.
type TierChance struct {
	Tier   *Tier
	Chance float64 // fraction in [0,1]
}

// BannerSpec is the input to NewBanner.
type BannerSpec struct {
	ID             uuid.UUID
	Name           string
	Animation      AnimationStyle
	Tiers          []TierChance
	FiftyFifty     Mechanic
	FeaturedWeapon Mechanic
	Locations      []Location
}

// Banner is a named collection of tiers a player pulls from. The tier table
// and mechanics are fixed at load; only bound locations and their in-use
// flags change at runtime.
type Banner struct {
	id             uuid.UUID
	name           string
	animation      AnimationStyle
	tiers          []weighted[*Tier]
	fiftyFifty     Mechanic
	featuredWeapon Mechanic
	locations      map[Location]struct{}
	inUse          map[Location]bool
}

// NewBanner validates the spec and builds a banner. Tiers are stored in
// ascending-chance order, which is also the hard-pity check order.
func NewBanner(spec BannerSpec) (*Banner, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("banner name is empty")
	}
	if spec.ID == uuid.Nil {
		return nil, fmt.Errorf("banner %q: nil uuid", spec.Name)
	}
	b := &Banner{
		id:             spec.ID,
		name:           spec.Name,
		animation:      spec.Animation,
		fiftyFifty:     spec.FiftyFifty.clone(),
		featuredWeapon: spec.FeaturedWeapon.clone(),
		locations:      make(map[Location]struct{}, len(spec.Locations)),
		inUse:          make(map[Location]bool),
	}
	seen := make(map[string]bool, len(spec.Tiers))
	for _, tc := range spec.Tiers {
		if tc.Tier == nil {
			continue
		}
		if err := validateProb(tc.Chance); err != nil {
			return nil, fmt.Errorf("banner %q tier %q: %w", spec.Name, tc.Tier.Name(), err)
		}
		key := strings.ToLower(tc.Tier.Name())
		if seen[key] {
			return nil, fmt.Errorf("banner %q: duplicate tier %q", spec.Name, tc.Tier.Name())
		}
		seen[key] = true
		b.tiers = append(b.tiers, weighted[*Tier]{value: tc.Tier, name: tc.Tier.Name(), chance: tc.Chance})
	}
	sortTable(b.tiers)
	for _, loc := range spec.Locations {
		b.locations[loc] = struct{}{}
	}
	return b, nil
}

func (b *Banner) ID() uuid.UUID { return b.id }

func (b *Banner) Name() string { return b.name }

func (b *Banner) Animation() AnimationStyle { return b.animation }

func (b *Banner) FiftyFifty() Mechanic { return b.fiftyFifty.clone() }

func (b *Banner) FeaturedWeapon() Mechanic { return b.featuredWeapon.clone() }

// Tiers returns the tiers in table (ascending chance) order.
func (b *Banner) Tiers() []*Tier {
	out := make([]*Tier, len(b.tiers))
	for i, row := range b.tiers {
		out[i] = row.value
	}
	return out
}

// Tier looks a tier up by name, case-insensitively.
func (b *Banner) Tier(name string) (*Tier, bool) {
	for _, row := range b.tiers {
		if row.value.Is(name) {
			return row.value, true
		}
	}
	return nil, false
}

// Chance returns the top-level probability of a tier, 0 if it is not part
// of the banner.
func (b *Banner) Chance(t *Tier) float64 {
	for _, row := range b.tiers {
		if row.value == t {
			return row.chance
		}
	}
	return 0
}

// ChanceSum is the total probability of the tier table.
func (b *Banner) ChanceSum() float64 { return tableSum(b.tiers) }

// Rewards returns every reward of every tier, tier order first.
func (b *Banner) Rewards() []*Reward {
	var out []*Reward
	for _, row := range b.tiers {
		out = append(out, row.value.Rewards()...)
	}
	return out
}

// DropRate is the display form of one tier's probability.
type DropRate struct {
	Tier        string
	Percent     float64
	PityEnabled bool
	PityLimit   int
}

// DropRates lists per-tier drop rates in table order.
func (b *Banner) DropRates() []DropRate {
	out := make([]DropRate, 0, len(b.tiers))
	for _, row := range b.tiers {
		out = append(out, DropRate{
			Tier:        row.value.Name(),
			Percent:     row.chance * 100,
			PityEnabled: row.value.PityEnabled(),
			PityLimit:   row.value.PityLimit(),
		})
	}
	return out
}

// Locations returns the bound locations sorted by world then coordinates.
func (b *Banner) Locations() []Location {
	out := slices.Collect(maps.Keys(b.locations))
	slices.SortFunc(out, func(x, y Location) int {
		return cmp.Or(
			strings.Compare(x.World, y.World),
			cmp.Compare(x.X, y.X),
			cmp.Compare(x.Y, y.Y),
			cmp.Compare(x.Z, y.Z),
		)
	})
	return out
}

func (b *Banner) HasLocation(loc Location) bool {
	_, ok := b.locations[loc]
	return ok
}

// AddLocation binds loc and reports whether it was newly added.
func (b *Banner) AddLocation(loc Location) bool {
	if b.HasLocation(loc) {
		return false
	}
	b.locations[loc] = struct{}{}
	return true
}

// RemoveLocation unbinds loc and reports whether it was bound.
func (b *Banner) RemoveLocation(loc Location) bool {
	if !b.HasLocation(loc) {
		return false
	}
	delete(b.locations, loc)
	delete(b.inUse, loc)
	return true
}

func (b *Banner) LocationInUse(loc Location) bool { return b.inUse[loc] }

func (b *Banner) lockLocation(loc Location) error {
	if b.inUse[loc] {
		return fmt.Errorf("%s at %s: %w", b.name, loc, ErrLocationInUse)
	}
	b.inUse[loc] = true
	return nil
}

func (b *Banner) unlockLocation(loc Location) {
	delete(b.inUse, loc)
}

// BannerView is an immutable snapshot handed across the API boundary.
type BannerView struct {
	ID             uuid.UUID
	Name           string
	Animation      string
	DropRates      []DropRate
	Locations      []Location
	InUse          []Location
	FiftyFifty     Mechanic
	FeaturedWeapon Mechanic
}

// View snapshots the banner.
func (b *Banner) View() BannerView {
	v := BannerView{
		ID:             b.id,
		Name:           b.name,
		Animation:      b.animation.String(),
		DropRates:      b.DropRates(),
		Locations:      b.Locations(),
		FiftyFifty:     b.FiftyFifty(),
		FeaturedWeapon: b.FeaturedWeapon(),
	}
	for _, loc := range v.Locations {
		if b.inUse[loc] {
			v.InUse = append(v.InUse, loc)
		}
	}
	return v
}
