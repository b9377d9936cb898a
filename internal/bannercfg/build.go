package bannercfg

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

// Build turns a document into banners. Problems never abort the build:
// each is recorded in the returned diagnostics and the offending piece is
// defaulted or skipped. Banners come back in name order.
func Build(doc Document) ([]*gacha.Banner, Diagnostics) {
	var ds Diagnostics
	var out []*gacha.Banner
	seen := make(map[string]string)
	for _, name := range slices.Sorted(maps.Keys(doc.Crates)) {
		key := strings.ToLower(name)
		if prev, ok := seen[key]; ok {
			ds.severef(name, "", "banner name collides with %q, skipped", prev)
			continue
		}
		cfg := doc.Crates[name]
		b, bds := loadBanner(name, cfg)
		ds = append(ds, bds...)
		if b == nil {
			continue
		}
		seen[key] = name
		out = append(out, b)
	}
	return out, ds
}

func loadBanner(name string, cfg CrateConfig) (*gacha.Banner, Diagnostics) {
	var ds Diagnostics
	spec := gacha.BannerSpec{Name: name}

	switch id, err := uuid.Parse(strings.TrimSpace(cfg.UUID)); {
	case cfg.UUID == "":
		spec.ID = uuid.New()
		ds.warnf(name, pathUUID, "no UUID, generated %s", spec.ID)
	case err != nil || id == uuid.Nil:
		spec.ID = uuid.New()
		ds.warnf(name, pathUUID, "invalid UUID %q, generated %s", cfg.UUID, spec.ID)
	default:
		spec.ID = id
	}

	if cfg.AnimationType == "" {
		spec.Animation = gacha.AnimationInterface
		ds.warnf(name, "Animation-Type", "not set, defaulting to INTERFACE")
	} else {
		style, err := gacha.ParseAnimationStyle(cfg.AnimationType)
		if err != nil {
			ds.warnf(name, "Animation-Type", "invalid animation type %q, defaulting to INTERFACE", cfg.AnimationType)
		}
		spec.Animation = style
	}

	spec.FiftyFifty = gacha.Mechanic{
		Enabled:  cfg.IsLimited5050Banner,
		TopTier:  cmpOr(cfg.FiveStarTierName, gacha.DefaultTopTier),
		Featured: slices.Clone(cfg.Featured5StarRewardNames),
	}
	spec.FeaturedWeapon = gacha.Mechanic{
		Enabled:  cfg.IsGuaranteedFeaturedWeaponBanner,
		TopTier:  cmpOr(cfg.HighestWeaponTierName, gacha.DefaultTopTier),
		Featured: slices.Clone(cfg.FeaturedWeaponNames),
	}

	if len(cfg.RewardTiers) == 0 {
		ds.warnf(name, "Reward-Tiers", "no reward tiers specified")
	}
	sum := 0.0
	for _, tierName := range slices.Sorted(maps.Keys(cfg.RewardTiers)) {
		path := joinPath("Reward-Tiers", tierName)
		tc := cfg.RewardTiers[tierName]
		if tc == nil {
			ds.warnf(name, path, "missing configuration section for reward tier")
			continue
		}
		tier, chance, tds := loadTier(name, path, tierName, tc)
		ds = append(ds, tds...)
		if tier == nil {
			continue
		}
		sum += chance
		spec.Tiers = append(spec.Tiers, gacha.TierChance{Tier: tier, Chance: chance})
	}
	if len(spec.Tiers) > 0 && !gacha.SumOK(sum) {
		ds.warnf(name, "Reward-Tiers", "tier chances do not sum to 100%% (sum: %.2f%%)", sum*100)
	}

	checkMechanic(&ds, name, spec, spec.FiftyFifty, "Five-Star-Tier-Name", "Featured-5Star-Reward-Names")
	checkMechanic(&ds, name, spec, spec.FeaturedWeapon, "Highest-Weapon-Tier-Name", "Featured-Weapon-Names")
	if spec.FiftyFifty.Enabled && spec.FeaturedWeapon.Enabled &&
		strings.EqualFold(spec.FiftyFifty.TopTier, spec.FeaturedWeapon.TopTier) {
		ds.warnf(name, "Is-Guaranteed-Featured-Weapon-Banner",
			"both mechanics target tier %q, the featured weapon rule wins", spec.FeaturedWeapon.TopTier)
	}

	for i, raw := range cfg.Locations {
		loc, err := gacha.ParseLocation(raw)
		if err != nil {
			ds.severef(name, joinPath("Locations", strconv.Itoa(i)), "malformed location %q skipped", raw)
			continue
		}
		spec.Locations = append(spec.Locations, loc)
	}

	b, err := gacha.NewBanner(spec)
	if err != nil {
		ds.severef(name, "", "banner dropped: %v", err)
		return nil, ds
	}
	return b, ds
}

func checkMechanic(ds *Diagnostics, banner string, spec gacha.BannerSpec, m gacha.Mechanic, tierKey, namesKey string) {
	if !m.Enabled {
		return
	}
	var top *gacha.Tier
	for _, tc := range spec.Tiers {
		if tc.Tier.Is(m.TopTier) {
			top = tc.Tier
		}
	}
	if top == nil {
		ds.warnf(banner, tierKey, "top tier %q not found, mechanic will never apply", m.TopTier)
		return
	}
	if len(m.Featured) == 0 {
		ds.warnf(banner, namesKey, "no featured rewards listed")
		return
	}
	for _, f := range m.Featured {
		if _, ok := top.Reward(f); !ok {
			ds.warnf(banner, namesKey, "featured reward %q is not in tier %q", f, top.Name())
		}
	}
}

// loadTier builds one tier and returns its top-level chance as a fraction.
func loadTier(banner, path, name string, tc *TierConfig) (*gacha.Tier, float64, Diagnostics) {
	var ds Diagnostics
	checkRanges(&ds, banner, path, tc)

	chance := 0.0
	if tc.Chance == nil {
		ds.warnf(banner, joinPath(path, "Chance"), "no chance set, tier is only reachable through pity")
	} else {
		chance = clampChance(*tc.Chance)
	}
	if tc.Pity && tc.PityLimit < 1 {
		ds.warnf(banner, joinPath(path, "Pity-Limit"), "pity enabled without a positive limit, pity disabled")
	}

	spec := gacha.TierSpec{
		Name:        name,
		PityEnabled: tc.Pity,
		PityLimit:   max(tc.PityLimit, 0),
		Color:       loadColor(tc.Color),
	}
	if tc.DisplayItem != "" {
		spec.Display = gacha.ParseItem(tc.DisplayItem)
	}

	if len(tc.Rewards) == 0 {
		ds.warnf(banner, joinPath(path, "Rewards"), "no rewards specified for reward tier")
	}
	rewardSum := 0.0
	for _, rewardName := range slices.Sorted(maps.Keys(tc.Rewards)) {
		rpath := joinPath(path, "Rewards", rewardName)
		rc := tc.Rewards[rewardName]
		if rc == nil {
			rc = &RewardConfig{}
		}
		rw, rchance := loadReward(&ds, banner, rpath, rewardName, rc)
		rewardSum += rchance
		spec.Rewards = append(spec.Rewards, gacha.RewardChance{Reward: rw, Chance: rchance})
	}
	if len(spec.Rewards) > 0 && !gacha.SumOK(rewardSum) {
		ds.warnf(banner, joinPath(path, "Rewards"), "reward chances do not sum to 100%% (sum: %.2f%%)", rewardSum*100)
	}

	tier, err := gacha.NewTier(spec)
	if err != nil {
		ds.severef(banner, path, "tier dropped: %v", err)
		return nil, 0, ds
	}
	return tier, chance, ds
}

// loadReward builds one reward and returns its chance as a fraction.
func loadReward(ds *Diagnostics, banner, path, name string, rc *RewardConfig) (*gacha.Reward, float64) {
	checkRanges(ds, banner, path, rc)
	chance := DefaultRewardChance
	if rc.Chance != nil {
		chance = *rc.Chance
	}
	items := make([]gacha.Item, 0, len(rc.Items))
	for _, raw := range rc.Items {
		items = append(items, gacha.ParseItem(raw))
	}
	var display gacha.Item
	if rc.DisplayItem != "" {
		display = gacha.ParseItem(rc.DisplayItem)
	}
	return gacha.NewReward(name, items, rc.Commands, display), clampChance(chance)
}

func loadColor(c *ColorConfig) gacha.Color {
	if c == nil {
		return gacha.White
	}
	ch := func(v *int) uint8 {
		if v == nil {
			return DefaultColorChannel
		}
		return uint8(min(max(*v, 0), 255))
	}
	return gacha.Color{R: ch(c.R), G: ch(c.G), B: ch(c.B)}
}

// clampChance converts a 0-100 chance into a fraction in [0,1]. Out of
// range values have already been reported by checkRanges.
func clampChance(pct float64) float64 {
	return min(max(pct/100, 0), 1)
}

func cmpOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
