package gacha

// Outcome records how a pull's reward was chosen.
type Outcome int

const (
	// OutcomePlain is a weighted draw with no special mechanic involved.
	OutcomePlain Outcome = iota
	// OutcomeFeaturedWon is a fifty-fifty coin flip that landed on featured.
	OutcomeFeaturedWon
	// OutcomeFeaturedLost is a fifty-fifty loss; the next top-tier hit is guaranteed.
	OutcomeFeaturedLost
	// OutcomeFeaturedGuaranteed is a featured reward forced by an earlier loss.
	OutcomeFeaturedGuaranteed
	// OutcomeFeaturedWeapon is a draw restricted to the featured weapon set.
	OutcomeFeaturedWeapon
	// OutcomeFallback is a misconfigured mechanic that fell back to a
	// weighted draw of the whole tier.
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFeaturedWon:
		return "featured_won"
	case OutcomeFeaturedLost:
		return "featured_lost"
	case OutcomeFeaturedGuaranteed:
		return "featured_guaranteed"
	case OutcomeFeaturedWeapon:
		return "featured_weapon"
	case OutcomeFallback:
		return "fallback"
	default:
		return "plain"
	}
}

// Featured reports whether the outcome produced a featured reward.
func (o Outcome) Featured() bool {
	switch o {
	case OutcomeFeaturedWon, OutcomeFeaturedGuaranteed, OutcomeFeaturedWeapon:
		return true
	}
	return false
}

// splitFeatured partitions a tier's rewards (table order) by the featured set.
func splitFeatured(t *Tier, m Mechanic) (featured, other []*Reward) {
	for _, row := range t.rewards {
		if m.IsFeatured(row.name) {
			featured = append(featured, row.value)
		} else {
			other = append(other, row.value)
		}
	}
	return featured, other
}

func uniform(rng RandomSource, rs []*Reward) *Reward {
	return rs[rng.IntN(len(rs))]
}

// fiftyFifty resolves a top-tier hit on a fifty-fifty banner.
//
// A set guarantee forces a featured reward and is cleared. Otherwise a fair
// coin decides: heads gives a featured reward and leaves the flag alone,
// tails gives a non-featured reward and sets the flag. With no non-featured
// rewards the loss falls back to featured without setting the flag; with no
// featured rewards at all the whole tier is drawn by weight and the flag is
// not touched.
func (r *Resolver) fiftyFifty(b *Banner, t *Tier, p *PlayerState) (*Reward, Outcome, error) {
	featured, other := splitFeatured(t, b.fiftyFifty)
	if len(featured) == 0 {
		r.log.Warn(logFeaturedMissing, fieldsBannerTier(b, t)...)
		rw, err := r.weightedReward(b, t)
		return rw, OutcomeFallback, err
	}
	if p.Guaranteed(b) {
		p.SetGuaranteed(b, false)
		return uniform(r.rng, featured), OutcomeFeaturedGuaranteed, nil
	}
	if r.rng.Bool() {
		return uniform(r.rng, featured), OutcomeFeaturedWon, nil
	}
	if len(other) == 0 {
		r.log.Warn(logNonFeaturedMissing, fieldsBannerTier(b, t)...)
		return uniform(r.rng, featured), OutcomeFeaturedWon, nil
	}
	p.SetGuaranteed(b, true)
	return uniform(r.rng, other), OutcomeFeaturedLost, nil
}

// featuredWeapon resolves a top-tier hit on a guaranteed-featured-weapon
// banner. It never reads or writes player state.
func (r *Resolver) featuredWeapon(b *Banner, t *Tier) (*Reward, Outcome, error) {
	featured, _ := splitFeatured(t, b.featuredWeapon)
	if len(featured) == 0 {
		r.log.Warn(logFeaturedMissing, fieldsBannerTier(b, t)...)
		rw, err := r.weightedReward(b, t)
		return rw, OutcomeFallback, err
	}
	return uniform(r.rng, featured), OutcomeFeaturedWeapon, nil
}
