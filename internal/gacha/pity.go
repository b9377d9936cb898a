package gacha

// Hard pity: a tier is forced once the player's counter for it reaches
// PityLimit-1. Counters live in PlayerState and are clamped there, so the
// trigger is checked before the counter could ever reach the limit.

// pityDue returns the tier whose pity is satisfied, if any. Tiers are
// checked in table order, so when several are eligible at once the rarest
// (lowest configured chance, then name) wins.
func pityDue(b *Banner, p *PlayerState) (*Tier, bool) {
	for _, row := range b.tiers {
		t := row.value
		if !t.PityEnabled() {
			continue
		}
		if p.Pity(b, t) >= t.PityLimit()-1 {
			return t, true
		}
	}
	return nil, false
}

// OnPullResolved updates pity after a pull landed on hit: the hit tier
// resets to 0 and every other pity-enabled tier of the banner moves one
// step closer to its limit. Tiers without pity are left alone.
func OnPullResolved(p *PlayerState, b *Banner, hit *Tier) error {
	if p == nil {
		return ErrNilPlayer
	}
	if b == nil {
		return ErrNilBanner
	}
	for _, row := range b.tiers {
		t := row.value
		if !t.PityEnabled() {
			continue
		}
		if t == hit {
			p.ResetPity(b, t)
			continue
		}
		p.SetPity(b, t, p.Pity(b, t)+1)
	}
	return nil
}
