package gacha

import (
	"fmt"

	"go.uber.org/zap"
)

// Log messages
const (
	logTierFallback       = "tier table did not reach roll, using first tier"
	logRewardFallback     = "reward table did not reach roll, using first reward"
	logFeaturedMissing    = "no featured reward matches the tier, drawing whole tier"
	logNonFeaturedMissing = "fifty-fifty lost but tier has no non-featured reward, granting featured"
	logSlotFailed         = "pull resolution failed, slot skipped"
)

// Log fields
const (
	fieldBanner = "banner"
	fieldTier   = "tier"
	fieldPlayer = "player"
	fieldSlot   = "slot"
	fieldRoll   = "roll"
)

func fieldsBannerTier(b *Banner, t *Tier) []zap.Field {
	return []zap.Field{zap.String(fieldBanner, b.Name()), zap.String(fieldTier, t.Name())}
}

// Resolver turns a banner plus a player's state into pull results.
// It is not safe for concurrent use; callers serialize access the same way
// they serialize access to PlayerState.
type Resolver struct {
	rng RandomSource
	log *zap.Logger
}

// NewResolver returns a resolver. A nil rng uses DefaultRNG and a nil
// logger discards output.
func NewResolver(rng RandomSource, log *zap.Logger) *Resolver {
	if rng == nil {
		rng = DefaultRNG()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{rng: rng, log: log}
}

// PullResult is one resolved slot of a batch.
type PullResult struct {
	Index         int
	Tier          *Tier
	Reward        *Reward
	PityTriggered bool
	Outcome       Outcome
}

// ResolveTier picks the tier for the next pull: hard pity first, then the
// weighted table. It does not touch player state.
func (r *Resolver) ResolveTier(b *Banner, p *PlayerState) (*Tier, error) {
	t, _, err := r.resolveTier(b, p)
	return t, err
}

func (r *Resolver) resolveTier(b *Banner, p *PlayerState) (*Tier, bool, error) {
	if b == nil {
		return nil, false, ErrNilBanner
	}
	if p == nil {
		return nil, false, ErrNilPlayer
	}
	if t, ok := pityDue(b, p); ok {
		return t, true, nil
	}
	roll := r.rng.Float64()
	t, matched, err := pick(b.tiers, roll)
	if err != nil {
		return nil, false, fmt.Errorf("banner %q: %w", b.Name(), err)
	}
	if !matched {
		r.log.Warn(logTierFallback,
			zap.String(fieldBanner, b.Name()),
			zap.Float64(fieldRoll, roll),
			zap.Float64("sum", b.ChanceSum()),
		)
	}
	return t, false, nil
}

// ResolveReward picks the concrete reward inside t. When t is the top tier
// of a special mechanic that mechanic decides; the featured-weapon rule is
// applied before fifty-fifty if both name the same tier.
func (r *Resolver) ResolveReward(b *Banner, t *Tier, p *PlayerState) (*Reward, Outcome, error) {
	if b == nil {
		return nil, OutcomePlain, ErrNilBanner
	}
	if t == nil {
		return nil, OutcomePlain, fmt.Errorf("banner %q: %w", b.Name(), ErrUnknownTier)
	}
	switch {
	case b.featuredWeapon.AppliesTo(t):
		return r.featuredWeapon(b, t)
	case b.fiftyFifty.AppliesTo(t):
		if p == nil {
			return nil, OutcomePlain, ErrNilPlayer
		}
		return r.fiftyFifty(b, t, p)
	}
	rw, err := r.weightedReward(b, t)
	return rw, OutcomePlain, err
}

func (r *Resolver) weightedReward(b *Banner, t *Tier) (*Reward, error) {
	rw, matched, err := t.drawReward(r.rng)
	if err != nil {
		return nil, fmt.Errorf("banner %q: %w", b.Name(), err)
	}
	if !matched {
		r.log.Warn(logRewardFallback, fieldsBannerTier(b, t)...)
	}
	return rw, nil
}

// Pull resolves one slot: tier, then reward, then pity bookkeeping. Pity is
// only updated once the reward is decided so a failed slot leaves it as it
// was.
func (r *Resolver) Pull(b *Banner, p *PlayerState) (PullResult, error) {
	t, pity, err := r.resolveTier(b, p)
	if err != nil {
		return PullResult{}, err
	}
	rw, outcome, err := r.ResolveReward(b, t, p)
	if err != nil {
		return PullResult{}, err
	}
	if err := OnPullResolved(p, b, t); err != nil {
		return PullResult{}, err
	}
	return PullResult{Tier: t, Reward: rw, PityTriggered: pity, Outcome: outcome}, nil
}

// OpenBatch resolves count pulls in order. A slot that fails is logged and
// skipped, so the result can be shorter than count. Indexes are dense over
// the returned slice. Pull currency is the caller's concern.
func (r *Resolver) OpenBatch(p *PlayerState, b *Banner, count int) []PullResult {
	out := make([]PullResult, 0, max(count, 0))
	for i := range max(count, 0) {
		res, err := r.Pull(b, p)
		if err != nil {
			fields := []zap.Field{zap.Int(fieldSlot, i), zap.Error(err)}
			if b != nil {
				fields = append(fields, zap.String(fieldBanner, b.Name()))
			}
			if p != nil {
				fields = append(fields, zap.Stringer(fieldPlayer, p.ID()))
			}
			r.log.Error(logSlotFailed, fields...)
			continue
		}
		res.Index = len(out)
		out = append(out, res)
	}
	return out
}
