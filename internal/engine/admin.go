package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

// MaxSimulationPulls bounds Trials*PullsPerTrial for one Simulate call.
const MaxSimulationPulls = 2_000_000

func (e *Engine) lookup(ref string) (*gacha.Banner, error) {
	b, ok := e.catalog.Lookup(ref)
	if !ok {
		return nil, fmt.Errorf("%q: %w", ref, ErrUnknownBanner)
	}
	return b, nil
}

// Banners lists every loaded banner.
func (e *Engine) Banners(ctx context.Context) ([]gacha.BannerView, error) {
	return call(ctx, e.loop, func() ([]gacha.BannerView, error) {
		all := e.catalog.All()
		out := make([]gacha.BannerView, len(all))
		for i, b := range all {
			out[i] = b.View()
		}
		return out, nil
	})
}

// Banner finds a banner by name or UUID.
func (e *Engine) Banner(ctx context.Context, ref string) (gacha.BannerView, error) {
	return call(ctx, e.loop, func() (gacha.BannerView, error) {
		b, err := e.lookup(ref)
		if err != nil {
			return gacha.BannerView{}, err
		}
		return b.View(), nil
	})
}

// BannerAt finds the banner bound at loc.
func (e *Engine) BannerAt(ctx context.Context, loc gacha.Location) (gacha.BannerView, error) {
	return call(ctx, e.loop, func() (gacha.BannerView, error) {
		b, ok := e.catalog.At(loc)
		if !ok {
			return gacha.BannerView{}, fmt.Errorf("%s: %w", loc, ErrNoBannerAt)
		}
		return b.View(), nil
	})
}

// DropRates returns a banner's per-tier display rates.
func (e *Engine) DropRates(ctx context.Context, ref string) ([]gacha.DropRate, error) {
	return call(ctx, e.loop, func() ([]gacha.DropRate, error) {
		b, err := e.lookup(ref)
		if err != nil {
			return nil, err
		}
		return b.DropRates(), nil
	})
}

// AddLocation binds loc to a banner. A location serves one banner only.
func (e *Engine) AddLocation(ctx context.Context, ref string, loc gacha.Location) error {
	return e.loop.Do(ctx, func() error {
		b, err := e.lookup(ref)
		if err != nil {
			return err
		}
		if other, ok := e.catalog.At(loc); ok {
			return fmt.Errorf("%s is bound to %q: %w", loc, other.Name(), ErrLocationTaken)
		}
		b.AddLocation(loc)
		e.noteLocation(b.ID(), loc, true)
		return nil
	})
}

// RemoveLocation unbinds loc. A location someone is opening at stays bound.
func (e *Engine) RemoveLocation(ctx context.Context, ref string, loc gacha.Location) error {
	return e.loop.Do(ctx, func() error {
		b, err := e.lookup(ref)
		if err != nil {
			return err
		}
		if b.LocationInUse(loc) {
			return fmt.Errorf("%s at %s: %w", b.Name(), loc, gacha.ErrLocationInUse)
		}
		if !b.RemoveLocation(loc) {
			return fmt.Errorf("%s at %s: %w", b.Name(), loc, ErrLocationNotBound)
		}
		e.noteLocation(b.ID(), loc, false)
		return nil
	})
}

// Balance returns the player's pull balance for a banner.
func (e *Engine) Balance(ctx context.Context, player uuid.UUID, ref string) (int, error) {
	return e.adjust(ctx, player, ref, func(p *gacha.PlayerState, b *gacha.Banner) int {
		return p.Pulls(b)
	})
}

// SetBalance sets the balance to n.
func (e *Engine) SetBalance(ctx context.Context, player uuid.UUID, ref string, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidAmount
	}
	return e.adjust(ctx, player, ref, func(p *gacha.PlayerState, b *gacha.Banner) int {
		p.SetPulls(b, n)
		e.dirty[player] = true
		return p.Pulls(b)
	})
}

// GiveBalance adds n pulls.
func (e *Engine) GiveBalance(ctx context.Context, player uuid.UUID, ref string, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidAmount
	}
	return e.adjust(ctx, player, ref, func(p *gacha.PlayerState, b *gacha.Banner) int {
		e.dirty[player] = true
		return p.AddPulls(b, n)
	})
}

// TakeBalance removes n pulls; the balance stops at zero.
func (e *Engine) TakeBalance(ctx context.Context, player uuid.UUID, ref string, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidAmount
	}
	return e.adjust(ctx, player, ref, func(p *gacha.PlayerState, b *gacha.Banner) int {
		e.dirty[player] = true
		return p.AddPulls(b, -n)
	})
}

func (e *Engine) adjust(ctx context.Context, player uuid.UUID, ref string, fn func(*gacha.PlayerState, *gacha.Banner) int) (int, error) {
	if err := e.ensure(ctx, player); err != nil {
		return 0, err
	}
	return call(ctx, e.loop, func() (int, error) {
		b, err := e.lookup(ref)
		if err != nil {
			return 0, err
		}
		p, ok := e.players[player]
		if !ok {
			return 0, gacha.ErrPlayerOffline
		}
		return fn(p, b), nil
	})
}

// GiveAll adds n pulls to every online player and returns how many
// players received them.
func (e *Engine) GiveAll(ctx context.Context, ref string, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidAmount
	}
	if e.host == nil {
		return 0, nil
	}
	online := e.host.Online()
	for _, id := range online {
		if err := e.ensure(ctx, id); err != nil {
			return 0, err
		}
	}
	return call(ctx, e.loop, func() (int, error) {
		b, err := e.lookup(ref)
		if err != nil {
			return 0, err
		}
		given := 0
		for _, id := range online {
			p, ok := e.players[id]
			if !ok {
				continue
			}
			p.AddPulls(b, n)
			e.dirty[id] = true
			given++
		}
		return given, nil
	})
}

// BalanceView is one line of a player's balance check.
type BalanceView struct {
	BannerID   uuid.UUID
	Banner     string
	Pulls      int
	Pity       map[string]int
	Guaranteed bool
	FiftyFifty bool
}

// Balances lists the player's progress on every loaded banner.
func (e *Engine) Balances(ctx context.Context, player uuid.UUID) ([]BalanceView, error) {
	if err := e.ensure(ctx, player); err != nil {
		return nil, err
	}
	return call(ctx, e.loop, func() ([]BalanceView, error) {
		p, ok := e.players[player]
		if !ok {
			return nil, gacha.ErrPlayerOffline
		}
		var out []BalanceView
		for _, b := range e.catalog.All() {
			v := BalanceView{
				BannerID:   b.ID(),
				Banner:     b.Name(),
				Pulls:      p.Pulls(b),
				Pity:       make(map[string]int),
				Guaranteed: p.Guaranteed(b),
				FiftyFifty: b.FiftyFifty().Enabled,
			}
			for _, t := range b.Tiers() {
				if t.PityEnabled() {
					v.Pity[t.Name()] = p.Pity(b, t)
				}
			}
			out = append(out, v)
		}
		return out, nil
	})
}

// Simulate runs a Monte Carlo simulation of a banner with fresh players.
// A zero seed draws from the default source.
func (e *Engine) Simulate(ctx context.Context, ref string, params gacha.SimParams, seed uint64) (gacha.SimulationReport, error) {
	if params.Trials < 1 || params.PullsPerTrial < 1 {
		return gacha.SimulationReport{}, fmt.Errorf("%w: trials and pulls must be positive", ErrInvalidCount)
	}
	if params.Trials > MaxSimulationPulls/params.PullsPerTrial {
		return gacha.SimulationReport{}, ErrSimulationTooBig
	}
	b, err := call(ctx, e.loop, func() (*gacha.Banner, error) { return e.lookup(ref) })
	if err != nil {
		return gacha.SimulationReport{}, err
	}

	_, span := e.tracer.Start(ctx, "engine.Simulate")
	defer span.End()
	span.SetAttributes(
		attribute.String("banner", b.Name()),
		attribute.Int("trials", params.Trials),
		attribute.Int("pulls_per_trial", params.PullsPerTrial),
	)

	rng := gacha.DefaultRNG()
	if seed != 0 {
		rng = gacha.NewSeededRNG(seed)
	}
	// Tier tables and mechanics are immutable, so the banner can be read
	// off the loop.
	return gacha.Simulate(b, params, rng)
}
