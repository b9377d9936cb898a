package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

// OpenRequest asks to open Count pulls. Banner may be empty when Location
// names a bound location or the player already interacted with a banner.
type OpenRequest struct {
	Player   uuid.UUID
	Banner   string
	Count    int
	Location *gacha.Location
}

// OpenResult describes a resolved batch. Results are only included when
// the banner reveals immediately; otherwise they are read slot by slot
// with Reveal.
type OpenResult struct {
	Session   gacha.SessionView
	Plan      gacha.RevealPlan
	Requested int
	Balance   int
	Results   []gacha.PullResult
}

// Interact starts a session for the banner bound at loc.
func (e *Engine) Interact(ctx context.Context, player uuid.UUID, loc gacha.Location) (gacha.SessionView, error) {
	return call(ctx, e.loop, func() (gacha.SessionView, error) {
		b, ok := e.catalog.At(loc)
		if !ok {
			return gacha.SessionView{}, fmt.Errorf("%s: %w", loc, ErrNoBannerAt)
		}
		s, err := e.sessions.Begin(player, b, &loc)
		if err != nil {
			return gacha.SessionView{}, err
		}
		return s.View(), nil
	})
}

// Open debits the pulls, resolves the batch and moves the player's session
// to OPENING. The location lock is taken before anything is debited.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (OpenResult, error) {
	if err := e.ensure(ctx, req.Player); err != nil {
		return OpenResult{}, err
	}
	ctx, span := e.tracer.Start(ctx, "engine.Open")
	defer span.End()
	span.SetAttributes(
		attribute.String("player", req.Player.String()),
		attribute.String("banner", req.Banner),
		attribute.Int("count", req.Count),
	)

	res, err := call(ctx, e.loop, func() (OpenResult, error) { return e.open(req) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return OpenResult{}, err
	}
	span.SetAttributes(
		attribute.String("banner", res.Session.Banner),
		attribute.Int("slots", res.Session.Slots),
	)
	return res, nil
}

func (e *Engine) open(req OpenRequest) (OpenResult, error) {
	existing, hasExisting := e.sessions.Get(req.Player)
	if hasExisting && existing.Phase() == gacha.PhaseOpening {
		return OpenResult{}, fmt.Errorf("%s: %w", existing.Banner().Name(), gacha.ErrSessionOpening)
	}

	var b *gacha.Banner
	switch {
	case req.Banner != "":
		var ok bool
		if b, ok = e.catalog.Lookup(req.Banner); !ok {
			return OpenResult{}, fmt.Errorf("%q: %w", req.Banner, ErrUnknownBanner)
		}
	case req.Location != nil:
		var ok bool
		if b, ok = e.catalog.At(*req.Location); !ok {
			return OpenResult{}, fmt.Errorf("%s: %w", req.Location, ErrNoBannerAt)
		}
	case hasExisting:
		b = existing.Banner()
	default:
		return OpenResult{}, ErrUnknownBanner
	}

	if req.Count < 1 || req.Count > e.maxPulls {
		return OpenResult{}, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidCount, req.Count, e.maxPulls)
	}
	p, ok := e.players[req.Player]
	if !ok {
		return OpenResult{}, gacha.ErrPlayerOffline
	}
	if have := p.Pulls(b); have < req.Count {
		return OpenResult{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPulls, have, req.Count)
	}

	loc := req.Location
	if loc == nil && hasExisting && existing.Banner() == b {
		if l, ok := existing.Location(); ok {
			loc = &l
		}
	}
	s, err := e.sessions.Begin(req.Player, b, loc)
	if err != nil {
		return OpenResult{}, err
	}
	if err := s.Lock(); err != nil {
		return OpenResult{}, err
	}

	balance := p.AddPulls(b, -req.Count)
	e.dirty[req.Player] = true

	results := e.resolver.OpenBatch(p, b, req.Count)
	if failed := req.Count - len(results); failed > 0 {
		e.metrics.ObserveFailures(b.Name(), failed)
		e.log.Error("batch resolved fewer slots than debited",
			zap.Stringer("player", req.Player), zap.String("banner", b.Name()),
			zap.Int("requested", req.Count), zap.Int("resolved", len(results)))
	}
	for _, r := range results {
		e.metrics.ObservePull(b.Name(), r.Tier.Name(), r.Outcome.String(), r.PityTriggered)
	}

	if err := s.Start(results); err != nil {
		// Start only fails on a phase error; finish the session so the
		// lock is released and nothing resolved is lost.
		e.log.Error("failed to start session", zap.Stringer("player", req.Player), zap.Error(err))
		_ = e.endSession(req.Player, true)
		return OpenResult{}, err
	}
	e.metrics.SetOpening(e.sessions.Opening())

	out := OpenResult{
		Session:   s.View(),
		Plan:      gacha.RevealStrategyFor(b.Animation()).Plan(len(results)),
		Requested: req.Count,
		Balance:   balance,
	}
	if out.Plan.Immediate {
		out.Results = s.Results()
		if err := e.endSession(req.Player, false); err != nil {
			return OpenResult{}, err
		}
		out.Session = s.View()
	}
	return out, nil
}

// Reveal returns the result at batch index slot of the opening session.
func (e *Engine) Reveal(ctx context.Context, player uuid.UUID, slot int) (gacha.PullResult, error) {
	return call(ctx, e.loop, func() (gacha.PullResult, error) {
		s, ok := e.sessions.Get(player)
		if !ok {
			return gacha.PullResult{}, gacha.ErrNoSession
		}
		return s.Slot(slot)
	})
}

// Session returns the player's live session.
func (e *Engine) Session(ctx context.Context, player uuid.UUID) (gacha.SessionView, error) {
	return call(ctx, e.loop, func() (gacha.SessionView, error) {
		s, ok := e.sessions.Get(player)
		if !ok {
			return gacha.SessionView{}, gacha.ErrNoSession
		}
		return s.View(), nil
	})
}

// Complete ends the opening session normally and grants its rewards. The
// granted results are returned.
func (e *Engine) Complete(ctx context.Context, player uuid.UUID) ([]gacha.PullResult, error) {
	return e.finish(ctx, player, false)
}

// Abandon ends the session from any phase. Resolved rewards are still
// granted.
func (e *Engine) Abandon(ctx context.Context, player uuid.UUID) ([]gacha.PullResult, error) {
	return e.finish(ctx, player, true)
}

func (e *Engine) finish(ctx context.Context, player uuid.UUID, abandon bool) ([]gacha.PullResult, error) {
	return call(ctx, e.loop, func() ([]gacha.PullResult, error) {
		s, ok := e.sessions.Get(player)
		if !ok {
			return nil, gacha.ErrNoSession
		}
		results := s.Results()
		if err := e.endSession(player, abandon); err != nil {
			return nil, err
		}
		return results, nil
	})
}
