// Package engine owns the loaded banners, cached player state and open
// sessions, and serializes every operation on them through a Loop.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-engine/internal/bannercfg"
	"github.com/xtding233/gacha-engine/internal/gacha"
	"github.com/xtding233/gacha-engine/internal/metrics"
	"github.com/xtding233/gacha-engine/internal/playerstore"
	"github.com/xtding233/gacha-engine/internal/telemetry"
)

// DefaultMaxPulls caps one open request when Options leaves it unset.
const DefaultMaxPulls = 20

type Options struct {
	Banners []*gacha.Banner
	// Loader backs Reload and SaveBanners; optional.
	Loader   *bannercfg.Loader
	Store    playerstore.Store
	Host     Host
	RNG      gacha.RandomSource
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	MaxPulls int
	// QueueSize is the loop task buffer.
	QueueSize int
}

type Engine struct {
	loop     *Loop
	log      *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	store    playerstore.Store
	host     Host
	loader   *bannercfg.Loader
	maxPulls int

	// owned by the loop goroutine
	catalog  *Catalog
	resolver *gacha.Resolver
	sessions *gacha.SessionRegistry
	players  map[uuid.UUID]*gacha.PlayerState
	dirty    map[uuid.UUID]bool
	// persisted progress for banners that are not loaded, kept so a flush
	// does not erase it
	retained map[uuid.UUID]map[uuid.UUID]playerstore.BannerRecord
	// records handed to the store and not yet confirmed written; a player
	// who rejoins meanwhile is restored from here, not from the store
	saving  map[uuid.UUID]pendingSave
	saveSeq uint64
	// banners waiting for the last opening session to finish
	pending    []*gacha.Banner
	hasPending bool
	// location binds and unbinds made since the banner file was last saved
	locEdits map[uuid.UUID]map[gacha.Location]bool
}

type pendingSave struct {
	rec playerstore.Record
	seq uint64
}

func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxPulls := opts.MaxPulls
	if maxPulls < 1 {
		maxPulls = DefaultMaxPulls
	}
	return &Engine{
		loop:     NewLoop(opts.QueueSize, log),
		log:      log,
		metrics:  opts.Metrics,
		tracer:   telemetry.Tracer(),
		store:    opts.Store,
		host:     opts.Host,
		loader:   opts.Loader,
		maxPulls: maxPulls,
		catalog:  NewCatalog(opts.Banners),
		resolver: gacha.NewResolver(opts.RNG, log),
		sessions: gacha.NewSessionRegistry(),
		players:  make(map[uuid.UUID]*gacha.PlayerState),
		dirty:    make(map[uuid.UUID]bool),
		retained: make(map[uuid.UUID]map[uuid.UUID]playerstore.BannerRecord),
		saving:   make(map[uuid.UUID]pendingSave),
		locEdits: make(map[uuid.UUID]map[gacha.Location]bool),
	}
}

// Run drives the engine loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) { e.loop.Run(ctx) }

func (e *Engine) MaxPulls() int { return e.maxPulls }

// Join makes sure the player's state is cached, loading it from the store
// on first sight.
func (e *Engine) Join(ctx context.Context, player uuid.UUID) error {
	return e.ensure(ctx, player)
}

func (e *Engine) ensure(ctx context.Context, player uuid.UUID) error {
	cached, err := call(ctx, e.loop, func() (bool, error) {
		return e.restore(player), nil
	})
	if err != nil || cached {
		return err
	}

	var (
		rec   playerstore.Record
		found bool
	)
	if e.store != nil {
		rec, found, err = e.store.Load(ctx, player)
		if err != nil {
			return fmt.Errorf("load player %s: %w", player, err)
		}
	}
	return e.loop.Do(ctx, func() error {
		if e.restore(player) {
			return nil
		}
		p := gacha.NewPlayerState(player)
		if found {
			e.apply(p, rec)
		}
		e.players[player] = p
		return nil
	})
}

// restore reports whether the player is cached, first reinstalling a
// record that is still on its way to the store.
func (e *Engine) restore(player uuid.UUID) bool {
	if _, ok := e.players[player]; ok {
		return true
	}
	ps, ok := e.saving[player]
	if !ok {
		return false
	}
	p := gacha.NewPlayerState(player)
	e.apply(p, ps.rec)
	e.players[player] = p
	return true
}

// beginSave parks recs until endSave confirms them. Call on the loop.
func (e *Engine) beginSave(recs []playerstore.Record) uint64 {
	e.saveSeq++
	for _, rec := range recs {
		e.saving[rec.Player] = pendingSave{rec: rec, seq: e.saveSeq}
	}
	return e.saveSeq
}

// endSave drops the parked records of save seq. A later save of the same
// player keeps its own entry.
func (e *Engine) endSave(recs []playerstore.Record, seq uint64) {
	err := e.loop.Do(context.Background(), func() error {
		for _, rec := range recs {
			if ps, ok := e.saving[rec.Player]; ok && ps.seq == seq {
				delete(e.saving, rec.Player)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrLoopStopped) {
		e.log.Error("failed to release saved players", zap.Error(err))
	}
}

// apply copies a persisted record into p. Unknown banners are retained
// untouched; unknown tiers, negative balances and out-of-range pity are
// dropped one by one.
func (e *Engine) apply(p *gacha.PlayerState, rec playerstore.Record) {
	player := p.ID()
	for id, br := range rec.Banners {
		b, ok := e.catalog.ByID(id)
		if !ok {
			if e.retained[player] == nil {
				e.retained[player] = make(map[uuid.UUID]playerstore.BannerRecord)
			}
			e.retained[player][id] = br
			e.log.Warn("player has progress for an unknown banner, keeping it unloaded",
				zap.Stringer("player", player), zap.Stringer("banner", id))
			continue
		}
		if br.Pulls < 0 {
			e.log.Warn("skipping negative pull balance",
				zap.Stringer("player", player), zap.String("banner", b.Name()), zap.Int("pulls", br.Pulls))
		} else {
			p.SetPulls(b, br.Pulls)
		}
		for name, n := range br.PityMap {
			t, ok := b.Tier(name)
			switch {
			case !ok:
				e.log.Warn("skipping pity for unknown tier",
					zap.Stringer("player", player), zap.String("banner", b.Name()), zap.String("tier", name))
			case !t.PityEnabled() || n < 0 || n >= t.PityLimit():
				e.log.Warn("skipping out-of-range pity",
					zap.Stringer("player", player), zap.String("banner", b.Name()),
					zap.String("tier", name), zap.Int("pity", n))
			default:
				p.SetPity(b, t, n)
			}
		}
		if br.LimitedBannerGuarantee != nil {
			p.SetGuaranteed(b, *br.LimitedBannerGuarantee)
		}
	}
}

// record converts cached state back into a storable record, merging in
// retained progress for banners that are not loaded.
func (e *Engine) record(p *gacha.PlayerState) playerstore.Record {
	rec := playerstore.FromSnapshot(p.Snapshot())
	for id, br := range e.retained[p.ID()] {
		if _, ok := rec.Banners[id]; !ok {
			rec.Banners[id] = br
		}
	}
	return rec
}

// Leave ends the player's session, granting whatever was resolved, then
// saves and evicts the player.
func (e *Engine) Leave(ctx context.Context, player uuid.UUID) error {
	var (
		recs []playerstore.Record
		seq  uint64
	)
	err := e.loop.Do(ctx, func() error {
		if _, ok := e.sessions.Get(player); ok {
			_ = e.endSession(player, true)
		}
		p, ok := e.players[player]
		if !ok {
			return nil
		}
		recs = []playerstore.Record{e.record(p)}
		delete(e.players, player)
		delete(e.dirty, player)
		delete(e.retained, player)
		if e.store != nil {
			seq = e.beginSave(recs)
		}
		return nil
	})
	if err != nil || len(recs) == 0 || e.store == nil {
		return err
	}
	defer e.endSave(recs, seq)
	if err := e.store.Save(ctx, recs); err != nil {
		e.remark(recs)
		return fmt.Errorf("save player %s: %w", player, err)
	}
	e.metrics.Flushed(1)
	return nil
}

// Flush writes every modified player to the store and evicts cached
// players that are offline with no session. It returns the number of
// records written.
func (e *Engine) Flush(ctx context.Context) (int, error) {
	online := make(map[uuid.UUID]bool)
	if e.host != nil {
		for _, id := range e.host.Online() {
			online[id] = true
		}
	}
	var seq uint64
	recs, err := call(ctx, e.loop, func() ([]playerstore.Record, error) {
		var recs []playerstore.Record
		ids := slices.SortedFunc(maps.Keys(e.dirty), func(a, b uuid.UUID) int {
			return bytes.Compare(a[:], b[:])
		})
		for _, id := range ids {
			if p, ok := e.players[id]; ok {
				recs = append(recs, e.record(p))
			}
		}
		clear(e.dirty)
		for id := range e.players {
			if _, busy := e.sessions.Get(id); !busy && !online[id] {
				delete(e.players, id)
				delete(e.retained, id)
			}
		}
		if len(recs) > 0 && e.store != nil {
			seq = e.beginSave(recs)
		}
		return recs, nil
	})
	if err != nil || len(recs) == 0 || e.store == nil {
		return 0, err
	}
	defer e.endSave(recs, seq)
	if err := e.store.Save(ctx, recs); err != nil {
		e.remark(recs)
		return 0, fmt.Errorf("flush %d players: %w", len(recs), err)
	}
	e.metrics.Flushed(len(recs))
	e.log.Debug("flushed players", zap.Int("count", len(recs)))
	return len(recs), nil
}

// remark restores dirty flags after a failed save so the next flush
// retries. Evicted players are put back.
func (e *Engine) remark(recs []playerstore.Record) {
	ctx := context.Background()
	err := e.loop.Do(ctx, func() error {
		for _, rec := range recs {
			if _, ok := e.players[rec.Player]; !ok {
				p := gacha.NewPlayerState(rec.Player)
				e.apply(p, rec)
				e.players[rec.Player] = p
			}
			e.dirty[rec.Player] = true
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrLoopStopped) {
		e.log.Error("failed to restore dirty players", zap.Error(err))
	}
}

// grant returns the grant step for a player's session.
func (e *Engine) grant(player uuid.UUID) gacha.GrantFunc {
	return func(res gacha.PullResult) error {
		var to gacha.Recipient
		if e.host != nil {
			if r, ok := e.host.Recipient(player); ok {
				to = r
			}
		}
		var d gacha.Dispatcher
		if e.host != nil {
			d = e.host
		}
		return res.Reward.Grant(to, d)
	}
}

// endSession finishes the player's session, granting each result once.
// Grant failures are logged; they never undo the session.
func (e *Engine) endSession(player uuid.UUID, abandon bool) error {
	var err error
	if abandon {
		err = e.sessions.Abandon(player, e.grant(player))
	} else {
		err = e.sessions.Complete(player, e.grant(player))
	}
	if err != nil && (errors.Is(err, gacha.ErrNoSession) || errors.Is(err, gacha.ErrPhaseTransition)) {
		return err
	}
	if err != nil {
		e.log.Error("failed to grant session rewards",
			zap.Stringer("player", player), zap.Bool("abandoned", abandon), zap.Error(err))
	}
	e.metrics.SetOpening(e.sessions.Opening())
	e.applyPending()
	return nil
}
