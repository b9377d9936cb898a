package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-engine/internal/bannercfg"
	"github.com/xtding233/gacha-engine/internal/gacha"
	"github.com/xtding233/gacha-engine/internal/playerstore"
)

// ReloadResult reports what a reload did.
type ReloadResult struct {
	Banners     int
	Deferred    bool
	Diagnostics bannercfg.Diagnostics
}

// Reload re-reads the banner file and replaces the catalog. UUIDs generated
// for banners that had none are written back to the file.
func (e *Engine) Reload(ctx context.Context) (ReloadResult, error) {
	if e.loader == nil {
		return ReloadResult{}, ErrNoBannerFile
	}
	e.loader.Invalidate()
	banners, diags, err := e.loader.Banners()
	if banners == nil && err != nil {
		return ReloadResult{}, fmt.Errorf("reload %s: %w", e.loader.Path(), err)
	}
	if err != nil {
		e.log.Warn("banner file not updated", zap.String("path", e.loader.Path()), zap.Error(err))
	}
	diags.Log(e.log)
	return e.install(ctx, banners, diags)
}

// ReloadBanners builds doc and swaps it in. While any session is opening
// the swap waits until the last one finishes.
func (e *Engine) ReloadBanners(ctx context.Context, doc bannercfg.Document) (ReloadResult, error) {
	banners, diags := bannercfg.Build(doc)
	diags.Log(e.log)
	return e.install(ctx, banners, diags)
}

func (e *Engine) install(ctx context.Context, banners []*gacha.Banner, diags bannercfg.Diagnostics) (ReloadResult, error) {
	res := ReloadResult{Banners: len(banners), Diagnostics: diags}
	err := e.loop.Do(ctx, func() error {
		if n := e.sessions.Opening(); n > 0 {
			e.pending, e.hasPending = banners, true
			res.Deferred = true
			e.metrics.ReloadDeferred()
			e.log.Info("banner reload deferred until open sessions finish", zap.Int("sessions", n))
			return nil
		}
		e.replaceCatalog(banners)
		return nil
	})
	if err != nil {
		return ReloadResult{}, err
	}
	return res, nil
}

// applyPending installs a deferred reload once nothing is opening.
func (e *Engine) applyPending() {
	if !e.hasPending || e.sessions.Opening() > 0 {
		return
	}
	banners := e.pending
	e.pending, e.hasPending = nil, false
	e.replaceCatalog(banners)
}

// replaceCatalog swaps in a new banner set. Idle sessions point at the old
// banners and are dropped; player progress is keyed by banner UUID and
// carries over, as do location edits not yet saved to the file.
func (e *Engine) replaceCatalog(banners []*gacha.Banner) {
	e.carryLocations(banners)
	for _, id := range e.sessions.Players() {
		if s, ok := e.sessions.Get(id); ok && s.Phase() == gacha.PhaseInactive {
			_ = e.sessions.Abandon(id, nil)
		}
	}
	e.catalog = NewCatalog(banners)
	e.restoreRetained()
	e.log.Info("banners loaded", zap.Int("count", e.catalog.Len()))
}

// SaveBanners writes banner UUIDs and bound locations back to the banner
// file.
func (e *Engine) SaveBanners(ctx context.Context) error {
	if e.loader == nil {
		return ErrNoBannerFile
	}
	return e.loop.Do(ctx, func() error {
		if err := e.loader.Save(e.catalog.All()); err != nil {
			return fmt.Errorf("save banners: %w", err)
		}
		clear(e.locEdits)
		return nil
	})
}

// noteLocation records a runtime bind (true) or unbind (false) of loc.
func (e *Engine) noteLocation(id uuid.UUID, loc gacha.Location, bound bool) {
	edits, ok := e.locEdits[id]
	if !ok {
		edits = make(map[gacha.Location]bool)
		e.locEdits[id] = edits
	}
	edits[loc] = bound
}

// carryLocations replays unsaved location edits onto the matching banners
// of a new set. A bind whose location the new set gives to another banner
// is dropped.
func (e *Engine) carryLocations(banners []*gacha.Banner) {
	if len(e.locEdits) == 0 {
		return
	}
	byID := make(map[uuid.UUID]*gacha.Banner, len(banners))
	owner := make(map[gacha.Location]*gacha.Banner)
	for _, b := range banners {
		byID[b.ID()] = b
		for _, loc := range b.Locations() {
			owner[loc] = b
		}
	}
	for id, edits := range e.locEdits {
		b, ok := byID[id]
		if !ok {
			continue
		}
		for loc, bound := range edits {
			if !bound {
				if b.RemoveLocation(loc) {
					delete(owner, loc)
				}
				continue
			}
			if other, taken := owner[loc]; taken && other != b {
				e.log.Warn("location bind dropped on reload",
					zap.String("banner", b.Name()), zap.Stringer("location", loc), zap.String("bound_to", other.Name()))
				delete(edits, loc)
				continue
			}
			b.AddLocation(loc)
			owner[loc] = b
		}
	}
}

// restoreRetained applies kept progress for banners that are now loaded.
func (e *Engine) restoreRetained() {
	for id, kept := range e.retained {
		p, ok := e.players[id]
		if !ok {
			continue
		}
		rec := playerstore.Record{Player: id, Banners: make(map[uuid.UUID]playerstore.BannerRecord)}
		for bid, br := range kept {
			if _, ok := e.catalog.ByID(bid); ok {
				rec.Banners[bid] = br
				delete(kept, bid)
			}
		}
		if len(kept) == 0 {
			delete(e.retained, id)
		}
		e.apply(p, rec)
	}
}
