package gacha

import (
	"maps"
	"strings"

	"github.com/google/uuid"
)

// PlayerState holds one player's pull balances, pity counters and
// fifty-fifty guarantee flags, keyed by banner UUID so that it survives
// banner reloads.
type PlayerState struct {
	id        uuid.UUID
	pulls     map[uuid.UUID]int
	pity      map[uuid.UUID]map[string]int // tier key is the lower-cased tier name
	guarantee map[uuid.UUID]bool
}

// NewPlayerState returns an empty state for a player.
func NewPlayerState(id uuid.UUID) *PlayerState {
	return &PlayerState{
		id:        id,
		pulls:     make(map[uuid.UUID]int),
		pity:      make(map[uuid.UUID]map[string]int),
		guarantee: make(map[uuid.UUID]bool),
	}
}

func (p *PlayerState) ID() uuid.UUID { return p.id }

// Pulls returns the pull balance for a banner.
func (p *PlayerState) Pulls(b *Banner) int { return p.pulls[b.ID()] }

// SetPulls sets the balance, clamped to zero.
func (p *PlayerState) SetPulls(b *Banner, n int) {
	p.pulls[b.ID()] = max(n, 0)
}

// AddPulls adds delta (which may be negative) and returns the new balance.
// The balance never drops below zero.
func (p *PlayerState) AddPulls(b *Banner, delta int) int {
	p.SetPulls(b, p.Pulls(b)+delta)
	return p.Pulls(b)
}

// Pity returns the pity counter for a tier of a banner.
func (p *PlayerState) Pity(b *Banner, t *Tier) int {
	return p.pity[b.ID()][tierKey(t.Name())]
}

// SetPity stores a counter clamped to [0, PityLimit-1]. Tiers without pity
// always hold zero.
func (p *PlayerState) SetPity(b *Banner, t *Tier, n int) {
	m, ok := p.pity[b.ID()]
	if !ok {
		m = make(map[string]int)
		p.pity[b.ID()] = m
	}
	m[tierKey(t.Name())] = min(max(n, 0), t.maxPity())
}

// ResetPity sets a tier's counter to zero.
func (p *PlayerState) ResetPity(b *Banner, t *Tier) { p.SetPity(b, t, 0) }

// Guaranteed reports whether the next top-tier hit on a fifty-fifty banner
// is forced to be featured.
func (p *PlayerState) Guaranteed(b *Banner) bool {
	if !b.fiftyFifty.Enabled {
		return false
	}
	return p.guarantee[b.ID()]
}

// SetGuaranteed stores the guarantee flag. Banners without the fifty-fifty
// mechanic ignore the write.
func (p *PlayerState) SetGuaranteed(b *Banner, v bool) {
	if !b.fiftyFifty.Enabled {
		return
	}
	p.guarantee[b.ID()] = v
}

func tierKey(name string) string { return strings.ToLower(name) }

// BannerProgress is the per-banner part of a PlayerSnapshot.
type BannerProgress struct {
	Pulls      int
	Pity       map[string]int
	Guaranteed *bool // nil when never set
}

// PlayerSnapshot is an immutable copy of a PlayerState.
type PlayerSnapshot struct {
	Player  uuid.UUID
	Banners map[uuid.UUID]BannerProgress
}

// Snapshot copies the state. Every banner the player has any data for
// appears, even with a zero balance.
func (p *PlayerState) Snapshot() PlayerSnapshot {
	s := PlayerSnapshot{Player: p.id, Banners: make(map[uuid.UUID]BannerProgress)}
	touch := func(id uuid.UUID) BannerProgress {
		bp, ok := s.Banners[id]
		if !ok {
			bp = BannerProgress{Pity: map[string]int{}}
		}
		return bp
	}
	for id, n := range p.pulls {
		bp := touch(id)
		bp.Pulls = n
		s.Banners[id] = bp
	}
	for id, m := range p.pity {
		bp := touch(id)
		bp.Pity = maps.Clone(m)
		s.Banners[id] = bp
	}
	for id, g := range p.guarantee {
		bp := touch(id)
		v := g
		bp.Guaranteed = &v
		s.Banners[id] = bp
	}
	return s
}
