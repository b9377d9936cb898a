package gacha

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Phase is the reveal phase of a pull session.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseOpening
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "OPENING"
	case PhaseComplete:
		return "COMPLETE"
	default:
		return "INACTIVE"
	}
}

// GrantFunc hands one resolved result to the player.
type GrantFunc func(PullResult) error

// Session tracks one player's batch from interaction to grant.
type Session struct {
	player   uuid.UUID
	banner   *Banner
	loc      Location
	hasLoc   bool
	locked   bool
	phase    Phase
	results  []PullResult
	revealed int
	granted  bool
}

func (s *Session) Player() uuid.UUID { return s.player }

func (s *Session) Banner() *Banner { return s.banner }

func (s *Session) Phase() Phase { return s.phase }

// Location returns the location that triggered the session, if any.
func (s *Session) Location() (Location, bool) { return s.loc, s.hasLoc }

func (s *Session) advance(to Phase) error {
	if to <= s.phase {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseTransition, s.phase, to)
	}
	s.phase = to
	return nil
}

// Lock takes the banner location lock. Sessions without a location have
// nothing to lock. Calling it again while held is a no-op.
func (s *Session) Lock() error {
	if !s.hasLoc || s.locked {
		return nil
	}
	if err := s.banner.lockLocation(s.loc); err != nil {
		return err
	}
	s.locked = true
	return nil
}

func (s *Session) unlock() {
	if s.locked {
		s.banner.unlockLocation(s.loc)
		s.locked = false
	}
}

// Start records the resolved batch and moves the session to OPENING.
func (s *Session) Start(results []PullResult) error {
	if s.phase != PhaseInactive {
		return fmt.Errorf("%w: start from %s", ErrPhaseTransition, s.phase)
	}
	if err := s.Lock(); err != nil {
		return err
	}
	s.results = append([]PullResult(nil), results...)
	return s.advance(PhaseOpening)
}

// Len is the number of resolved slots.
func (s *Session) Len() int { return len(s.results) }

// Slot reveals the result at batch index i.
func (s *Session) Slot(i int) (PullResult, error) {
	if s.phase != PhaseOpening {
		return PullResult{}, fmt.Errorf("%w: reveal in %s", ErrPhaseTransition, s.phase)
	}
	if i < 0 || i >= len(s.results) {
		return PullResult{}, fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, i, len(s.results))
	}
	s.revealed = max(s.revealed, i+1)
	return s.results[i], nil
}

// Revealed is the number of leading slots already shown.
func (s *Session) Revealed() int { return s.revealed }

// Results returns a copy of the resolved batch.
func (s *Session) Results() []PullResult {
	return append([]PullResult(nil), s.results...)
}

// finish grants every result once, releases the lock and marks the
// session complete. Grant errors do not stop later grants.
func (s *Session) finish(grant GrantFunc) error {
	defer s.unlock()
	var errs []error
	if !s.granted {
		s.granted = true
		for _, res := range s.results {
			if grant == nil {
				continue
			}
			if err := grant(res); err != nil {
				errs = append(errs, fmt.Errorf("slot %d: %w", res.Index, err))
			}
		}
	}
	if s.phase != PhaseComplete {
		s.phase = PhaseComplete
	}
	return errors.Join(errs...)
}

// SessionView is an immutable snapshot of a session.
type SessionView struct {
	Player   uuid.UUID
	BannerID uuid.UUID
	Banner   string
	Location *Location
	Phase    Phase
	Slots    int
	Revealed int
}

func (s *Session) View() SessionView {
	v := SessionView{
		Player:   s.player,
		BannerID: s.banner.ID(),
		Banner:   s.banner.Name(),
		Phase:    s.phase,
		Slots:    len(s.results),
		Revealed: s.revealed,
	}
	if s.hasLoc {
		loc := s.loc
		v.Location = &loc
	}
	return v
}

// SessionRegistry holds at most one live session per player.
type SessionRegistry struct {
	sessions map[uuid.UUID]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uuid.UUID]*Session)}
}

// Get returns the player's live session.
func (r *SessionRegistry) Get(player uuid.UUID) (*Session, bool) {
	s, ok := r.sessions[player]
	return s, ok
}

// Begin creates or retargets the player's session. A player already
// opening a batch is refused, as is a location somebody else is opening.
func (r *SessionRegistry) Begin(player uuid.UUID, b *Banner, loc *Location) (*Session, error) {
	if b == nil {
		return nil, ErrNilBanner
	}
	if s, ok := r.sessions[player]; ok && s.phase == PhaseOpening {
		return nil, ErrSessionOpening
	}
	if loc != nil && b.LocationInUse(*loc) {
		return nil, fmt.Errorf("%s at %s: %w", b.Name(), loc, ErrLocationInUse)
	}
	s, ok := r.sessions[player]
	if !ok {
		s = &Session{player: player}
		r.sessions[player] = s
	}
	s.banner = b
	s.hasLoc = loc != nil
	if loc != nil {
		s.loc = *loc
	} else {
		s.loc = Location{}
	}
	return s, nil
}

// Complete ends an OPENING session normally.
func (r *SessionRegistry) Complete(player uuid.UUID, grant GrantFunc) error {
	s, ok := r.sessions[player]
	if !ok {
		return ErrNoSession
	}
	if s.phase != PhaseOpening {
		return fmt.Errorf("%w: complete from %s", ErrPhaseTransition, s.phase)
	}
	delete(r.sessions, player)
	return s.finish(grant)
}

// Abandon ends the session from any phase. Resolved rewards are still
// granted.
func (r *SessionRegistry) Abandon(player uuid.UUID, grant GrantFunc) error {
	s, ok := r.sessions[player]
	if !ok {
		return ErrNoSession
	}
	delete(r.sessions, player)
	return s.finish(grant)
}

// Len counts live sessions.
func (r *SessionRegistry) Len() int { return len(r.sessions) }

// Opening counts sessions in the OPENING phase.
func (r *SessionRegistry) Opening() int {
	n := 0
	for _, s := range r.sessions {
		if s.phase == PhaseOpening {
			n++
		}
	}
	return n
}

// Players lists players with a live session.
func (r *SessionRegistry) Players() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}
