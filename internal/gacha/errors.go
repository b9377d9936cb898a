package gacha

import "errors"

var (
	ErrInvalidProb   = errors.New("invalid probability p; must be 0..1")
	ErrEmptyTable    = errors.New("probability table is empty")
	ErrUnknownTier   = errors.New("unknown reward tier")
	ErrUnknownReward = errors.New("unknown reward")
	ErrNilBanner     = errors.New("banner is nil")
	ErrNilPlayer     = errors.New("player state is nil")

	ErrLocationInUse    = errors.New("banner location is already in use")
	ErrSessionOpening   = errors.New("player is already opening a banner")
	ErrPhaseTransition  = errors.New("invalid session phase transition")
	ErrSlotOutOfRange   = errors.New("reveal slot out of range")
	ErrNoSession        = errors.New("no active session for player")
	ErrPlayerOffline    = errors.New("player is offline or unknown")
	ErrNoDispatcher     = errors.New("no command dispatcher")
	ErrInvalidLocation  = errors.New("malformed location")
	ErrInvalidAnimation = errors.New("invalid animation type")
)

// IsUnknown reports whether err belongs to the invalid-runtime-state class:
// the host asked about a session or player the engine does not know, or
// gave it nothing to run reward commands on.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrNoSession) || errors.Is(err, ErrPlayerOffline) || errors.Is(err, ErrNoDispatcher)
}
