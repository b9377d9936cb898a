package engine

import (
	"github.com/google/uuid"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

// Host is the game server the engine grants rewards into. Implementations
// must be safe for concurrent use.
type Host interface {
	gacha.Dispatcher
	// Recipient returns the online player, or false when offline.
	Recipient(player uuid.UUID) (gacha.Recipient, bool)
	// Online lists players currently connected.
	Online() []uuid.UUID
}
