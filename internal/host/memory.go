// Package host provides an in-process game host for running the engine
// without a game server.
package host

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

// DefaultInventorySize matches a player inventory's main slots.
const DefaultInventorySize = 36

// Memory keeps connected players and their inventories in memory and
// logs dispatched commands. Safe for concurrent use.
type Memory struct {
	size int
	log  *zap.Logger

	mu       sync.RWMutex
	players  map[uuid.UUID]*Player
	commands []string
}

func NewMemory(inventorySize int, log *zap.Logger) *Memory {
	if inventorySize < 1 {
		inventorySize = DefaultInventorySize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{size: inventorySize, log: log, players: make(map[uuid.UUID]*Player)}
}

// Connect marks the player online. Reconnecting keeps the inventory.
func (m *Memory) Connect(id uuid.UUID, name string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		p = &Player{id: id, size: m.size}
		m.players[id] = p
	}
	p.mu.Lock()
	if name != "" {
		p.name = name
	} else if p.name == "" {
		p.name = id.String()
	}
	p.online = true
	p.mu.Unlock()
	return p
}

func (m *Memory) Disconnect(id uuid.UUID) {
	m.mu.RLock()
	p, ok := m.players[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	p.mu.Lock()
	p.online = false
	p.mu.Unlock()
}

// Player returns a known player, online or not.
func (m *Memory) Player(id uuid.UUID) (*Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	return p, ok
}

func (m *Memory) Recipient(id uuid.UUID) (gacha.Recipient, bool) {
	p, ok := m.Player(id)
	if !ok || !p.Online() {
		return nil, false
	}
	return p, true
}

func (m *Memory) Online() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for id, p := range m.players {
		if p.Online() {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return out
}

// Dispatch records the command as if run from the console.
func (m *Memory) Dispatch(cmd string) error {
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	m.mu.Unlock()
	m.log.Info("dispatching console command", zap.String("command", cmd))
	return nil
}

// Commands returns every dispatched command in order.
func (m *Memory) Commands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.commands)
}

// Player is a connected player with a bounded inventory.
type Player struct {
	id   uuid.UUID
	size int

	mu        sync.Mutex
	name      string
	online    bool
	inventory []gacha.Item
	dropped   []gacha.Item
}

func (p *Player) ID() uuid.UUID { return p.id }

func (p *Player) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *Player) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// AddItem stores the item unless every slot is taken.
func (p *Player) AddItem(it gacha.Item) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inventory) >= p.size {
		return false
	}
	p.inventory = append(p.inventory, it)
	return true
}

// DropItem records an item dropped at the player's feet.
func (p *Player) DropItem(it gacha.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = append(p.dropped, it)
}

func (p *Player) Inventory() []gacha.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.inventory)
}

func (p *Player) Dropped() []gacha.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.dropped)
}
