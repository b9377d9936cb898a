package gacha

import (
	"fmt"
	"slices"
	"strings"
)

// PlayerPlaceholder is replaced by the recipient's name in reward commands.
const PlayerPlaceholder = "%player%"

// Recipient is the online player a reward is granted to.
type Recipient interface {
	Name() string
	// AddItem places the item in the inventory and reports false when there
	// is no free slot.
	AddItem(Item) bool
	// DropItem drops the item on the ground at the player's location.
	DropItem(Item)
}

// Dispatcher runs a command with elevated (console) privilege.
type Dispatcher interface {
	Dispatch(command string) error
}

// Reward is one grantable payload inside a tier. Immutable after load.
type Reward struct {
	name     string
	items    []Item
	commands []string
	display  Item
}

// NewReward builds a reward. A zero display item gets a default glyph.
func NewReward(name string, items []Item, commands []string, display Item) *Reward {
	if display.Material == "" {
		display = Item{Material: "AMETHYST_SHARD", Amount: 1, Name: "&d" + name, CustomModelData: -1}
	}
	cloned := make([]Item, len(items))
	for i, it := range items {
		cloned[i] = it.clone()
	}
	return &Reward{
		name:     name,
		items:    cloned,
		commands: slices.Clone(commands),
		display:  display.clone(),
	}
}

func (r *Reward) Name() string { return r.name }

func (r *Reward) Items() []Item {
	out := make([]Item, len(r.items))
	for i, it := range r.items {
		out[i] = it.clone()
	}
	return out
}

func (r *Reward) Commands() []string { return slices.Clone(r.commands) }

func (r *Reward) Display() Item { return r.display.clone() }

// Grant runs every command template with the recipient's name substituted,
// then hands over every item, dropping it at the player when the inventory
// is full. Command failures do not stop the remaining grant steps; the
// first one is returned. Commands with no dispatcher fail with
// ErrNoDispatcher.
func (r *Reward) Grant(to Recipient, d Dispatcher) error {
	if to == nil {
		return fmt.Errorf("grant %q: %w", r.name, ErrPlayerOffline)
	}
	var firstErr error
	if d == nil && len(r.commands) > 0 {
		firstErr = fmt.Errorf("grant %q: %d commands: %w", r.name, len(r.commands), ErrNoDispatcher)
	}
	for _, cmd := range r.commands {
		if d == nil {
			break
		}
		cmd = strings.ReplaceAll(cmd, PlayerPlaceholder, to.Name())
		if err := d.Dispatch(cmd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("grant %q: dispatch %q: %w", r.name, cmd, err)
		}
	}
	for _, it := range r.items {
		if !to.AddItem(it.clone()) {
			to.DropItem(it.clone())
		}
	}
	return firstErr
}
