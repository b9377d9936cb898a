package engine

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

// Catalog indexes the loaded banners by name, UUID and bound location.
type Catalog struct {
	banners []*gacha.Banner
	byName  map[string]*gacha.Banner
	byID    map[uuid.UUID]*gacha.Banner
}

// NewCatalog indexes banners. Later duplicates of a name or UUID are
// ignored.
func NewCatalog(banners []*gacha.Banner) *Catalog {
	c := &Catalog{
		byName: make(map[string]*gacha.Banner, len(banners)),
		byID:   make(map[uuid.UUID]*gacha.Banner, len(banners)),
	}
	for _, b := range banners {
		if b == nil {
			continue
		}
		key := strings.ToLower(b.Name())
		if _, dup := c.byName[key]; dup {
			continue
		}
		if _, dup := c.byID[b.ID()]; dup {
			continue
		}
		c.byName[key] = b
		c.byID[b.ID()] = b
		c.banners = append(c.banners, b)
	}
	slices.SortFunc(c.banners, func(x, y *gacha.Banner) int {
		return strings.Compare(strings.ToLower(x.Name()), strings.ToLower(y.Name()))
	})
	return c
}

// All returns the banners sorted by name.
func (c *Catalog) All() []*gacha.Banner { return slices.Clone(c.banners) }

func (c *Catalog) Len() int { return len(c.banners) }

// Lookup finds a banner by case-insensitive name or by UUID.
func (c *Catalog) Lookup(ref string) (*gacha.Banner, bool) {
	ref = strings.TrimSpace(ref)
	if b, ok := c.byName[strings.ToLower(ref)]; ok {
		return b, true
	}
	if id, err := uuid.Parse(ref); err == nil {
		return c.ByID(id)
	}
	return nil, false
}

func (c *Catalog) ByID(id uuid.UUID) (*gacha.Banner, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// At returns the banner bound to loc.
func (c *Catalog) At(loc gacha.Location) (*gacha.Banner, bool) {
	for _, b := range c.banners {
		if b.HasLocation(loc) {
			return b, true
		}
	}
	return nil, false
}
