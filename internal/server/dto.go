package server

import (
	"github.com/google/uuid"

	"github.com/xtding233/gacha-engine/internal/engine"
	"github.com/xtding233/gacha-engine/internal/gacha"
)

// Locations travel as "<world> <x> <y> <z>".

type DropRateDTO struct {
	Tier        string  `json:"tier"`
	Percent     float64 `json:"percent"`
	PityEnabled bool    `json:"pity_enabled"`
	PityLimit   int     `json:"pity_limit,omitempty"`
}

type MechanicDTO struct {
	Enabled  bool     `json:"enabled"`
	TopTier  string   `json:"top_tier,omitempty"`
	Featured []string `json:"featured,omitempty"`
}

type BannerDTO struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	Animation      string        `json:"animation"`
	DropRates      []DropRateDTO `json:"drop_rates"`
	Locations      []string      `json:"locations"`
	InUse          []string      `json:"in_use,omitempty"`
	FiftyFifty     MechanicDTO   `json:"fifty_fifty"`
	FeaturedWeapon MechanicDTO   `json:"featured_weapon"`
}

type SessionDTO struct {
	Player   uuid.UUID `json:"player"`
	BannerID uuid.UUID `json:"banner_id"`
	Banner   string    `json:"banner"`
	Location string    `json:"location,omitempty"`
	Phase    string    `json:"phase"`
	Slots    int       `json:"slots"`
	Revealed int       `json:"revealed"`
}

type ItemDTO struct {
	Material string   `json:"material"`
	Amount   int      `json:"amount"`
	Name     string   `json:"name,omitempty"`
	Lore     []string `json:"lore,omitempty"`
}

type SlotDTO struct {
	Index         int     `json:"index"`
	Tier          string  `json:"tier"`
	Reward        string  `json:"reward"`
	Display       ItemDTO `json:"display"`
	PityTriggered bool    `json:"pity_triggered"`
	Outcome       string  `json:"outcome"`
}

type StepDTO struct {
	Kind string `json:"kind"`
	Slot int    `json:"slot"`
	At   int    `json:"at"`
}

type PlanDTO struct {
	Style      string    `json:"style"`
	Immediate  bool      `json:"immediate"`
	Steps      []StepDTO `json:"steps"`
	CompleteAt int       `json:"complete_at"`
}

type OpenResponse struct {
	Session   SessionDTO `json:"session"`
	Plan      PlanDTO    `json:"plan"`
	Requested int        `json:"requested"`
	Balance   int        `json:"balance"`
	Results   []SlotDTO  `json:"results,omitempty"`
}

type BalanceDTO struct {
	BannerID   uuid.UUID      `json:"banner_id"`
	Banner     string         `json:"banner"`
	Pulls      int            `json:"pulls"`
	Pity       map[string]int `json:"pity,omitempty"`
	Guaranteed bool           `json:"guaranteed"`
	FiftyFifty bool           `json:"fifty_fifty"`
}

type ReloadResponse struct {
	Banners  int      `json:"banners"`
	Deferred bool     `json:"deferred"`
	Warnings []string `json:"warnings,omitempty"`
}

// Requests

type JoinRequest struct {
	Name string `json:"name" validate:"required,max=32"`
}

type OpenRequestDTO struct {
	Banner   string `json:"banner"`
	Count    int    `json:"count" validate:"min=1"`
	Location string `json:"location"`
}

type LocationRequest struct {
	Location string `json:"location" validate:"required"`
}

type AmountRequest struct {
	Amount int `json:"amount" validate:"min=0"`
}

type SimulateRequest struct {
	Trials        int    `json:"trials" validate:"min=1"`
	PullsPerTrial int    `json:"pulls_per_trial" validate:"min=1"`
	Seed          uint64 `json:"seed"`
}

func locationString(l *gacha.Location) string {
	if l == nil {
		return ""
	}
	return l.String()
}

func locationStrings(locs []gacha.Location) []string {
	out := make([]string, 0, len(locs))
	for _, l := range locs {
		out = append(out, l.String())
	}
	return out
}

func mechanicDTO(m gacha.Mechanic) MechanicDTO {
	return MechanicDTO{Enabled: m.Enabled, TopTier: m.TopTier, Featured: m.Featured}
}

func bannerDTO(v gacha.BannerView) BannerDTO {
	return BannerDTO{
		ID:             v.ID,
		Name:           v.Name,
		Animation:      v.Animation,
		DropRates:      dropRateDTOs(v.DropRates),
		Locations:      locationStrings(v.Locations),
		InUse:          locationStrings(v.InUse),
		FiftyFifty:     mechanicDTO(v.FiftyFifty),
		FeaturedWeapon: mechanicDTO(v.FeaturedWeapon),
	}
}

func dropRateDTOs(rates []gacha.DropRate) []DropRateDTO {
	out := make([]DropRateDTO, 0, len(rates))
	for _, r := range rates {
		out = append(out, DropRateDTO{Tier: r.Tier, Percent: r.Percent, PityEnabled: r.PityEnabled, PityLimit: r.PityLimit})
	}
	return out
}

func sessionDTO(v gacha.SessionView) SessionDTO {
	return SessionDTO{
		Player:   v.Player,
		BannerID: v.BannerID,
		Banner:   v.Banner,
		Location: locationString(v.Location),
		Phase:    v.Phase.String(),
		Slots:    v.Slots,
		Revealed: v.Revealed,
	}
}

func itemDTO(it gacha.Item) ItemDTO {
	return ItemDTO{Material: it.Material, Amount: it.Amount, Name: it.Name, Lore: it.Lore}
}

func slotDTO(r gacha.PullResult) SlotDTO {
	d := SlotDTO{Index: r.Index, PityTriggered: r.PityTriggered, Outcome: r.Outcome.String()}
	if r.Tier != nil {
		d.Tier = r.Tier.Name()
	}
	if r.Reward != nil {
		d.Reward = r.Reward.Name()
		d.Display = itemDTO(r.Reward.Display())
	}
	return d
}

func slotDTOs(rs []gacha.PullResult) []SlotDTO {
	out := make([]SlotDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, slotDTO(r))
	}
	return out
}

func planDTO(p gacha.RevealPlan) PlanDTO {
	steps := make([]StepDTO, 0, len(p.Steps))
	for _, s := range p.Steps {
		steps = append(steps, StepDTO{Kind: s.Kind.String(), Slot: s.Slot, At: s.At})
	}
	return PlanDTO{Style: p.Style.String(), Immediate: p.Immediate, Steps: steps, CompleteAt: p.CompleteAt}
}

func balanceDTO(v engine.BalanceView) BalanceDTO {
	return BalanceDTO{
		BannerID:   v.BannerID,
		Banner:     v.Banner,
		Pulls:      v.Pulls,
		Pity:       v.Pity,
		Guaranteed: v.Guaranteed,
		FiftyFifty: v.FiftyFifty,
	}
}
