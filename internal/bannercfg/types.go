// types.go
package bannercfg

// Document is the banner file as it appears on disk.
type Document struct {
	Crates map[string]CrateConfig `yaml:"Crates"`
}

// CrateConfig is one banner section, keyed by its display name.
type CrateConfig struct {
	UUID          string `yaml:"UUID,omitempty"`
	AnimationType string `yaml:"Animation-Type,omitempty"`

	IsLimited5050Banner      bool     `yaml:"Is-Limited-5050-Banner,omitempty"`
	Featured5StarRewardNames []string `yaml:"Featured-5Star-Reward-Names,omitempty"`
	FiveStarTierName         string   `yaml:"Five-Star-Tier-Name,omitempty"`

	IsGuaranteedFeaturedWeaponBanner bool     `yaml:"Is-Guaranteed-Featured-Weapon-Banner,omitempty"`
	FeaturedWeaponNames              []string `yaml:"Featured-Weapon-Names,omitempty"`
	HighestWeaponTierName            string   `yaml:"Highest-Weapon-Tier-Name,omitempty"`

	RewardTiers map[string]*TierConfig `yaml:"Reward-Tiers,omitempty"`
	Locations   []string               `yaml:"Locations,omitempty"`
}

// TierConfig is one Reward-Tiers entry. Chances are on a 0-100 scale.
type TierConfig struct {
	Chance      *float64                 `yaml:"Chance,omitempty" validate:"omitempty,gte=0,lte=100"`
	Pity        bool                     `yaml:"Pity,omitempty"`
	PityLimit   int                      `yaml:"Pity-Limit,omitempty" validate:"gte=0"`
	DisplayItem string                   `yaml:"Display-Item,omitempty"`
	Color       *ColorConfig             `yaml:"Color,omitempty"`
	Rewards     map[string]*RewardConfig `yaml:"Rewards,omitempty"`
}

// ColorConfig channels default to 255 when omitted.
type ColorConfig struct {
	R *int `yaml:"R,omitempty" validate:"omitempty,gte=0,lte=255"`
	G *int `yaml:"G,omitempty" validate:"omitempty,gte=0,lte=255"`
	B *int `yaml:"B,omitempty" validate:"omitempty,gte=0,lte=255"`
}

// RewardConfig is one Rewards entry. Chance defaults to 10.
type RewardConfig struct {
	Chance      *float64 `yaml:"Chance,omitempty" validate:"omitempty,gte=0,lte=100"`
	Items       []string `yaml:"Items,omitempty"`
	Commands    []string `yaml:"Commands,omitempty"`
	DisplayItem string   `yaml:"Display-Item,omitempty"`
}

// Defaults applied by Build.
const (
	DefaultRewardChance = 10.0
	DefaultColorChannel = 255
)
