package gacha

import (
	"fmt"
	"strings"
)

// AnimationStyle selects how a resolved batch is revealed.
type AnimationStyle int

const (
	AnimationInterface AnimationStyle = iota
	AnimationNone
	AnimationPhysical
)

func (a AnimationStyle) String() string {
	switch a {
	case AnimationNone:
		return "NONE"
	case AnimationPhysical:
		return "PHYSICAL"
	default:
		return "INTERFACE"
	}
}

// ParseAnimationStyle parses NONE, INTERFACE or PHYSICAL (any case).
func ParseAnimationStyle(s string) (AnimationStyle, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return AnimationNone, nil
	case "INTERFACE":
		return AnimationInterface, nil
	case "PHYSICAL":
		return AnimationPhysical, nil
	}
	return AnimationInterface, fmt.Errorf("%w: %q", ErrInvalidAnimation, s)
}
