package gacha

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is a block position in a named world.
type Location struct {
	World   string
	X, Y, Z int
}

// ParseLocation parses "<world> <x> <y> <z>".
func ParseLocation(s string) (Location, error) {
	args := strings.Fields(s)
	if len(args) < 4 {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	var coords [3]int
	for i := range coords {
		n, err := strconv.Atoi(args[i+1])
		if err != nil {
			return Location{}, fmt.Errorf("%w: %q: %v", ErrInvalidLocation, s, err)
		}
		coords[i] = n
	}
	return Location{World: args[0], X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

func (l Location) String() string {
	return fmt.Sprintf("%s %d %d %d", l.World, l.X, l.Y, l.Z)
}
