package gacha

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// DefaultMaterial is used when an item string names no material.
const DefaultMaterial = "ACACIA_BOAT"

// Item describes one grantable stack. The engine does not interpret the
// material; the host maps it onto its own item registry.
type Item struct {
	Material        string
	Amount          int
	Name            string
	Lore            []string
	Enchantments    map[string]int
	CustomModelData int // -1 when unset
}

// ParseItem decodes the compact item notation used in banner files:
//
//	MATERIAL [amount] name:Display_Name lore:line_one|line_two sharpness:3 custom_model_data:7
//
// Underscores in name and lore become spaces. Unknown tokens are ignored.
func ParseItem(s string) Item {
	it := Item{Material: DefaultMaterial, Amount: 1, CustomModelData: -1}
	materialSet := false
	for _, arg := range strings.Fields(s) {
		key, val, ok := strings.Cut(arg, ":")
		if !ok {
			if n, err := strconv.Atoi(arg); err == nil {
				if n > 0 {
					it.Amount = n
				}
				continue
			}
			if !materialSet {
				it.Material = strings.ToUpper(arg)
				materialSet = true
			}
			continue
		}
		switch strings.ToLower(key) {
		case "name":
			it.Name = strings.ReplaceAll(val, "_", " ")
		case "lore":
			for _, line := range strings.Split(val, "|") {
				it.Lore = append(it.Lore, strings.ReplaceAll(line, "_", " "))
			}
		case "custom_model_data":
			if n, err := strconv.Atoi(val); err == nil {
				it.CustomModelData = n
			}
		default:
			level, err := strconv.Atoi(val)
			if err != nil {
				level = 1
			}
			if it.Enchantments == nil {
				it.Enchantments = make(map[string]int)
			}
			it.Enchantments[strings.ToLower(key)] = level
		}
	}
	return it
}

// String encodes the item back into the compact notation.
func (it Item) String() string {
	parts := []string{it.Material}
	if it.Amount > 1 {
		parts = append(parts, strconv.Itoa(it.Amount))
	}
	if it.Name != "" {
		parts = append(parts, "name:"+strings.ReplaceAll(it.Name, " ", "_"))
	}
	if len(it.Lore) > 0 {
		lore := make([]string, len(it.Lore))
		for i, l := range it.Lore {
			lore[i] = strings.ReplaceAll(l, " ", "_")
		}
		parts = append(parts, "lore:"+strings.Join(lore, "|"))
	}
	for _, k := range slices.Sorted(maps.Keys(it.Enchantments)) {
		parts = append(parts, k+":"+strconv.Itoa(it.Enchantments[k]))
	}
	if it.CustomModelData >= 0 {
		parts = append(parts, "custom_model_data:"+strconv.Itoa(it.CustomModelData))
	}
	return strings.Join(parts, " ")
}

func (it Item) clone() Item {
	out := it
	out.Lore = slices.Clone(it.Lore)
	out.Enchantments = maps.Clone(it.Enchantments)
	return out
}
