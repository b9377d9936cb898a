package gacha

import (
	"cmp"
	"slices"
	"strings"
)

// weighted is one row of a probability table.
type weighted[T any] struct {
	value  T
	name   string
	chance float64
}

// sortTable orders rows by ascending chance, ties broken by name so that
// resolution does not depend on map iteration order at load time.
func sortTable[T any](rows []weighted[T]) {
	slices.SortStableFunc(rows, func(a, b weighted[T]) int {
		if c := cmp.Compare(a.chance, b.chance); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.name), strings.ToLower(b.name))
	})
}

// pick walks rows in stored order accumulating chance and returns the first
// row whose cumulative probability reaches r.
// If the rows never reach r the first row is returned with matched == false.
func pick[T any](rows []weighted[T], r float64) (v T, matched bool, err error) {
	if len(rows) == 0 {
		return v, false, ErrEmptyTable
	}
	cumulative := 0.0
	for _, row := range rows {
		if row.chance <= 0 {
			continue
		}
		cumulative += row.chance
		if r <= cumulative {
			return row.value, true, nil
		}
	}
	return rows[0].value, false, nil
}

// tableSum returns the total probability of a table.
func tableSum[T any](rows []weighted[T]) float64 {
	sum := 0.0
	for _, row := range rows {
		sum += row.chance
	}
	return sum
}
