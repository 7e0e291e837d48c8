// Package wagons canonicalizes wagon lists and computes the set differences
// used to validate composition changes before anything is written.
package wagons

import (
	"slices"

	"github.com/railcore/railcore/internal/codes"
)

// CanonicalOrder returns a sorted copy of ws: ascending by position prefix,
// then by class rank (coupe, platzkart, luxury). Any remaining tie keeps
// input order.
func CanonicalOrder(ws []codes.WagonCode) []codes.WagonCode {
	out := slices.Clone(ws)
	slices.SortStableFunc(out, compare)
	return out
}

// IsCanonical reports whether ws is already in canonical order
func IsCanonical(ws []codes.WagonCode) bool {
	return slices.IsSortedFunc(ws, compare)
}

func compare(a, b codes.WagonCode) int {
	if d := a.Position() - b.Position(); d != 0 {
		return d
	}
	return a.Class().Rank() - b.Class().Rank()
}

// Duplicates returns every code that occurs more than once in ws,
// each reported once in first-seen order.
func Duplicates(ws []codes.WagonCode) []codes.WagonCode {
	seen := make(map[codes.WagonCode]int, len(ws))
	var dups []codes.WagonCode
	for _, w := range ws {
		seen[w]++
		if seen[w] == 2 {
			dups = append(dups, w)
		}
	}
	return dups
}

// Missing returns the members of toRemove that are not in existing
func Missing(existing, toRemove []codes.WagonCode) []codes.WagonCode {
	have := toSet(existing)
	var missing []codes.WagonCode
	for _, w := range toRemove {
		if _, ok := have[w]; !ok && !slices.Contains(missing, w) {
			missing = append(missing, w)
		}
	}
	return missing
}

// Overlap returns the members of added already present in existing
func Overlap(existing, added []codes.WagonCode) []codes.WagonCode {
	have := toSet(existing)
	var overlap []codes.WagonCode
	for _, w := range added {
		if _, ok := have[w]; ok && !slices.Contains(overlap, w) {
			overlap = append(overlap, w)
		}
	}
	return overlap
}

// Subtract returns existing without any member of removed, order preserved
func Subtract(existing, removed []codes.WagonCode) []codes.WagonCode {
	drop := toSet(removed)
	out := make([]codes.WagonCode, 0, len(existing))
	for _, w := range existing {
		if _, ok := drop[w]; !ok {
			out = append(out, w)
		}
	}
	return out
}

func toSet(ws []codes.WagonCode) map[codes.WagonCode]struct{} {
	set := make(map[codes.WagonCode]struct{}, len(ws))
	for _, w := range ws {
		set[w] = struct{}{}
	}
	return set
}

// Union returns existing followed by the members of added it does not hold yet
func Union(existing, added []codes.WagonCode) []codes.WagonCode {
	have := toSet(existing)
	out := slices.Clone(existing)
	for _, w := range added {
		if _, ok := have[w]; !ok {
			have[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}
