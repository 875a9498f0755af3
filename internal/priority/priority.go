// Package priority implements Priority Assignment (C4): within a cycle-free
// build group, it assigns each recipe an integer priority that favors
// recipes which unblock the most downstream work, for use as a dispatch
// tie-breaker.
//
// Grounded on dsc_depend.py's Simple_dsc_order.__set_priority: every recipe
// starts at 10, and peeling leaves of the "depended upon by" graph adds
// each leaf's priority onto everything it build-depends on.
package priority

import (
	"github.com/starlingx/dscbuild"
)

const base = 10

// Assign computes the priority of every member of a Simple BuildGroup.
// g is the full dependency graph; only edges between members are
// considered. Assign does not see a group's Kind; it panics if the edges
// among members contain a cycle.
func Assign(g *dscbuild.DependencyGraph, members []dscbuild.RecipeID) map[dscbuild.RecipeID]int64 {
	inGroup := make(map[dscbuild.RecipeID]bool, len(members))
	for _, id := range members {
		inGroup[id] = true
	}

	priority := make(map[dscbuild.RecipeID]int64, len(members))
	// incoming[v] counts how many remaining members depend on v, i.e. the
	// in-degree of v in the "depended upon by" direction restricted to the
	// group; v is peelable once this reaches zero.
	incoming := make(map[dscbuild.RecipeID]int, len(members))
	for _, id := range members {
		priority[id] = base
		count := 0
		for by := range g.By[id] {
			if inGroup[by] {
				count++
			}
		}
		incoming[id] = count
	}

	remaining := append([]dscbuild.RecipeID(nil), members...)
	for len(remaining) > 0 {
		var next []dscbuild.RecipeID
		var leaf dscbuild.RecipeID
		found := false
		for i, id := range remaining {
			if incoming[id] == 0 {
				leaf = id
				found = true
				next = append(append([]dscbuild.RecipeID(nil), remaining[:i]...), remaining[i+1:]...)
				break
			}
		}
		if !found {
			// A Simple group is cycle-free by construction (C3 would have
			// classified it Circular or rejected it otherwise), so this is
			// unreachable for well-formed input.
			panic("priority.Assign: group is not cycle-free")
		}
		for dep := range g.On[leaf] {
			if inGroup[dep] {
				priority[dep] += priority[leaf]
				incoming[dep]--
			}
		}
		remaining = next
	}

	return priority
}
