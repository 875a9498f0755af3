package priority

import (
	"testing"

	"github.com/starlingx/dscbuild"
)

func graphOf(names []string, deps map[string][]string) (*dscbuild.DependencyGraph, map[string]dscbuild.RecipeID) {
	g := &dscbuild.DependencyGraph{
		Recipes: make(map[dscbuild.RecipeID]*dscbuild.SourceRecipe),
		On:      make(map[dscbuild.RecipeID]map[dscbuild.RecipeID]bool),
		By:      make(map[dscbuild.RecipeID]map[dscbuild.RecipeID]bool),
	}
	idOf := make(map[string]dscbuild.RecipeID, len(names))
	for _, n := range names {
		id := dscbuild.RecipeID(n + ".dsc")
		g.Recipes[id] = &dscbuild.SourceRecipe{ID: id, Name: n}
		idOf[n] = id
		g.On[id] = make(map[dscbuild.RecipeID]bool)
		g.By[id] = make(map[dscbuild.RecipeID]bool)
	}
	for n, ds := range deps {
		for _, d := range ds {
			g.On[idOf[n]][idOf[d]] = true
			g.By[idOf[d]][idOf[n]] = true
		}
	}
	return g, idOf
}

// TestAssignLinearChain is scenario S1: A <- B <- C, expected
// priorities A=30, B=20, C=10.
func TestAssignLinearChain(t *testing.T) {
	g, id := graphOf([]string{"A", "B", "C"}, map[string][]string{
		"B": {"A"},
		"C": {"B"},
	})
	members := []dscbuild.RecipeID{id["A"], id["B"], id["C"]}
	got := Assign(g, members)
	want := map[dscbuild.RecipeID]int64{id["A"]: 30, id["B"]: 20, id["C"]: 10}
	for name, id := range id {
		if got[id] != want[id] {
			t.Errorf("priority[%s] = %d, want %d", name, got[id], want[id])
		}
	}
}

// TestAssignFanOut is scenario S2: B, C, D all depend on A alone. Expected
// A=40, B=C=D=10.
func TestAssignFanOut(t *testing.T) {
	g, id := graphOf([]string{"A", "B", "C", "D"}, map[string][]string{
		"B": {"A"},
		"C": {"A"},
		"D": {"A"},
	})
	members := []dscbuild.RecipeID{id["A"], id["B"], id["C"], id["D"]}
	got := Assign(g, members)
	if got[id["A"]] != 40 {
		t.Errorf("priority[A] = %d, want 40", got[id["A"]])
	}
	for _, n := range []string{"B", "C", "D"} {
		if got[id[n]] != 10 {
			t.Errorf("priority[%s] = %d, want 10", n, got[id[n]])
		}
	}
}
