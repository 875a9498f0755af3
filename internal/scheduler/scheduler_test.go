package scheduler

import (
	"sort"
	"sync"
	"testing"

	"github.com/starlingx/dscbuild"
)

func newGraph(names []string, deps map[string][]string) (*dscbuild.DependencyGraph, map[string]dscbuild.RecipeID) {
	g := &dscbuild.DependencyGraph{
		Recipes: make(map[dscbuild.RecipeID]*dscbuild.SourceRecipe),
		On:      make(map[dscbuild.RecipeID]map[dscbuild.RecipeID]bool),
		By:      make(map[dscbuild.RecipeID]map[dscbuild.RecipeID]bool),
	}
	id := make(map[string]dscbuild.RecipeID, len(names))
	for _, n := range names {
		rid := dscbuild.RecipeID(n + ".dsc")
		g.Recipes[rid] = &dscbuild.SourceRecipe{ID: rid, Name: n}
		id[n] = rid
		g.On[rid] = make(map[dscbuild.RecipeID]bool)
		g.By[rid] = make(map[dscbuild.RecipeID]bool)
	}
	for n, ds := range deps {
		for _, d := range ds {
			g.On[id[n]][id[d]] = true
			g.By[id[d]][id[n]] = true
		}
	}
	return g, id
}

func names(g *dscbuild.DependencyGraph, ids []dscbuild.RecipeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.Recipes[id].Name
	}
	return out
}

// TestLinearChain is scenario S1: successful dispatch order A, B, C.
func TestLinearChain(t *testing.T) {
	g, id := newGraph([]string{"A", "B", "C"}, map[string][]string{
		"B": {"A"},
		"C": {"B"},
	})
	group := &dscbuild.BuildGroup{
		Kind:       dscbuild.SimpleGroup,
		Members:    []dscbuild.RecipeID{id["A"], id["B"], id["C"]},
		Priorities: map[dscbuild.RecipeID]int64{id["A"]: 30, id["B"]: 20, id["C"]: 10},
	}
	s := New(g, []*dscbuild.BuildGroup{group})

	for _, want := range []string{"A", "B", "C"} {
		batch, err := s.NextBatch(1)
		if err != nil {
			t.Fatal(err)
		}
		if got := names(g, batch); len(got) != 1 || got[0] != want {
			t.Fatalf("NextBatch = %v, want [%s]", got, want)
		}
		if err := s.ReportSuccess(batch[0]); err != nil {
			t.Fatal(err)
		}
	}
	if !s.Done() {
		t.Error("schedule not Done after all three recipes succeeded")
	}
}

// TestFanOut is scenario S2: A alone first, then B,C,D in a name-sorted
// batch of 3.
func TestFanOut(t *testing.T) {
	g, id := newGraph([]string{"A", "B", "C", "D"}, map[string][]string{
		"B": {"A"},
		"C": {"A"},
		"D": {"A"},
	})
	group := &dscbuild.BuildGroup{
		Kind:       dscbuild.SimpleGroup,
		Members:    []dscbuild.RecipeID{id["A"], id["B"], id["C"], id["D"]},
		Priorities: map[dscbuild.RecipeID]int64{id["A"]: 40, id["B"]: 10, id["C"]: 10, id["D"]: 10},
	}
	s := New(g, []*dscbuild.BuildGroup{group})

	first, err := s.NextBatch(5)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(g, first); len(got) != 1 || got[0] != "A" {
		t.Fatalf("first batch = %v, want [A]", got)
	}
	if err := s.ReportSuccess(first[0]); err != nil {
		t.Fatal(err)
	}

	second, err := s.NextBatch(3)
	if err != nil {
		t.Fatal(err)
	}
	got := names(g, second)
	sort.Strings(got)
	if len(got) != 3 || got[0] != "B" || got[1] != "C" || got[2] != "D" {
		t.Fatalf("second batch = %v, want [B C D]", got)
	}
}

// TestDeclaredCycle is scenario S3.
func TestDeclaredCycle(t *testing.T) {
	g, id := newGraph([]string{"X", "Y"}, map[string][]string{
		"X": {"Y"},
		"Y": {"X"},
	})
	group := &dscbuild.BuildGroup{
		Kind:    dscbuild.CircularGroup,
		Members: []dscbuild.RecipeID{id["X"], id["Y"]},
		Order:   []dscbuild.RecipeID{id["X"], id["Y"]},
	}
	s := New(g, []*dscbuild.BuildGroup{group})

	batch, err := s.NextBatch(5)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(g, batch); len(got) != 1 || got[0] != "X" {
		t.Fatalf("first batch = %v, want [X]", got)
	}
	if err := s.ReportSuccess(batch[0]); err != nil {
		t.Fatal(err)
	}

	batch, err = s.NextBatch(5)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(g, batch); len(got) != 1 || got[0] != "Y" {
		t.Fatalf("second batch = %v, want [Y]", got)
	}
	if err := s.ReportSuccess(batch[0]); err != nil {
		t.Fatal(err)
	}
	if !s.Done() {
		t.Error("schedule not Done after both cycle members succeeded")
	}
}

// TestCyclePlusTail is scenario S5: Z must wait for the whole circular
// group to finish.
func TestCyclePlusTail(t *testing.T) {
	g, id := newGraph([]string{"X", "Y", "Z"}, map[string][]string{
		"X": {"Y"},
		"Y": {"X"},
		"Z": {"X"},
	})
	groups := []*dscbuild.BuildGroup{
		{Kind: dscbuild.CircularGroup, Members: []dscbuild.RecipeID{id["X"], id["Y"]}, Order: []dscbuild.RecipeID{id["X"], id["Y"]}},
		{Kind: dscbuild.SimpleGroup, Members: []dscbuild.RecipeID{id["Z"]}, Priorities: map[dscbuild.RecipeID]int64{id["Z"]: 10}},
	}
	s := New(g, groups)

	batch, _ := s.NextBatch(5)
	if got := names(g, batch); len(got) != 1 || got[0] != "X" {
		t.Fatalf("batch = %v, want [X]", got)
	}
	s.ReportSuccess(batch[0])

	// Z must not be dispatchable yet: the circular group isn't done.
	batch, _ = s.NextBatch(5)
	if got := names(g, batch); len(got) != 1 || got[0] != "Y" {
		t.Fatalf("batch = %v, want [Y] (Z must wait)", got)
	}
	s.ReportSuccess(batch[0])

	batch, err := s.NextBatch(5)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(g, batch); len(got) != 1 || got[0] != "Z" {
		t.Fatalf("batch = %v, want [Z]", got)
	}
}

// TestFailureThenRetry is scenario S6.
func TestFailureThenRetry(t *testing.T) {
	g, id := newGraph([]string{"A", "B"}, map[string][]string{
		"B": {"A"},
	})
	group := &dscbuild.BuildGroup{
		Kind:       dscbuild.SimpleGroup,
		Members:    []dscbuild.RecipeID{id["A"], id["B"]},
		Priorities: map[dscbuild.RecipeID]int64{id["A"]: 20, id["B"]: 10},
	}
	s := New(g, []*dscbuild.BuildGroup{group})

	batch, _ := s.NextBatch(1)
	if got := names(g, batch); len(got) != 1 || got[0] != "A" {
		t.Fatalf("batch = %v, want [A]", got)
	}
	if err := s.ReportFailure(batch[0]); err != nil {
		t.Fatal(err)
	}

	retry, err := s.NextBatch(1)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(g, retry); len(got) != 1 || got[0] != "A" {
		t.Fatalf("retry batch = %v, want [A] again", got)
	}
	if err := s.ReportSuccess(retry[0]); err != nil {
		t.Fatal(err)
	}

	unblocked, _ := s.NextBatch(1)
	if got := names(g, unblocked); len(got) != 1 || got[0] != "B" {
		t.Fatalf("batch = %v, want [B]", got)
	}
}

func TestInvalidBatchSize(t *testing.T) {
	g, id := newGraph([]string{"A"}, nil)
	group := &dscbuild.BuildGroup{Kind: dscbuild.SimpleGroup, Members: []dscbuild.RecipeID{id["A"]}, Priorities: map[dscbuild.RecipeID]int64{id["A"]: 10}}
	s := New(g, []*dscbuild.BuildGroup{group})
	for _, n := range []int{0, 100, -1} {
		if _, err := s.NextBatch(n); err == nil {
			t.Errorf("NextBatch(%d): got nil error, want *InvalidBatchSizeError", n)
		}
	}
}

func TestReportOnNonBuildingRecipe(t *testing.T) {
	g, id := newGraph([]string{"A"}, nil)
	group := &dscbuild.BuildGroup{Kind: dscbuild.SimpleGroup, Members: []dscbuild.RecipeID{id["A"]}, Priorities: map[dscbuild.RecipeID]int64{id["A"]: 10}}
	s := New(g, []*dscbuild.BuildGroup{group})

	err := s.ReportSuccess(id["A"])
	var notDispatched *dscbuild.NotDispatchedError
	if err == nil {
		t.Fatal("ReportSuccess on a merely-ready recipe: got nil error")
	}
	if e, ok := err.(*dscbuild.NotDispatchedError); !ok {
		t.Fatalf("got %T, want *NotDispatchedError", err)
	} else {
		notDispatched = e
	}
	if notDispatched.Current != "ready" {
		t.Errorf("Current = %q, want %q", notDispatched.Current, "ready")
	}
}

// TestConcurrentUniqueness is property I2: concurrent NextBatch(1) callers
// must never both receive the same id.
func TestConcurrentUniqueness(t *testing.T) {
	g, id := newGraph([]string{"A", "B", "C", "D"}, nil)
	group := &dscbuild.BuildGroup{
		Kind:    dscbuild.SimpleGroup,
		Members: []dscbuild.RecipeID{id["A"], id["B"], id["C"], id["D"]},
		Priorities: map[dscbuild.RecipeID]int64{
			id["A"]: 10, id["B"]: 10, id["C"]: 10, id["D"]: 10,
		},
	}
	s := New(g, []*dscbuild.BuildGroup{group})

	var mu sync.Mutex
	seen := make(map[dscbuild.RecipeID]int)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch, err := s.NextBatch(1)
			if err != nil || len(batch) == 0 {
				return
			}
			mu.Lock()
			seen[batch[0]]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	for rid, count := range seen {
		if count != 1 {
			t.Errorf("recipe %v dispatched %d times concurrently, want 1", rid, count)
		}
	}
}

func TestStats(t *testing.T) {
	g, id := newGraph([]string{"A", "B"}, map[string][]string{"B": {"A"}})
	group := &dscbuild.BuildGroup{
		Kind:       dscbuild.SimpleGroup,
		Members:    []dscbuild.RecipeID{id["A"], id["B"]},
		Priorities: map[dscbuild.RecipeID]int64{id["A"]: 20, id["B"]: 10},
	}
	s := New(g, []*dscbuild.BuildGroup{group})

	stats := s.Stats()
	if stats.Total != 2 || stats.Ready != 1 || stats.Waiting != 1 {
		t.Fatalf("initial stats = %+v, want Total=2 Ready=1 Waiting=1", stats)
	}

	batch, _ := s.NextBatch(1)
	s.ReportSuccess(batch[0])

	stats = s.Stats()
	if stats.Accomplished != 1 || stats.Ready != 1 {
		t.Errorf("stats after one success = %+v, want Accomplished=1 Ready=1", stats)
	}
}
