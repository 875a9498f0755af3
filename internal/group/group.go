// Package group implements the Cycle Classifier & Grouper (C3): it
// partitions a dependency graph into an ordered sequence of build groups,
// each either a cycle-free Simple fragment or a Circular fragment whose
// serial order comes from an external declaration, and rejects any
// remaining undeclared cycle.
//
// Grounded on dsc_depend.py's Circular_break class (__grouping,
// __get_simple_group, __get_circular_group, __get_circular_conf) for the
// layering algorithm and declaration file format; the undeclared-cycle
// diagnostic instead computes strongly connected components with
// gonum.org/v1/gonum/graph/topo.TarjanSCC, the way internal/batch/batch.go
// reaches for topo.Sort/topo.Unorderable to find cyclic components.
package group

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/starlingx/dscbuild"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ParseDeclarations reads a circular-dependency declaration file: lines
// starting with "#" are comments, and declarations come in strictly
// alternating pairs of
//
//	SRC SET: name1 name2 name3
//	BUILD ORDER: nameA nameB nameC
//
// where the token set of SRC SET must equal the token multiset of BUILD
// ORDER.
func ParseDeclarations(r io.Reader) ([]dscbuild.CircularDeclaration, error) {
	var decls []dscbuild.CircularDeclaration
	var pendingMembers map[string]bool
	var haveSrcSet bool

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "SRC SET:"):
			if haveSrcSet {
				return nil, &dscbuild.MalformedDeclarationError{Reason: "two consecutive SRC SET lines"}
			}
			fields := strings.Fields(strings.TrimPrefix(line, "SRC SET:"))
			if len(fields) == 0 {
				return nil, &dscbuild.MalformedDeclarationError{Reason: "SRC SET with no members"}
			}
			pendingMembers = make(map[string]bool, len(fields))
			for _, f := range fields {
				pendingMembers[f] = true
			}
			haveSrcSet = true

		case strings.HasPrefix(line, "BUILD ORDER:"):
			if !haveSrcSet {
				return nil, &dscbuild.MalformedDeclarationError{Reason: "BUILD ORDER without a preceding SRC SET"}
			}
			order := strings.Fields(strings.TrimPrefix(line, "BUILD ORDER:"))
			if len(order) != len(pendingMembers) {
				return nil, &dscbuild.MalformedDeclarationError{
					Reason: fmt.Sprintf("BUILD ORDER names %d packages, SRC SET names %d", len(order), len(pendingMembers)),
				}
			}
			seen := make(map[string]bool, len(order))
			for _, name := range order {
				if !pendingMembers[name] {
					return nil, &dscbuild.MalformedDeclarationError{
						Reason: fmt.Sprintf("BUILD ORDER names %q, which SRC SET does not contain", name),
					}
				}
				if seen[name] {
					return nil, &dscbuild.MalformedDeclarationError{
						Reason: fmt.Sprintf("BUILD ORDER repeats %q", name),
					}
				}
				seen[name] = true
			}
			decls = append(decls, dscbuild.CircularDeclaration{Members: pendingMembers, Order: order})
			pendingMembers = nil
			haveSrcSet = false

		default:
			return nil, &dscbuild.MalformedDeclarationError{Reason: fmt.Sprintf("unrecognized line %q", line)}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if haveSrcSet {
		return nil, &dscbuild.MalformedDeclarationError{Reason: "trailing SRC SET with no BUILD ORDER"}
	}
	return decls, nil
}

// Group partitions graph into an ordered sequence of BuildGroups, using
// declarations to resolve any cycle it encounters.
func Group(g *dscbuild.DependencyGraph, declarations []dscbuild.CircularDeclaration) ([]*dscbuild.BuildGroup, error) {
	remaining := make(map[dscbuild.RecipeID]bool, len(g.Recipes))
	nameToID := make(map[string]dscbuild.RecipeID, len(g.Recipes))
	for id, recipe := range g.Recipes {
		remaining[id] = true
		nameToID[recipe.Name] = id
	}

	var groups []*dscbuild.BuildGroup
	var checkedBad []map[string]bool

	for len(remaining) > 0 {
		if layer := extractSimpleLayer(g, remaining); len(layer) > 0 {
			sort.Slice(layer, func(i, j int) bool { return g.Recipes[layer[i]].Name < g.Recipes[layer[j]].Name })
			groups = append(groups, &dscbuild.BuildGroup{Kind: dscbuild.SimpleGroup, Members: layer})
			for _, id := range layer {
				delete(remaining, id)
			}
			continue
		}

		extracted, newlyBad, err := extractCircularLayer(g, remaining, declarations, nameToID, checkedBad)
		checkedBad = append(checkedBad, newlyBad...)
		if err != nil {
			return nil, err
		}
		if extracted != nil {
			groups = append(groups, extracted)
			for _, id := range extracted.Members {
				delete(remaining, id)
			}
			continue
		}

		return nil, undeclaredCycleError(g, remaining)
	}
	return groups, nil
}

// extractSimpleLayer returns the largest acyclic prefix of remaining: it
// repeatedly peels every member whose dependencies (within what's left of
// remaining) are empty, simulating their completion and rescanning, until a
// pass peels nothing more. This mirrors dsc_depend.py's __get_simple_group
// inner while loop, which keeps accumulating into the same Simple group
// rather than stopping after a single topological frontier.
func extractSimpleLayer(g *dscbuild.DependencyGraph, remaining map[dscbuild.RecipeID]bool) []dscbuild.RecipeID {
	working := make(map[dscbuild.RecipeID]bool, len(remaining))
	for id := range remaining {
		working[id] = true
	}

	var layer []dscbuild.RecipeID
	for {
		var frontier []dscbuild.RecipeID
		for id := range working {
			blocked := false
			for dep := range g.On[id] {
				if working[dep] {
					blocked = true
					break
				}
			}
			if !blocked {
				frontier = append(frontier, id)
			}
		}
		if len(frontier) == 0 {
			break
		}
		layer = append(layer, frontier...)
		for _, id := range frontier {
			delete(working, id)
		}
	}
	return layer
}

// extractCircularLayer scans declarations in order for one whose members
// are entirely within remaining and depend only on themselves, returning it
// as a BuildGroup. checkedBad holds member-sets already known to fail (from
// a prior outer-loop iteration); any declaration whose members are a subset
// of an already-checked set is skipped without rechecking. Declarations
// that fail the dependency check in this call are returned as newlyBad so
// the caller can extend checkedBad for subsequent iterations.
func extractCircularLayer(
	g *dscbuild.DependencyGraph,
	remaining map[dscbuild.RecipeID]bool,
	declarations []dscbuild.CircularDeclaration,
	nameToID map[string]dscbuild.RecipeID,
	checkedBad []map[string]bool,
) (group *dscbuild.BuildGroup, newlyBad []map[string]bool, err error) {
	for _, decl := range declarations {
		if isSubsetOfAny(decl.Members, checkedBad) {
			continue
		}

		memberIDs := make([]dscbuild.RecipeID, 0, len(decl.Members))
		applicable := true
		for name := range decl.Members {
			id, ok := nameToID[name]
			if !ok || !remaining[id] {
				applicable = false
				break
			}
			memberIDs = append(memberIDs, id)
		}
		if !applicable {
			continue
		}

		memberSet := make(map[dscbuild.RecipeID]bool, len(memberIDs))
		for _, id := range memberIDs {
			memberSet[id] = true
		}
		depUnion := make(map[dscbuild.RecipeID]bool)
		for _, id := range memberIDs {
			for dep := range g.On[id] {
				if remaining[dep] {
					depUnion[dep] = true
				}
			}
		}
		if setsEqual(depUnion, memberSet) {
			order := make([]dscbuild.RecipeID, len(decl.Order))
			for i, name := range decl.Order {
				order[i] = nameToID[name]
			}
			return &dscbuild.BuildGroup{Kind: dscbuild.CircularGroup, Members: memberIDs, Order: order}, newlyBad, nil
		}
		newlyBad = append(newlyBad, decl.Members)
	}
	return nil, newlyBad, nil
}

func setsEqual(a, b map[dscbuild.RecipeID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func isSubsetOfAny(members map[string]bool, checkedBad []map[string]bool) bool {
	for _, bad := range checkedBad {
		if len(members) > len(bad) {
			continue
		}
		subset := true
		for m := range members {
			if !bad[m] {
				subset = false
				break
			}
		}
		if subset {
			return true
		}
	}
	return false
}

// recipeNode adapts a RecipeID to gonum's graph.Node interface.
type recipeNode struct {
	id   int64
	name dscbuild.RecipeID
}

func (n recipeNode) ID() int64 { return n.id }

// undeclaredCycleError builds the remaining subgraph as a gonum directed
// graph and reports every strongly connected component of size > 1 (or a
// self-loop) as an offending cycle.
func undeclaredCycleError(g *dscbuild.DependencyGraph, remaining map[dscbuild.RecipeID]bool) error {
	dg := simple.NewDirectedGraph()
	nodes := make(map[dscbuild.RecipeID]recipeNode, len(remaining))
	var nextID int64
	for id := range remaining {
		n := recipeNode{id: nextID, name: id}
		nextID++
		nodes[id] = n
		dg.AddNode(n)
	}
	for id := range remaining {
		for dep := range g.On[id] {
			if remaining[dep] {
				dg.SetEdge(dg.NewEdge(nodes[id], nodes[dep]))
			}
		}
	}

	var cycles []dscbuild.Cycle
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			n := scc[0].(recipeNode)
			if !dg.HasEdgeFromTo(n.ID(), n.ID()) {
				continue // singleton with no self-loop: not a cycle
			}
		}
		names := make([]string, len(scc))
		for i, n := range scc {
			names[i] = g.Recipes[n.(recipeNode).name].Name
		}
		sort.Strings(names)
		cycles = append(cycles, dscbuild.Cycle{Names: names})
	}
	return &dscbuild.UndeclaredCycleError{Cycles: cycles}
}

var _ graph.Node = recipeNode{}
