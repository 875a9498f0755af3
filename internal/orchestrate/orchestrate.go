// Package orchestrate wires C1 through C4 into a single build plan: it
// loads recipes, resolves their dependencies, partitions them into build
// groups, and assigns Simple-group priorities. Both cmd/ binaries use the
// resulting plan: dscsched prints it or hands it to internal/scheduler for
// a simulated worker pool, and dscwatcher logs it on every new commit.
//
// Grounded on cmd/distri's top-level command wiring, which likewise calls
// successive internal packages in turn without duplicating any of their
// logic. Build takes no logger and logs nothing; every failure is returned
// as an error.
package orchestrate

import (
	"github.com/starlingx/dscbuild"
	"github.com/starlingx/dscbuild/internal/depgraph"
	"github.com/starlingx/dscbuild/internal/group"
	"github.com/starlingx/dscbuild/internal/loader"
	"github.com/starlingx/dscbuild/internal/priority"
)

// Plan is a fully-computed, not-yet-scheduled build: the dependency graph
// and its ordered sequence of build groups, with Simple-group priorities
// already assigned.
type Plan struct {
	Graph  *dscbuild.DependencyGraph
	Groups []*dscbuild.BuildGroup
}

// Build loads the recipe list at listPath and, if declPath is non-empty,
// the circular declarations at declPath, both through reader; resolves
// dependencies through index; and computes the ordered build-group
// sequence with priorities assigned.
func Build(reader loader.RecipeReader, listPath, declPath string, index dscbuild.PackageIndex) (*Plan, error) {
	listFile, err := reader.Open(listPath)
	if err != nil {
		return nil, &dscbuild.RecipeUnreadableError{Path: listPath, Err: err}
	}
	paths, err := loader.ListPaths(listFile)
	closeErr := listFile.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, &dscbuild.RecipeUnreadableError{Path: listPath, Err: closeErr}
	}

	recipes, err := loader.Load(reader, paths)
	if err != nil {
		return nil, err
	}

	graph, err := depgraph.Resolve(recipes, index)
	if err != nil {
		return nil, err
	}

	var decls []dscbuild.CircularDeclaration
	if declPath != "" {
		declFile, err := reader.Open(declPath)
		if err != nil {
			return nil, &dscbuild.RecipeUnreadableError{Path: declPath, Err: err}
		}
		decls, err = group.ParseDeclarations(declFile)
		closeErr := declFile.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, &dscbuild.RecipeUnreadableError{Path: declPath, Err: closeErr}
		}
	}

	groups, err := group.Group(graph, decls)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Kind == dscbuild.SimpleGroup {
			g.Priorities = priority.Assign(graph, g.Members)
		}
	}

	return &Plan{Graph: graph, Groups: groups}, nil
}
