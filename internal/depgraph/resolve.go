// Package depgraph implements the Dependency Resolver (C2): it tokenizes
// each recipe's raw build-depends expression, closes the transitive runtime
// dependencies of the resulting binaries through an external PackageIndex,
// maps binaries back to the recipes that produce them, and derives the
// source-to-source DependencyGraph.
//
// Grounded on dsc_depend.py's Dsc_build_order.__get_depends (tokenization)
// and get_runtime_depends (fixed-point closure).
package depgraph

import (
	"regexp"
	"strings"

	"github.com/starlingx/dscbuild"
)

// bracketed matches a parenthesized version constraint, a square-bracketed
// architecture restriction, or an angle-bracketed build-profile
// restriction, non-greedily, mirroring dsc_depend.py's
// re.sub(u"\<.*?\>|\(.*?\)|\[.*?\]", "", raw_pkg).
var bracketed = regexp.MustCompile(`<[^>]*>|\([^)]*\)|\[[^\]]*\]`)

// tokenize splits a raw build-depends expression (already the
// comma-concatenation of Build-Depends, Build-Depends-Indep and
// Build-Depends-Arch) into the set of bare binary names it directly names.
//
// Tokens containing the literal substring "<cross>" are cross-build-only
// and are discarded whole, before any bracket stripping.
func tokenize(raw string) map[string]bool {
	raw = strings.ReplaceAll(raw, " ", "")
	out := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		for _, tok := range strings.Split(part, "|") {
			if tok == "" {
				continue
			}
			if strings.Contains(tok, "<cross>") {
				continue
			}
			tok = bracketed.ReplaceAllString(tok, "")
			if tok != "" {
				out[tok] = true
			}
		}
	}
	return out
}

// closeRuntimeDeps returns the transitive closure of direct's runtime
// dependencies, as reported by index, accumulating to a fixed point.
// Binaries unknown to index are kept but contribute no further edges.
func closeRuntimeDeps(direct map[string]bool, index dscbuild.PackageIndex) (map[string]bool, error) {
	closed := make(map[string]bool, len(direct))
	for pkg := range direct {
		closed[pkg] = true
	}
	frontier := direct
	for len(frontier) > 0 {
		next := make(map[string]bool)
		for pkg := range frontier {
			deps, err := index.CandidateDependencies(pkg)
			if err != nil {
				return nil, &dscbuild.IndexUnavailableError{Binary: pkg, Err: err}
			}
			for dep := range deps {
				if !closed[dep] {
					next[dep] = true
				}
			}
		}
		for dep := range next {
			closed[dep] = true
		}
		frontier = next
	}
	return closed, nil
}

// Resolve builds the source-to-source DependencyGraph for recipes, closing
// each recipe's build-depends through index and mapping binaries back to
// the (unique) recipe that produces them.
func Resolve(recipes []*dscbuild.SourceRecipe, index dscbuild.PackageIndex) (*dscbuild.DependencyGraph, error) {
	bySource := make(map[dscbuild.RecipeID]*dscbuild.SourceRecipe, len(recipes))
	binaryToSource := make(map[string]dscbuild.RecipeID)
	for _, r := range recipes {
		bySource[r.ID] = r
		for binary := range r.Produces {
			if other, ok := binaryToSource[binary]; ok && other != r.ID {
				return nil, &dscbuild.DuplicateBinaryError{
					Binary:  binary,
					Recipes: []dscbuild.RecipeID{other, r.ID},
				}
			}
			binaryToSource[binary] = r.ID
		}
	}

	on := make(map[dscbuild.RecipeID]map[dscbuild.RecipeID]bool, len(recipes))
	by := make(map[dscbuild.RecipeID]map[dscbuild.RecipeID]bool, len(recipes))
	for id := range bySource {
		on[id] = make(map[dscbuild.RecipeID]bool)
		by[id] = make(map[dscbuild.RecipeID]bool)
	}

	for _, r := range recipes {
		direct := tokenize(r.RawBuildDepends)
		closed, err := closeRuntimeDeps(direct, index)
		if err != nil {
			return nil, err
		}
		for binary := range closed {
			src, ok := binaryToSource[binary]
			if !ok {
				continue // external, always available
			}
			if src == r.ID {
				continue // self-loop stripped silently
			}
			on[r.ID][src] = true
			by[src][r.ID] = true
		}
	}

	return &dscbuild.DependencyGraph{Recipes: bySource, On: on, By: by}, nil
}
