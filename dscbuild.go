// Package dscbuild computes a safe build order for a set of Debian
// source-package recipes and dispenses that order to a pool of concurrent
// build workers.
//
// Given recipes that each produce one or more binary packages and declare
// which binary packages they build-depend upon, dscbuild resolves build
// dependencies transitively through an external package index, partitions
// the recipes into an ordered sequence of build groups (tolerating declared
// circular groups but rejecting undeclared ones), assigns each recipe a
// priority that favors unblocking the most downstream work, and exposes a
// concurrency-safe Scheduler that workers poll for work and report outcomes
// to.
//
// dscbuild does not query a real APT archive or execute builds; those are
// external collaborators. Of a recipe's Debian control data it reads only
// the Source, Binary and Build-Depends* fields, by plain line scanning, not
// with a full control-file parser. See PackageIndex and the
// internal/loader package for the edges of what this module owns.
package dscbuild

// RecipeID opaquely and stably identifies a SourceRecipe across a single
// run. In practice it is the recipe's filesystem path.
type RecipeID string

// SourceRecipe is the unit of work: a Debian source package along with the
// binaries it produces and the raw build-dependency expression collected
// from its control data.
type SourceRecipe struct {
	// ID is stable across a run.
	ID RecipeID

	// Name is a short human name, used in diagnostics and for matching
	// declared circular dependency groups.
	Name string

	// Produces is the set of binary package names this recipe builds. It
	// must be non-empty.
	Produces map[string]bool

	// RawBuildDepends is the unparsed dependency expression: the
	// Build-Depends, Build-Depends-Indep and Build-Depends-Arch control
	// fields concatenated with ",".
	RawBuildDepends string
}

// PackageIndex is the external collaborator that knows the direct runtime
// dependencies of binary packages, e.g. an APT cache. Binaries unknown to
// the index are treated as external and always available.
type PackageIndex interface {
	// CandidateDependencies returns the direct runtime dependencies of
	// binary, or an empty set if binary is not present in the index.
	CandidateDependencies(binary string) (map[string]bool, error)
}

// DependencyGraph is the derived source-to-source build-dependency graph:
// vertices are SourceRecipe.ID, and On(a) names everything a build-depends
// on (transitively, through runtime deps), By(b) the reverse.
type DependencyGraph struct {
	Recipes map[RecipeID]*SourceRecipe
	On      map[RecipeID]map[RecipeID]bool
	By      map[RecipeID]map[RecipeID]bool
}

// CircularDeclaration names a set of recipes known to form a build-time
// cycle and the fixed serial order in which they must be built.
type CircularDeclaration struct {
	Members map[string]bool // recipe Name, not RecipeID
	Order   []string        // recipe Name, not RecipeID; a permutation of Members
}

// GroupKind discriminates the two BuildGroup variants.
type GroupKind int

const (
	// SimpleGroup is a cycle-free fragment, built in priority order.
	SimpleGroup GroupKind = iota
	// CircularGroup is a declared cycle, built strictly in Order.
	CircularGroup
)

func (k GroupKind) String() string {
	switch k {
	case SimpleGroup:
		return "simple"
	case CircularGroup:
		return "circular"
	default:
		return "unknown"
	}
}

// BuildGroup is one entry in the ordered sequence a Schedule dispatches
// through. It is a tagged union: Priorities is populated for Simple groups,
// Order for Circular ones; the other is nil.
type BuildGroup struct {
	Kind GroupKind

	// Members holds every recipe in this group. For a Circular group this
	// is the same set named by Order, in no particular order.
	Members []RecipeID

	// Order is the declared serial build order of a Circular group's
	// members. Nil for a Simple group.
	Order []RecipeID

	// Priorities holds the C4-assigned dispatch priority of each member of
	// a Simple group. Nil for a Circular group.
	Priorities map[RecipeID]int64
}

// Stats is a snapshot of scheduler progress, returned by Scheduler.Stats.
type Stats struct {
	Total, Waiting, Ready, Building, Accomplished int
	Groups                                        []GroupStats
}

// GroupStats is the per-group breakdown within a Stats snapshot.
type GroupStats struct {
	Kind                                           GroupKind
	Total, Waiting, Ready, Building, Accomplished int
}
