package dscbuild

import "fmt"

// RecipeUnreadableError reports that a recipe's backing file could not be
// opened or read. It is fatal at construction.
type RecipeUnreadableError struct {
	Path string
	Err  error
}

func (e *RecipeUnreadableError) Error() string {
	return fmt.Sprintf("recipe %q: unreadable: %v", e.Path, e.Err)
}

func (e *RecipeUnreadableError) Unwrap() error { return e.Err }

// RecipeMalformedError reports that a recipe is missing a required control
// field. It is fatal at construction.
type RecipeMalformedError struct {
	Path  string
	Field string
}

func (e *RecipeMalformedError) Error() string {
	return fmt.Sprintf("recipe %q: malformed: missing or empty %q field", e.Path, e.Field)
}

// DuplicateBinaryError reports that two recipes both produce the same binary
// package. It is fatal at construction.
type DuplicateBinaryError struct {
	Binary  string
	Recipes []RecipeID
}

func (e *DuplicateBinaryError) Error() string {
	return fmt.Sprintf("binary package %q is produced by more than one recipe: %v", e.Binary, e.Recipes)
}

// MalformedDeclarationError reports that a circular-dependency declaration's
// SRC SET and BUILD ORDER lines disagree, or that a declaration is empty. It
// is fatal at construction.
type MalformedDeclarationError struct {
	Reason string
}

func (e *MalformedDeclarationError) Error() string {
	return fmt.Sprintf("malformed circular dependency declaration: %s", e.Reason)
}

// Cycle is one strongly-connected component of undeclared circular build
// dependencies.
type Cycle struct {
	// Names lists the recipe names participating in the component, sorted
	// by name. The order is not a traversal of the dependency edges: for a
	// component of more than two recipes, adjacent names need not be joined
	// by a direct build dependency.
	Names []string
}

// String renders the cycle as "A build depends on B build depends on A",
// closing the loop back to the first participant. The names appear in
// Names order, so each "build depends on" link is only guaranteed to be a
// direct edge for a two-recipe component.
func (c Cycle) String() string {
	s := ""
	for i, name := range c.Names {
		if i > 0 {
			s += " build depends on "
		}
		s += name
	}
	if len(c.Names) > 0 {
		s += " build depends on " + c.Names[0]
	}
	return s
}

// UndeclaredCycleError reports that the dependency graph contains one or more
// cycles not covered by any circular dependency declaration. It is fatal at
// construction and carries every offending strongly-connected component.
type UndeclaredCycleError struct {
	Cycles []Cycle
}

func (e *UndeclaredCycleError) Error() string {
	s := fmt.Sprintf("undeclared circular build dependency: %d cycle(s) found:\n", len(e.Cycles))
	for _, c := range e.Cycles {
		s += "  " + c.String() + "\n"
	}
	return s
}

// IndexUnavailableError reports that the external package index could not be
// consulted while closing runtime dependencies. It is fatal at construction.
type IndexUnavailableError struct {
	Binary string
	Err    error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("package index unavailable while resolving %q: %v", e.Binary, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// NotDispatchedError reports that report_success/report_failure was called
// for a recipe that is not currently in the building state. It is
// recoverable: the scheduler's state is left unchanged.
type NotDispatchedError struct {
	ID      RecipeID
	Current string // the recipe's actual state at the time of the call
}

func (e *NotDispatchedError) Error() string {
	return fmt.Sprintf("recipe %q: expected state \"building\", actual state %q", e.ID, e.Current)
}

// InvalidBatchSizeError reports that next_batch was called with n outside
// [1, 99].
type InvalidBatchSizeError struct {
	N int
}

func (e *InvalidBatchSizeError) Error() string {
	return fmt.Sprintf("invalid batch size %d: must satisfy 1 <= n <= 99", e.N)
}
