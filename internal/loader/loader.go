// Package loader implements the Recipe Loader (C1): it ingests source-package
// recipes named in a recipe list file and extracts the binaries each one
// produces along with its raw build-dependency expression.
//
// Grounded on dsc_depend.py's Dsc_build_order.__scan_dsc_list /
// __scan_dsc_file: a recipe is a line-oriented control file with Source,
// Binary, Build-Depends, Build-Depends-Indep and Build-Depends-Arch fields.
package loader

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/starlingx/dscbuild"
)

// RecipeReader opens the recipe file named by path. The zero value of
// OSRecipeReader reads directly from the local filesystem; tests substitute
// an in-memory implementation so the loader can be exercised without a disk.
type RecipeReader interface {
	Open(path string) (io.ReadCloser, error)
}

// OSRecipeReader reads recipe files from the local filesystem.
type OSRecipeReader struct{}

func (OSRecipeReader) Open(path string) (io.ReadCloser, error) { return os.Open(path) }

// ListPaths reads a recipe list: a UTF-8 text file in which each
// non-blank, non-'#'-prefixed line names one recipe path.
func ListPaths(r io.Reader) ([]string, error) {
	var paths []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Load reads and parses each recipe named in paths through reader, in order,
// and rejects the whole batch if any binary package is produced by more than
// one recipe.
func Load(reader RecipeReader, paths []string) ([]*dscbuild.SourceRecipe, error) {
	seenBinary := make(map[string]dscbuild.RecipeID)
	recipes := make([]*dscbuild.SourceRecipe, 0, len(paths))
	for _, path := range paths {
		rc, err := reader.Open(path)
		if err != nil {
			return nil, &dscbuild.RecipeUnreadableError{Path: path, Err: err}
		}
		recipe, scanErr := scan(path, rc)
		closeErr := rc.Close()
		if scanErr != nil {
			return nil, scanErr
		}
		if closeErr != nil {
			return nil, &dscbuild.RecipeUnreadableError{Path: path, Err: closeErr}
		}

		for binary := range recipe.Produces {
			if other, ok := seenBinary[binary]; ok {
				return nil, &dscbuild.DuplicateBinaryError{
					Binary:  binary,
					Recipes: []dscbuild.RecipeID{other, recipe.ID},
				}
			}
			seenBinary[binary] = recipe.ID
		}
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

func scan(path string, r io.Reader) (*dscbuild.SourceRecipe, error) {
	var name, binary, buildDepends, buildDependsIndep, buildDependsArch string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "Source:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "Source:"))
		case strings.HasPrefix(line, "Binary:"):
			binary = strings.TrimSpace(strings.TrimPrefix(line, "Binary:"))
		case strings.HasPrefix(line, "Build-Depends-Indep:"):
			buildDependsIndep = strings.TrimSpace(strings.TrimPrefix(line, "Build-Depends-Indep:"))
		case strings.HasPrefix(line, "Build-Depends-Arch:"):
			buildDependsArch = strings.TrimSpace(strings.TrimPrefix(line, "Build-Depends-Arch:"))
		case strings.HasPrefix(line, "Build-Depends:"):
			buildDepends = strings.TrimSpace(strings.TrimPrefix(line, "Build-Depends:"))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &dscbuild.RecipeUnreadableError{Path: path, Err: err}
	}

	produces := make(map[string]bool)
	for _, b := range strings.Split(binary, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			produces[b] = true
		}
	}
	if len(produces) == 0 {
		return nil, &dscbuild.RecipeMalformedError{Path: path, Field: "Binary"}
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	parts := []string{buildDepends}
	if buildDependsIndep != "" {
		parts = append(parts, buildDependsIndep)
	}
	if buildDependsArch != "" {
		parts = append(parts, buildDependsArch)
	}

	return &dscbuild.SourceRecipe{
		ID:              dscbuild.RecipeID(path),
		Name:            name,
		Produces:        produces,
		RawBuildDepends: strings.Join(parts, ","),
	}, nil
}
