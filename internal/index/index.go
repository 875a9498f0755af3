// Package index provides a minimal in-memory implementation of
// dscbuild.PackageIndex, standing in for a real APT cache lookup. It is
// used by tests and by cmd/dscsched's -simulate mode; a production binding
// would instead wrap an apt-cache-policy-style query against a configured
// Debian mirror, which is outside the scope of this module.
package index

import "github.com/starlingx/dscbuild"

// MapIndex is a PackageIndex backed by a plain map of binary name to its
// direct runtime dependencies. Binaries absent from the map are reported as
// having no dependencies, matching PackageIndex's "external and always
// available" contract.
type MapIndex map[string][]string

// CandidateDependencies implements dscbuild.PackageIndex.
func (m MapIndex) CandidateDependencies(binary string) (map[string]bool, error) {
	deps := m[binary]
	if len(deps) == 0 {
		return nil, nil
	}
	out := make(map[string]bool, len(deps))
	for _, d := range deps {
		out[d] = true
	}
	return out, nil
}

var _ dscbuild.PackageIndex = MapIndex{}
