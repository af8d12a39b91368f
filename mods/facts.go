package mods

import (
	"sort"

	"kerbal-mod-manager/version"
)

// DLLFacts are the ambient plugin files found in the game directory, keyed by
// identifier. DLLs are version-opaque satisfiers.
type DLLFacts map[string]string // identifier -> path

// Has reports whether the identifier has a DLL on disk.
func (f DLLFacts) Has(identifier string) bool {
	_, ok := f[identifier]
	return ok
}

// Identifiers returns the tracked identifiers in sorted order.
func (f DLLFacts) Identifiers() []string {
	out := make([]string, 0, len(f))
	for id := range f {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DLCFacts are the first-party add-ons detected in the game directory with
// their versions. A DLC acts as an unmanaged release with a known version.
type DLCFacts map[string]version.ModuleVersion

// AsReleases renders the DLC facts as synthetic DLC-kind releases so code
// that works over release populations can see them.
func (f DLCFacts) AsReleases() []*Release {
	out := make([]*Release, 0, len(f))
	for id, v := range f {
		out = append(out, &Release{
			Identifier: id,
			Version:    v,
			Kind:       KindDLC,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}
