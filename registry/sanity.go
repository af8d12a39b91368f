package registry

import (
	"fmt"
	"strings"

	"kerbal-mod-manager/mods"
)

// UnmetDepend is a depends descriptor nothing in the population satisfies.
type UnmetDepend struct {
	Release    *mods.Release
	Descriptor mods.RelationshipDescriptor
}

func (u UnmetDepend) String() string {
	return fmt.Sprintf("%s depends on %s", u.Release.FullName(), u.Descriptor.String())
}

// Conflict is a conflicts descriptor that matched something in the
// population. Other is the matched release (or synthetic DLC release); DLL
// is set instead when an ambient DLL matched.
type Conflict struct {
	Release    *mods.Release
	Descriptor mods.RelationshipDescriptor
	Other      *mods.Release
	DLL        string
}

func (c Conflict) String() string {
	if c.DLL != "" {
		return fmt.Sprintf("%s conflicts with DLL %s", c.Release.FullName(), c.DLL)
	}
	return fmt.Sprintf("%s conflicts with %s", c.Release.FullName(), c.Other.FullName())
}

// UnmetDepends returns every (release, descriptor) pair in the population
// whose depends nothing in modules, dlls, or dlc satisfies.
func UnmetDepends(modules []*mods.Release, dlls mods.DLLFacts, dlc mods.DLCFacts) []UnmetDepend {
	var out []UnmetDepend
	for _, r := range modules {
		for _, d := range r.Depends {
			if _, ok := d.MatchesAny(modules, dlls, dlc); !ok {
				out = append(out, UnmetDepend{Release: r, Descriptor: d})
			}
		}
	}
	return out
}

// FindConflicts returns every conflicts descriptor in the population that a
// distinct member matches. A release never conflicts with itself by
// identifier, so upgrades-in-place stay legal.
func FindConflicts(modules []*mods.Release, dlls mods.DLLFacts, dlc mods.DLCFacts) []Conflict {
	dlcReleases := dlc.AsReleases()

	var out []Conflict
	for _, r := range modules {
		for _, d := range r.Conflicts {
			for _, other := range modules {
				if other.Identifier == r.Identifier {
					continue
				}
				if d.MatchesRelease(other) {
					out = append(out, Conflict{Release: r, Descriptor: d, Other: other})
				}
			}
			for _, other := range dlcReleases {
				if other.Identifier == r.Identifier {
					continue
				}
				if d.MatchesRelease(other) {
					out = append(out, Conflict{Release: r, Descriptor: d, Other: other})
				}
			}
			for _, name := range dlls.Identifiers() {
				if name == r.Identifier {
					continue
				}
				if d.MatchesDLL(name) {
					out = append(out, Conflict{Release: r, Descriptor: d, DLL: name})
				}
			}
		}
	}
	return out
}

// IsConsistent reports whether the population has all depends satisfied and
// no conflicts.
func IsConsistent(modules []*mods.Release, dlls mods.DLLFacts, dlc mods.DLCFacts) bool {
	return len(UnmetDepends(modules, dlls, dlc)) == 0 &&
		len(FindConflicts(modules, dlls, dlc)) == 0
}

// BadRelationshipsError reports why a population is inconsistent.
type BadRelationshipsError struct {
	Unmet     []UnmetDepend
	Conflicts []Conflict
}

func (e *BadRelationshipsError) Error() string {
	var parts []string
	for _, u := range e.Unmet {
		parts = append(parts, "unmet: "+u.String())
	}
	for _, c := range e.Conflicts {
		parts = append(parts, "conflict: "+c.String())
	}
	return "inconsistent module set: " + strings.Join(parts, "; ")
}

// EnforceConsistency returns a BadRelationshipsError when the population has
// unmet depends or conflicts.
func EnforceConsistency(modules []*mods.Release, dlls mods.DLLFacts, dlc mods.DLCFacts) error {
	unmet := UnmetDepends(modules, dlls, dlc)
	conflicts := FindConflicts(modules, dlls, dlc)
	if len(unmet) == 0 && len(conflicts) == 0 {
		return nil
	}
	return &BadRelationshipsError{Unmet: unmet, Conflicts: conflicts}
}
