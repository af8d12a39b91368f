package resolver

import (
	"fmt"

	"kerbal-mod-manager/mods"
)

// Resolved is one resolved relationship: how a descriptor reached by the
// resolver was (or could not be) satisfied.
type Resolved interface {
	// Source is the release whose descriptor this is; nil for user requests.
	Source() *mods.Release
	// Descriptor is the relationship clause being satisfied.
	Descriptor() *mods.RelationshipDescriptor
	// Reason says why the resolver was looking at this descriptor.
	Reason() Reason
	// Satisfied reports whether the relationship was met.
	Satisfied() bool
	// Contains reports whether the release appears anywhere in this
	// resolution's subtree.
	Contains(r *mods.Release) bool
	// UnsatisfiedFrom appends this node to the prefix path and collects one
	// trace per unsatisfiable leaf beneath it.
	UnsatisfiedFrom(prefix []Resolved) [][]Resolved
	fmt.Stringer
}

// base carries the fields every variant shares.
type base struct {
	source     *mods.Release
	descriptor *mods.RelationshipDescriptor
	reason     Reason
}

func (b base) Source() *mods.Release                    { return b.source }
func (b base) Descriptor() *mods.RelationshipDescriptor { return b.descriptor }
func (b base) Reason() Reason                           { return b.reason }

func (b base) sourceName() string {
	if b.source == nil {
		return "user"
	}
	return b.source.FullName()
}

// ByInstalled satisfies a descriptor with a release that is already
// installed (including DLC, which acts as an unmanaged installed release).
type ByInstalled struct {
	base
	Installed *mods.Release
}

func (n *ByInstalled) Satisfied() bool { return true }

func (n *ByInstalled) Contains(r *mods.Release) bool { return n.Installed == r }

func (n *ByInstalled) UnsatisfiedFrom(prefix []Resolved) [][]Resolved { return nil }

func (n *ByInstalled) String() string {
	return fmt.Sprintf("%s -> %s: satisfied by installed %s",
		n.sourceName(), n.descriptor, n.Installed.FullName())
}

// ByInstalling satisfies a descriptor with a release chosen earlier in this
// same resolution (or tentatively chosen further up the stack).
type ByInstalling struct {
	base
	Installing *mods.Release
}

func (n *ByInstalling) Satisfied() bool { return true }

func (n *ByInstalling) Contains(r *mods.Release) bool { return n.Installing == r }

func (n *ByInstalling) UnsatisfiedFrom(prefix []Resolved) [][]Resolved { return nil }

func (n *ByInstalling) String() string {
	return fmt.Sprintf("%s -> %s: satisfied by installing %s",
		n.sourceName(), n.descriptor, n.Installing.FullName())
}

// ByDLL satisfies a descriptor with an ambient plugin file.
type ByDLL struct {
	base
	DLL string
}

func (n *ByDLL) Satisfied() bool { return true }

func (n *ByDLL) Contains(r *mods.Release) bool { return false }

func (n *ByDLL) UnsatisfiedFrom(prefix []Resolved) [][]Resolved { return nil }

func (n *ByDLL) String() string {
	return fmt.Sprintf("%s -> %s: satisfied by DLL %s", n.sourceName(), n.descriptor, n.DLL)
}

// ProviderResolution is one candidate release tried for a ByNew
// relationship, with the resolutions of its own relationships.
type ProviderResolution struct {
	Provider *mods.Release
	Children []Resolved
	Chosen   bool
}

// ByNew satisfies a descriptor by installing something new. Providers holds
// every candidate tried, in preference order; a node with no chosen
// provider is unresolvable.
type ByNew struct {
	base
	Providers []ProviderResolution
}

func (n *ByNew) Satisfied() bool {
	for _, p := range n.Providers {
		if p.Chosen {
			return true
		}
	}
	return false
}

// chosen returns the provider that won, if any.
func (n *ByNew) chosen() (ProviderResolution, bool) {
	for _, p := range n.Providers {
		if p.Chosen {
			return p, true
		}
	}
	return ProviderResolution{}, false
}

func (n *ByNew) Contains(r *mods.Release) bool {
	for _, p := range n.Providers {
		if !p.Chosen {
			continue
		}
		if p.Provider == r {
			return true
		}
		for _, c := range p.Children {
			if c.Contains(r) {
				return true
			}
		}
	}
	return false
}

// UnsatisfiedFrom builds failure traces. A satisfied node (and the root
// user-request node) descends into its providers' children; an unsatisfied
// inner node terminates its trace, carrying the failed provider subtrees as
// the explanation.
func (n *ByNew) UnsatisfiedFrom(prefix []Resolved) [][]Resolved {
	path := appendPath(prefix, n)

	if n.Satisfied() {
		p, _ := n.chosen()
		var out [][]Resolved
		for _, c := range p.Children {
			out = append(out, c.UnsatisfiedFrom(path)...)
		}
		return out
	}

	if n.reason.Kind == UserRequested {
		var out [][]Resolved
		for _, p := range n.Providers {
			for _, c := range p.Children {
				out = append(out, c.UnsatisfiedFrom(path)...)
			}
		}
		if len(out) == 0 {
			out = append(out, path)
		}
		return out
	}

	return [][]Resolved{path}
}

func (n *ByNew) String() string {
	if p, ok := n.chosen(); ok {
		return fmt.Sprintf("%s -> %s: satisfied by new install %s",
			n.sourceName(), n.descriptor, p.Provider.FullName())
	}
	if len(n.Providers) == 0 {
		return fmt.Sprintf("%s -> %s: no providers available", n.sourceName(), n.descriptor)
	}
	return fmt.Sprintf("%s -> %s: all %d providers failed",
		n.sourceName(), n.descriptor, len(n.Providers))
}

// appendPath copies the prefix before appending so sibling traces never
// share backing arrays.
func appendPath(prefix []Resolved, n Resolved) []Resolved {
	path := make([]Resolved, 0, len(prefix)+1)
	path = append(path, prefix...)
	return append(path, n)
}

// DescribeTrace renders a failure trace for the UI, one line per hop.
func DescribeTrace(trace []Resolved) string {
	out := ""
	for i, n := range trace {
		if i > 0 {
			out += "\n  "
		}
		out += n.String()
	}
	return out
}
