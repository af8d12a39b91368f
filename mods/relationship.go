package mods

import (
	"encoding/json"
	"fmt"
	"strings"

	"kerbal-mod-manager/version"
)

// RelationshipDescriptor is one clause in a depends/conflicts/recommends/
// suggests/supports list. It is either a single identifier with a version
// bound or an any_of alternation over further descriptors.
type RelationshipDescriptor struct {
	Identifier string
	Bound      version.ModuleVersionRange

	AnyOf []RelationshipDescriptor

	// SuppressRecommendations hides recommendations and suggestions of
	// whatever release is chosen to satisfy this descriptor.
	SuppressRecommendations bool
}

// IsAnyOf reports whether the descriptor is an alternation.
func (d *RelationshipDescriptor) IsAnyOf() bool {
	return len(d.AnyOf) > 0
}

func (d *RelationshipDescriptor) String() string {
	if d.IsAnyOf() {
		parts := make([]string, len(d.AnyOf))
		for i := range d.AnyOf {
			parts[i] = d.AnyOf[i].String()
		}
		return "any of (" + strings.Join(parts, " | ") + ")"
	}
	if d.Bound.IsAny() {
		return d.Identifier
	}
	return d.Identifier + " " + d.Bound.String()
}

// MatchesRelease reports whether r satisfies the descriptor: r's identifier
// or provides covers the descriptor's identifier and r's version lies in the
// bound. Provides matches ignore the version bound only when the bound is
// open, since a provided identifier carries no version of its own; an exact
// or ranged bound is checked against the provider's real version.
func (d *RelationshipDescriptor) MatchesRelease(r *Release) bool {
	if d.IsAnyOf() {
		for i := range d.AnyOf {
			if d.AnyOf[i].MatchesRelease(r) {
				return true
			}
		}
		return false
	}
	if !r.ProvidesIdentifier(d.Identifier) {
		return false
	}
	return d.Bound.Contains(r.Version)
}

// MatchesDLL reports whether the named ambient DLL satisfies the descriptor.
// DLLs are version-opaque, so only unbounded descriptors can match.
func (d *RelationshipDescriptor) MatchesDLL(name string) bool {
	if d.IsAnyOf() {
		for i := range d.AnyOf {
			if d.AnyOf[i].MatchesDLL(name) {
				return true
			}
		}
		return false
	}
	return d.Identifier == name && d.Bound.IsAny()
}

// MatchesDLC reports whether an owned DLC satisfies the descriptor. DLC is
// treated as an unmanaged release with a known version.
func (d *RelationshipDescriptor) MatchesDLC(facts DLCFacts) bool {
	if d.IsAnyOf() {
		for i := range d.AnyOf {
			if d.AnyOf[i].MatchesDLC(facts) {
				return true
			}
		}
		return false
	}
	v, ok := facts[d.Identifier]
	if !ok {
		return false
	}
	return d.Bound.Contains(v)
}

// Match is what satisfied a descriptor.
type Match struct {
	Release *Release // nil for DLL and DLC matches
	DLL     string
	DLC     string
}

// MatchesAny returns the first satisfier among the candidate releases, then
// the DLLs, then the DLC facts. For any_of descriptors alternatives are tried
// in order and the first match wins.
func (d *RelationshipDescriptor) MatchesAny(candidates []*Release, dlls DLLFacts, dlc DLCFacts) (Match, bool) {
	if d.IsAnyOf() {
		for i := range d.AnyOf {
			if m, ok := d.AnyOf[i].MatchesAny(candidates, dlls, dlc); ok {
				return m, true
			}
		}
		return Match{}, false
	}

	for _, c := range candidates {
		if d.MatchesRelease(c) {
			return Match{Release: c}, true
		}
	}
	if dlls.Has(d.Identifier) && d.MatchesDLL(d.Identifier) {
		return Match{DLL: d.Identifier}, true
	}
	if d.MatchesDLC(dlc) {
		return Match{DLC: d.Identifier}, true
	}
	return Match{}, false
}

// descriptorJSON is the wire form of a single-identifier descriptor.
type descriptorJSON struct {
	Name                    string                   `json:"name,omitempty"`
	Version                 string                   `json:"version,omitempty"`
	MinVersion              string                   `json:"min_version,omitempty"`
	MaxVersion              string                   `json:"max_version,omitempty"`
	AnyOf                   []RelationshipDescriptor `json:"any_of,omitempty"`
	SuppressRecommendations bool                     `json:"suppress_recommendations,omitempty"`
}

// UnmarshalJSON accepts the three wire shapes: {"name": ...} with an optional
// exact "version", {"name": ...} with min_version/max_version bounds, or
// {"any_of": [...]}.
func (d *RelationshipDescriptor) UnmarshalJSON(data []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw.AnyOf) > 0 {
		if raw.Name != "" {
			return fmt.Errorf("relationship cannot have both name and any_of")
		}
		*d = RelationshipDescriptor{
			AnyOf:                   raw.AnyOf,
			SuppressRecommendations: raw.SuppressRecommendations,
		}
		return nil
	}

	if raw.Name == "" {
		return fmt.Errorf("relationship has neither name nor any_of")
	}
	out := RelationshipDescriptor{
		Identifier:              raw.Name,
		SuppressRecommendations: raw.SuppressRecommendations,
	}

	switch {
	case raw.Version != "":
		if raw.MinVersion != "" || raw.MaxVersion != "" {
			return fmt.Errorf("relationship %q mixes version with min/max bounds", raw.Name)
		}
		v, err := version.Parse(raw.Version)
		if err != nil {
			return fmt.Errorf("relationship %q: %w", raw.Name, err)
		}
		out.Bound = version.ExactRange(v)
	default:
		if raw.MinVersion != "" {
			v, err := version.Parse(raw.MinVersion)
			if err != nil {
				return fmt.Errorf("relationship %q: %w", raw.Name, err)
			}
			out.Bound.Min = &v
			out.Bound.MinInclusive = true
		}
		if raw.MaxVersion != "" {
			v, err := version.Parse(raw.MaxVersion)
			if err != nil {
				return fmt.Errorf("relationship %q: %w", raw.Name, err)
			}
			out.Bound.Max = &v
			out.Bound.MaxInclusive = true
		}
	}

	*d = out
	return nil
}

// MarshalJSON writes the descriptor back in its wire form.
func (d RelationshipDescriptor) MarshalJSON() ([]byte, error) {
	raw := descriptorJSON{SuppressRecommendations: d.SuppressRecommendations}

	if d.IsAnyOf() {
		raw.AnyOf = d.AnyOf
		return json.Marshal(raw)
	}

	raw.Name = d.Identifier
	b := d.Bound
	switch {
	case b.IsAny():
	case b.Min != nil && b.Max != nil && b.Min.Compare(*b.Max) == 0 && b.MinInclusive && b.MaxInclusive:
		raw.Version = b.Min.String()
	default:
		if b.Min != nil {
			raw.MinVersion = b.Min.String()
		}
		if b.Max != nil {
			raw.MaxVersion = b.Max.String()
		}
	}
	return json.Marshal(raw)
}
