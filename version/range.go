package version

import (
	"encoding/json"
	"strings"
)

// ModuleVersionRange bounds acceptable module versions. Nil bounds are open.
type ModuleVersionRange struct {
	Min          *ModuleVersion
	Max          *ModuleVersion
	MinInclusive bool
	MaxInclusive bool
}

// AnyModuleVersion is the unbounded range.
var AnyModuleVersion = ModuleVersionRange{}

// ExactRange returns a range containing only v.
func ExactRange(v ModuleVersion) ModuleVersionRange {
	return ModuleVersionRange{Min: &v, Max: &v, MinInclusive: true, MaxInclusive: true}
}

// IsAny reports whether the range is unbounded on both sides.
func (r ModuleVersionRange) IsAny() bool {
	return r.Min == nil && r.Max == nil
}

// Contains reports whether v satisfies the range.
func (r ModuleVersionRange) Contains(v ModuleVersion) bool {
	if r.Min != nil {
		c := v.Compare(*r.Min)
		if c < 0 || (c == 0 && !r.MinInclusive) {
			return false
		}
	}
	if r.Max != nil {
		c := v.Compare(*r.Max)
		if c > 0 || (c == 0 && !r.MaxInclusive) {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of two ranges and whether it is non-empty.
func (r ModuleVersionRange) Intersect(other ModuleVersionRange) (ModuleVersionRange, bool) {
	out := r

	if other.Min != nil {
		if out.Min == nil {
			out.Min, out.MinInclusive = other.Min, other.MinInclusive
		} else if c := other.Min.Compare(*out.Min); c > 0 {
			out.Min, out.MinInclusive = other.Min, other.MinInclusive
		} else if c == 0 {
			out.MinInclusive = out.MinInclusive && other.MinInclusive
		}
	}
	if other.Max != nil {
		if out.Max == nil {
			out.Max, out.MaxInclusive = other.Max, other.MaxInclusive
		} else if c := other.Max.Compare(*out.Max); c < 0 {
			out.Max, out.MaxInclusive = other.Max, other.MaxInclusive
		} else if c == 0 {
			out.MaxInclusive = out.MaxInclusive && other.MaxInclusive
		}
	}

	if out.Min != nil && out.Max != nil {
		c := out.Min.Compare(*out.Max)
		if c > 0 || (c == 0 && !(out.MinInclusive && out.MaxInclusive)) {
			return ModuleVersionRange{}, false
		}
	}
	return out, true
}

func (r ModuleVersionRange) String() string {
	if r.IsAny() {
		return "any"
	}
	var b strings.Builder
	if r.Min != nil {
		if r.MinInclusive {
			b.WriteString(">= ")
		} else {
			b.WriteString("> ")
		}
		b.WriteString(r.Min.String())
	}
	if r.Max != nil {
		if r.Min != nil {
			b.WriteString(", ")
		}
		if r.MaxInclusive {
			b.WriteString("<= ")
		} else {
			b.WriteString("< ")
		}
		b.WriteString(r.Max.String())
	}
	return b.String()
}

// GameVersionRange bounds acceptable game versions, inclusive on both ends.
// Wildcard bounds are open on that side.
type GameVersionRange struct {
	Min GameVersion `json:"min"`
	Max GameVersion `json:"max"`
}

// UnmarshalJSON decodes a range, defaulting omitted bounds to the wildcard
// version rather than the zero version.
func (r *GameVersionRange) UnmarshalJSON(data []byte) error {
	aux := struct {
		Min *GameVersion `json:"min"`
		Max *GameVersion `json:"max"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Min, r.Max = AnyGameVersion, AnyGameVersion
	if aux.Min != nil {
		r.Min = *aux.Min
	}
	if aux.Max != nil {
		r.Max = *aux.Max
	}
	return nil
}

// AnyGameVersionRange matches every game version.
var AnyGameVersionRange = GameVersionRange{Min: AnyGameVersion, Max: AnyGameVersion}

// Contains reports whether the concrete game version v lies in the range.
// Wildcard components in the bounds widen the bound in that position.
func (r GameVersionRange) Contains(v GameVersion) bool {
	return r.Min.Compare(v) <= 0 && r.Max.Compare(v) >= 0
}

func (r GameVersionRange) String() string {
	if r.Min.IsAny() && r.Max.IsAny() {
		return "any"
	}
	return r.Min.String() + " - " + r.Max.String()
}

// CompatibleWith reports whether every criterion lies in at least one of the
// given ranges. An empty criteria set is compatible with anything.
func CompatibleWith(criteria GameVersionCriteria, ranges []GameVersionRange) bool {
	for _, want := range criteria {
		ok := false
		for _, r := range ranges {
			if r.Contains(want) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
