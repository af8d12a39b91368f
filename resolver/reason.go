package resolver

import "kerbal-mod-manager/mods"

// ReasonKind says why a release entered the resolution.
type ReasonKind int

const (
	UserRequested ReasonKind = iota
	Depends
	Recommended
	Suggested
	Replacement
	ProvidedBy
)

func (k ReasonKind) String() string {
	switch k {
	case UserRequested:
		return "user requested"
	case Depends:
		return "dependency"
	case Recommended:
		return "recommendation"
	case Suggested:
		return "suggestion"
	case Replacement:
		return "replacement"
	case ProvidedBy:
		return "provided by"
	}
	return "unknown"
}

// Reason is a selection reason with the release that caused it. Parent is
// nil for user requests.
type Reason struct {
	Kind   ReasonKind
	Parent *mods.Release
}

func (r Reason) String() string {
	if r.Parent == nil {
		return r.Kind.String()
	}
	return r.Kind.String() + " of " + r.Parent.FullName()
}
