package resolver

import "kerbal-mod-manager/mods"

// Options controls how far the resolver expands optional relationships and
// how it reacts to inconsistencies.
type Options struct {
	// WithRecommends expands the recommends of every release being added.
	WithRecommends bool
	// WithSuggests expands the suggests of releases the user asked for.
	WithSuggests bool
	// WithAllSuggests also follows suggests of releases pulled in
	// transitively.
	WithAllSuggests bool
	// WithSupports collects back-references from releases that declare
	// support for anything being installed.
	WithSupports bool
	// ProceedWithInconsistencies records unmet relationships and conflicts
	// instead of failing on them.
	ProceedWithInconsistencies bool
	// StabilityTolerance is the most experimental release level considered.
	StabilityTolerance mods.Stability
	// GetRecommenders runs the resolver as a conflict precheck that gathers
	// the recommendation/suggestion/supporter maps without expanding any of
	// them into the plan.
	GetRecommenders bool
}

// DefaultOptions is the standard install behavior: follow recommendations,
// leave suggestions to the user.
func DefaultOptions() Options {
	return Options{WithRecommends: true}
}

// expandFlags is the per-branch slice of Options that shrinks as the
// resolver descends: recommendations of recommendations are never followed,
// and suggestions survive a dependency or recommendation hop only under
// WithAllSuggests.
type expandFlags struct {
	recommends bool
	suggests   bool
}

func (o Options) initialFlags() expandFlags {
	return expandFlags{recommends: o.WithRecommends, suggests: o.WithSuggests || o.WithAllSuggests}
}

// reducedFlags is what an optional (recommended or suggested) release's own
// optionals are expanded with.
func (o Options) reducedFlags() expandFlags {
	return expandFlags{recommends: false, suggests: o.WithAllSuggests}
}
