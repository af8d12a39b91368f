package resolver

import (
	"sort"

	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/registry"
	"kerbal-mod-manager/version"
)

// Recommendation is an optional extra surfaced to the UI: whether it should
// start checked, and which releases recommended it.
type Recommendation struct {
	DefaultCheck bool
	Sources      []string
}

// Resolver computes a self-consistent installation plan from a set of
// requested releases, or a structured explanation of why none exists.
// Resolver state is transient: build one, call Resolve once, read the
// outputs, discard it.
type Resolver struct {
	registry *registry.Querier
	criteria version.GameVersionCriteria
	opts     Options

	installed     map[string]*mods.Release
	installedList []*mods.Release
	dlls          mods.DLLFacts
	dlcReleases   []*mods.Release

	chosen      map[string]*mods.Release
	considering map[string]*mods.Release
	order       []*mods.Release

	roots     []Resolved
	conflicts []ConflictPair

	recommendations map[string]*Recommendation
	suggestions     map[string][]string
	supporters      map[string]map[string]bool
}

// NewResolver builds a resolver over the querier's repositories and
// installed state for the given game version criteria.
func NewResolver(q *registry.Querier, criteria version.GameVersionCriteria, opts Options) *Resolver {
	state := q.State()
	return &Resolver{
		registry:        q,
		criteria:        criteria,
		opts:            opts,
		installed:       state.Installed,
		dlls:            state.DLLs,
		dlcReleases:     state.DLC.AsReleases(),
		chosen:          make(map[string]*mods.Release),
		considering:     make(map[string]*mods.Release),
		recommendations: make(map[string]*Recommendation),
		suggestions:     make(map[string][]string),
		supporters:      make(map[string]map[string]bool),
	}
}

// Resolve processes the user's requests and removals. On success the plan is
// available from ModList; on failure the error is a *ConflictsError or
// *UnmetDependenciesError carrying the full explanation.
func (r *Resolver) Resolve(requests []*mods.Release, removals []*mods.Release) error {
	withoutRemovals := make(map[string]*mods.Release, len(r.installed))
	for id, rel := range r.installed {
		withoutRemovals[id] = rel
	}
	for _, rel := range removals {
		delete(withoutRemovals, rel.Identifier)
	}
	r.installed = withoutRemovals
	r.installedList = sortedByIdentifier(r.installed)

	cache := newRelationshipCache()
	flags := r.opts.initialFlags()

	for _, req := range requests {
		d := &mods.RelationshipDescriptor{
			Identifier: req.Identifier,
			Bound:      version.ExactRange(req.Version),
		}
		// Each request resolves against its own cache copy so a failed
		// request's memos cannot satisfy a later one against rolled-back
		// state.
		reqCache := cache.clone()
		children, ok := r.resolveRelease(req, Reason{Kind: UserRequested}, reqCache, false, flags)
		if ok {
			cache.adopt(reqCache)
		}
		root := &ByNew{
			base:      base{descriptor: d, reason: Reason{Kind: UserRequested}},
			Providers: []ProviderResolution{{Provider: req, Children: children, Chosen: ok}},
		}
		r.roots = append(r.roots, root)
	}

	if r.opts.WithSupports {
		r.collectSupporters()
	}

	if !r.opts.ProceedWithInconsistencies {
		if pairs := r.dedupedConflicts(); len(pairs) > 0 {
			return &ConflictsError{Pairs: pairs}
		}
		if traces := r.Unsatisfied(); len(traces) > 0 {
			return &UnmetDependenciesError{Traces: traces}
		}
	}
	return nil
}

// resolveRelease tries to add one concrete release to the plan: conflict
// precheck, then every depends, then the release itself, then its optional
// relationships. Returns the resolutions of the release's depends and
// whether the release could be chosen.
func (r *Resolver) resolveRelease(rel *mods.Release, reason Reason, cache *relationshipCache,
	suppressOptional bool, flags expandFlags) ([]Resolved, bool) {

	if existing, ok := r.chosen[rel.Identifier]; ok {
		return nil, existing == rel
	}
	if existing, ok := r.considering[rel.Identifier]; ok {
		return nil, existing == rel
	}
	if inst, ok := r.installed[rel.Identifier]; ok && inst.Version.Compare(rel.Version) == 0 {
		return nil, true
	}

	if pairs := r.findConflicts(rel); len(pairs) > 0 {
		r.conflicts = append(r.conflicts, pairs...)
		if !r.opts.ProceedWithInconsistencies {
			return nil, false
		}
	}

	r.considering[rel.Identifier] = rel
	defer delete(r.considering, rel.Identifier)

	// Suggestions of releases pulled in as dependencies are followed only
	// under WithAllSuggests.
	depFlags := flags
	depFlags.suggests = flags.suggests && r.opts.WithAllSuggests

	var children []Resolved
	for i := range rel.Depends {
		node, ok := r.resolveDescriptor(rel, &rel.Depends[i], Reason{Kind: Depends, Parent: rel}, cache, depFlags)
		if node != nil {
			children = append(children, node)
		}
		if !ok && !r.opts.ProceedWithInconsistencies {
			return children, false
		}
	}

	r.chosen[rel.Identifier] = rel
	r.order = append(r.order, rel)

	r.expandOptional(rel, cache, suppressOptional, flags)
	return children, true
}

// resolveDescriptor satisfies one relationship clause, preferring what is
// already there: installed releases, DLC, releases chosen in this plan,
// ambient DLLs, and only then new installs.
func (r *Resolver) resolveDescriptor(source *mods.Release, d *mods.RelationshipDescriptor,
	reason Reason, cache *relationshipCache, flags expandFlags) (Resolved, bool) {

	if n, ok := cache.get(d); ok {
		return n, n.Satisfied()
	}
	if cache.resolving(d) {
		// Already being resolved further up this branch: tentatively
		// satisfied by its pending choice. If that choice fails, the whole
		// branch unwinds with it.
		return nil, true
	}
	cache.begin(d)
	defer cache.end(d)

	b := base{source: source, descriptor: d, reason: reason}

	for _, inst := range r.installedList {
		if d.MatchesRelease(inst) {
			n := &ByInstalled{base: b, Installed: inst}
			cache.put(d, n)
			return n, true
		}
	}
	for _, dlc := range r.dlcReleases {
		if d.MatchesRelease(dlc) {
			n := &ByInstalled{base: b, Installed: dlc}
			cache.put(d, n)
			return n, true
		}
	}
	for _, rel := range r.order {
		if d.MatchesRelease(rel) {
			n := &ByInstalling{base: b, Installing: rel}
			cache.put(d, n)
			return n, true
		}
	}
	for _, rel := range sortedByIdentifier(r.considering) {
		if d.MatchesRelease(rel) {
			n := &ByInstalling{base: b, Installing: rel}
			cache.put(d, n)
			return n, true
		}
	}
	for _, name := range r.dlls.Identifiers() {
		if d.MatchesDLL(name) {
			n := &ByDLL{base: b, DLL: name}
			cache.put(d, n)
			return n, true
		}
	}

	providers := r.registry.CompatibleProviders(d, r.criteria, r.opts.StabilityTolerance)
	node := &ByNew{base: b}
	var failedConflicts []ConflictPair

	for _, p := range providers {
		branchCache := cache
		if len(providers) > 1 {
			branchCache = cache.clone()
		}
		snap := r.snapshot()

		children, ok := r.resolveRelease(p, reason, branchCache, d.SuppressRecommendations, flags)
		if ok {
			node.Providers = append(node.Providers, ProviderResolution{Provider: p, Children: children, Chosen: true})
			if branchCache != cache {
				cache.adopt(branchCache)
			}
			cache.put(d, node)
			return node, true
		}

		// This candidate did not work out: keep its conflicts aside in case
		// no alternative works either, and unwind everything else.
		failedConflicts = append(failedConflicts, r.conflicts[snap.conflictsLen:]...)
		r.restore(snap)
		node.Providers = append(node.Providers, ProviderResolution{Provider: p, Children: children})
	}

	r.conflicts = append(r.conflicts, failedConflicts...)
	cache.put(d, node)
	return node, false
}

// findConflicts checks a candidate release against the installed and chosen
// populations in both directions. Self-conflicts by identifier are ignored;
// DLC acts as an installed release. DLL conflicts are left to the sanity
// checker, which sees the final set.
func (r *Resolver) findConflicts(rel *mods.Release) []ConflictPair {
	others := make([]*mods.Release, 0, len(r.installedList)+len(r.order)+len(r.dlcReleases))
	others = append(others, r.installedList...)
	others = append(others, r.order...)
	others = append(others, r.dlcReleases...)

	var pairs []ConflictPair
	for i := range rel.Conflicts {
		d := &rel.Conflicts[i]
		for _, o := range others {
			if o.Identifier == rel.Identifier {
				continue
			}
			if d.MatchesRelease(o) {
				pairs = append(pairs, ConflictPair{A: rel, B: o, Descriptor: d})
			}
		}
	}
	for _, o := range others {
		if o.Identifier == rel.Identifier {
			continue
		}
		for i := range o.Conflicts {
			d := &o.Conflicts[i]
			if d.MatchesRelease(rel) {
				pairs = append(pairs, ConflictPair{A: o, B: rel, Descriptor: d})
			}
		}
	}
	return pairs
}

// expandOptional records the release's recommends and suggests for the UI
// maps and, in full plan mode, soft-resolves them: a recommendation that
// cannot be satisfied is dropped, never fatal.
func (r *Resolver) expandOptional(rel *mods.Release, cache *relationshipCache,
	suppress bool, flags expandFlags) {

	if suppress {
		return
	}

	for i := range rel.Recommends {
		d := &rel.Recommends[i]
		r.note(r.recommendations, d, rel, true)
		if flags.recommends && !r.opts.GetRecommenders {
			r.softResolve(rel, d, Reason{Kind: Recommended, Parent: rel}, cache)
		}
	}
	for i := range rel.Suggests {
		d := &rel.Suggests[i]
		r.noteSuggestion(d, rel)
		if flags.suggests && !r.opts.GetRecommenders {
			r.softResolve(rel, d, Reason{Kind: Suggested, Parent: rel}, cache)
		}
	}
}

// softResolve attempts an optional descriptor with reduced expansion flags
// and rolls everything back if it cannot be satisfied cleanly.
func (r *Resolver) softResolve(source *mods.Release, d *mods.RelationshipDescriptor,
	reason Reason, cache *relationshipCache) {

	snap := r.snapshot()
	branch := cache.clone()
	if _, ok := r.resolveDescriptor(source, d, reason, branch, r.opts.reducedFlags()); !ok {
		r.restore(snap)
		// Conflicting or unsatisfiable optionals are simply not installed.
		r.conflicts = r.conflicts[:snap.conflictsLen]
		return
	}
	cache.adopt(branch)
}

// note records one optional descriptor in the recommendations map unless
// something already satisfies it.
func (r *Resolver) note(m map[string]*Recommendation, d *mods.RelationshipDescriptor,
	source *mods.Release, defaultCheck bool) {

	for _, id := range descriptorIdentifiers(d) {
		if _, ok := r.installed[id]; ok {
			continue
		}
		if _, ok := r.chosen[id]; ok {
			continue
		}
		entry := m[id]
		if entry == nil {
			entry = &Recommendation{DefaultCheck: defaultCheck}
			m[id] = entry
		}
		entry.Sources = append(entry.Sources, source.Identifier)
	}
}

func (r *Resolver) noteSuggestion(d *mods.RelationshipDescriptor, source *mods.Release) {
	for _, id := range descriptorIdentifiers(d) {
		if _, ok := r.installed[id]; ok {
			continue
		}
		if _, ok := r.chosen[id]; ok {
			continue
		}
		r.suggestions[id] = append(r.suggestions[id], source.Identifier)
	}
}

// collectSupporters scans the latest compatible release of every known
// identifier for supports clauses matching something in the plan.
func (r *Resolver) collectSupporters() {
	for _, id := range r.registry.AllIdentifiers() {
		candidate, ok := r.registry.LatestAvailable(id, r.criteria, r.opts.StabilityTolerance)
		if !ok {
			continue
		}
		for i := range candidate.Supports {
			d := &candidate.Supports[i]
			for _, target := range r.order {
				if d.MatchesRelease(target) {
					set := r.supporters[target.Identifier]
					if set == nil {
						set = make(map[string]bool)
						r.supporters[target.Identifier] = set
					}
					set[candidate.Identifier] = true
				}
			}
		}
	}
}

// snapshot and restore bracket a provider attempt so a failed branch leaves
// no trace in the plan.
type snapshot struct {
	chosen       map[string]*mods.Release
	orderLen     int
	conflictsLen int
}

func (r *Resolver) snapshot() snapshot {
	chosen := make(map[string]*mods.Release, len(r.chosen))
	for k, v := range r.chosen {
		chosen[k] = v
	}
	return snapshot{
		chosen:       chosen,
		orderLen:     len(r.order),
		conflictsLen: len(r.conflicts),
	}
}

func (r *Resolver) restore(s snapshot) {
	r.chosen = s.chosen
	r.order = r.order[:s.orderLen]
	r.conflicts = r.conflicts[:s.conflictsLen]
}

// ModList returns the chosen releases in topological order: every dependency
// precedes its dependents.
func (r *Resolver) ModList() []*mods.Release {
	return append([]*mods.Release(nil), r.order...)
}

// ConflictList maps each release participating in an unresolved conflict to
// a human-readable reason.
func (r *Resolver) ConflictList() map[*mods.Release]string {
	out := make(map[*mods.Release]string)
	for _, p := range r.dedupedConflicts() {
		out[p.A] = "conflicts with " + p.B.FullName()
		out[p.B] = "conflicts with " + p.A.FullName()
	}
	return out
}

// Unsatisfied returns one trace per relationship that could not be
// satisfied, each running from a user request down to the dead end.
func (r *Resolver) Unsatisfied() [][]Resolved {
	var out [][]Resolved
	for _, root := range r.roots {
		out = append(out, root.UnsatisfiedFrom(nil)...)
	}
	return out
}

// Recommendations returns the optional extras recommended by anything in
// the plan, keyed by identifier.
func (r *Resolver) Recommendations() map[string]Recommendation {
	out := make(map[string]Recommendation, len(r.recommendations))
	for id, rec := range r.recommendations {
		sources := append([]string(nil), rec.Sources...)
		sort.Strings(sources)
		out[id] = Recommendation{DefaultCheck: rec.DefaultCheck, Sources: sources}
	}
	return out
}

// Suggestions returns the suggested extras, keyed by identifier, with the
// releases that suggested each.
func (r *Resolver) Suggestions() map[string][]string {
	out := make(map[string][]string, len(r.suggestions))
	for id, sources := range r.suggestions {
		copied := append([]string(nil), sources...)
		sort.Strings(copied)
		out[id] = copied
	}
	return out
}

// Supporters returns, for each release in the plan, the identifiers that
// declare support for it.
func (r *Resolver) Supporters() map[string][]string {
	out := make(map[string][]string, len(r.supporters))
	for id, set := range r.supporters {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		out[id] = names
	}
	return out
}

func (r *Resolver) dedupedConflicts() []ConflictPair {
	seen := make(map[string]bool)
	var out []ConflictPair
	for _, p := range r.conflicts {
		key := p.A.FullName() + "|" + p.B.FullName()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func descriptorIdentifiers(d *mods.RelationshipDescriptor) []string {
	if !d.IsAnyOf() {
		return []string{d.Identifier}
	}
	var out []string
	for i := range d.AnyOf {
		out = append(out, descriptorIdentifiers(&d.AnyOf[i])...)
	}
	return out
}

func sortedByIdentifier(m map[string]*mods.Release) []*mods.Release {
	out := make([]*mods.Release, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}
