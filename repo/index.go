package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/version"
)

// RepositoryIndex is the parsed catalog of one repository: every known
// release keyed by identifier and version, plus the repository's download
// counters and hints. Indices are immutable once installed into the store;
// an update builds a fresh index and swaps it in.
type RepositoryIndex struct {
	Catalog               map[string]map[string]*mods.Release
	DownloadCounts        map[string]uint64
	Repositories          []Repository
	SupportedGameVersions []version.GameVersion

	// UnsupportedSpec is set when any release declares a metadata spec newer
	// than this build understands. The index is still usable; the update
	// reports OutdatedClient so the UI can nag.
	UnsupportedSpec bool
}

// indexJSON is the cache-file wire form. A bare JSON array of releases is
// also accepted on read, for repositories that serve nothing but a catalog.
type indexJSON struct {
	Releases              []*mods.Release       `json:"releases"`
	DownloadCounts        map[string]uint64     `json:"download_counts,omitempty"`
	Repositories          []Repository          `json:"repositories,omitempty"`
	SupportedGameVersions []version.GameVersion `json:"supported_game_versions,omitempty"`
}

// ParseIndex deserializes repository metadata. Releases with an unsupported
// kind abort the whole parse; releases with a newer spec version are kept
// but flag the index.
func ParseIndex(data []byte) (*RepositoryIndex, error) {
	var wire indexJSON

	trimmed := firstNonSpace(data)
	switch trimmed {
	case '[':
		if err := json.Unmarshal(data, &wire.Releases); err != nil {
			return nil, fmt.Errorf("invalid repository metadata: %w", err)
		}
	case '{':
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("invalid repository metadata: %w", err)
		}
	default:
		return nil, errors.New("repository metadata is neither a JSON array nor an object")
	}

	idx := &RepositoryIndex{
		Catalog:               make(map[string]map[string]*mods.Release),
		DownloadCounts:        wire.DownloadCounts,
		Repositories:          wire.Repositories,
		SupportedGameVersions: wire.SupportedGameVersions,
	}
	if idx.DownloadCounts == nil {
		idx.DownloadCounts = map[string]uint64{}
	}

	for _, r := range wire.Releases {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if r.NewerSpecThanUs() {
			idx.UnsupportedSpec = true
		}
		byVersion := idx.Catalog[r.Identifier]
		if byVersion == nil {
			byVersion = make(map[string]*mods.Release)
			idx.Catalog[r.Identifier] = byVersion
		}
		byVersion[r.Version.String()] = r
	}
	return idx, nil
}

// Serialize writes the index back in object form with releases ordered by
// (identifier asc, version desc) so a serialize/parse round trip is equal
// and repeated serializations are byte-identical.
func (idx *RepositoryIndex) Serialize() ([]byte, error) {
	wire := indexJSON{
		DownloadCounts:        idx.DownloadCounts,
		Repositories:          idx.Repositories,
		SupportedGameVersions: idx.SupportedGameVersions,
	}
	if len(wire.DownloadCounts) == 0 {
		wire.DownloadCounts = nil
	}

	identifiers := make([]string, 0, len(idx.Catalog))
	for id := range idx.Catalog {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	for _, id := range identifiers {
		wire.Releases = append(wire.Releases, sortedReleases(idx.Catalog[id])...)
	}
	return json.MarshalIndent(wire, "", "  ")
}

// Identifiers returns every identifier in the catalog, sorted.
func (idx *RepositoryIndex) Identifiers() []string {
	out := make([]string, 0, len(idx.Catalog))
	for id := range idx.Catalog {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AvailableModules returns the releases for an identifier in strictly
// decreasing version order.
func (idx *RepositoryIndex) AvailableModules(identifier string) []*mods.Release {
	return sortedReleases(idx.Catalog[identifier])
}

// AllReleases returns every release in the catalog, identifiers sorted,
// versions descending within each.
func (idx *RepositoryIndex) AllReleases() []*mods.Release {
	var out []*mods.Release
	for _, id := range idx.Identifiers() {
		out = append(out, sortedReleases(idx.Catalog[id])...)
	}
	return out
}

// ProvidersOf returns every release whose identifier or provides list covers
// the given identifier.
func (idx *RepositoryIndex) ProvidersOf(identifier string) []*mods.Release {
	var out []*mods.Release
	for _, id := range idx.Identifiers() {
		for _, r := range sortedReleases(idx.Catalog[id]) {
			if r.ProvidesIdentifier(identifier) {
				out = append(out, r)
			}
		}
	}
	return out
}

// sortedReleases orders a version map newest-first.
func sortedReleases(byVersion map[string]*mods.Release) []*mods.Release {
	out := make([]*mods.Release, 0, len(byVersion))
	for _, r := range byVersion {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Version.Compare(out[j].Version); c != 0 {
			return c > 0
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}
