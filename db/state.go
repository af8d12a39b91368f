package db

import (
	"fmt"

	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/version"
)

// ReleaseLookup finds the catalog release for an installed (identifier,
// version) pair, or nil when no repository knows it anymore.
type ReleaseLookup func(identifier, versionString string) *mods.Release

// LoadInstalled assembles the installed releases from the database. Mods no
// catalog knows anymore become bare releases with no relationships, which is
// all we can still say about them.
func LoadInstalled(lookup ReleaseLookup) (map[string]*mods.Release, error) {
	var rows []InstalledMod
	if err := DB.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load installed mods: %w", err)
	}

	out := make(map[string]*mods.Release, len(rows))
	for _, row := range rows {
		if lookup != nil {
			if r := lookup(row.Identifier, row.Version); r != nil {
				out[row.Identifier] = r
				continue
			}
		}
		v, err := version.Parse(row.Version)
		if err != nil {
			return nil, fmt.Errorf("installed mod %q has unparseable version %q: %w",
				row.Identifier, row.Version, err)
		}
		out[row.Identifier] = &mods.Release{
			Identifier: row.Identifier,
			Version:    v,
			Kind:       mods.Kind(row.Kind),
		}
	}
	return out, nil
}

// LoadDLLs returns the tracked ambient plugin files.
func LoadDLLs() (mods.DLLFacts, error) {
	var rows []TrackedDLL
	if err := DB.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load tracked DLLs: %w", err)
	}
	out := make(mods.DLLFacts, len(rows))
	for _, row := range rows {
		out[row.Identifier] = row.Path
	}
	return out, nil
}

// LoadDLC returns the detected first-party add-ons.
func LoadDLC() (mods.DLCFacts, error) {
	var rows []DLCFact
	if err := DB.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load DLC facts: %w", err)
	}
	out := make(mods.DLCFacts, len(rows))
	for _, row := range rows {
		v, err := version.Parse(row.Version)
		if err != nil {
			return nil, fmt.Errorf("DLC %q has unparseable version %q: %w",
				row.Identifier, row.Version, err)
		}
		out[row.Identifier] = v
	}
	return out, nil
}
