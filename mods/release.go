package mods

import (
	"encoding/json"
	"fmt"
	"strings"

	"kerbal-mod-manager/version"
)

// CurrentSpecVersion is the newest metadata spec this build understands.
// Releases declaring a higher spec are carried but flag their index as
// produced by a newer client.
const CurrentSpecVersion = "v1.34"

// Kind classifies what a release actually is.
type Kind string

const (
	KindPackage     Kind = "package"
	KindMetapackage Kind = "metapackage"
	KindDLC         Kind = "dlc"
)

// Release is one installable version of one mod. Releases are created by
// deserialization and never mutated afterwards.
type Release struct {
	SpecVersion string                `json:"spec_version,omitempty"`
	Identifier  string                `json:"identifier"`
	Version     version.ModuleVersion `json:"version"`
	Kind        Kind                  `json:"kind,omitempty"`

	GameVersions []version.GameVersionRange `json:"game_versions,omitempty"`

	Depends    []RelationshipDescriptor `json:"depends,omitempty"`
	Recommends []RelationshipDescriptor `json:"recommends,omitempty"`
	Suggests   []RelationshipDescriptor `json:"suggests,omitempty"`
	Conflicts  []RelationshipDescriptor `json:"conflicts,omitempty"`
	Supports   []RelationshipDescriptor `json:"supports,omitempty"`
	ReplacedBy *RelationshipDescriptor  `json:"replaced_by,omitempty"`

	Provides []string `json:"provides,omitempty"`

	DownloadURL    string `json:"download,omitempty"`
	DownloadSHA256 string `json:"download_hash_sha256,omitempty"`
	DownloadSize   int64  `json:"download_size,omitempty"`

	ReleaseStatus Stability `json:"release_status,omitempty"`

	// Presentation fields, carried but not interpreted.
	Name     string   `json:"name,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	License  string   `json:"license,omitempty"`
	Authors  []string `json:"author,omitempty"`
}

// FullName is the canonical "identifier version" display form.
func (r *Release) FullName() string {
	return r.Identifier + " " + r.Version.String()
}

// IsMetapackage reports whether the release carries no payload of its own.
func (r *Release) IsMetapackage() bool {
	return r.Kind == KindMetapackage
}

// IsDLC reports whether the release stands in for first-party paid content.
func (r *Release) IsDLC() bool {
	return r.Kind == KindDLC
}

// ProvidesIdentifier reports whether the release's identifier or provides
// list covers the given identifier.
func (r *Release) ProvidesIdentifier(identifier string) bool {
	if r.Identifier == identifier {
		return true
	}
	for _, p := range r.Provides {
		if p == identifier {
			return true
		}
	}
	return false
}

// CompatibleWith reports whether the release supports every game version in
// the criteria. A release with no declared ranges is compatible with all.
func (r *Release) CompatibleWith(criteria version.GameVersionCriteria) bool {
	if len(r.GameVersions) == 0 {
		return true
	}
	return version.CompatibleWith(criteria, r.GameVersions)
}

// NewerSpecThanUs reports whether the release declares a metadata spec this
// build does not understand yet.
func (r *Release) NewerSpecThanUs() bool {
	if r.SpecVersion == "" {
		return false
	}
	ours, err := version.Parse(strings.TrimPrefix(CurrentSpecVersion, "v"))
	if err != nil {
		return false
	}
	theirs, err := version.Parse(strings.TrimPrefix(r.SpecVersion, "v"))
	if err != nil {
		return false
	}
	return ours.Less(theirs)
}

// Validate checks the structural invariants deserialization must uphold.
func (r *Release) Validate() error {
	if r.Identifier == "" {
		return fmt.Errorf("release has no identifier")
	}
	if r.Version.Upstream == "" {
		return fmt.Errorf("release %q has no version", r.Identifier)
	}
	switch r.Kind {
	case "", KindPackage:
		if r.DownloadURL == "" {
			return fmt.Errorf("release %s has no download url", r.FullName())
		}
	case KindMetapackage, KindDLC:
		// No payload.
	default:
		return &UnsupportedKindError{Identifier: r.Identifier, Kind: string(r.Kind)}
	}
	return nil
}

// UnsupportedKindError marks a release whose kind this build cannot handle.
type UnsupportedKindError struct {
	Identifier string
	Kind       string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("release %q has unsupported kind %q", e.Identifier, e.Kind)
}

// UnmarshalJSON decodes a release and normalizes the kind field.
func (r *Release) UnmarshalJSON(data []byte) error {
	type plain Release
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Kind = Kind(strings.ToLower(string(p.Kind)))
	if p.Kind == "" {
		p.Kind = KindPackage
	}
	*r = Release(p)
	return nil
}
