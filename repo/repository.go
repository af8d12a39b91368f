package repo

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Repository identifies one metadata source. Name is unique per referrer;
// lower priority values win, ties broken by name ascending.
type Repository struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	Priority int    `json:"priority"`
	Mirror   bool   `json:"x_mirror,omitempty"`
	Comment  string `json:"x_comment,omitempty"`
}

// CacheFilename is the on-disk name for this repository's catalog:
// the first 16 hex chars of the URI's SHA1, a dash, and the repo name.
func (r Repository) CacheFilename() string {
	sum := sha1.Sum([]byte(r.URI))
	return hex.EncodeToString(sum[:])[:16] + "-" + r.Name + ".json"
}

// SortRepositories orders repositories by (priority asc, name asc) in place.
func SortRepositories(repos []Repository) {
	sort.SliceStable(repos, func(i, j int) bool {
		if repos[i].Priority != repos[j].Priority {
			return repos[i].Priority < repos[j].Priority
		}
		return repos[i].Name < repos[j].Name
	})
}

// RepositoryList is the wire form of the repository list file served at the
// game's RepositoryListURL.
type RepositoryList struct {
	Repositories []Repository `json:"repositories"`
}

// ParseRepositoryList decodes a repository list file.
func ParseRepositoryList(data []byte) (RepositoryList, error) {
	var list RepositoryList
	if err := json.Unmarshal(data, &list); err != nil {
		return RepositoryList{}, fmt.Errorf("invalid repository list: %w", err)
	}
	for _, r := range list.Repositories {
		if r.Name == "" || r.URI == "" {
			return RepositoryList{}, fmt.Errorf("repository list entry missing name or uri")
		}
	}
	return list, nil
}

// distinctByURI filters repositories to the first occurrence of each URI,
// preserving order.
func distinctByURI(repos []Repository) []Repository {
	seen := make(map[string]bool, len(repos))
	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		if seen[r.URI] {
			continue
		}
		seen[r.URI] = true
		out = append(out, r)
	}
	return out
}
