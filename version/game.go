package version

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// anyComponent marks a game version component that matches anything.
const anyComponent = -1

// GameVersion is a dotted game build version (e.g. "1.12.5"). Components may
// be omitted, in which case they match any value ("1.12" contains "1.12.5").
type GameVersion struct {
	Major int
	Minor int
	Patch int
	Build int
}

// AnyGameVersion matches every game version.
var AnyGameVersion = GameVersion{anyComponent, anyComponent, anyComponent, anyComponent}

// ParseGameVersion parses a dotted game version with up to four components.
// "any" and the empty string parse to the fully wildcarded version.
func ParseGameVersion(s string) (GameVersion, error) {
	if s == "" || strings.EqualFold(s, "any") {
		return AnyGameVersion, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return GameVersion{}, fmt.Errorf("game version %q has too many components", s)
	}

	v := AnyGameVersion
	fields := []*int{&v.Major, &v.Minor, &v.Patch, &v.Build}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return GameVersion{}, fmt.Errorf("invalid game version %q", s)
		}
		*fields[i] = n
	}
	return v, nil
}

func (v GameVersion) components() [4]int {
	return [4]int{v.Major, v.Minor, v.Patch, v.Build}
}

// IsAny reports whether the version matches everything.
func (v GameVersion) IsAny() bool {
	return v.Major == anyComponent
}

// String renders the version, omitting wildcarded trailing components.
func (v GameVersion) String() string {
	if v.IsAny() {
		return "any"
	}
	parts := make([]string, 0, 4)
	for _, c := range v.components() {
		if c == anyComponent {
			break
		}
		parts = append(parts, strconv.Itoa(c))
	}
	return strings.Join(parts, ".")
}

// Compare orders two game versions. A wildcard component compares equal to
// anything in the corresponding position.
func (v GameVersion) Compare(other GameVersion) int {
	a, b := v.components(), other.components()
	for i := range a {
		if a[i] == anyComponent || b[i] == anyComponent {
			return 0
		}
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Contains reports whether other falls under v, treating v's wildcard
// components as matching any value ("1.12" contains "1.12.5").
func (v GameVersion) Contains(other GameVersion) bool {
	a, b := v.components(), other.components()
	for i := range a {
		if a[i] == anyComponent {
			return true
		}
		if b[i] == anyComponent {
			// A concrete component cannot contain a wildcard.
			return false
		}
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports exact component equality, wildcards included.
func (v GameVersion) Equal(other GameVersion) bool {
	return v.components() == other.components()
}

// MarshalJSON encodes the game version as its string form.
func (v GameVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a game version from its string form.
func (v *GameVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGameVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// GameVersionCriteria is the set of concrete game versions an instance is
// running (usually one, more when the user opts into compatible versions).
type GameVersionCriteria []GameVersion

// Versions returns the criteria as a plain slice.
func (c GameVersionCriteria) Versions() []GameVersion {
	return []GameVersion(c)
}

func (c GameVersionCriteria) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
