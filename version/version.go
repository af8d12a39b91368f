package version

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ModuleVersion is a mod version of the form [epoch:]upstream[-release].
// Comparison is lexicographic on (epoch, upstream, release) with Debian-style
// segment ordering inside the upstream and release parts.
type ModuleVersion struct {
	Epoch    int
	Upstream string
	Release  string

	original string
}

// MustParse parses a version string and panics on failure. Intended for
// literals in tests and defaults.
func MustParse(s string) ModuleVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Parse parses a version string of the form [epoch:]upstream[-release].
func Parse(s string) (ModuleVersion, error) {
	if s == "" {
		return ModuleVersion{}, fmt.Errorf("empty version string")
	}

	v := ModuleVersion{original: s}
	rest := s

	if idx := strings.Index(rest, ":"); idx >= 0 {
		epoch, err := strconv.Atoi(rest[:idx])
		if err != nil || epoch < 0 {
			return ModuleVersion{}, fmt.Errorf("invalid epoch in version %q", s)
		}
		v.Epoch = epoch
		rest = rest[idx+1:]
	}

	// The release suffix starts at the last hyphen, matching dpkg semantics:
	// hyphens in the upstream part are allowed.
	if idx := strings.LastIndex(rest, "-"); idx >= 0 {
		v.Release = rest[idx+1:]
		rest = rest[:idx]
	}

	if rest == "" {
		return ModuleVersion{}, fmt.Errorf("version %q has no upstream part", s)
	}
	v.Upstream = rest

	return v, nil
}

// String returns the original string form of the version.
func (v ModuleVersion) String() string {
	if v.original != "" {
		return v.original
	}
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d:", v.Epoch)
	}
	b.WriteString(v.Upstream)
	if v.Release != "" {
		b.WriteString("-")
		b.WriteString(v.Release)
	}
	return b.String()
}

// Compare returns -1, 0 or 1 as v sorts before, equal to or after other.
func (v ModuleVersion) Compare(other ModuleVersion) int {
	if v.Epoch != other.Epoch {
		if v.Epoch < other.Epoch {
			return -1
		}
		return 1
	}
	if c := compareFragment(v.Upstream, other.Upstream); c != 0 {
		return c
	}
	return compareFragment(v.Release, other.Release)
}

// Equal reports whether two versions compare equal. Distinct strings can be
// equal ("1.0" and "1.0-").
func (v ModuleVersion) Equal(other ModuleVersion) bool {
	return v.Compare(other) == 0
}

// Less reports whether v sorts strictly before other.
func (v ModuleVersion) Less(other ModuleVersion) bool {
	return v.Compare(other) < 0
}

// compareFragment implements the dpkg ordering over one version fragment:
// alternating non-digit and digit runs, digits compared numerically, non-digits
// by codepoint with '~' sorting before everything including the empty string.
func compareFragment(a, b string) int {
	for a != "" || b != "" {
		aPart, aRest := takeNonDigits(a)
		bPart, bRest := takeNonDigits(b)
		if c := compareNonDigits(aPart, bPart); c != 0 {
			return c
		}
		a, b = aRest, bRest

		aNum, aRest := takeDigits(a)
		bNum, bRest := takeDigits(b)
		if c := compareNumeric(aNum, bNum); c != 0 {
			return c
		}
		a, b = aRest, bRest
	}
	return 0
}

func takeNonDigits(s string) (part, rest string) {
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') {
		i++
	}
	return s[:i], s[i:]
}

func takeDigits(s string) (part, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}

// charOrder maps a byte to its sort weight: '~' before end-of-string, letters
// before everything else, then remaining characters by codepoint.
func charOrder(c byte) int {
	switch {
	case c == '~':
		return -1
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		return int(c)
	default:
		return int(c) + 256
	}
}

func compareNonDigits(a, b string) int {
	i := 0
	for i < len(a) || i < len(b) {
		var ac, bc int
		if i < len(a) {
			ac = charOrder(a[i])
		}
		if i < len(b) {
			bc = charOrder(b[i])
		}
		if ac != bc {
			if ac < bc {
				return -1
			}
			return 1
		}
		i++
	}
	return 0
}

func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// MarshalJSON encodes the version as its string form.
func (v ModuleVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a version from its string form.
func (v *ModuleVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
