package mods

import (
	"encoding/json"
	"testing"

	"kerbal-mod-manager/version"
)

func rel(identifier, ver string) *Release {
	return &Release{
		Identifier: identifier,
		Version:    version.MustParse(ver),
		Kind:       KindPackage,
	}
}

func TestDescriptorUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		check   func(t *testing.T, d RelationshipDescriptor)
		wantErr bool
	}{
		{
			name: "bare name",
			in:   `{"name": "ModuleManager"}`,
			check: func(t *testing.T, d RelationshipDescriptor) {
				if d.Identifier != "ModuleManager" || !d.Bound.IsAny() {
					t.Errorf("got %+v", d)
				}
			},
		},
		{
			name: "exact version",
			in:   `{"name": "ModuleManager", "version": "4.2.2"}`,
			check: func(t *testing.T, d RelationshipDescriptor) {
				if !d.Bound.Contains(version.MustParse("4.2.2")) {
					t.Error("exact version should be in bound")
				}
				if d.Bound.Contains(version.MustParse("4.2.3")) {
					t.Error("other versions should be out of bound")
				}
			},
		},
		{
			name: "min max",
			in:   `{"name": "Kopernicus", "min_version": "1.0", "max_version": "2.0"}`,
			check: func(t *testing.T, d RelationshipDescriptor) {
				for v, want := range map[string]bool{"0.9": false, "1.0": true, "1.5": true, "2.0": true, "2.1": false} {
					if got := d.Bound.Contains(version.MustParse(v)); got != want {
						t.Errorf("Contains(%s) = %v, want %v", v, got, want)
					}
				}
			},
		},
		{
			name: "any_of",
			in:   `{"any_of": [{"name": "A"}, {"name": "B", "version": "1.0"}]}`,
			check: func(t *testing.T, d RelationshipDescriptor) {
				if !d.IsAnyOf() || len(d.AnyOf) != 2 {
					t.Fatalf("got %+v", d)
				}
				if d.AnyOf[0].Identifier != "A" || d.AnyOf[1].Identifier != "B" {
					t.Errorf("alternative order not preserved: %+v", d.AnyOf)
				}
			},
		},
		{
			name: "suppress flag",
			in:   `{"name": "A", "suppress_recommendations": true}`,
			check: func(t *testing.T, d RelationshipDescriptor) {
				if !d.SuppressRecommendations {
					t.Error("suppress_recommendations not decoded")
				}
			},
		},
		{name: "name plus any_of", in: `{"name": "A", "any_of": [{"name": "B"}]}`, wantErr: true},
		{name: "version plus bounds", in: `{"name": "A", "version": "1.0", "min_version": "0.5"}`, wantErr: true},
		{name: "empty", in: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d RelationshipDescriptor
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", d)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, d)
		})
	}
}

// The matching law: d matches r iff r's identifier equals d's or r provides
// it, and r's version lies in the bound.
func TestMatchesRelease(t *testing.T) {
	withProvides := rel("RealFuels", "3.1")
	withProvides.Provides = []string{"FuelSystem"}

	tests := []struct {
		name string
		d    RelationshipDescriptor
		r    *Release
		want bool
	}{
		{"identifier match", RelationshipDescriptor{Identifier: "A"}, rel("A", "1.0"), true},
		{"identifier miss", RelationshipDescriptor{Identifier: "A"}, rel("B", "1.0"), false},
		{"provides match", RelationshipDescriptor{Identifier: "FuelSystem"}, withProvides, true},
		{
			"version in bound",
			RelationshipDescriptor{Identifier: "A", Bound: version.ExactRange(version.MustParse("1.0"))},
			rel("A", "1.0"), true,
		},
		{
			"version out of bound",
			RelationshipDescriptor{Identifier: "A", Bound: version.ExactRange(version.MustParse("1.0"))},
			rel("A", "2.0"), false,
		},
		{
			"provides with bound checks provider version",
			RelationshipDescriptor{Identifier: "FuelSystem", Bound: version.ExactRange(version.MustParse("3.1"))},
			withProvides, true,
		},
		{
			"anyof second alternative",
			RelationshipDescriptor{AnyOf: []RelationshipDescriptor{
				{Identifier: "Nope"},
				{Identifier: "A"},
			}},
			rel("A", "1.0"), true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.MatchesRelease(tt.r); got != tt.want {
				t.Errorf("MatchesRelease = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesAny(t *testing.T) {
	dlls := DLLFacts{"SomePlugin": "GameData/SomePlugin.dll"}
	dlc := DLCFacts{"MakingHistory": version.MustParse("1.1.0")}

	t.Run("release wins over dll", func(t *testing.T) {
		d := RelationshipDescriptor{Identifier: "SomePlugin"}
		m, ok := d.MatchesAny([]*Release{rel("SomePlugin", "2.0")}, dlls, dlc)
		if !ok || m.Release == nil {
			t.Fatalf("expected release match, got %+v ok=%v", m, ok)
		}
	})

	t.Run("dll matches only unbounded", func(t *testing.T) {
		d := RelationshipDescriptor{Identifier: "SomePlugin"}
		m, ok := d.MatchesAny(nil, dlls, dlc)
		if !ok || m.DLL != "SomePlugin" {
			t.Fatalf("expected DLL match, got %+v ok=%v", m, ok)
		}

		bounded := RelationshipDescriptor{
			Identifier: "SomePlugin",
			Bound:      version.ExactRange(version.MustParse("1.0")),
		}
		if _, ok := bounded.MatchesAny(nil, dlls, dlc); ok {
			t.Error("version-bounded descriptor must not match a DLL")
		}
	})

	t.Run("dlc matches with version check", func(t *testing.T) {
		d := RelationshipDescriptor{Identifier: "MakingHistory"}
		m, ok := d.MatchesAny(nil, nil, dlc)
		if !ok || m.DLC != "MakingHistory" {
			t.Fatalf("expected DLC match, got %+v ok=%v", m, ok)
		}

		min := version.MustParse("1.2")
		tooNew := RelationshipDescriptor{
			Identifier: "MakingHistory",
			Bound:      version.ModuleVersionRange{Min: &min, MinInclusive: true},
		}
		if _, ok := tooNew.MatchesAny(nil, nil, dlc); ok {
			t.Error("DLC below the bound must not match")
		}
	})

	t.Run("anyof first match wins", func(t *testing.T) {
		d := RelationshipDescriptor{AnyOf: []RelationshipDescriptor{
			{Identifier: "B"},
			{Identifier: "A"},
		}}
		candidates := []*Release{rel("A", "1.0"), rel("B", "1.0")}
		m, ok := d.MatchesAny(candidates, nil, nil)
		if !ok || m.Release.Identifier != "B" {
			t.Errorf("expected first alternative B to win, got %+v", m)
		}
	})
}

func TestDescriptorJSONRoundTrip(t *testing.T) {
	inputs := []string{
		`{"name":"A"}`,
		`{"name":"A","version":"1.2"}`,
		`{"name":"A","min_version":"1.0","max_version":"2.0"}`,
		`{"any_of":[{"name":"A"},{"name":"B"}],"suppress_recommendations":true}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			var d RelationshipDescriptor
			if err := json.Unmarshal([]byte(in), &d); err != nil {
				t.Fatalf("decode: %v", err)
			}
			data, err := json.Marshal(d)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			var back RelationshipDescriptor
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("re-decode: %v", err)
			}
			if d.String() != back.String() {
				t.Errorf("round trip changed descriptor: %q -> %q", d.String(), back.String())
			}
		})
	}
}
