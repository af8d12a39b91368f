package registry

import (
	"errors"
	"testing"

	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/version"
)

func dep(identifier string) mods.RelationshipDescriptor {
	return mods.RelationshipDescriptor{Identifier: identifier}
}

func TestUnmetDepends(t *testing.T) {
	t.Run("satisfied by module", func(t *testing.T) {
		a := release("A", "1.0", func(r *mods.Release) { r.Depends = []mods.RelationshipDescriptor{dep("B")} })
		b := release("B", "1.0")
		if unmet := UnmetDepends([]*mods.Release{a, b}, nil, nil); len(unmet) != 0 {
			t.Errorf("unexpected unmet: %v", unmet)
		}
	})

	t.Run("satisfied by provides", func(t *testing.T) {
		a := release("A", "1.0", func(r *mods.Release) { r.Depends = []mods.RelationshipDescriptor{dep("Virtual")} })
		p := release("P", "1.0", func(r *mods.Release) { r.Provides = []string{"Virtual"} })
		if unmet := UnmetDepends([]*mods.Release{a, p}, nil, nil); len(unmet) != 0 {
			t.Errorf("unexpected unmet: %v", unmet)
		}
	})

	t.Run("satisfied by dll", func(t *testing.T) {
		a := release("A", "1.0", func(r *mods.Release) { r.Depends = []mods.RelationshipDescriptor{dep("SomePlugin")} })
		dlls := mods.DLLFacts{"SomePlugin": "GameData/SomePlugin.dll"}
		if unmet := UnmetDepends([]*mods.Release{a}, dlls, nil); len(unmet) != 0 {
			t.Errorf("unexpected unmet: %v", unmet)
		}
	})

	t.Run("satisfied by dlc", func(t *testing.T) {
		a := release("A", "1.0", func(r *mods.Release) { r.Depends = []mods.RelationshipDescriptor{dep("MakingHistory")} })
		dlc := mods.DLCFacts{"MakingHistory": version.MustParse("1.1.0")}
		if unmet := UnmetDepends([]*mods.Release{a}, nil, dlc); len(unmet) != 0 {
			t.Errorf("unexpected unmet: %v", unmet)
		}
	})

	t.Run("missing dependency reported", func(t *testing.T) {
		a := release("A", "1.0", func(r *mods.Release) { r.Depends = []mods.RelationshipDescriptor{dep("Gone")} })
		unmet := UnmetDepends([]*mods.Release{a}, nil, nil)
		if len(unmet) != 1 {
			t.Fatalf("got %d unmet, want 1", len(unmet))
		}
		if unmet[0].Release != a || unmet[0].Descriptor.Identifier != "Gone" {
			t.Errorf("unmet = %+v", unmet[0])
		}
	})
}

func TestFindConflicts(t *testing.T) {
	t.Run("module conflict", func(t *testing.T) {
		a := release("A", "1.0", func(r *mods.Release) { r.Conflicts = []mods.RelationshipDescriptor{dep("B")} })
		b := release("B", "1.0")
		conflicts := FindConflicts([]*mods.Release{a, b}, nil, nil)
		if len(conflicts) != 1 {
			t.Fatalf("got %d conflicts, want 1", len(conflicts))
		}
		c := conflicts[0]
		if c.Release != a || c.Other != b {
			t.Errorf("conflict = %+v", c)
		}
	})

	t.Run("self conflict ignored", func(t *testing.T) {
		// A mod conflicting with its own identifier happens with provides
		// unions; upgrades must stay legal.
		a := release("A", "1.0", func(r *mods.Release) { r.Conflicts = []mods.RelationshipDescriptor{dep("A")} })
		if conflicts := FindConflicts([]*mods.Release{a}, nil, nil); len(conflicts) != 0 {
			t.Errorf("self conflict reported: %v", conflicts)
		}
	})

	t.Run("version bound respected", func(t *testing.T) {
		min := version.MustParse("2.0")
		a := release("A", "1.0", func(r *mods.Release) {
			r.Conflicts = []mods.RelationshipDescriptor{{
				Identifier: "B",
				Bound:      version.ModuleVersionRange{Min: &min, MinInclusive: true},
			}}
		})
		oldB := release("B", "1.0")
		if conflicts := FindConflicts([]*mods.Release{a, oldB}, nil, nil); len(conflicts) != 0 {
			t.Errorf("out-of-bound conflict reported: %v", conflicts)
		}
		newB := release("B", "2.0")
		if conflicts := FindConflicts([]*mods.Release{a, newB}, nil, nil); len(conflicts) != 1 {
			t.Errorf("in-bound conflict missed: %v", conflicts)
		}
	})

	t.Run("dll conflict", func(t *testing.T) {
		a := release("A", "1.0", func(r *mods.Release) { r.Conflicts = []mods.RelationshipDescriptor{dep("LegacyPlugin")} })
		dlls := mods.DLLFacts{"LegacyPlugin": "GameData/LegacyPlugin.dll"}
		conflicts := FindConflicts([]*mods.Release{a}, dlls, nil)
		if len(conflicts) != 1 || conflicts[0].DLL != "LegacyPlugin" {
			t.Errorf("conflicts = %+v", conflicts)
		}
	})

	t.Run("dlc conflict", func(t *testing.T) {
		a := release("A", "1.0", func(r *mods.Release) { r.Conflicts = []mods.RelationshipDescriptor{dep("Serenity")} })
		dlc := mods.DLCFacts{"Serenity": version.MustParse("1.0")}
		conflicts := FindConflicts([]*mods.Release{a}, nil, dlc)
		if len(conflicts) != 1 || conflicts[0].Other.Identifier != "Serenity" {
			t.Errorf("conflicts = %+v", conflicts)
		}
	})
}

func TestEnforceConsistency(t *testing.T) {
	a := release("A", "1.0", func(r *mods.Release) {
		r.Depends = []mods.RelationshipDescriptor{dep("Gone")}
		r.Conflicts = []mods.RelationshipDescriptor{dep("B")}
	})
	b := release("B", "1.0")

	err := EnforceConsistency([]*mods.Release{a, b}, nil, nil)
	var bad *BadRelationshipsError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadRelationshipsError, got %v", err)
	}
	if len(bad.Unmet) != 1 || len(bad.Conflicts) != 1 {
		t.Errorf("unmet=%d conflicts=%d", len(bad.Unmet), len(bad.Conflicts))
	}

	if IsConsistent([]*mods.Release{a, b}, nil, nil) {
		t.Error("IsConsistent should be false")
	}
	if err := EnforceConsistency([]*mods.Release{b}, nil, nil); err != nil {
		t.Errorf("consistent set rejected: %v", err)
	}
	if !IsConsistent([]*mods.Release{b}, nil, nil) {
		t.Error("IsConsistent should be true")
	}
}
