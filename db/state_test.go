package db

import (
	"path/filepath"
	"testing"

	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/version"
)

func initTestDB(t *testing.T) {
	t.Helper()
	InitDatabase(filepath.Join(t.TempDir(), "mods.db"))
}

func TestLoadInstalled(t *testing.T) {
	initTestDB(t)

	for _, row := range []InstalledMod{
		{Identifier: "Known", Version: "1.2", Kind: "package"},
		{Identifier: "Forgotten", Version: "0.9", Kind: "package"},
	} {
		if err := DB.Create(&row).Error; err != nil {
			t.Fatal(err)
		}
	}

	catalog := &mods.Release{
		Identifier: "Known",
		Version:    version.MustParse("1.2"),
		Kind:       mods.KindPackage,
		Depends:    []mods.RelationshipDescriptor{{Identifier: "Lib"}},
	}
	lookup := func(identifier, versionString string) *mods.Release {
		if identifier == "Known" && versionString == "1.2" {
			return catalog
		}
		return nil
	}

	installed, err := LoadInstalled(lookup)
	if err != nil {
		t.Fatalf("LoadInstalled: %v", err)
	}
	if len(installed) != 2 {
		t.Fatalf("got %d installed", len(installed))
	}
	if installed["Known"] != catalog {
		t.Error("catalog release should be used when the lookup hits")
	}
	forgotten := installed["Forgotten"]
	if forgotten == nil || len(forgotten.Depends) != 0 || forgotten.Version.String() != "0.9" {
		t.Errorf("forgotten mod should become a bare release: %+v", forgotten)
	}
}

func TestLoadDLLsAndDLC(t *testing.T) {
	initTestDB(t)

	if err := DB.Create(&TrackedDLL{Identifier: "SomePlugin", Path: "GameData/SomePlugin.dll"}).Error; err != nil {
		t.Fatal(err)
	}
	if err := DB.Create(&DLCFact{Identifier: "MakingHistory", Version: "1.1.0"}).Error; err != nil {
		t.Fatal(err)
	}

	dlls, err := LoadDLLs()
	if err != nil {
		t.Fatalf("LoadDLLs: %v", err)
	}
	if !dlls.Has("SomePlugin") {
		t.Errorf("dlls = %v", dlls)
	}

	dlc, err := LoadDLC()
	if err != nil {
		t.Fatalf("LoadDLC: %v", err)
	}
	v, ok := dlc["MakingHistory"]
	if !ok || v.String() != "1.1.0" {
		t.Errorf("dlc = %v", dlc)
	}
}
