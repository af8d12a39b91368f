package db

import (
	"time"

	"gorm.io/gorm"
)

// InstalledMod is a mod release currently installed into the game directory.
type InstalledMod struct {
	gorm.Model
	Identifier    string `gorm:"uniqueIndex"` // Stable mod identifier
	Version       string // Installed version string
	Kind          string // package, metapackage or dlc
	FileName      string // Downloaded archive file name
	InstallPath   string // Where the archive currently lives
	SHA256        string // Hash the download was verified against
	AutoInstalled bool   // Pulled in as a dependency rather than requested
	InstalledAt   time.Time
}

// ModHistory is a previously installed version of a mod, kept so rollbacks
// and upgrade bookkeeping know what was there before.
type ModHistory struct {
	gorm.Model
	Identifier  string // References InstalledMod.Identifier
	Version     string // Version that was replaced
	FileName    string // Original archive file name
	ArchivePath string // Path to the archived file (if kept)
}

// TrackedDLL is an ambient plugin file found in the game directory. DLLs
// are version-opaque and satisfy unbounded relationships.
type TrackedDLL struct {
	gorm.Model
	Identifier string `gorm:"uniqueIndex"`
	Path       string
}

// DLCFact is a detected first-party add-on with its version.
type DLCFact struct {
	gorm.Model
	Identifier string `gorm:"uniqueIndex"`
	Version    string
}
