package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// LatestVersion is the schema generation the application reads and writes.
const LatestVersion = 3

// SchemaVersion records the generation the tasks table is at. It holds a single row.
type SchemaVersion struct {
	ID      uint `gorm:"primaryKey"`
	Version int  `gorm:"not null"`
}

// TableName specifies the table name for SchemaVersion Model
func (SchemaVersion) TableName() string {
	return "schema_versions"
}

// Snapshots of the tasks table at each generation. Migrations must keep
// using these, not models.Task, so that old steps stay reproducible.

type taskV1 struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Title      string `gorm:"not null"`
	Deadline   string `gorm:"not null"`
	Importance int    `gorm:"not null"`
	IsDone     bool   `gorm:"column:is_done;not null;default:false"`
}

func (taskV1) TableName() string { return "tasks" }

type taskV2 struct {
	taskV1
	Progress int `gorm:"not null;default:0"`
}

func (taskV2) TableName() string { return "tasks" }

type taskV3 struct {
	taskV2
	Color uint32 `gorm:"not null;default:4292072403"`
}

func (taskV3) TableName() string { return "tasks" }

// migration is a single schema step; apply must be safe to re-run.
type migration struct {
	version int
	name    string
	apply   func(tx *gorm.DB) error
}

// migrations is the ordered list of schema generations, starting from 1.
var migrations = []migration{
	{
		version: 1,
		name:    "create tasks",
		apply: func(tx *gorm.DB) error {
			if tx.Migrator().HasTable(&taskV1{}) {
				return nil
			}
			return tx.Migrator().CreateTable(&taskV1{})
		},
	},
	{
		version: 2,
		name:    "add tasks.progress",
		apply: func(tx *gorm.DB) error {
			if tx.Migrator().HasColumn(&taskV2{}, "Progress") {
				return nil
			}
			return tx.Migrator().AddColumn(&taskV2{}, "Progress")
		},
	},
	{
		version: 3,
		name:    "add tasks.color",
		apply: func(tx *gorm.DB) error {
			if tx.Migrator().HasColumn(&taskV3{}, "Color") {
				return nil
			}
			return tx.Migrator().AddColumn(&taskV3{}, "Color")
		},
	},
}

// Migrate brings the schema to LatestVersion.
func Migrate(db *gorm.DB) error {
	return MigrateTo(db, LatestVersion)
}

// MigrateTo applies every pending generation up to and including target.
// Each generation runs in its own transaction together with the version bump,
// so an interrupted upgrade resumes where it stopped.
func MigrateTo(db *gorm.DB, target int) error {
	if target < 1 || target > LatestVersion {
		return fmt.Errorf("unknown schema version %d", target)
	}
	if err := db.AutoMigrate(&SchemaVersion{}); err != nil {
		return fmt.Errorf("prepare schema_versions: %w", err)
	}

	current, err := CurrentVersion(db)
	if err != nil {
		return err
	}
	if current > LatestVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", current, LatestVersion)
	}

	for _, m := range migrations {
		if m.version <= current || m.version > target {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Save(&SchemaVersion{ID: 1, Version: m.version}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// CurrentVersion reports the schema generation of db, or 0 for an empty
// database. A tasks table created before versions were recorded has its
// generation inferred from its columns.
func CurrentVersion(db *gorm.DB) (int, error) {
	if db.Migrator().HasTable(&SchemaVersion{}) {
		var row SchemaVersion
		err := db.First(&row, 1).Error
		if err == nil {
			return row.Version, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("read schema version: %w", err)
		}
	}

	m := db.Migrator()
	switch {
	case !m.HasTable(&taskV1{}):
		return 0, nil
	case m.HasColumn(&taskV3{}, "Color"):
		return 3, nil
	case m.HasColumn(&taskV2{}, "Progress"):
		return 2, nil
	default:
		return 1, nil
	}
}
