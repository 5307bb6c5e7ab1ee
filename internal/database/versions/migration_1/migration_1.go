package migration_1

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExportRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Checkpoint   string `gorm:"not null"`
	OutputPath   string `gorm:"not null"`
	PublishUri   sql.NullString
	OpsetVersion int
	Strict       bool

	Status string `gorm:"size:20;not null"`
	Error  sql.NullString

	MissingKeys    datatypes.JSON `gorm:"type:jsonb"`
	UnexpectedKeys datatypes.JSON `gorm:"type:jsonb"`
	OutputShape    datatypes.JSON `gorm:"type:jsonb"`

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().CreateTable(&ExportRun{}); err != nil {
		return fmt.Errorf("error creating export_runs table: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&ExportRun{}); err != nil {
		return fmt.Errorf("error dropping export_runs table: %w", err)
	}
	return nil
}
