package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Analysis is one successful classification. Only a digest of the text is
// stored.
type Analysis struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TextHash   string `gorm:"size:64;index;not null"`
	TextLength int
	Symbol     sql.NullString `gorm:"size:32;index"`

	Label         string `gorm:"size:32;index;not null"`
	Score         float64
	Polarity      float64
	Probabilities datatypes.JSON `gorm:"type:jsonb"`

	ModelVersion string `gorm:"size:255"`
	LatencyMs    int64
	CreationTime time.Time `gorm:"index"`
}

const (
	ExportRunning   string = "RUNNING"
	ExportCompleted string = "COMPLETED"
	ExportFailed    string = "FAILED"
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
