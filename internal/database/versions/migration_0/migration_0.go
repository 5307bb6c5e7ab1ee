package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Analysis{}); err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
