package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/utils"
)

// ProcessingLog is the append-only audit trail: one entry per orchestration
// run. The pipeline never mutates or deletes entries.
type ProcessingLog struct {
	ID         string         `gorm:"type:varchar(50);primaryKey"`
	JobType    string         `gorm:"type:varchar(50);index;not null"`
	Status     enum.RunStatus `gorm:"type:varchar(20);not null"`
	Message    string         `gorm:"type:text"`
	Details    JSONMap        `gorm:"type:jsonb"`
	DurationMs int64          `gorm:"column:duration_ms"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;index;default:current_timestamp"`
}

func (ProcessingLog) TableName() string {
	return "processing_logs"
}

func (p *ProcessingLog) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = utils.GenerateNanoIDWithPrefix("log", 12)
	}
	p.CreatedAt = utils.Now()
	return nil
}
