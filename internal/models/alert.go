package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/utils"
)

// Alert is one raised notification. The report reference is weak: alerts
// survive deletion of the report they were raised for.
type Alert struct {
	ID        string  `gorm:"type:varchar(50);primaryKey"`
	ReportRef *string `gorm:"type:varchar(50);index"`

	AlertType enum.AlertType `gorm:"type:varchar(50);not null"`
	Severity  enum.Severity  `gorm:"type:varchar(20);index;not null"`
	Title     string         `gorm:"type:varchar(255);not null"`
	Message   string         `gorm:"type:text;not null"`
	Details   JSONMap        `gorm:"type:jsonb"`

	// Delivery tracking
	EmailSent      bool       `gorm:"default:false"`
	EmailSentAt    *time.Time `gorm:"column:email_sent_at;type:timestamp"`
	EmailRecipient string     `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;index;default:current_timestamp"`
}

func (Alert) TableName() string {
	return "alerts"
}

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("alr", 12)
	}
	a.CreatedAt = utils.Now()
	return nil
}
