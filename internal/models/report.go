package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/utils"
)

// Report is one ingested DMARC aggregate document. ReportID is the
// reporter-assigned identifier and is the natural dedup key: a second
// ingestion attempt with the same value is a no-op.
type Report struct {
	ID       string `gorm:"type:varchar(50);primaryKey"`
	ReportID string `gorm:"type:varchar(255);uniqueIndex;not null"`

	OrgName string `gorm:"type:varchar(255);not null"`
	Email   string `gorm:"type:varchar(255)"`
	Domain  string `gorm:"type:varchar(255);index;not null"`

	// Reporting window, epoch seconds as delivered in the report
	DateBegin int64 `gorm:"index;not null"`
	DateEnd   int64 `gorm:"not null"`

	// Published policy
	PolicyDomain string `gorm:"type:varchar(255)"`
	PolicyADKIM  string `gorm:"type:varchar(10)"`
	PolicyASPF   string `gorm:"type:varchar(10)"`
	PolicyP      string `gorm:"type:varchar(20)"`
	PolicySP     string `gorm:"type:varchar(20)"`
	PolicyPct    int    `gorm:"default:100"`

	Status       enum.ReportStatus `gorm:"type:varchar(20);index;default:'pending'"`
	Analysis     JSONMap           `gorm:"type:jsonb"`
	ErrorMessage string            `gorm:"type:text"`

	ReceivedAt  time.Time  `gorm:"column:received_at;type:timestamp;default:current_timestamp"`
	ProcessedAt *time.Time `gorm:"column:processed_at;type:timestamp"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`

	Records []Record `gorm:"foreignKey:ReportRef;constraint:OnDelete:CASCADE"`
	Alerts  []Alert  `gorm:"foreignKey:ReportRef;constraint:OnDelete:SET NULL"`
}

func (Report) TableName() string {
	return "reports"
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("rpt", 12)
	}
	if r.Status == "" {
		r.Status = enum.ReportStatusPending
	}
	r.CreatedAt = utils.Now()
	return nil
}
