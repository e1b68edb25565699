package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/utils"
)

// Record is a single authentication-result row inside a report.
// Rows are immutable once created and owned exclusively by their report.
type Record struct {
	ID        string `gorm:"type:varchar(50);primaryKey"`
	ReportRef string `gorm:"type:varchar(50);index;not null"`

	SourceIP string `gorm:"type:varchar(45);index;not null"`
	Count    int    `gorm:"not null"`

	// Policy evaluated
	Disposition enum.Disposition `gorm:"type:varchar(20)"`
	DKIMResult  string           `gorm:"type:varchar(20)"`
	SPFResult   string           `gorm:"type:varchar(20)"`

	// DKIM auth detail
	DKIMDomain       string `gorm:"type:varchar(255)"`
	DKIMSelector     string `gorm:"type:varchar(255)"`
	DKIMResultDetail string `gorm:"type:varchar(20)"`

	// SPF auth detail
	SPFDomain       string `gorm:"type:varchar(255)"`
	SPFScope        string `gorm:"type:varchar(20)"`
	SPFResultDetail string `gorm:"type:varchar(20)"`

	HeaderFrom string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (Record) TableName() string {
	return "records"
}

func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("rec", 12)
	}
	r.CreatedAt = utils.Now()
	return nil
}
