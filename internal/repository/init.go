package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/models"
)

type Repositories struct {
	ReportRepository        interfaces.ReportRepository
	AlertRepository         interfaces.AlertRepository
	ProcessingLogRepository interfaces.ProcessingLogRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		ReportRepository:        NewReportRepository(db),
		AlertRepository:         NewAlertRepository(db),
		ProcessingLogRepository: NewProcessingLogRepository(db),
	}
}

func MigrateDB(dbMaxIdleConn, dbMaxConn, dbConnMaxLifetime int, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Report{},
		&models.Record{},
		&models.Alert{},
		&models.ProcessingLog{},
	)

	sqlDB.SetMaxIdleConns(dbMaxIdleConn)
	sqlDB.SetMaxOpenConns(dbMaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConnMaxLifetime) * time.Minute)

	return err
}
