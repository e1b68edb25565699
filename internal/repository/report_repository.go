package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/internal/utils"
)

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) interfaces.ReportRepository {
	return &reportRepository{
		db: db,
	}
}

// IsDuplicate reports whether a report with the reporter-assigned id was
// already ingested. Duplicates short-circuit before any write.
func (r *reportRepository) IsDuplicate(ctx context.Context, reportID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reportRepository.IsDuplicate")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	existing := &models.Report{}
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		First(existing).Error

	if err == nil {
		span.SetTag("duplicate", true)
		return true, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	tracing.TraceErr(span, err)
	return false, err
}

// SaveUnit persists one report, its records and the optional alert as a
// single transaction. When an alert and a delivery func are present, delivery
// runs between alert creation and commit: a send failure commits the alert
// row with email_sent=false instead of rolling the unit back.
func (r *reportRepository) SaveUnit(ctx context.Context, unit *interfaces.ReportUnit, deliver interfaces.AlertDeliveryFunc) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reportRepository.SaveUnit")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("report.id", unit.Report.ReportID)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(unit.Report).Error; err != nil {
			tracing.TraceErr(span, err)
			return err
		}

		for i := range unit.Records {
			unit.Records[i].ReportRef = unit.Report.ID
		}
		if len(unit.Records) > 0 {
			if err := tx.Create(&unit.Records).Error; err != nil {
				tracing.TraceErr(span, err)
				return err
			}
		}

		if unit.Alert == nil {
			return nil
		}

		unit.Alert.ReportRef = &unit.Report.ID
		if err := tx.Create(unit.Alert).Error; err != nil {
			tracing.TraceErr(span, err)
			return err
		}

		if deliver == nil {
			return nil
		}

		if err := deliver(ctx, unit.Alert); err != nil {
			// the alert row survives with email_sent=false; the unit still commits
			tracing.TraceErr(span, err)
			span.SetTag("alert.delivery_failed", true)
			return nil
		}

		unit.Alert.EmailSent = true
		unit.Alert.EmailSentAt = utils.NowPtr()
		return tx.Model(unit.Alert).
			Updates(map[string]interface{}{
				"email_sent":    true,
				"email_sent_at": unit.Alert.EmailSentAt,
			}).Error
	})
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reportRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var report models.Report
	if err := r.db.WithContext(ctx).Preload("Records").Where("id = ?", id).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) GetByReportID(ctx context.Context, reportID string) (*models.Report, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reportRepository.GetByReportID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var report models.Report
	if err := r.db.WithContext(ctx).Where("report_id = ?", reportID).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &report, nil
}

// List retrieves reports ordered by receipt time with pagination
func (r *reportRepository) List(ctx context.Context, limit, offset int) ([]*models.Report, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reportRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var reports []*models.Report
	var count int64

	if err := r.db.WithContext(ctx).Model(&models.Report{}).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Order("received_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reports).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	return reports, count, nil
}
