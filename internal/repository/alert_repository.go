package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/internal/utils"
)

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) interfaces.AlertRepository {
	return &alertRepository{
		db: db,
	}
}

// HasRecentSent looks for a delivered alert of the same type inside the
// trailing window. Only sent alerts count; suppressed decisions leave no row.
func (r *alertRepository) HasRecentSent(ctx context.Context, alertType enum.AlertType, window time.Duration) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "alertRepository.HasRecentSent")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("alert.type", alertType.String())

	threshold := utils.Now().Add(-window)

	recent := &models.Alert{}
	err := r.db.WithContext(ctx).
		Where("alert_type = ? AND email_sent = ? AND created_at >= ?", alertType, true, threshold).
		First(recent).Error

	if err == nil {
		return true, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	tracing.TraceErr(span, err)
	return false, err
}

// List retrieves alerts newest first with pagination
func (r *alertRepository) List(ctx context.Context, limit, offset int) ([]*models.Alert, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "alertRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var alerts []*models.Alert
	var count int64

	if err := r.db.WithContext(ctx).Model(&models.Alert{}).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&alerts).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	return alerts, count, nil
}
