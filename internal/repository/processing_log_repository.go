package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type processingLogRepository struct {
	db *gorm.DB
}

func NewProcessingLogRepository(db *gorm.DB) interfaces.ProcessingLogRepository {
	return &processingLogRepository{
		db: db,
	}
}

func (r *processingLogRepository) Append(ctx context.Context, entry *models.ProcessingLog) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processingLogRepository.Append")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}

	return nil
}

func (r *processingLogRepository) List(ctx context.Context, limit, offset int) ([]*models.ProcessingLog, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processingLogRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var entries []*models.ProcessingLog
	var count int64

	if err := r.db.WithContext(ctx).Model(&models.ProcessingLog{}).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	return entries, count, nil
}
