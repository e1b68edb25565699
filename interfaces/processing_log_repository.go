package interfaces

import (
	"context"

	"github.com/customeros/dmarcwatch/internal/models"
)

type ProcessingLogRepository interface {
	// Append writes one audit entry. Entries are never updated or deleted.
	Append(ctx context.Context, entry *models.ProcessingLog) error
	List(ctx context.Context, limit, offset int) ([]*models.ProcessingLog, int64, error)
}
