package interfaces

import (
	"context"
	"time"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
)

type AlertRepository interface {
	// HasRecentSent reports whether a sent alert of the given type exists
	// within the trailing window. Used for delivery throttling.
	HasRecentSent(ctx context.Context, alertType enum.AlertType, window time.Duration) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.Alert, int64, error)
}
