package interfaces

import (
	"context"

	"github.com/customeros/dmarcwatch/internal/models"
)

// ReportUnit is everything persisted for one source attachment: the report
// row, its record rows, and the optional alert row. The whole unit commits
// or rolls back as one transaction.
type ReportUnit struct {
	Report  *models.Report
	Records []models.Record
	Alert   *models.Alert
}

// AlertDeliveryFunc delivers the alert between row creation and commit.
// A delivery error leaves the alert row committed with email_sent=false;
// it never rolls the unit back.
type AlertDeliveryFunc func(ctx context.Context, alert *models.Alert) error

type ReportRepository interface {
	IsDuplicate(ctx context.Context, reportID string) (bool, error)
	SaveUnit(ctx context.Context, unit *ReportUnit, deliver AlertDeliveryFunc) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	GetByReportID(ctx context.Context, reportID string) (*models.Report, error)
	List(ctx context.Context, limit, offset int) ([]*models.Report, int64, error)
}
