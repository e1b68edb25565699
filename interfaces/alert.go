package interfaces

import (
	"context"

	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
)

// AlertReason is one fired rule within a decision.
type AlertReason struct {
	Type     enum.AlertType
	Severity enum.Severity
	Message  string
}

// AlertDecision is the outcome of criteria evaluation. Severity is the
// maximum among fired reasons; AlertType and Title come from the first
// reason that carries that maximum, in evaluation order.
type AlertDecision struct {
	AlertType enum.AlertType
	Severity  enum.Severity
	Title     string
	Reasons   []AlertReason
}

// AlertService evaluates alert criteria and owns throttling.
type AlertService interface {
	Evaluate(ctx context.Context, report *models.Report, records []models.Record, analysis *dto.AnalysisResult) *AlertDecision
	ShouldThrottle(ctx context.Context, alertType enum.AlertType) (bool, error)
	BuildAlert(decision *AlertDecision, report *models.Report, analysis *dto.AnalysisResult) *models.Alert
}

// MailSender delivers a raised alert by email.
type MailSender interface {
	SendAlert(ctx context.Context, alert *models.Alert, decision *AlertDecision, report *models.Report, analysis *dto.AnalysisResult) error
}
