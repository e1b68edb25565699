package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

const maxListedSources = 3

type alertService struct {
	cfg       *config.AlertConfig
	log       logger.Logger
	alertRepo interfaces.AlertRepository
}

func NewAlertService(cfg *config.AlertConfig, log logger.Logger, alertRepo interfaces.AlertRepository) interfaces.AlertService {
	return &alertService{
		cfg:       cfg,
		log:       log,
		alertRepo: alertRepo,
	}
}

// Evaluate runs the rule set in fixed order. Record-derived reasons come
// before analysis-derived ones, and within each rule records fire in input
// order, so the outcome is deterministic for a given input.
func (s *alertService) Evaluate(ctx context.Context, report *models.Report, records []models.Record, analysis *dto.AnalysisResult) *interfaces.AlertDecision {
	var reasons []interfaces.AlertReason

	for _, record := range records {
		if record.Count <= 0 {
			continue
		}
		switch record.Disposition {
		case enum.DispositionReject:
			reasons = append(reasons, interfaces.AlertReason{
				Type:     enum.AlertTypeDmarcFailure,
				Severity: enum.SeverityHigh,
				Message:  fmt.Sprintf("%d message(s) from %s rejected by DMARC policy", record.Count, record.SourceIP),
			})
		case enum.DispositionQuarantine:
			reasons = append(reasons, interfaces.AlertReason{
				Type:     enum.AlertTypeDmarcFailure,
				Severity: enum.SeverityMedium,
				Message:  fmt.Sprintf("%d message(s) from %s quarantined by DMARC policy", record.Count, record.SourceIP),
			})
		}
	}

	for _, record := range records {
		if record.SPFResult == "fail" && record.Count > 5 {
			reasons = append(reasons, interfaces.AlertReason{
				Type:     enum.AlertTypeSpfFailure,
				Severity: enum.SeverityMedium,
				Message:  fmt.Sprintf("%d message(s) from %s failed SPF", record.Count, record.SourceIP),
			})
		}
	}

	for _, record := range records {
		if record.DKIMResult == "fail" && record.Count > 5 {
			reasons = append(reasons, interfaces.AlertReason{
				Type:     enum.AlertTypeDkimFailure,
				Severity: enum.SeverityMedium,
				Message:  fmt.Sprintf("%d message(s) from %s failed DKIM", record.Count, record.SourceIP),
			})
		}
	}

	if analysis != nil {
		if len(analysis.UnauthorizedSources) > 0 {
			listed := analysis.UnauthorizedSources
			if len(listed) > maxListedSources {
				listed = listed[:maxListedSources]
			}
			reasons = append(reasons, interfaces.AlertReason{
				Type:     enum.AlertTypeUnauthorizedSender,
				Severity: enum.SeverityHigh,
				Message:  fmt.Sprintf("Unauthorized sending sources detected: %s", strings.Join(listed, ", ")),
			})
		}
		if len(analysis.Anomalies) > 0 {
			reasons = append(reasons, interfaces.AlertReason{
				Type:     enum.AlertTypeSuspiciousPattern,
				Severity: enum.SeverityOrDefault(analysis.Severity),
				Message:  fmt.Sprintf("Suspicious patterns detected: %s", strings.Join(analysis.Anomalies, "; ")),
			})
		}
	}

	if len(reasons) == 0 {
		return nil
	}

	// The decision takes the maximum severity among reasons; the first
	// reason at that severity names the decision.
	primary := reasons[0]
	for _, reason := range reasons[1:] {
		if reason.Severity.Rank() > primary.Severity.Rank() {
			primary = reason
		}
	}

	return &interfaces.AlertDecision{
		AlertType: primary.Type,
		Severity:  primary.Severity,
		Title:     fmt.Sprintf("DMARC alert for %s: %s", report.Domain, primary.Type.String()),
		Reasons:   reasons,
	}
}

// ShouldThrottle suppresses delivery when a sent alert of the same type
// exists within the trailing window. The decision itself is still computed
// and logged so the audit trail stays complete.
func (s *alertService) ShouldThrottle(ctx context.Context, alertType enum.AlertType) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AlertService.ShouldThrottle")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("alertType", alertType.String())

	window := time.Duration(s.cfg.ThrottleWindowMinutes) * time.Minute
	recent, err := s.alertRepo.HasRecentSent(ctx, alertType, window)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	if recent {
		s.log.Infof("Throttling %s alert: one was already sent within the last %d minute(s)", alertType, s.cfg.ThrottleWindowMinutes)
	}
	span.SetTag("throttled", recent)
	return recent, nil
}

// BuildAlert turns a decision into the row that will be persisted with the
// report. Delivery state starts unsent; the persistence layer flips it once
// the email goes out.
func (s *alertService) BuildAlert(decision *interfaces.AlertDecision, report *models.Report, analysis *dto.AnalysisResult) *models.Alert {
	messages := make([]string, 0, len(decision.Reasons))
	for _, reason := range decision.Reasons {
		messages = append(messages, reason.Message)
	}

	details := models.JSONMap{
		"report_id": report.ReportID,
		"domain":    report.Domain,
		"org_name":  report.OrgName,
		"reasons":   messages,
	}
	if analysis != nil && analysis.Summary != "" {
		details["analysis_summary"] = analysis.Summary
	}

	return &models.Alert{
		AlertType:      decision.AlertType,
		Severity:       decision.Severity,
		Title:          decision.Title,
		Message:        strings.Join(messages, "\n"),
		Details:        details,
		EmailSent:      false,
		EmailRecipient: s.cfg.Recipient,
	}
}
