package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	dmarcwatch_errors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/internal/utils"
	"github.com/customeros/dmarcwatch/services/parser"
)

const jobTypeDmarcProcessing = "dmarc_processing"

// RunResult summarizes one processing run.
type RunResult struct {
	RunID           string         `json:"runId"`
	Status          enum.RunStatus `json:"status"`
	Message         string         `json:"message"`
	EmailsProcessed int            `json:"emailsProcessed"`
	ReportsStored   int            `json:"reportsStored"`
	AlertsRaised    int            `json:"alertsRaised"`
	Duplicates      int            `json:"duplicates"`
	Failures        int            `json:"failures"`
	DurationMs      int64          `json:"durationMs"`
}

type itemStatus int

const (
	itemProcessed itemStatus = iota
	itemDuplicate
	itemFailed
)

// itemOutcome is an explicit per-attachment result. The batch loop
// aggregates these instead of letting one bad attachment abort the run.
type itemOutcome struct {
	filename string
	status   itemStatus
	alerted  bool
	err      error
}

// ProcessorService ties mail retrieval, parsing, analysis, alerting and
// persistence into one run. Runs are single-flight: a trigger arriving while
// another run holds the lock is rejected, not queued.
type ProcessorService struct {
	log          logger.Logger
	mailSource   interfaces.MailSource
	parser       *parser.DMARCParserService
	analysis     interfaces.AnalysisService
	alerts       interfaces.AlertService
	sender       interfaces.MailSender
	archive      interfaces.StorageService
	repositories *repository.Repositories

	runLock sync.Mutex
}

func NewProcessorService(
	log logger.Logger,
	mailSource interfaces.MailSource,
	dmarcParser *parser.DMARCParserService,
	analysis interfaces.AnalysisService,
	alerts interfaces.AlertService,
	sender interfaces.MailSender,
	archive interfaces.StorageService,
	repositories *repository.Repositories,
) *ProcessorService {
	return &ProcessorService{
		log:          log,
		mailSource:   mailSource,
		parser:       dmarcParser,
		analysis:     analysis,
		alerts:       alerts,
		sender:       sender,
		archive:      archive,
		repositories: repositories,
	}
}

// ProcessReports runs the full pipeline once. A concurrent trigger returns a
// skipped result with ErrRunInProgress; callers decide how to surface it.
func (s *ProcessorService) ProcessReports(ctx context.Context, trigger enum.JobTrigger) (*RunResult, error) {
	if !s.runLock.TryLock() {
		s.log.Warnf("Rejecting %s trigger: a processing run is already in progress", trigger)
		return &RunResult{
			RunID:   uuid.New().String(),
			Status:  enum.RunStatusSkipped,
			Message: "processing run already in progress",
		}, dmarcwatch_errors.ErrRunInProgress
	}
	defer s.runLock.Unlock()

	span, ctx := opentracing.StartSpanFromContext(ctx, "ProcessorService.ProcessReports")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("trigger", trigger.String())

	start := time.Now()
	result := &RunResult{
		RunID:  uuid.New().String(),
		Status: enum.RunStatusSuccess,
	}
	span.SetTag("runID", result.RunID)
	s.log.Infof("Starting %s processing run %s", trigger, result.RunID)

	runErr := s.runPipeline(ctx, result)

	result.DurationMs = time.Since(start).Milliseconds()
	if runErr != nil {
		result.Status = enum.RunStatusFailure
		result.Message = runErr.Error()
		tracing.TraceErr(span, runErr)
		s.log.Errorf("Processing run %s failed: %v", result.RunID, runErr)
	} else {
		result.Message = fmt.Sprintf("processed %d email(s), stored %d report(s), raised %d alert(s)",
			result.EmailsProcessed, result.ReportsStored, result.AlertsRaised)
		s.log.Infof("Processing run %s finished: %s", result.RunID, result.Message)
	}

	s.appendRunLog(ctx, trigger, result)

	return result, runErr
}

func (s *ProcessorService) runPipeline(ctx context.Context, result *RunResult) error {
	if err := s.mailSource.Connect(ctx); err != nil {
		return errors.Wrap(err, "failed to connect to mailbox")
	}
	defer s.mailSource.Close()

	seqNums, err := s.mailSource.ListUnseen(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to search mailbox")
	}
	if len(seqNums) == 0 {
		s.log.Info("No unseen messages")
		return nil
	}
	s.log.Infof("Found %d unseen message(s)", len(seqNums))

	marked := 0
	for _, seqNum := range seqNums {
		outcomes := s.processEmail(ctx, seqNum)
		if len(outcomes) == 0 {
			// No report attachments; leave the message alone.
			continue
		}

		result.EmailsProcessed++
		deletable := true
		for _, outcome := range outcomes {
			switch outcome.status {
			case itemProcessed:
				result.ReportsStored++
				if outcome.alerted {
					result.AlertsRaised++
				}
			case itemDuplicate:
				result.Duplicates++
			case itemFailed:
				result.Failures++
				deletable = false
				s.log.Errorf("Failed to process attachment %s: %v", outcome.filename, outcome.err)
			}
		}

		// The email leaves the mailbox only once every attachment's unit
		// is committed; a partial failure keeps it for the next run.
		if deletable {
			if err := s.mailSource.Delete(ctx, seqNum); err != nil {
				s.log.Errorf("Failed to flag message %d deleted: %v", seqNum, err)
			} else {
				marked++
			}
		}
	}

	// A single expunge after the loop keeps the sequence numbers from
	// ListUnseen valid for the whole batch.
	if marked > 0 {
		if err := s.mailSource.Expunge(ctx); err != nil {
			s.log.Errorf("Failed to expunge %d deleted message(s): %v", marked, err)
		}
	}

	return nil
}

// processEmail handles one message: fetch, extract, and process each report
// attachment independently.
func (s *ProcessorService) processEmail(ctx context.Context, seqNum uint32) []itemOutcome {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProcessorService.processEmail")
	defer span.Finish()
	span.SetTag("seqNum", seqNum)

	raw, err := s.mailSource.Fetch(ctx, seqNum)
	if err != nil {
		tracing.TraceErr(span, err)
		return []itemOutcome{{status: itemFailed, err: errors.Wrap(err, "fetch failed")}}
	}

	attachments, err := s.mailSource.ExtractAttachments(raw)
	if err != nil {
		tracing.TraceErr(span, err)
		return []itemOutcome{{status: itemFailed, err: errors.Wrap(err, "attachment extraction failed")}}
	}

	outcomes := make([]itemOutcome, 0, len(attachments))
	for _, attachment := range attachments {
		if !isReportAttachment(attachment.Filename) {
			s.log.Debugf("Skipping non-report attachment %s", attachment.Filename)
			continue
		}
		outcome := s.processAttachment(ctx, attachment)
		outcome.filename = attachment.Filename
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// isReportAttachment filters out mail decorations (logos, inline images,
// signatures) so they never count as failures or hold a message in the
// mailbox. Reports arrive as bare XML or gzip/zip archives.
func isReportAttachment(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xml") ||
		strings.HasSuffix(name, ".gz") ||
		strings.HasSuffix(name, ".zip")
}

// processAttachment runs one attachment through decompress, parse, dedup,
// analysis, alert evaluation and the single commit.
func (s *ProcessorService) processAttachment(ctx context.Context, attachment interfaces.Attachment) itemOutcome {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProcessorService.processAttachment")
	defer span.Finish()
	span.SetTag("filename", attachment.Filename)

	xmlBytes, err := s.mailSource.Decompress(attachment.Content, attachment.Filename)
	if err != nil {
		tracing.TraceErr(span, err)
		return itemOutcome{status: itemFailed, err: errors.Wrap(err, "decompression failed")}
	}

	parsed, err := s.parser.Parse(xmlBytes)
	if err != nil {
		tracing.TraceErr(span, err)
		return itemOutcome{status: itemFailed, err: errors.Wrap(err, "parse failed")}
	}

	duplicate, err := s.repositories.ReportRepository.IsDuplicate(ctx, parsed.ReportID)
	if err != nil {
		tracing.TraceErr(span, err)
		return itemOutcome{status: itemFailed, err: errors.Wrap(err, "duplicate check failed")}
	}
	if duplicate {
		s.log.Infof("Report %s already ingested, skipping", parsed.ReportID)
		span.SetTag("duplicate", true)
		return itemOutcome{status: itemDuplicate}
	}

	s.archiveRawPayload(ctx, parsed.ReportID, attachment)

	report, records := s.buildModels(parsed)

	analysis, err := s.analysis.Analyze(ctx, report, records)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	if analysis == nil {
		report.Status = enum.ReportStatusError
		report.ErrorMessage = "AI analysis failed"
	} else {
		report.Status = enum.ReportStatusProcessed
		report.ProcessedAt = utils.NowPtr()
		report.Analysis = analysisToMap(analysis)
	}

	unit := &interfaces.ReportUnit{
		Report:  report,
		Records: records,
	}

	// Alert evaluation needs an analysis; an errored report is committed
	// as-is and surfaced through the reports API instead.
	var deliver interfaces.AlertDeliveryFunc
	if analysis != nil {
		decision := s.alerts.Evaluate(ctx, report, records, analysis)
		if decision != nil {
			throttled, err := s.alerts.ShouldThrottle(ctx, decision.AlertType)
			if err != nil {
				tracing.TraceErr(span, err)
				return itemOutcome{status: itemFailed, err: errors.Wrap(err, "throttle check failed")}
			}
			if throttled {
				s.log.Infof("Suppressed %s alert for report %s", decision.AlertType, parsed.ReportID)
			} else {
				unit.Alert = s.alerts.BuildAlert(decision, report, analysis)
				deliver = func(ctx context.Context, alert *models.Alert) error {
					return s.sender.SendAlert(ctx, alert, decision, report, analysis)
				}
			}
		}
	}

	if err := s.repositories.ReportRepository.SaveUnit(ctx, unit, deliver); err != nil {
		tracing.TraceErr(span, err)
		return itemOutcome{status: itemFailed, err: errors.Wrap(err, "persistence failed")}
	}

	return itemOutcome{
		status:  itemProcessed,
		alerted: unit.Alert != nil,
	}
}

func (s *ProcessorService) buildModels(parsed *parser.ParsedReport) (*models.Report, []models.Record) {
	report := &models.Report{
		ReportID:     parsed.ReportID,
		OrgName:      parsed.OrgName,
		Email:        parsed.Email,
		Domain:       parsed.PolicyDomain,
		DateBegin:    parsed.DateBegin,
		DateEnd:      parsed.DateEnd,
		PolicyDomain: parsed.PolicyDomain,
		PolicyADKIM:  parsed.PolicyADKIM,
		PolicyASPF:   parsed.PolicyASPF,
		PolicyP:      parsed.PolicyP,
		PolicySP:     parsed.PolicySP,
		PolicyPct:    parsed.PolicyPct,
		ReceivedAt:   utils.Now(),
	}

	records := make([]models.Record, 0, len(parsed.Records))
	for _, r := range parsed.Records {
		records = append(records, models.Record{
			SourceIP:         r.SourceIP,
			Count:            r.Count,
			Disposition:      enum.Disposition(r.Disposition),
			DKIMResult:       r.DKIMResult,
			SPFResult:        r.SPFResult,
			DKIMDomain:       r.DKIMDomain,
			DKIMSelector:     r.DKIMSelector,
			DKIMResultDetail: r.DKIMResultDetail,
			SPFDomain:        r.SPFDomain,
			SPFScope:         r.SPFScope,
			SPFResultDetail:  r.SPFResultDetail,
			HeaderFrom:       r.HeaderFrom,
		})
	}

	return report, records
}

// archiveRawPayload keeps the original attachment bytes in object storage.
// Archiving is best effort and never blocks ingestion.
func (s *ProcessorService) archiveRawPayload(ctx context.Context, reportID string, attachment interfaces.Attachment) {
	if s.archive == nil {
		return
	}
	key := fmt.Sprintf("%s/%s", reportID, attachment.Filename)
	if err := s.archive.Upload(ctx, key, attachment.Content, "application/octet-stream"); err != nil {
		s.log.Warnf("Failed to archive raw payload %s: %v", key, err)
	}
}

func (s *ProcessorService) appendRunLog(ctx context.Context, trigger enum.JobTrigger, result *RunResult) {
	status := result.Status
	if status == enum.RunStatusSkipped {
		return
	}

	entry := &models.ProcessingLog{
		JobType:    jobTypeDmarcProcessing,
		Status:     status,
		Message:    result.Message,
		DurationMs: result.DurationMs,
		Details: models.JSONMap{
			"run_id":           result.RunID,
			"trigger":          trigger.String(),
			"emails_processed": result.EmailsProcessed,
			"reports_stored":   result.ReportsStored,
			"alerts_raised":    result.AlertsRaised,
			"duplicates":       result.Duplicates,
			"failures":         result.Failures,
		},
	}

	if err := s.repositories.ProcessingLogRepository.Append(ctx, entry); err != nil {
		s.log.Errorf("Failed to append processing log for run %s: %v", result.RunID, err)
	}
}

func analysisToMap(analysis *dto.AnalysisResult) models.JSONMap {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return models.JSONMap{"summary": analysis.Summary}
	}
	out := models.JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.JSONMap{"summary": analysis.Summary}
	}
	return out
}
