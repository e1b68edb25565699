package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

const (
	anthropicVersion = "2023-06-01"
	maxPromptRecords = 10
)

type anthropicService struct {
	cfg        *config.AIConfig
	log        logger.Logger
	httpClient *http.Client
}

func NewAnthropicService(cfg *config.AIConfig, log logger.Logger) interfaces.AnalysisService {
	return &anthropicService{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Analyze asks the model for a structured assessment of the report. Rate
// limiting backs off exponentially, server errors retry after a fixed second,
// other failures give up immediately. Exhausted retries return (nil, nil) so
// the report still persists without an analysis.
func (s *anthropicService) Analyze(ctx context.Context, report *models.Report, records []models.Record) (*dto.AnalysisResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnthropicService.Analyze")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("reportID", report.ReportID)

	prompt := s.buildPrompt(report, records)

	rateLimitBackoff := &backoff.Backoff{
		Min:    1 * time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: false,
	}

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		result, retryable, err := s.requestAnalysis(ctx, prompt)
		if err == nil {
			return result, nil
		}

		tracing.TraceErr(span, err)
		if !retryable {
			s.log.Errorf("AI analysis failed: %v", err)
			return nil, nil
		}

		var wait time.Duration
		if errors.Is(err, errRateLimited) {
			wait = rateLimitBackoff.Duration()
			s.log.Warnf("Rate limited by AI API, retrying in %s (attempt %d/%d)", wait, attempt+1, s.cfg.MaxRetries)
		} else {
			wait = 1 * time.Second
			s.log.Warnf("AI API error, retrying in %s (attempt %d/%d): %v", wait, attempt+1, s.cfg.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			tracing.TraceErr(span, ctx.Err())
			return nil, nil
		case <-time.After(wait):
		}
	}

	s.log.Errorf("AI analysis exhausted %d attempt(s) for report %s", s.cfg.MaxRetries, report.ReportID)
	return nil, nil
}

var errRateLimited = errors.New("rate limited")

func (s *anthropicService) requestAnalysis(ctx context.Context, prompt string) (*dto.AnalysisResult, bool, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, true, errors.Wrap(err, "AI API request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, errors.Wrap(err, "failed to read AI API response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, errRateLimited
	case resp.StatusCode >= 500:
		return nil, true, errors.Errorf("AI API returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, errors.Errorf("AI API returned status %d: %s", resp.StatusCode, string(body))
	}

	var messages messagesResponse
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, false, errors.Wrap(err, "failed to decode AI API response")
	}
	if len(messages.Content) == 0 {
		return nil, false, errors.New("AI API response contains no content")
	}

	return s.parseAnalysis(messages.Content[0].Text), false, nil
}

// parseAnalysis extracts the structured result, tolerating markdown code
// fences around the JSON. Anything that is not valid JSON is preserved as a
// free-text result rather than discarded.
func (s *anthropicService) parseAnalysis(raw string) *dto.AnalysisResult {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var result dto.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		s.log.Warnf("AI response is not valid JSON, keeping raw analysis")
		return dto.FreeTextAnalysis(raw)
	}
	if result.Severity == "" {
		result.Severity = "medium"
	}
	return &result
}

func (s *anthropicService) buildPrompt(report *models.Report, records []models.Record) string {
	var totalMessages, dkimFailures, spfFailures, bothFailed, quarantined, rejected int
	sources := make(map[string]struct{})

	for _, record := range records {
		totalMessages += record.Count
		sources[record.SourceIP] = struct{}{}
		dkimFail := record.DKIMResult == "fail"
		spfFail := record.SPFResult == "fail"
		if dkimFail {
			dkimFailures += record.Count
		}
		if spfFail {
			spfFailures += record.Count
		}
		if dkimFail && spfFail {
			bothFailed += record.Count
		}
		switch record.Disposition {
		case enum.DispositionQuarantine:
			quarantined += record.Count
		case enum.DispositionReject:
			rejected += record.Count
		}
	}

	var sb strings.Builder
	sb.WriteString("Analyze this DMARC aggregate report and respond with a JSON object containing: ")
	sb.WriteString("summary, severity (low/medium/high/critical), failures, unauthorized_sources, anomalies, ")
	sb.WriteString("recommendations, action_items, positive_findings, next_steps.\n\n")

	fmt.Fprintf(&sb, "Report %s from %s for domain %s\n", report.ReportID, report.OrgName, report.Domain)
	fmt.Fprintf(&sb, "Policy: p=%s sp=%s adkim=%s aspf=%s pct=%d\n\n", report.PolicyP, report.PolicySP, report.PolicyADKIM, report.PolicyASPF, report.PolicyPct)

	fmt.Fprintf(&sb, "Total messages: %d\n", totalMessages)
	fmt.Fprintf(&sb, "Unique sources: %d\n", len(sources))
	fmt.Fprintf(&sb, "DKIM failures: %d\n", dkimFailures)
	fmt.Fprintf(&sb, "SPF failures: %d\n", spfFailures)
	fmt.Fprintf(&sb, "Both failed: %d\n", bothFailed)
	fmt.Fprintf(&sb, "Quarantined: %d\n", quarantined)
	fmt.Fprintf(&sb, "Rejected: %d\n\n", rejected)

	sb.WriteString("Records:\n")
	limit := len(records)
	if limit > maxPromptRecords {
		limit = maxPromptRecords
	}
	for _, record := range records[:limit] {
		fmt.Fprintf(&sb, "- source_ip=%s count=%d disposition=%s dkim=%s spf=%s header_from=%s\n",
			record.SourceIP, record.Count, record.Disposition, record.DKIMResult, record.SPFResult, record.HeaderFrom)
	}
	if len(records) > maxPromptRecords {
		fmt.Fprintf(&sb, "... and %d more records\n", len(records)-maxPromptRecords)
	}

	return sb.String()
}
