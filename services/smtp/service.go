package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

var severityColors = map[enum.Severity]string{
	enum.SeverityLow:      "#28a745",
	enum.SeverityMedium:   "#ffc107",
	enum.SeverityHigh:     "#fd7e14",
	enum.SeverityCritical: "#dc3545",
}

type SMTPClient struct {
	cfg *config.SMTPConfig
	log logger.Logger
}

func NewSMTPClient(cfg *config.SMTPConfig, log logger.Logger) interfaces.MailSender {
	return &SMTPClient{
		cfg: cfg,
		log: log,
	}
}

// SendAlert delivers the alert as a multipart message with a plain-text and
// an HTML part. The subject carries the severity in brackets.
func (s *SMTPClient) SendAlert(ctx context.Context, alert *models.Alert, decision *interfaces.AlertDecision, report *models.Report, analysis *dto.AnalysisResult) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPClient.SendAlert")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("alertType", alert.AlertType.String())
	span.SetTag("severity", alert.Severity.String())

	if err := s.validateAlert(alert); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Severity.String()), alert.Title)
	bodyText := s.buildTextBody(alert, report, analysis)
	bodyHTML := s.buildHTMLBody(alert, report, analysis)

	buffer, err := s.prepareMessage(subject, alert.EmailRecipient, bodyText, bodyHTML)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.sendToServer(ctx, alert.EmailRecipient, buffer); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	s.log.Infof("Sent %s alert to %s", alert.AlertType, alert.EmailRecipient)
	return nil
}

func (s *SMTPClient) validateAlert(alert *models.Alert) error {
	if alert == nil {
		return errors.New("alert cannot be nil")
	}
	if alert.EmailRecipient == "" {
		return errors.New("alert recipient is required")
	}
	validation := mailvalidate.ValidateEmailSyntax(alert.EmailRecipient)
	if !validation.IsValid {
		return errors.Errorf("alert recipient %s is not a valid address", alert.EmailRecipient)
	}
	if s.cfg.From == "" {
		return errors.New("from address is required")
	}
	return nil
}

func (s *SMTPClient) buildTextBody(alert *models.Alert, report *models.Report, analysis *dto.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DMARC Alert: %s\n", alert.Title)
	fmt.Fprintf(&sb, "Severity: %s\n", alert.Severity)
	fmt.Fprintf(&sb, "Domain: %s\n", report.Domain)
	fmt.Fprintf(&sb, "Reporting org: %s\n", report.OrgName)
	fmt.Fprintf(&sb, "Report ID: %s\n\n", report.ReportID)

	sb.WriteString("Findings:\n")
	for _, line := range strings.Split(alert.Message, "\n") {
		fmt.Fprintf(&sb, "  - %s\n", line)
	}

	if analysis != nil && analysis.Summary != "" {
		fmt.Fprintf(&sb, "\nAnalysis summary:\n%s\n", analysis.Summary)
	}
	if analysis != nil && len(analysis.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, rec := range analysis.Recommendations {
			fmt.Fprintf(&sb, "  - %s\n", rec)
		}
	}

	return sb.String()
}

func (s *SMTPClient) buildHTMLBody(alert *models.Alert, report *models.Report, analysis *dto.AnalysisResult) string {
	color, ok := severityColors[alert.Severity]
	if !ok {
		color = severityColors[enum.SeverityMedium]
	}

	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	fmt.Fprintf(&sb, "<h2 style=\"color: %s;\">%s</h2>", color, html.EscapeString(alert.Title))
	fmt.Fprintf(&sb, "<p><strong>Severity:</strong> <span style=\"color: %s;\">%s</span></p>", color, strings.ToUpper(alert.Severity.String()))
	fmt.Fprintf(&sb, "<p><strong>Domain:</strong> %s<br/>", html.EscapeString(report.Domain))
	fmt.Fprintf(&sb, "<strong>Reporting org:</strong> %s<br/>", html.EscapeString(report.OrgName))
	fmt.Fprintf(&sb, "<strong>Report ID:</strong> %s</p>", html.EscapeString(report.ReportID))

	sb.WriteString("<h3>Findings</h3><ul>")
	for _, line := range strings.Split(alert.Message, "\n") {
		fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(line))
	}
	sb.WriteString("</ul>")

	if analysis != nil && analysis.Summary != "" {
		fmt.Fprintf(&sb, "<h3>Analysis</h3><p>%s</p>", html.EscapeString(analysis.Summary))
	}
	if analysis != nil && len(analysis.Recommendations) > 0 {
		sb.WriteString("<h3>Recommendations</h3><ul>")
		for _, rec := range analysis.Recommendations {
			fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(rec))
		}
		sb.WriteString("</ul>")
	}

	sb.WriteString("</body></html>")
	return sb.String()
}

// prepareMessage builds the message in multipart/alternative MIME format
func (s *SMTPClient) prepareMessage(subject, recipient, bodyText, bodyHTML string) (*bytes.Buffer, error) {
	buffer := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(buffer)

	headers := map[string]string{
		"From":         s.cfg.From,
		"To":           recipient,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "multipart/alternative; boundary=" + writer.Boundary(),
	}

	headerBuffer := bytes.NewBuffer(nil)
	writeHeaders(headers, headerBuffer)

	if err := addPart(writer, "text/plain; charset=UTF-8", bodyText); err != nil {
		return nil, err
	}
	if err := addPart(writer, "text/html; charset=UTF-8", bodyHTML); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize message")
	}

	headerBuffer.Write(buffer.Bytes())
	return headerBuffer, nil
}

func writeHeaders(headers map[string]string, buffer *bytes.Buffer) {
	for _, key := range []string{"From", "To", "Subject", "MIME-Version", "Content-Type"} {
		buffer.WriteString(fmt.Sprintf("%s: %s\r\n", key, headers[key]))
	}
	buffer.WriteString("\r\n")
}

func addPart(writer *multipart.Writer, contentType, content string) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create %s part", contentType)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		return errors.Wrapf(err, "failed to write %s content", contentType)
	}
	return nil
}

// sendToServer delivers over STARTTLS, the common arrangement on port 587.
func (s *SMTPClient) sendToServer(ctx context.Context, recipient string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPClient.sendToServer")
	defer span.Finish()
	span.LogKV("smtp_server", s.cfg.Host)
	span.LogKV("smtp_port", s.cfg.Port)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		err = errors.Wrap(err, "failed to connect to SMTP server")
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		err = errors.Wrap(err, "failed to create SMTP client")
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		err = errors.Wrap(err, "failed to start TLS")
		tracing.TraceErr(span, err)
		return err
	}

	if err = client.Auth(auth); err != nil {
		err = errors.Wrap(err, "SMTP authentication failed")
		tracing.TraceErr(span, err)
		return err
	}

	if err = client.Mail(s.cfg.From); err != nil {
		err = errors.Wrap(err, "SMTP MAIL command failed")
		tracing.TraceErr(span, err)
		return err
	}
	if err = client.Rcpt(recipient); err != nil {
		err = errors.Wrapf(err, "SMTP RCPT command failed for %s", recipient)
		tracing.TraceErr(span, err)
		return err
	}

	dataWriter, err := client.Data()
	if err != nil {
		err = errors.Wrap(err, "SMTP DATA command failed")
		tracing.TraceErr(span, err)
		return err
	}
	if _, err = dataWriter.Write(buffer.Bytes()); err != nil {
		err = errors.Wrap(err, "failed to write email data")
		tracing.TraceErr(span, err)
		return err
	}
	if err = dataWriter.Close(); err != nil {
		err = errors.Wrap(err, "failed to close data writer")
		tracing.TraceErr(span, err)
		return err
	}

	return client.Quit()
}
