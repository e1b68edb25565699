package smtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func getClient() *SMTPClient {
	return &SMTPClient{
		cfg: &config.SMTPConfig{
			Host:     "smtp.example.com",
			Port:     587,
			Username: "alerts@example.com",
			Password: "secret",
			From:     "alerts@example.com",
		},
		log: getLogger(),
	}
}

func testAlert() *models.Alert {
	return &models.Alert{
		AlertType:      enum.AlertTypeDmarcFailure,
		Severity:       enum.SeverityHigh,
		Title:          "DMARC alert for example.com: dmarc_failure",
		Message:        "3 message(s) from 203.0.113.9 rejected by DMARC policy",
		EmailRecipient: "security@example.com",
	}
}

func testReport() *models.Report {
	return &models.Report{
		ReportID: "rep-1",
		OrgName:  "google.com",
		Domain:   "example.com",
	}
}

func TestValidateAlert(t *testing.T) {
	client := getClient()

	assert.NoError(t, client.validateAlert(testAlert()))
	assert.Error(t, client.validateAlert(nil))

	missingRecipient := testAlert()
	missingRecipient.EmailRecipient = ""
	assert.Error(t, client.validateAlert(missingRecipient))

	badRecipient := testAlert()
	badRecipient.EmailRecipient = "not-an-address"
	assert.Error(t, client.validateAlert(badRecipient))
}

func TestBuildTextBody(t *testing.T) {
	client := getClient()
	analysis := &dto.AnalysisResult{
		Summary:         "rejections from an unknown host",
		Recommendations: []string{"add the host to SPF or block it"},
	}

	body := client.buildTextBody(testAlert(), testReport(), analysis)

	assert.Contains(t, body, "Severity: high")
	assert.Contains(t, body, "Domain: example.com")
	assert.Contains(t, body, "203.0.113.9")
	assert.Contains(t, body, "rejections from an unknown host")
	assert.Contains(t, body, "add the host to SPF or block it")
}

func TestBuildHTMLBody_SeverityColor(t *testing.T) {
	client := getClient()

	body := client.buildHTMLBody(testAlert(), testReport(), nil)

	// high severity renders orange
	assert.Contains(t, body, "#fd7e14")
	assert.Contains(t, body, "HIGH")
	assert.Contains(t, body, "example.com")

	critical := testAlert()
	critical.Severity = enum.SeverityCritical
	assert.Contains(t, client.buildHTMLBody(critical, testReport(), nil), "#dc3545")

	low := testAlert()
	low.Severity = enum.SeverityLow
	assert.Contains(t, client.buildHTMLBody(low, testReport(), nil), "#28a745")
}

func TestPrepareMessage(t *testing.T) {
	client := getClient()

	buffer, err := client.prepareMessage("[HIGH] DMARC alert", "security@example.com", "plain body", "<html>html body</html>")

	require.NoError(t, err)
	message := buffer.String()
	assert.Contains(t, message, "Subject: [HIGH] DMARC alert")
	assert.Contains(t, message, "To: security@example.com")
	assert.Contains(t, message, "From: alerts@example.com")
	assert.Contains(t, message, "multipart/alternative")
	assert.Contains(t, message, "plain body")
	assert.Contains(t, message, "html body")
}
