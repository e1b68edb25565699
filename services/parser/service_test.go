package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmarcwatch_errors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/logger"
)

const googleReportXML = `<?xml version="1.0" encoding="UTF-8"?>
<feedback>
  <report_metadata>
    <org_name>google.com</org_name>
    <email>noreply-dmarc-support@google.com</email>
    <report_id>12345678901234567890</report_id>
    <date_range>
      <begin>1706140800</begin>
      <end>1706227199</end>
    </date_range>
  </report_metadata>
  <policy_published>
    <domain>example.com</domain>
    <adkim>r</adkim>
    <aspf>r</aspf>
    <p>quarantine</p>
    <sp>none</sp>
    <pct>100</pct>
  </policy_published>
  <record>
    <row>
      <source_ip>209.85.220.41</source_ip>
      <count>2</count>
      <policy_evaluated>
        <disposition>none</disposition>
        <dkim>pass</dkim>
        <spf>pass</spf>
      </policy_evaluated>
    </row>
    <identifiers>
      <header_from>example.com</header_from>
    </identifiers>
    <auth_results>
      <dkim>
        <domain>example.com</domain>
        <selector>google</selector>
        <result>pass</result>
      </dkim>
      <spf>
        <domain>example.com</domain>
        <scope>mfrom</scope>
        <result>pass</result>
      </spf>
    </auth_results>
  </record>
</feedback>`

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestParse_GoogleReport(t *testing.T) {
	// Arrange
	svc := NewDMARCParserService(getLogger())

	// Act
	report, err := svc.Parse([]byte(googleReportXML))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", report.ReportID)
	assert.Equal(t, "google.com", report.OrgName)
	assert.Equal(t, "noreply-dmarc-support@google.com", report.Email)
	assert.Equal(t, int64(1706140800), report.DateBegin)
	assert.Equal(t, int64(1706227199), report.DateEnd)
	assert.Equal(t, "example.com", report.PolicyDomain)
	assert.Equal(t, "r", report.PolicyADKIM)
	assert.Equal(t, "r", report.PolicyASPF)
	assert.Equal(t, "quarantine", report.PolicyP)
	assert.Equal(t, "none", report.PolicySP)
	assert.Equal(t, 100, report.PolicyPct)

	require.Len(t, report.Records, 1)
	record := report.Records[0]
	assert.Equal(t, "209.85.220.41", record.SourceIP)
	assert.Equal(t, 2, record.Count)
	assert.Equal(t, "none", record.Disposition)
	assert.Equal(t, "pass", record.DKIMResult)
	assert.Equal(t, "pass", record.SPFResult)
	assert.Equal(t, "example.com", record.DKIMDomain)
	assert.Equal(t, "google", record.DKIMSelector)
	assert.Equal(t, "pass", record.DKIMResultDetail)
	assert.Equal(t, "example.com", record.SPFDomain)
	assert.Equal(t, "mfrom", record.SPFScope)
	assert.Equal(t, "pass", record.SPFResultDetail)
	assert.Equal(t, "example.com", record.HeaderFrom)
}

func TestParse_Deterministic(t *testing.T) {
	svc := NewDMARCParserService(getLogger())

	first, err := svc.Parse([]byte(googleReportXML))
	require.NoError(t, err)
	second, err := svc.Parse([]byte(googleReportXML))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParse_MissingPolicyPublished(t *testing.T) {
	xml := `<feedback>
  <report_metadata>
    <org_name>reporter.example</org_name>
    <report_id>abc-123</report_id>
  </report_metadata>
  <record>
    <row>
      <source_ip>10.0.0.1</source_ip>
      <count>1</count>
    </row>
  </record>
</feedback>`
	svc := NewDMARCParserService(getLogger())

	report, err := svc.Parse([]byte(xml))

	require.NoError(t, err)
	assert.Empty(t, report.PolicyDomain)
	assert.Empty(t, report.PolicyP)
	assert.Equal(t, 100, report.PolicyPct)
	assert.Equal(t, int64(0), report.DateBegin)
	assert.Equal(t, int64(0), report.DateEnd)
}

func TestParse_MissingMetadata(t *testing.T) {
	xml := `<feedback>
  <record>
    <row>
      <source_ip>10.0.0.1</source_ip>
      <count>1</count>
    </row>
  </record>
</feedback>`
	svc := NewDMARCParserService(getLogger())

	report, err := svc.Parse([]byte(xml))

	assert.Nil(t, report)
	assert.ErrorIs(t, err, dmarcwatch_errors.ErrMissingMetadata)
}

func TestParse_NoRecords(t *testing.T) {
	xml := `<feedback>
  <report_metadata>
    <org_name>reporter.example</org_name>
    <report_id>abc-123</report_id>
  </report_metadata>
</feedback>`
	svc := NewDMARCParserService(getLogger())

	report, err := svc.Parse([]byte(xml))

	assert.Nil(t, report)
	assert.ErrorIs(t, err, dmarcwatch_errors.ErrNoRecords)
}

func TestParse_MalformedRecordSkipped(t *testing.T) {
	xml := `<feedback>
  <report_metadata>
    <org_name>reporter.example</org_name>
    <report_id>abc-456</report_id>
  </report_metadata>
  <record>
    <row>
      <source_ip>10.0.0.1</source_ip>
      <count>not-a-number</count>
    </row>
  </record>
  <record>
    <row>
      <source_ip>10.0.0.2</source_ip>
      <count>7</count>
    </row>
  </record>
</feedback>`
	svc := NewDMARCParserService(getLogger())

	report, err := svc.Parse([]byte(xml))

	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Equal(t, "10.0.0.2", report.Records[0].SourceIP)
	assert.Equal(t, 7, report.Records[0].Count)
}

func TestParse_InvalidXML(t *testing.T) {
	svc := NewDMARCParserService(getLogger())

	report, err := svc.Parse([]byte("this is not xml"))

	assert.Nil(t, report)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	svc := NewDMARCParserService(getLogger())

	assert.True(t, svc.Validate([]byte(googleReportXML)))
	assert.False(t, svc.Validate([]byte("not xml")))

	// structurally valid but missing policy_published
	noPolicy := `<feedback>
  <report_metadata>
    <report_id>x</report_id>
  </report_metadata>
  <record>
    <row>
      <source_ip>10.0.0.1</source_ip>
      <count>1</count>
    </row>
  </record>
</feedback>`
	assert.False(t, svc.Validate([]byte(noPolicy)))
}
