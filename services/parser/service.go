package parser

import (
	"encoding/xml"
	"strconv"

	"github.com/pkg/errors"

	dmarcwatch_errors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/logger"
)

// ParsedReport is the decoded form of one DMARC aggregate document.
type ParsedReport struct {
	ReportID  string
	OrgName   string
	Email     string
	DateBegin int64
	DateEnd   int64

	PolicyDomain string
	PolicyADKIM  string
	PolicyASPF   string
	PolicyP      string
	PolicySP     string
	PolicyPct    int

	Records []ParsedRecord
}

// ParsedRecord is one authentication-result row.
type ParsedRecord struct {
	SourceIP    string
	Count       int
	Disposition string
	DKIMResult  string
	SPFResult   string

	DKIMDomain       string
	DKIMSelector     string
	DKIMResultDetail string

	SPFDomain       string
	SPFScope        string
	SPFResultDetail string

	HeaderFrom string
}

// Numeric fields arrive as text; they keep their string form through decode
// so a bad value in one record fails only that record.
type xmlFeedback struct {
	XMLName         xml.Name            `xml:"feedback"`
	ReportMetadata  *xmlReportMetadata  `xml:"report_metadata"`
	PolicyPublished *xmlPolicyPublished `xml:"policy_published"`
	Records         []xmlRecord         `xml:"record"`
}

type xmlReportMetadata struct {
	OrgName   string        `xml:"org_name"`
	Email     string        `xml:"email"`
	ReportID  string        `xml:"report_id"`
	DateRange *xmlDateRange `xml:"date_range"`
}

type xmlDateRange struct {
	Begin string `xml:"begin"`
	End   string `xml:"end"`
}

type xmlPolicyPublished struct {
	Domain string `xml:"domain"`
	ADKIM  string `xml:"adkim"`
	ASPF   string `xml:"aspf"`
	P      string `xml:"p"`
	SP     string `xml:"sp"`
	Pct    string `xml:"pct"`
}

type xmlRecord struct {
	Row         *xmlRow         `xml:"row"`
	Identifiers *xmlIdentifiers `xml:"identifiers"`
	AuthResults *xmlAuthResults `xml:"auth_results"`
}

type xmlRow struct {
	SourceIP        string              `xml:"source_ip"`
	Count           string              `xml:"count"`
	PolicyEvaluated *xmlPolicyEvaluated `xml:"policy_evaluated"`
}

type xmlPolicyEvaluated struct {
	Disposition string `xml:"disposition"`
	DKIM        string `xml:"dkim"`
	SPF         string `xml:"spf"`
}

type xmlIdentifiers struct {
	HeaderFrom string `xml:"header_from"`
}

type xmlAuthResults struct {
	DKIM *xmlDKIMAuthResult `xml:"dkim"`
	SPF  *xmlSPFAuthResult  `xml:"spf"`
}

type xmlDKIMAuthResult struct {
	Domain   string `xml:"domain"`
	Selector string `xml:"selector"`
	Result   string `xml:"result"`
}

type xmlSPFAuthResult struct {
	Domain string `xml:"domain"`
	Scope  string `xml:"scope"`
	Result string `xml:"result"`
}

// DMARCParserService decodes DMARC aggregate XML. Parsing is deterministic
// and side-effect-free apart from warnings on skipped records.
type DMARCParserService struct {
	log logger.Logger
}

func NewDMARCParserService(log logger.Logger) *DMARCParserService {
	return &DMARCParserService{
		log: log,
	}
}

// Parse decodes a report. A report_metadata element and at least one record
// are required; a missing policy_published only empties the policy fields.
// A malformed record is skipped with a warning, never aborting the report.
func (s *DMARCParserService) Parse(xmlBytes []byte) (*ParsedReport, error) {
	var feedback xmlFeedback
	if err := xml.Unmarshal(xmlBytes, &feedback); err != nil {
		return nil, errors.Wrap(err, "xml parsing error")
	}

	if feedback.ReportMetadata == nil {
		return nil, dmarcwatch_errors.ErrMissingMetadata
	}
	if len(feedback.Records) == 0 {
		return nil, dmarcwatch_errors.ErrNoRecords
	}

	report := &ParsedReport{
		ReportID:  feedback.ReportMetadata.ReportID,
		OrgName:   feedback.ReportMetadata.OrgName,
		Email:     feedback.ReportMetadata.Email,
		PolicyPct: 100,
	}

	if dateRange := feedback.ReportMetadata.DateRange; dateRange != nil {
		begin, err := parseInt64Default(dateRange.Begin, 0)
		if err != nil {
			return nil, errors.Wrap(err, "invalid date_range begin")
		}
		end, err := parseInt64Default(dateRange.End, 0)
		if err != nil {
			return nil, errors.Wrap(err, "invalid date_range end")
		}
		report.DateBegin = begin
		report.DateEnd = end
	}

	if policy := feedback.PolicyPublished; policy != nil {
		report.PolicyDomain = policy.Domain
		report.PolicyADKIM = policy.ADKIM
		report.PolicyASPF = policy.ASPF
		report.PolicyP = policy.P
		report.PolicySP = policy.SP

		pct, err := parseIntDefault(policy.Pct, 100)
		if err != nil {
			return nil, errors.Wrap(err, "invalid policy pct")
		}
		report.PolicyPct = pct
	} else {
		s.log.Warn("Missing policy_published section")
	}

	report.Records = s.parseRecords(feedback.Records)

	s.log.Infof("Parsed DMARC report %s with %d record(s)", report.ReportID, len(report.Records))
	return report, nil
}

func (s *DMARCParserService) parseRecords(records []xmlRecord) []ParsedRecord {
	parsed := make([]ParsedRecord, 0, len(records))

	for _, record := range records {
		if record.Row == nil {
			continue
		}

		count, err := parseIntDefault(record.Row.Count, 0)
		if err != nil {
			s.log.Warnf("Failed to parse record: invalid count %q", record.Row.Count)
			continue
		}

		out := ParsedRecord{
			SourceIP: record.Row.SourceIP,
			Count:    count,
		}

		if eval := record.Row.PolicyEvaluated; eval != nil {
			out.Disposition = eval.Disposition
			out.DKIMResult = eval.DKIM
			out.SPFResult = eval.SPF
		}

		if record.Identifiers != nil {
			out.HeaderFrom = record.Identifiers.HeaderFrom
		}

		if auth := record.AuthResults; auth != nil {
			if auth.DKIM != nil {
				out.DKIMDomain = auth.DKIM.Domain
				out.DKIMSelector = auth.DKIM.Selector
				out.DKIMResultDetail = auth.DKIM.Result
			}
			if auth.SPF != nil {
				out.SPFDomain = auth.SPF.Domain
				out.SPFScope = auth.SPF.Scope
				out.SPFResultDetail = auth.SPF.Result
			}
		}

		parsed = append(parsed, out)
	}

	return parsed
}

// Validate checks structural validity: report_metadata, policy_published and
// at least one record must all be present.
func (s *DMARCParserService) Validate(xmlBytes []byte) bool {
	var feedback xmlFeedback
	if err := xml.Unmarshal(xmlBytes, &feedback); err != nil {
		return false
	}
	if feedback.ReportMetadata == nil {
		return false
	}
	if feedback.PolicyPublished == nil {
		return false
	}
	return len(feedback.Records) > 0
}

func parseIntDefault(text string, def int) (int, error) {
	if text == "" {
		return def, nil
	}
	return strconv.Atoi(text)
}

func parseInt64Default(text string, def int64) (int64, error) {
	if text == "" {
		return def, nil
	}
	return strconv.ParseInt(text, 10, 64)
}
