package enum

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (t Severity) String() string {
	return string(t)
}

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordering weight of the severity, low < medium < high < critical.
// Unknown values rank below low so they never win an aggregation.
func (t Severity) Rank() int {
	if rank, ok := severityRank[t]; ok {
		return rank
	}
	return -1
}

// SeverityOrDefault maps free-form severity text to a known severity,
// falling back to medium for anything unrecognized.
func SeverityOrDefault(s string) Severity {
	severity := Severity(s)
	if _, ok := severityRank[severity]; ok {
		return severity
	}
	return SeverityMedium
}

type AlertType string

const (
	AlertTypeDmarcFailure       AlertType = "dmarc_failure"
	AlertTypeSpfFailure         AlertType = "spf_failure"
	AlertTypeDkimFailure        AlertType = "dkim_failure"
	AlertTypeUnauthorizedSender AlertType = "unauthorized_sender"
	AlertTypeSuspiciousPattern  AlertType = "suspicious_pattern"
)

func (t AlertType) String() string {
	return string(t)
}
