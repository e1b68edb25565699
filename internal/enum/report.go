package enum

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusProcessed ReportStatus = "processed"
	ReportStatusError     ReportStatus = "error"
)

func (t ReportStatus) String() string {
	return string(t)
}

type Disposition string

const (
	DispositionNone       Disposition = "none"
	DispositionQuarantine Disposition = "quarantine"
	DispositionReject     Disposition = "reject"
)

func (t Disposition) String() string {
	return string(t)
}

type AuthResult string

const (
	AuthResultPass AuthResult = "pass"
	AuthResultFail AuthResult = "fail"
)

func (t AuthResult) String() string {
	return string(t)
}
