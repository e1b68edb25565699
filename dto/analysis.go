package dto

// AnalysisResult is the structured payload expected back from the AI
// analysis endpoint. When the model answers with free text instead of JSON
// the text is preserved in Summary and FreeText is set, so consumers never
// have to branch on "analysis was free text".
type AnalysisResult struct {
	Summary             string   `json:"summary"`
	Severity            string   `json:"severity"`
	Failures            []string `json:"failures"`
	UnauthorizedSources []string `json:"unauthorized_sources"`
	Anomalies           []string `json:"anomalies"`
	Recommendations     []string `json:"recommendations"`
	ActionItems         []string `json:"action_items"`
	PositiveFindings    []string `json:"positive_findings"`
	NextSteps           []string `json:"next_steps"`
	FreeText            bool     `json:"free_text,omitempty"`
}

// FreeTextAnalysis wraps a non-JSON model response into the default shape.
func FreeTextAnalysis(raw string) *AnalysisResult {
	return &AnalysisResult{
		Summary:             raw,
		Severity:            "medium",
		Failures:            []string{},
		UnauthorizedSources: []string{},
		Anomalies:           []string{},
		Recommendations:     []string{},
		ActionItems:         []string{},
		PositiveFindings:    []string{},
		NextSteps:           []string{},
		FreeText:            true,
	}
}
