package interfaces

import (
	"golang.org/x/net/context"

	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/internal/models"
)

// AnalysisService enriches a parsed report with AI findings. Analyze returns
// (nil, nil) when retries are exhausted or the endpoint misbehaves; the caller
// marks the report errored instead of failing the batch.
type AnalysisService interface {
	Analyze(ctx context.Context, report *models.Report, records []models.Record) (*dto.AnalysisResult, error)
}
