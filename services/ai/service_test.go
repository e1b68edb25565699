package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcwatch/config"
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

func getService(url string, maxRetries int) *anthropicService {
	return NewAnthropicService(&config.AIConfig{
		APIKey:     "test-key",
		URL:        url,
		Model:      "test-model",
		MaxTokens:  2000,
		MaxRetries: maxRetries,
	}, getLogger()).(*anthropicService)
}

func messagesBody(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"content": []map[string]string{
			{"type": "text", "text": text},
		},
	})
	return string(body)
}

func testReport() *models.Report {
	return &models.Report{
		ReportID: "rep-1",
		OrgName:  "google.com",
		Domain:   "example.com",
		PolicyP:  "quarantine",
	}
}

func TestAnalyze_StructuredResponse(t *testing.T) {
	payload := `{"summary":"all good","severity":"low","failures":[],"unauthorized_sources":[],"anomalies":[]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(messagesBody(payload)))
	}))
	defer server.Close()

	svc := getService(server.URL, 3)
	result, err := svc.Analyze(context.Background(), testReport(), nil)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "all good", result.Summary)
	assert.Equal(t, "low", result.Severity)
	assert.False(t, result.FreeText)
}

func TestAnalyze_FencedJSONEqualsUnwrapped(t *testing.T) {
	payload := `{"summary":"spoofing detected","severity":"high","anomalies":["new sender"]}`
	fenced := "```json\n" + payload + "\n```"

	responses := []string{payload, fenced}
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := atomic.AddInt32(&requestCount, 1) - 1
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(messagesBody(responses[idx])))
	}))
	defer server.Close()

	svc := getService(server.URL, 3)

	unwrapped, err := svc.Analyze(context.Background(), testReport(), nil)
	require.NoError(t, err)
	wrapped, err := svc.Analyze(context.Background(), testReport(), nil)
	require.NoError(t, err)

	assert.Equal(t, unwrapped, wrapped)
	assert.Equal(t, "spoofing detected", wrapped.Summary)
	assert.Equal(t, []string{"new sender"}, wrapped.Anomalies)
}

func TestAnalyze_FreeTextFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(messagesBody("The report looks mostly clean, nothing alarming.")))
	}))
	defer server.Close()

	svc := getService(server.URL, 3)
	result, err := svc.Analyze(context.Background(), testReport(), nil)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.FreeText)
	assert.Equal(t, "medium", result.Severity)
	assert.Contains(t, result.Summary, "mostly clean")
	assert.Empty(t, result.Anomalies)
}

func TestAnalyze_RateLimitExhaustionReturnsNil(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := getService(server.URL, 3)
	result, err := svc.Analyze(context.Background(), testReport(), nil)

	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
}

func TestAnalyze_BadRequestGivesUpImmediately(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid request"}`))
	}))
	defer server.Close()

	svc := getService(server.URL, 3)
	result, err := svc.Analyze(context.Background(), testReport(), nil)

	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
}

func TestBuildPrompt_TruncatesRecords(t *testing.T) {
	svc := getService("http://unused", 1)

	records := make([]models.Record, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, models.Record{
			SourceIP:   "10.0.0.1",
			Count:      1,
			DKIMResult: "fail",
			SPFResult:  "fail",
		})
	}

	prompt := svc.buildPrompt(testReport(), records)

	assert.Contains(t, prompt, "Total messages: 12")
	assert.Contains(t, prompt, "DKIM failures: 12")
	assert.Contains(t, prompt, "... and 2 more records")
}

func TestBuildPrompt_DispositionCounters(t *testing.T) {
	svc := getService("http://unused", 1)

	records := []models.Record{
		{SourceIP: "10.0.0.1", Count: 7, Disposition: enum.DispositionQuarantine, DKIMResult: "fail", SPFResult: "pass"},
		{SourceIP: "10.0.0.2", Count: 3, Disposition: enum.DispositionReject, DKIMResult: "fail", SPFResult: "fail"},
		{SourceIP: "10.0.0.3", Count: 5, Disposition: enum.DispositionNone, DKIMResult: "pass", SPFResult: "pass"},
	}

	prompt := svc.buildPrompt(testReport(), records)

	assert.Contains(t, prompt, "Total messages: 15")
	assert.Contains(t, prompt, "Quarantined: 7")
	assert.Contains(t, prompt, "Rejected: 3")
	assert.Contains(t, prompt, "Both failed: 3")
}
