package imap

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmarcwatch_errors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/logger"
)

const sampleXML = `<?xml version="1.0"?><feedback><report_metadata><report_id>test</report_id></report_metadata></feedback>`

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func getService() *IMAPService {
	return &IMAPService{log: getLogger()}
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	_, err := writer.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, data := range entries {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestDecompress_Gzip(t *testing.T) {
	svc := getService()

	out, err := svc.Decompress(gzipBytes(t, []byte(sampleXML)), "report.xml.gz")

	require.NoError(t, err)
	assert.Equal(t, []byte(sampleXML), out)
}

func TestDecompress_Zip(t *testing.T) {
	svc := getService()
	archive := zipBytes(t, map[string][]byte{"report.xml": []byte(sampleXML)})

	out, err := svc.Decompress(archive, "report.zip")

	require.NoError(t, err)
	assert.Equal(t, []byte(sampleXML), out)
}

func TestDecompress_PlainXMLPassthrough(t *testing.T) {
	svc := getService()

	out, err := svc.Decompress([]byte(sampleXML), "report.xml")

	require.NoError(t, err)
	assert.Equal(t, []byte(sampleXML), out)
}

func TestDecompress_CorruptedGzip(t *testing.T) {
	svc := getService()

	out, err := svc.Decompress([]byte("definitely not gzip"), "report.xml.gz")

	assert.Nil(t, out)
	assert.Error(t, err)
}

func TestDecompress_CorruptedZip(t *testing.T) {
	svc := getService()

	out, err := svc.Decompress([]byte("definitely not a zip"), "report.zip")

	assert.Nil(t, out)
	assert.Error(t, err)
}

func TestDecompress_EmptyZip(t *testing.T) {
	svc := getService()
	archive := zipBytes(t, map[string][]byte{})

	out, err := svc.Decompress(archive, "report.zip")

	assert.Nil(t, out)
	assert.ErrorIs(t, err, dmarcwatch_errors.ErrEmptyArchive)
}

func TestExtractAttachments(t *testing.T) {
	svc := getService()

	raw := strings.Join([]string{
		"From: reporter@google.com",
		"To: dmarc-reports@example.com",
		"Subject: Report Domain: example.com",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain",
		"",
		"DMARC aggregate report attached.",
		"--BOUNDARY",
		"Content-Type: application/xml",
		`Content-Disposition: attachment; filename="report.xml"`,
		"",
		sampleXML,
		"--BOUNDARY--",
		"",
	}, "\r\n")

	attachments, err := svc.ExtractAttachments([]byte(raw))

	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, "report.xml", attachments[0].Filename)
	assert.Equal(t, sampleXML, string(bytes.TrimSpace(attachments[0].Content)))
}

func TestExtractAttachments_NoAttachments(t *testing.T) {
	svc := getService()

	raw := strings.Join([]string{
		"From: someone@example.com",
		"To: dmarc-reports@example.com",
		"Subject: hello",
		"Content-Type: text/plain",
		"",
		"no reports here",
		"",
	}, "\r\n")

	attachments, err := svc.ExtractAttachments([]byte(raw))

	require.NoError(t, err)
	assert.Empty(t, attachments)
}
