package imap

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/interfaces"
	dmarcwatch_errors "github.com/customeros/dmarcwatch/internal/errors"
)

// ExtractAttachments parses the raw message and returns its attachment
// parts. Only parts with an attachment disposition are considered; parts
// without a filename are ignored.
func (s *IMAPService) ExtractAttachments(raw []byte) ([]interfaces.Attachment, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}

	attachments := make([]interfaces.Attachment, 0, len(envelope.Attachments))
	for _, part := range envelope.Attachments {
		if part.FileName == "" {
			continue
		}
		attachments = append(attachments, interfaces.Attachment{
			Filename: part.FileName,
			Content:  part.Content,
		})
		s.log.Debugf("Extracted attachment: %s (%d bytes)", part.FileName, len(part.Content))
	}

	return attachments, nil
}

// Decompress inflates compressed report payloads. A .gz payload is
// raw-inflated; a .zip payload yields its first entry only; anything else
// passes through unchanged.
func (s *IMAPService) Decompress(data []byte, filename string) ([]byte, error) {
	switch {
	case strings.HasSuffix(filename, ".gz"):
		return s.decompressGzip(data, filename)
	case strings.HasSuffix(filename, ".zip"):
		return s.decompressZip(data, filename)
	default:
		return data, nil
	}
}

func (s *IMAPService) decompressGzip(data []byte, filename string) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decompress %s", filename)
	}
	defer reader.Close()

	inflated, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decompress %s", filename)
	}
	return inflated, nil
}

func (s *IMAPService) decompressZip(data []byte, filename string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open archive %s", filename)
	}

	if len(reader.File) == 0 {
		return nil, errors.Wrapf(dmarcwatch_errors.ErrEmptyArchive, "empty zip file %s", filename)
	}
	if len(reader.File) > 1 {
		// Reporters send single-entry archives; extra entries are dropped.
		s.log.Warnf("Archive %s has %d entries, reading first entry only", filename, len(reader.File))
	}

	entry, err := reader.File[0].Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read archive entry in %s", filename)
	}
	defer entry.Close()

	inflated, err := io.ReadAll(entry)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read archive entry in %s", filename)
	}
	return inflated, nil
}
