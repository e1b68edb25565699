package errors

import "github.com/pkg/errors"

var (
	// mail source errors
	ErrNotConnected    = errors.New("not connected to mail server")
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyArchive    = errors.New("archive contains no entries")

	// parser errors
	ErrMissingMetadata = errors.New("missing report_metadata section")
	ErrNoRecords       = errors.New("report contains no records")

	// pipeline errors
	ErrRunInProgress = errors.New("processing run already in progress")
)
