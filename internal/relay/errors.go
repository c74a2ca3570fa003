package relay

import (
	"context"
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/radif/filerelay/internal/metrics"
	"github.com/radif/filerelay/internal/storage"
)

// ConfigError is returned when a required bot setting is missing.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string {
	return "Server Error: " + e.Setting + " is not configured."
}

// ValidationError is returned when the inbound request is malformed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	errNoFilePart    = &ValidationError{Message: "No file part in the request (Field name must be 'file')."}
	errMissingFileID = &ValidationError{Message: "Missing file_id parameter."}
)

// classify maps an error to the status code and metric outcome reported to
// the caller, and the message put in the envelope.
func classify(err error) (status int, outcome, message string) {
	var (
		cfgErr *ConfigError
		valErr *ValidationError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, metrics.OutcomeNotConfigured, err.Error()
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, metrics.OutcomeInvalid,
			"File exceeds the maximum upload size of " + humanize.Bytes(uint64(tooBig.Limit)) + "."
	case errors.As(err, &valErr):
		return http.StatusBadRequest, metrics.OutcomeInvalid, err.Error()
	case errors.Is(err, context.Canceled):
		return http.StatusInternalServerError, metrics.OutcomeAborted, "Request was cancelled."
	case storage.IsUpstream(err):
		return http.StatusInternalServerError, metrics.OutcomeUpstream, err.Error()
	default:
		return http.StatusInternalServerError, metrics.OutcomeError, err.Error()
	}
}
