package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	desc := e.Description
	if desc == "" {
		desc = "Unknown error"
	}
	if e.Method == "getFile" {
		return "Telegram getFile API Error: " + desc
	}
	return "Telegram API Error: " + desc
}

// StatusError is returned when a Bot API call answers with a non-2xx status.
type StatusError struct {
	Method     string
	StatusCode int
	Status     string // status text, e.g. "Not Found"
	Body       string
}

func (e *StatusError) Error() string {
	switch e.Method {
	case "sendDocument":
		return fmt.Sprintf("Telegram API Upload Failed: %d - %s", e.StatusCode, e.Body)
	case "download":
		return "Failed to fetch file from Telegram: " + e.Status
	default:
		return fmt.Sprintf("Telegram %s failed: %d %s", e.Method, e.StatusCode, e.Status)
	}
}

// TransportError is returned when the Bot API could not be reached at all.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Telegram %s request failed: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsUpstream reports whether err came from the Bot API or the way to it.
func IsUpstream(err error) bool {
	var (
		apiErr    *APIError
		statusErr *StatusError
		transErr  *TransportError
	)
	return errors.As(err, &apiErr) || errors.As(err, &statusErr) || errors.As(err, &transErr)
}

// redact strips the bot token out of request URLs carried by err.
// Bot API URLs embed the token in the path, and net/http echoes the URL
// in every transport error.
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: strings.ReplaceAll(ue.URL, token, "<token>"), Err: ue.Err}
	}
	return err
}

// statusText returns the reason phrase of an HTTP status line such as "404 Not Found".
func statusText(status string, code int) string {
	if _, text, ok := strings.Cut(status, " "); ok && text != "" {
		return text
	}
	return fmt.Sprint(code)
}
