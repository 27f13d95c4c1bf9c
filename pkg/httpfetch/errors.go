package httpfetch

import (
	"fmt"
	"net/http"
)

// ErrorClass represents a classification of page fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that are not a JSON array of items.
	ErrorClassDecode ErrorClass = "decode"
)

// FetchError represents a failed page request with additional context.
type FetchError struct {
	Page       int
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("page %d %s error (status %d): %s: %v",
			e.Page, e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("page %d %s error (status %d): %s",
		e.Page, e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same page may succeed.
func (e *FetchError) Temporary() bool {
	switch e.ErrorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus categorizes an HTTP status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
