package httpfetch

import (
	"errors"
	"testing"
)

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FetchError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &FetchError{
				Page:       3,
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "page 3 network error (status 0): request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			err: &FetchError{
				Page:       1,
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "404 Not Found",
			},
			expected: "page 1 client error (status 404): 404 Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&FetchError{ErrorClass: ErrorClassNetwork, Err: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatal("errors.As(err, *FetchError) = false")
	}
}

func TestFetchError_Temporary(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{ErrorClassDecode, false},
		{"", false},
	}

	for _, tt := range tests {
		err := &FetchError{ErrorClass: tt.class}
		if got := err.Temporary(); got != tt.want {
			t.Errorf("Temporary() for %q = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{200, ""},
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
