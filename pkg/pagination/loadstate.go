package pagination

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status is the phase of a load.
type Status int

const (
	// StatusIdle means nothing has been requested yet.
	StatusIdle Status = iota

	// StatusLoading means a fetch is in flight.
	StatusLoading

	// StatusSuccess means the last fetch became visible.
	StatusSuccess

	// StatusError means the last fetch failed and can be retried.
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Kind selects which transition a load belongs to.
type Kind int

const (
	// KindInitial is the first page of a data source (the refresh state).
	KindInitial Kind = iota

	// KindAppend is every page after the first (the network state).
	KindAppend
)

// String returns "initial" or "append".
func (k Kind) String() string {
	if k == KindInitial {
		return "initial"
	}
	return "append"
}

// LoadState is the status of an initial or append load. Err is set only
// when Status is StatusError.
type LoadState struct {
	Status Status
	Err    error
}

// Idle returns the idle state.
func Idle() LoadState { return LoadState{Status: StatusIdle} }

// Loading returns the loading state.
func Loading() LoadState { return LoadState{Status: StatusLoading} }

// Succeeded returns the success state.
func Succeeded() LoadState { return LoadState{Status: StatusSuccess} }

// Failed returns an error state carrying err.
func Failed(err error) LoadState { return LoadState{Status: StatusError, Err: err} }

// IsLoading reports whether a fetch is in flight.
func (s LoadState) IsLoading() bool { return s.Status == StatusLoading }

// IsError reports whether the load failed.
func (s LoadState) IsError() bool { return s.Status == StatusError }

// String renders the state, including the cause for errors.
func (s LoadState) String() string {
	if s.Status == StatusError && s.Err != nil {
		return "error: " + s.Err.Error()
	}
	return s.Status.String()
}

// MarshalJSON renders {"status": "...", "error": "..."}.
func (s LoadState) MarshalJSON() ([]byte, error) {
	out := struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}{Status: s.Status.String()}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

// canTransition reports whether a load state may move from one status to another.
// Going back to idle is handled separately when a data source is replaced.
func canTransition(from, to Status) bool {
	switch from {
	case StatusIdle, StatusSuccess, StatusError:
		return to == StatusLoading
	case StatusLoading:
		return to == StatusSuccess || to == StatusError
	default:
		return false
	}
}
