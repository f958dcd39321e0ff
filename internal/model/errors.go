package model

import (
	"errors"
	"fmt"
	"strings"
)

// FetchError reports a network, HTTP or decode failure from an external
// collaborator (market data, indicator provider, inference endpoint).
type FetchError struct {
	Source string // e.g. "coingecko", "alphavantage", "huggingface"
	Op     string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Source)
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// InsufficientDataError reports a series shorter than an operation needs.
type InsufficientDataError struct {
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d points, got %d", e.Need, e.Got)
}

// ErrNoValidIndicators is matched by every InvalidSelectionError.
var ErrNoValidIndicators = errors.New("no valid indicators selected")

// InvalidSelectionError reports a KPI selection with nothing computable.
type InvalidSelectionError struct {
	Unknown []string
}

func (e *InvalidSelectionError) Error() string {
	if len(e.Unknown) == 0 {
		return ErrNoValidIndicators.Error()
	}
	return fmt.Sprintf("%s (unknown: %s)", ErrNoValidIndicators, strings.Join(e.Unknown, ", "))
}

func (e *InvalidSelectionError) Is(target error) bool { return target == ErrNoValidIndicators }

// MalformedAIResponseError reports an inference response that does not
// have the expected shape.
type MalformedAIResponseError struct {
	Reason string
}

func (e *MalformedAIResponseError) Error() string {
	return "malformed AI response: " + e.Reason
}
