package resolve

import (
	"errors"
	"fmt"
	"strings"

	"fbzone/internal/media"
)

// Reasons reported by ExhaustedError.Reason.
const (
	ReasonNothingFound     = "nothing found"
	ReasonUnreachable      = "upstream unreachable"
	ReasonConversionFailed = "conversion failed"
	ReasonInvalidSource    = "invalid source"
)

// ExhaustedError is returned when no strategy produced an accepted result.
type ExhaustedError struct {
	Goal     media.Goal
	Attempts []Attempt
	Aborted  bool // A hard failure stopped the cascade early
	TimedOut bool // The overall ceiling ran out
}

// IDs lists the attempted strategy ids in order.
func (e *ExhaustedError) IDs() []string {
	ids := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		ids[i] = a.ID
	}
	return ids
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s resolution exhausted (%s)", e.Goal, e.Reason())
	if len(e.Attempts) == 0 {
		b.WriteString(": no strategies attempted")
	} else {
		fmt.Fprintf(&b, ": tried %s", strings.Join(e.IDs(), ", "))
	}
	if e.Aborted {
		b.WriteString("; aborted")
	}
	if e.TimedOut {
		b.WriteString("; overall budget exceeded")
	}
	return b.String()
}

// Unwrap exposes every attempt's failure.
func (e *ExhaustedError) Unwrap() []error {
	var errs []error
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Reason tells "nothing found" from "upstream unreachable" from
// "conversion failed". A failed remote job wins, then an invalid source,
// then any attempt that did find the upstream but no match in it.
func (e *ExhaustedError) Reason() string {
	switch {
	case errors.Is(e, media.ErrRemoteJob):
		return ReasonConversionFailed
	case errors.Is(e, media.ErrInvalidSource):
		return ReasonInvalidSource
	}

	var network, other int
	for _, a := range e.Attempts {
		if a.Err == nil {
			continue
		}
		if errors.Is(a.Err, media.ErrNetwork) {
			network++
		} else {
			other++
		}
	}
	if network > 0 && other == 0 {
		return ReasonUnreachable
	}
	return ReasonNothingFound
}
