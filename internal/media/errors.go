package media

import (
	"errors"
	"fmt"
)

// Failure classes shared by strategies and the orchestrator.
var (
	ErrNetwork          = errors.New("upstream unreachable")
	ErrNoMatch          = errors.New("nothing found")
	ErrInvalidSource    = errors.New("invalid source")
	ErrRemoteJob        = errors.New("conversion failed")
	ErrCodecUnavailable = errors.New("codec unavailable")
)

// InvalidSourceError reports why a source URL was rejected.
type InvalidSourceError struct {
	URL    string
	Reason string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid source %q: %s", e.URL, e.Reason)
}

func (e *InvalidSourceError) Unwrap() error { return ErrInvalidSource }

// Network wraps a transport failure so errors.Is(err, ErrNetwork) holds.
func Network(err error) error {
	if err == nil || errors.Is(err, ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
