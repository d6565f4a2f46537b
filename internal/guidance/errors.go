package guidance

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by stores.
var (
	ErrNotFound         = errors.New("record not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
)

// ConfigError reports invalid run parameters rejected before any
// session state is created.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// AcquisitionError reports a listing strategy failure. The chain logs
// these and moves on; they never abort a harvest.
type AcquisitionError struct {
	Strategy string
	Reason   string
	Err      error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("listing strategy %s: %s: %v", e.Strategy, e.Reason, e.Err)
	}
	return fmt.Sprintf("listing strategy %s: %s", e.Strategy, e.Reason)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
