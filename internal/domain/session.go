package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Mode selects the generation quality requested by the user. The orchestrator
// carries it through to the service untouched.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeModerate Mode = "moderate"
	ModeDetailed Mode = "detailed"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFast:
		return ModeFast, nil
	case ModeModerate:
		return ModeModerate, nil
	case ModeDetailed:
		return ModeDetailed, nil
	default:
		return "", fmt.Errorf("domain: unknown mode %q (want fast, moderate or detailed)", s)
	}
}

// GenerationSession is the single record persisted while a script-generation
// job is in flight. It is created when the remote job is accepted, survives
// process restarts, and is removed again on any terminal outcome or when the
// user dismisses it.
type GenerationSession struct {
	// JobID is the opaque identifier assigned by the service. Immutable once set.
	JobID string `json:"jobId"`
	// StartTime is set once, when the job was accepted.
	StartTime time.Time `json:"startTime"`
	Mode      Mode      `json:"mode"`
	// FormSnapshot is the exact request payload used to start the job. A
	// resumed session never has to resubmit it.
	FormSnapshot json.RawMessage `json:"formData"`
}

// Elapsed reports how long the session has been running.
func (s GenerationSession) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// Expired reports whether the session has outlived the given wall-clock budget.
func (s GenerationSession) Expired(now time.Time, timeout time.Duration) bool {
	return s.Elapsed(now) > timeout
}
