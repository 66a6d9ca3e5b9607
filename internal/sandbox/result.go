package sandbox

import (
	"encoding/json"
	"fmt"

	"github.com/google/renameio"
)

// ExecResult is the executor's output, described in spec §3.
type ExecResult struct {
	// Status is the child's exit code, or 128+signo on signal death
	// (see SPEC_FULL's resolution of spec §9's open question).
	Status int `json:"returncode"`

	// Time is wall-clock seconds, clamped to the configured time
	// limit.
	Time float64 `json:"time"`

	// Memory is peak RSS in bytes from cgroup accounting, or -1 if
	// unreadable.
	Memory int64 `json:"memory"`

	// TLE is true iff the watchdog killed the process, or elapsed
	// time exceeded the limit.
	TLE bool `json:"tle"`

	// Signaled records whether Status encodes 128+signo rather than a
	// raw exit code, for callers that need to tell the two apart
	// without doing the arithmetic themselves. Not part of the JSON
	// result file, which matches the reference format exactly.
	Signaled bool `json:"-"`
}

// WriteFile writes r as a single-line JSON object to path, atomically
// (write to a temp file in the same directory, then rename), so a
// concurrent reader never observes a partially written result.
func WriteFile(path string, r ExecResult) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	body = append(body, '\n')

	return renameio.WriteFile(path, body, 0644)
}
