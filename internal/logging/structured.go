// Package logging provides structured logging for remote CLI and S3 calls
// and audit logging for harness invocations. Structured logs are written as
// individual JSON files to ~/.config/noobaa-sa-ci/logs/. Audit entries are
// appended as JSON Lines to ~/.config/noobaa-sa-ci/audit.log.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Logger records one entry per remote operation: the service it went
// through (ssh, noobaa-cli, s3, aws-cli), the operation name, how long it
// took, and whether it failed.
type Logger interface {
	Log(service, operation string, duration time.Duration, err error)
	SetStderr(w io.Writer)
}

// Entry is a single operation log entry.
type Entry struct {
	Timestamp  string `json:"timestamp"`
	Service    string `json:"service"`
	Operation  string `json:"operation"`
	DurationMs int64  `json:"duration_ms"`
	Result     string `json:"result"`
}

// structuredLogger writes per-call JSON log files to a directory and
// optionally mirrors entries to stderr when debug mode is enabled.
type structuredLogger struct {
	dir    string
	debug  bool
	stderr io.Writer
	seq    int
}

// NewStructuredLogger creates a Logger that writes JSON log files to dir.
// The directory is created automatically if it does not exist. When debug
// is true, each entry is also written to stderr.
func NewStructuredLogger(dir string, debug bool) (Logger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &structuredLogger{
		dir:    dir,
		debug:  debug,
		stderr: os.Stderr,
	}, nil
}

// SetStderr overrides the writer used for debug output.
// This is primarily useful for testing.
func (l *structuredLogger) SetStderr(w io.Writer) {
	l.stderr = w
}

// Log records a single remote operation as a JSON file in the log directory.
func (l *structuredLogger) Log(service, operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}

	entry := Entry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Service:    service,
		Operation:  operation,
		DurationMs: duration.Milliseconds(),
		Result:     result,
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return
	}

	l.seq++
	filename := fmt.Sprintf("%s_%04d_%s_%s.json",
		time.Now().UTC().Format("20060102T150405Z"),
		l.seq,
		service,
		operation,
	)
	// Best-effort write; logging failures should not fail the run.
	_ = os.WriteFile(filepath.Join(l.dir, filename), data, 0o600)

	if l.debug && l.stderr != nil {
		data = append(data, '\n')
		_, _ = l.stderr.Write(data)
	}
}

// Nop returns a Logger that discards everything. Used where no logger was
// configured and by tests that don't assert on logging.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Log(string, string, time.Duration, error) {}
func (nopLogger) SetStderr(io.Writer)                      {}
