package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRunHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&runHandler{w: &buf, runID: "run-42", operation: "Scan"})

	logger.Info("scan complete", "scanned", 10, "failed", 0)

	line := strings.TrimSuffix(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		t.Fatalf("got %d tab-separated fields, want 7: %q", len(fields), line)
	}
	if fields[1] != "INFO" {
		t.Errorf("level = %q, want INFO", fields[1])
	}
	if fields[2] != "run-42" {
		t.Errorf("run ID = %q, want run-42", fields[2])
	}
	if fields[3] != "Scan" {
		t.Errorf("operation = %q, want Scan", fields[3])
	}
	if fields[4] != "scan complete" {
		t.Errorf("message = %q, want scan complete", fields[4])
	}
	if fields[5] != "scanned=10" || fields[6] != "failed=0" {
		t.Errorf("attrs = %v, want scanned=10 failed=0", fields[5:])
	}
}

func TestRunHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&runHandler{w: &buf, runID: "run-42", operation: "Scan"})

	logger.With("root", "/src").Warn("file unreadable", "path", "/x")

	line := buf.String()
	if !strings.Contains(line, "\troot=/src\t") {
		t.Errorf("bound attr missing: %q", line)
	}
	if !strings.Contains(line, "\tpath=/x") {
		t.Errorf("record attr missing: %q", line)
	}
	if !strings.Contains(line, "\tWARN\t") {
		t.Errorf("level missing: %q", line)
	}
}
