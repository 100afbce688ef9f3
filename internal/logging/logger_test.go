package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"scribe/internal/logging"
)

func TestNewJSONFormatEmitsStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	logger.Info("stage started",
		logging.String(logging.FieldStage, "transcription"),
		logging.Int64(logging.FieldTaskID, 7),
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	if record["msg"] != "stage started" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record[logging.FieldStage] != "transcription" {
		t.Fatalf("unexpected stage field: %v", record[logging.FieldStage])
	}
	if record[logging.FieldTaskID] != float64(7) {
		t.Fatalf("unexpected task_id field: %v", record[logging.FieldTaskID])
	}
	if _, ok := record["time"]; !ok {
		t.Fatal("expected timestamp on record")
	}
	if _, ok := record["level"]; !ok {
		t.Fatal("expected severity on record")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info record should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestNewComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	logging.NewComponentLogger(base, "worker").Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	if record[logging.FieldComponent] != "worker" {
		t.Fatalf("expected component attribute, got %v", record)
	}

	if logging.NewComponentLogger(nil, "worker") == nil {
		t.Fatal("nil base should yield usable logger")
	}
}
