package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewJSONLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "pipeline.log")

	logger, err := New(Options{Level: "debug", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("stage started", String(FieldStage, "triage"), Int("articles", 12))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("parse log line %q: %v", line, err)
	}
	if record["msg"] != "stage started" {
		t.Errorf("expected msg %q, got %v", "stage started", record["msg"])
	}
	if record["level"] != "info" {
		t.Errorf("expected lowercase level, got %v", record["level"])
	}
	if record["stage"] != "triage" {
		t.Errorf("expected stage attribute, got %v", record["stage"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	cases := map[string]string{
		"":        "INFO",
		"debug":   "DEBUG",
		"warn":    "WARN",
		"error":   "ERROR",
		"unknown": "INFO",
	}
	for input, want := range cases {
		if got := parseLevel(input).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestComponentLoggerToleratesNil(t *testing.T) {
	logger := NewComponentLogger(nil, "promptcache")
	logger.Info("should not panic")
}
