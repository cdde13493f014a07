package event_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gatewright/gatewright/internal/domain/event"
)

func sampleEvents() []event.Event {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []event.Event{
		{Type: event.TypeRunStarted, Level: event.LevelInfo, Stage: "lifecycle", Message: "run started", Timestamp: ts},
		{Type: event.TypeBudgetWarning, Level: event.LevelWarn, Stage: "pipeline", Message: "85% of budget used",
			Metadata: map[string]string{"percent": "85"}, Timestamp: ts.Add(time.Minute)},
	}
}

func TestExportJSONIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := event.ExportJSON(&buf, sampleEvents()); err != nil {
		t.Fatal(err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(decoded))
	}
	if decoded[0]["type"] != "run_started" {
		t.Errorf("unexpected first event: %v", decoded[0])
	}
}

func TestExportCSVColumns(t *testing.T) {
	var buf bytes.Buffer
	if err := event.ExportCSV(&buf, sampleEvents()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 records, got %d lines", len(lines))
	}
	if lines[0] != "timestamp,level,stage,type,message,metadata" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[2], `"{""percent"":""85""}"`) {
		t.Errorf("metadata should be a JSON string column: %q", lines[2])
	}
}

func TestExportCSVEmptyMetadata(t *testing.T) {
	var buf bytes.Buffer
	evs := []event.Event{{Type: event.TypeHeartbeat, Level: event.LevelInfo, Message: "hb", Timestamp: time.Now()}}
	if err := event.ExportCSV(&buf, evs); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "{}") {
		t.Error("empty metadata should render as {}")
	}
}
