package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/gatewright/gatewright/internal/logger"
)

func TestFromTagsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	ctx := logger.WithRunID(logger.WithRequestID(context.Background(), "req-1"), "run-9")
	logger.From(ctx).Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log record is not JSON: %v", err)
	}
	if rec["request_id"] != "req-1" || rec["run_id"] != "run-9" {
		t.Errorf("record should carry both IDs: %v", rec)
	}
}

func TestFromWithoutIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	logger.From(context.Background()).Info("plain")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log record is not JSON: %v", err)
	}
	if _, ok := rec["request_id"]; ok {
		t.Error("no request_id should be emitted for a bare context")
	}
	if _, ok := rec["run_id"]; ok {
		t.Error("no run_id should be emitted for a bare context")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	if got := logger.RequestID(context.Background()); got != "" {
		t.Errorf("bare context should have no request ID, got %q", got)
	}
	ctx := logger.WithRequestID(context.Background(), "abc")
	if got := logger.RequestID(ctx); got != "abc" {
		t.Errorf("got %q, want abc", got)
	}
}
