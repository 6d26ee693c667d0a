package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Error("messages below the configured level were emitted")
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Error("messages at or above the configured level were suppressed")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithFormat(FormatJSON), WithName("qstp"))

	logger.Info("tunnel established", Fields{"tunnel_id": "abc123", "epoch": 7})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "tunnel established" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["logger"] != "qstp" {
		t.Errorf("logger = %v", entry["logger"])
	}
	if entry["tunnel_id"] != "abc123" {
		t.Errorf("tunnel_id = %v", entry["tunnel_id"])
	}
}

func TestLoggerWithAndNamed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithFormat(FormatJSON)).
		Named("qace").
		With(Fields{"engine": "ga"})

	logger.Info("decision")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["logger"] != "qace" {
		t.Errorf("logger = %v", entry["logger"])
	}
	if entry["engine"] != "ga" {
		t.Errorf("engine = %v", entry["engine"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"Warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelSilent,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSimpleTracerRecordsSpans(t *testing.T) {
	tracer := NewSimpleTracer()

	ctx, end := tracer.StartSpan(context.Background(), SpanEstablish,
		WithAttributes(map[string]interface{}{"tunnel.id": "t1"}))
	_, endChild := tracer.StartSpan(ctx, SpanSeal)
	endChild(nil)
	end(errors.New("handshake timeout"))

	spans := tracer.Spans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}

	child, parent := spans[0], spans[1]
	if child.Name != SpanSeal {
		t.Errorf("child span name = %q", child.Name)
	}
	if child.ParentID != parent.SpanID {
		t.Error("child span not linked to parent")
	}
	if child.TraceID != parent.TraceID {
		t.Error("child span not in parent trace")
	}
	if parent.Error == nil {
		t.Error("parent span error not recorded")
	}
	if parent.Attributes["tunnel.id"] != "t1" {
		t.Error("span attributes lost")
	}
}

func TestSpanAttributesToMap(t *testing.T) {
	attrs := SpanAttributes{
		TunnelID:   "abcd",
		Role:       "initiator",
		QaceAction: "reroute",
		QaceScore:  118000,
	}
	m := attrs.ToMap()
	if m["tunnel.id"] != "abcd" {
		t.Errorf("tunnel.id = %v", m["tunnel.id"])
	}
	if m["qace.action"] != "reroute" {
		t.Errorf("qace.action = %v", m["qace.action"])
	}
	if m["qace.score"] != int64(118000) {
		t.Errorf("qace.score = %v", m["qace.score"])
	}
	if _, ok := m["route.hash"]; ok {
		t.Error("empty attribute should be omitted")
	}
}

func TestNoOpTracer(t *testing.T) {
	ctx, end := NoOpTracer{}.StartSpan(context.Background(), "anything")
	if ctx == nil {
		t.Fatal("context should pass through")
	}
	end(nil)
}
