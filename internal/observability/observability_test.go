package observability_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PabloGalante/farum-triage/internal/observability"
)

func TestLoggerRedactsTextAndHashesIDs(t *testing.T) {
	var buf bytes.Buffer
	log := observability.NewLogger(&buf, "info")

	log.With("user_id", "alice").Info("turn", "session_id", "s-1", "text", "I feel awful", "severity", 7)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["text"] != "[REDACTED]" {
		t.Fatalf("expected text to be redacted, got %v", entry["text"])
	}
	if entry["user_id"] == "alice" || entry["user_id"] != observability.HashID("alice") {
		t.Fatalf("expected hashed user_id, got %v", entry["user_id"])
	}
	if entry["session_id"] != observability.HashID("s-1") {
		t.Fatalf("expected hashed session_id, got %v", entry["session_id"])
	}
	if entry["severity"] != float64(7) {
		t.Fatalf("expected severity to pass through, got %v", entry["severity"])
	}
	if strings.Contains(buf.String(), "awful") {
		t.Fatalf("raw text leaked into log: %s", buf.String())
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := observability.NewLogger(&buf, "warn")

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %s", buf.String())
	}
	log.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("expected warn to be written")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *observability.Metrics

	m.ObserveTurn("standard", time.Millisecond)
	m.ObserveCrisis("suicide-prevention")
	m.ObserveSelection("thought_record", []string{"exposure_hierarchy"})
	m.ObserveFeedback(true)
	m.ObserveLexiconReload("applied")
	m.ObserveHTTP("GET", "/healthz", 200, time.Millisecond)
	m.ObserveEvictions(3)
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := observability.NewMetrics()
	m.ObserveTurn("crisis", 10*time.Millisecond)
	m.ObserveCrisis("suicide-prevention")
	m.ObserveEvictions(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`farum_turns_total{kind="crisis"} 1`,
		`farum_crisis_detections_total{type="suicide-prevention"} 1`,
		`farum_sessions_evicted_total 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}
