package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/process_video", "200", 2*time.Second)
	m.ObserveStage("transcribed", "ok", 12*time.Second)
	m.ObserveStage("transcribed", "ok", 70*time.Second)
	m.ObserveLLM("analysis", "error", time.Second)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`vi_api_requests_total{method="POST",route="/process_video",status="200"} 1`,
		`vi_pipeline_stage_total{stage="transcribed",status="ok"} 2`,
		`vi_pipeline_stage_duration_seconds_bucket{stage="transcribed",le="15"} 1`,
		`vi_pipeline_stage_duration_seconds_bucket{stage="transcribed",le="+Inf"} 2`,
		`vi_pipeline_stage_duration_seconds_count{stage="transcribed"} 2`,
		`vi_llm_requests_total{purpose="analysis",status="error"} 1`,
		"# TYPE vi_api_inflight_requests gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveStage("analyzed", "ok", time.Millisecond)
	m.APIInflightInc()

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString: %s", got)
	}
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders("api-key=abc, x=1,bad,=v")
	if len(h) != 2 || h["api-key"] != "abc" || h["x"] != "1" {
		t.Fatalf("ParseHeaders: %v", h)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
