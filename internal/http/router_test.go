package http

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	httpH "github.com/yungbote/videoinsight-backend/internal/http/handlers"
	"github.com/yungbote/videoinsight-backend/internal/observability"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
	"github.com/yungbote/videoinsight-backend/internal/services"
)

type stubPipeline struct {
	processRes *services.ProcessResult
	processErr error
	queryRes   *services.QueryResult
	queryErr   error
	lastRef    string
}

func (s *stubPipeline) Process(ctx context.Context, reference string) (*services.ProcessResult, error) {
	s.lastRef = reference
	return s.processRes, s.processErr
}

func (s *stubPipeline) Query(ctx context.Context, videoID, question string) (*services.QueryResult, error) {
	return s.queryRes, s.queryErr
}

type stubDetails struct {
	meta *video.Metadata
	err  error
}

func (s *stubDetails) Get(ctx context.Context, videoID string) (*video.Metadata, error) {
	return s.meta, s.err
}

func newTestRouter(p *stubPipeline, d *stubDetails) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Log:           logger.NewNop(),
		Metrics:       observability.NewMetrics(),
		WebUI:         true,
		VideoHandler:  httpH.NewVideoHandlerWithDeps(httpH.VideoHandlerDeps{Pipeline: p, Details: d}),
		HealthHandler: httpH.NewHealthHandler(),
	})
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (body=%s)", err, rec.Body.String())
	}
	return env.Error.Code, env.Error.Message
}

func TestHealthcheck(t *testing.T) {
	r := newTestRouter(&stubPipeline{}, &stubDetails{})
	rec := do(t, r, nethttp.MethodGet, "/healthcheck", "")
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthcheck: %d %q", rec.Code, rec.Body.String())
	}
}

func TestProcessVideoOK(t *testing.T) {
	p := &stubPipeline{processRes: &services.ProcessResult{
		VideoID:       "abc12345678",
		Title:         "Go in 200 seconds",
		SummaryStatus: video.FormatStructured,
		Run:           &services.Run{VideoID: "abc12345678"},
	}}
	r := newTestRouter(p, &stubDetails{})

	rec := do(t, r, nethttp.MethodPost, "/process_video", `{"youtube_url":"https://youtu.be/abc12345678"}`)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["video_id"] != "abc12345678" || body["status"] != "processed" || body["summary_status"] != "structured" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["message"] != "Successfully processed video: Go in 200 seconds" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	if _, ok := body["warnings"]; ok {
		t.Fatalf("warnings should be omitted when empty: %v", body)
	}
	if p.lastRef != "https://youtu.be/abc12345678" {
		t.Fatalf("unexpected reference: %q", p.lastRef)
	}
}

func TestProcessVideoErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing url", `{}`, nil, nethttp.StatusBadRequest, "invalid_request"},
		{"bad json", `{`, nil, nethttp.StatusBadRequest, "invalid_request"},
		{"invalid url", `{"youtube_url":"nope"}`, &services.StageError{Stage: services.StageValidated, Err: video.Errorf(video.KindValidation, "invalid YouTube URL")}, nethttp.StatusBadRequest, "invalid_request"},
		{"download", `{"youtube_url":"https://youtu.be/abc12345678"}`, &services.StageError{Stage: services.StageAudioFetched, Err: video.E(video.KindDownload, "fetch audio", errors.New("reset"))}, nethttp.StatusBadGateway, "download_failed"},
		{"timeout", `{"youtube_url":"https://youtu.be/abc12345678"}`, &services.StageError{Stage: services.StageTranscribed, Err: video.E(video.KindTranscription, "transcribe", context.DeadlineExceeded)}, nethttp.StatusGatewayTimeout, "timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubPipeline{processErr: tc.err, processRes: &services.ProcessResult{Run: &services.Run{}}}
			r := newTestRouter(p, &stubDetails{})
			rec := do(t, r, nethttp.MethodPost, "/process_video", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			code, msg := decodeError(t, rec)
			if code != tc.code {
				t.Fatalf("code: got=%q want=%q", code, tc.code)
			}
			if msg == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestQueryEndpoint(t *testing.T) {
	p := &stubPipeline{queryRes: &services.QueryResult{VideoID: "abc12345678", Response: "It covers goroutines."}}
	r := newTestRouter(p, &stubDetails{})

	rec := do(t, r, nethttp.MethodPost, "/query", `{"video_id":"abc12345678","query":"what?"}`)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["response"] != "It covers goroutines." || body["video_id"] != "abc12345678" {
		t.Fatalf("unexpected body: %v", body)
	}

	rec = do(t, r, nethttp.MethodPost, "/query", `{"video_id":"abc12345678"}`)
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("missing query: got=%d", rec.Code)
	}

	p.queryErr = video.Errorf(video.KindNotFound, "analysis not found for video ID: abc12345678")
	rec = do(t, r, nethttp.MethodPost, "/query", `{"video_id":"abc12345678","query":"what?"}`)
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("not found: got=%d", rec.Code)
	}
	if code, _ := decodeError(t, rec); code != "not_found" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestVideoDetailsEndpoint(t *testing.T) {
	d := &stubDetails{meta: &video.Metadata{VideoID: "abc12345678", Title: "T", Description: video.Unavailable}}
	r := newTestRouter(&stubPipeline{}, d)

	rec := do(t, r, nethttp.MethodGet, "/video_details/abc12345678", "")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["video_id"] != "abc12345678" || body["views"] != video.Unavailable {
		t.Fatalf("unexpected body: %v", body)
	}

	d.err = video.E(video.KindMetadataFetch, "resolve metadata", errors.New("unplayable"))
	rec = do(t, r, nethttp.MethodGet, "/video_details/abc12345678", "")
	if rec.Code != nethttp.StatusBadGateway {
		t.Fatalf("lookup failure: got=%d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&stubPipeline{}, &stubDetails{})
	_ = do(t, r, nethttp.MethodGet, "/healthcheck", "")

	rec := do(t, r, nethttp.MethodGet, "/metrics", "")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/healthcheck"`) {
		t.Fatalf("expected healthcheck in exposition:\n%s", rec.Body.String())
	}
}

func TestWebUI(t *testing.T) {
	r := newTestRouter(&stubPipeline{}, &stubDetails{})

	rec := do(t, r, nethttp.MethodGet, "/", "")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("index: got=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("index content type: %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `id="process-btn"`) || !strings.Contains(rec.Body.String(), "/static/js/app.js") {
		t.Fatalf("unexpected index body:\n%s", rec.Body.String())
	}

	rec = do(t, r, nethttp.MethodGet, "/static/js/app.js", "")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("app.js: got=%d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"/process_video", "/video_details/", "/query", "data.error.message"} {
		if !strings.Contains(body, want) {
			t.Fatalf("app.js missing %q", want)
		}
	}
}

func TestWebUIDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{Log: logger.NewNop(), HealthHandler: httpH.NewHealthHandler()})
	if rec := do(t, r, nethttp.MethodGet, "/", ""); rec.Code != nethttp.StatusNotFound {
		t.Fatalf("expected 404 without web ui, got=%d", rec.Code)
	}
}
