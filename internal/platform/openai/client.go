package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/videoinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/videoinsight-backend/internal/platform/httpx"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

// TextOptions tunes a single text generation call. Zero values leave the
// field out of the request.
type TextOptions struct {
	MaxOutputTokens int
	Temperature     *float64
}

type TranscriptionSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcription struct {
	Text     string                 `json:"text"`
	Language string                 `json:"language,omitempty"`
	Duration float64                `json:"duration,omitempty"`
	Segments []TranscriptionSegment `json:"segments"`
}

// Client is the OpenAI API client used by the rest of the backend.
type Client interface {
	// Plain text through the Responses API.
	GenerateText(ctx context.Context, system string, user string, opts TextOptions) (string, error)

	// Speech to text with segment timestamps (verbose_json).
	TranscribeAudio(ctx context.Context, audio []byte, filename string) (Transcription, error)
}

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	TranscribeModel string
	Timeout         time.Duration
	MaxRetries      int
	// RequestsPerSecond paces outgoing calls; <= 0 disables pacing.
	RequestsPerSecond float64
}

type client struct {
	log             *logger.Logger
	baseURL         string
	apiKey          string
	model           string
	transcribeModel string
	httpClient      *http.Client
	limiter         *rate.Limiter

	maxRetries int

	// Models that rejected temperature once are remembered and sent without it.
	noTempMu   sync.RWMutex
	noTempSeen map[string]time.Time
	noTempTTL  time.Duration
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o"
	}
	transcribeModel := strings.TrimSpace(cfg.TranscribeModel)
	if transcribeModel == "" {
		transcribeModel = "whisper-1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &client{
		log:             log.With("service", "OpenAIClient"),
		baseURL:         baseURL,
		apiKey:          apiKey,
		model:           model,
		transcribeModel: transcribeModel,
		httpClient:      &http.Client{Timeout: timeout},
		limiter:         limiter,
		maxRetries:      maxRetries,
		noTempSeen:      map[string]time.Time{},
		noTempTTL:       24 * time.Hour,
	}, nil
}

func normalizeModelKey(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

func (c *client) modelIsNoTemp(model string) bool {
	m := normalizeModelKey(model)
	if m == "" {
		return false
	}
	c.noTempMu.RLock()
	ts, ok := c.noTempSeen[m]
	c.noTempMu.RUnlock()
	return ok && time.Since(ts) < c.noTempTTL
}

func (c *client) noteNoTempModel(model string) {
	m := normalizeModelKey(model)
	if m == "" {
		return
	}
	c.noTempMu.Lock()
	c.noTempSeen[m] = time.Now().UTC()
	c.noTempMu.Unlock()
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func isUnsupportedTemperatureMessage(s string) bool {
	msg := strings.ToLower(strings.TrimSpace(s))
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, marker := range []string{
		"unsupported parameter",
		"unknown parameter",
		"unrecognized parameter",
		"not supported",
		"does not support",
		"only the default",
		"unsupported_value",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// request is one prepared HTTP call. newBody is invoked per attempt so
// multipart payloads can be replayed.
type request struct {
	method      string
	path        string
	contentType string
	newBody     func() io.Reader
}

func (c *client) doOnce(ctx context.Context, r request) (*http.Response, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	var body io.Reader
	if r.newBody != nil {
		body = r.newBody()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		req.Header.Set("X-Client-Request-Id", td.RequestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 2048)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, r request, out any) error {
	ctx = ctxutil.Default(ctx)
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, r)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, truncate(string(raw), 512))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("OpenAI request retrying",
			"path", r.path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func jsonRequest(path string, body any) (request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return request{}, err
	}
	return request{
		method:      http.MethodPost,
		path:        path,
		contentType: "application/json",
		newBody:     func() io.Reader { return bytes.NewReader(payload) },
	}, nil
}

// -------------------- Responses API --------------------

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *client) postResponses(ctx context.Context, req *responsesRequest, out *responsesResponse) error {
	r, err := jsonRequest("/v1/responses", req)
	if err != nil {
		return err
	}
	return c.do(ctx, r, out)
}

// postResponsesWithTempFallback retries exactly once without temperature if the model rejects it.
func (c *client) postResponsesWithTempFallback(ctx context.Context, req *responsesRequest, out *responsesResponse) error {
	err := c.postResponses(ctx, req, out)
	if err == nil || req.Temperature == nil || !isUnsupportedTemperatureMessage(err.Error()) {
		return err
	}
	c.log.Warn("Model rejected temperature, retrying without it", "model", req.Model)
	c.noteNoTempModel(req.Model)
	req.Temperature = nil
	return c.postResponses(ctx, req, out)
}

func (c *client) GenerateText(ctx context.Context, system string, user string, opts TextOptions) (string, error) {
	req := responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxOutputTokens: opts.MaxOutputTokens,
	}
	if opts.Temperature != nil && !c.modelIsNoTemp(req.Model) {
		t := *opts.Temperature
		req.Temperature = &t
	}

	start := time.Now()
	var resp responsesResponse
	if err := c.postResponsesWithTempFallback(ctx, &req, &resp); err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}
	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	c.log.Debug("OpenAI text generated",
		"model", req.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// -------------------- Audio transcriptions --------------------

func (c *client) TranscribeAudio(ctx context.Context, audio []byte, filename string) (Transcription, error) {
	if len(audio) == 0 {
		return Transcription{}, fmt.Errorf("empty audio payload")
	}
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." {
		name = "audio.m4a"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"model", c.transcribeModel},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return Transcription{}, err
		}
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return Transcription{}, err
	}
	if _, err := fw.Write(audio); err != nil {
		return Transcription{}, err
	}
	if err := mw.Close(); err != nil {
		return Transcription{}, err
	}
	payload := buf.Bytes()

	r := request{
		method:      http.MethodPost,
		path:        "/v1/audio/transcriptions",
		contentType: mw.FormDataContentType(),
		newBody:     func() io.Reader { return bytes.NewReader(payload) },
	}
	var out Transcription
	if err := c.do(ctx, r, &out); err != nil {
		return Transcription{}, err
	}
	if out.Segments == nil {
		out.Segments = []TranscriptionSegment{}
	}
	c.log.Debug("OpenAI transcription finished",
		"file", name,
		"bytes", len(audio),
		"segments", len(out.Segments),
	)
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
