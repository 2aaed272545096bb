package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/videoinsight-backend/internal/platform/httpx"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

// Client resolves video metadata through the public youtubei/v1/player
// endpoint. It never downloads media.
type Client interface {
	Resolve(ctx context.Context, reference string) (video.RawMetadata, error)
}

const (
	defaultBaseURL = "https://www.youtube.com"
	webVersion     = "2.20250222.10.00"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   httpx.RetryConfig
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	retry      httpx.RetryConfig
}

func NewClient(log *logger.Logger, cfg Config) Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retry := cfg.Retry
	if retry == (httpx.RetryConfig{}) {
		retry = httpx.DefaultRetryConfig
	}
	return &client{
		log:        log.With("service", "InnertubeClient"),
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

type playerRequest struct {
	VideoID        string         `json:"videoId"`
	Context        map[string]any `json:"context"`
	RacyCheckOk    bool           `json:"racyCheckOk"`
	ContentCheckOk bool           `json:"contentCheckOk"`
}

type playerResponse struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails *struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		LengthSeconds    string `json:"lengthSeconds"`
		ShortDescription string `json:"shortDescription"`
		Author           string `json:"author"`
		ViewCount        string `json:"viewCount"`
		Thumbnail        struct {
			Thumbnails []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
	Microformat *struct {
		PlayerMicroformatRenderer struct {
			PublishDate string `json:"publishDate"`
			UploadDate  string `json:"uploadDate"`
		} `json:"playerMicroformatRenderer"`
	} `json:"microformat"`
}

func (c *client) Resolve(ctx context.Context, reference string) (video.RawMetadata, error) {
	ctx = ctxutil.Default(ctx)
	id, ok := video.IdentifierFromReference(reference)
	if !ok {
		return video.RawMetadata{}, video.Errorf(video.KindValidation, "cannot extract video id from %q", reference)
	}

	payload, err := json.Marshal(playerRequest{
		VideoID: id,
		Context: map[string]any{
			"client": map[string]any{
				"clientName":    "WEB",
				"clientVersion": webVersion,
				"hl":            "en",
				"gl":            "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return video.RawMetadata{}, err
	}

	raw, err := httpx.Do(ctx, c.retry, func(attempt int) ([]byte, error) {
		if attempt > 0 {
			c.log.Warn("Innertube player retrying", "video_id", id, "attempt", attempt)
		}
		return c.post(ctx, "/youtubei/v1/player?prettyPrint=false", payload)
	})
	if err != nil {
		return video.RawMetadata{}, video.E(video.KindMetadataFetch, "innertube player", err)
	}

	var resp playerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return video.RawMetadata{}, video.E(video.KindMetadataFetch, "decode innertube player", err)
	}
	if resp.VideoDetails == nil || resp.VideoDetails.VideoID == "" {
		reason := "no videoDetails in player response"
		if ps := resp.PlayabilityStatus; ps != nil && ps.Status != "" {
			reason = fmt.Sprintf("playability %s: %s", ps.Status, ps.Reason)
		}
		return video.RawMetadata{}, video.Errorf(video.KindMetadataFetch, "innertube player: %s", reason)
	}
	return resp.toRaw(), nil
}

func (c *client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Youtube-Client-Name", "1")
	req.Header.Set("X-Youtube-Client-Version", webVersion)
	req.Header.Set("Origin", "https://www.youtube.com")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 3<<20))
}

func (p playerResponse) toRaw() video.RawMetadata {
	d := p.VideoDetails
	out := video.RawMetadata{
		VideoID:         d.VideoID,
		Title:           d.Title,
		Description:     d.ShortDescription,
		Author:          d.Author,
		DurationSeconds: parseCount(d.LengthSeconds),
		ViewCount:       parseCount(d.ViewCount),
	}
	// Thumbnails are listed smallest first.
	best := 0
	for _, th := range d.Thumbnail.Thumbnails {
		if th.Width*th.Height >= best && th.URL != "" {
			best = th.Width * th.Height
			out.ThumbnailURL = th.URL
		}
	}
	if p.Microformat != nil {
		date := p.Microformat.PlayerMicroformatRenderer.PublishDate
		if date == "" {
			date = p.Microformat.PlayerMicroformatRenderer.UploadDate
		}
		if len(date) >= 10 {
			date = date[:10]
		}
		out.PublishDate = date
	}
	return out
}

func parseCount(s string) *int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
