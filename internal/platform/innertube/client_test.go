package innertube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/httpx"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

const playerJSON = `{
  "playabilityStatus": {"status": "OK"},
  "videoDetails": {
    "videoId": "abc12345678",
    "title": "Go pipelines",
    "lengthSeconds": "613",
    "shortDescription": "desc",
    "author": "Gopher",
    "viewCount": "1200",
    "thumbnail": {"thumbnails": [
      {"url": "https://i/s.jpg", "width": 120, "height": 90},
      {"url": "https://i/l.jpg", "width": 1280, "height": 720}
    ]}
  },
  "microformat": {"playerMicroformatRenderer": {"publishDate": "2024-03-09T10:00:00-08:00"}}
}`

func newTestClient(srv *httptest.Server) Client {
	return NewClient(logger.NewNop(), Config{
		BaseURL: srv.URL,
		Retry:   httpx.RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond},
	})
}

func TestResolveParsesVideoDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtubei/v1/player", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc12345678", body["videoId"])
		_, _ = w.Write([]byte(playerJSON))
	}))
	defer srv.Close()

	raw, err := newTestClient(srv).Resolve(context.Background(), "https://www.youtube.com/watch?v=abc12345678")
	require.NoError(t, err)
	assert.Equal(t, "abc12345678", raw.VideoID)
	assert.Equal(t, "Gopher", raw.Author)
	assert.Equal(t, "2024-03-09", raw.PublishDate)
	assert.Equal(t, "https://i/l.jpg", raw.ThumbnailURL)
	require.NotNil(t, raw.DurationSeconds)
	assert.Equal(t, int64(613), *raw.DurationSeconds)
	require.NotNil(t, raw.ViewCount)
	assert.Equal(t, int64(1200), *raw.ViewCount)
}

func TestResolveRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(playerJSON))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Resolve(context.Background(), "https://youtu.be/abc12345678")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResolveUnplayableIsMetadataFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Resolve(context.Background(), "https://youtu.be/abc12345678")
	require.Error(t, err)
	assert.True(t, video.IsKind(err, video.KindMetadataFetch))
	assert.Contains(t, err.Error(), "Video unavailable")
}

func TestResolveRejectsBadReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Resolve(context.Background(), "not a url")
	assert.True(t, video.IsKind(err, video.KindValidation))
}
