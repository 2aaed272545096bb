package services

import (
	"context"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
)

// MediaMetadataProvider looks up display metadata without downloading media.
type MediaMetadataProvider interface {
	Resolve(ctx context.Context, reference string) (video.RawMetadata, error)
}

// MediaDownloadProvider downloads the best audio-only stream. outputStem is a
// path without extension; the provider appends the container extension and
// returns the final path.
type MediaDownloadProvider interface {
	FetchBestAudio(ctx context.Context, reference string, outputStem string) (string, error)
}

type SpeechResult struct {
	Text     string
	Segments []video.Segment
}

type SpeechToTextProvider interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (SpeechResult, error)
}

type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

type LanguageModelProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
