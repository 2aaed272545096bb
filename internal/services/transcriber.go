package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/videoinsight-backend/internal/data/repos"
	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type Transcriber interface {
	// Transcribe converts the artifact and persists the result. When only the
	// write fails, the transcript is returned together with a persistence error.
	Transcribe(ctx context.Context, artifact *video.AudioArtifact) (*video.Transcript, error)
}

type transcriber struct {
	log   *logger.Logger
	stt   SpeechToTextProvider
	repo  repos.TranscriptRepo
	nowFn func() time.Time
}

func NewTranscriber(baseLog *logger.Logger, stt SpeechToTextProvider, repo repos.TranscriptRepo) (Transcriber, error) {
	if stt == nil || repo == nil {
		return nil, fmt.Errorf("transcriber requires a speech provider and a transcript repo")
	}
	return &transcriber{
		log:   baseLog.With("service", "Transcriber"),
		stt:   stt,
		repo:  repo,
		nowFn: time.Now,
	}, nil
}

func (t *transcriber) Transcribe(ctx context.Context, artifact *video.AudioArtifact) (*video.Transcript, error) {
	if artifact == nil || artifact.LocalPath == "" {
		return nil, video.Errorf(video.KindTranscription, "no audio artifact")
	}
	audio, err := os.ReadFile(artifact.LocalPath)
	if err != nil {
		return nil, video.E(video.KindTranscription, "read audio", err)
	}

	res, err := t.stt.Transcribe(ctx, audio, filepath.Base(artifact.LocalPath))
	if err != nil {
		return nil, classify(video.KindTranscription, "transcribe", err)
	}

	segments := res.Segments
	if segments == nil {
		segments = []video.Segment{}
	}
	tr := &video.Transcript{
		Text:            strings.TrimSpace(res.Text),
		Segments:        segments,
		CreatedAt:       t.nowFn().UTC(),
		SourceAudioPath: artifact.LocalPath,
	}

	key := TranscriptKey(artifact.LocalPath)
	if err := t.repo.Save(ctx, key, tr); err != nil {
		return tr, video.E(video.KindPersistence, "save transcript", err)
	}
	t.log.Info("Transcript saved", "key", key, "segments", len(segments), "chars", len(tr.Text))
	return tr, nil
}

// TranscriptKey is the artifact filename up to its first dot, so
// "<id>.<uuid>.m4a" is stored under "<id>".
func TranscriptKey(audioPath string) string {
	base := filepath.Base(audioPath)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}
