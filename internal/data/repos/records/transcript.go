package records

import (
	"context"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type TranscriptRepo interface {
	Save(ctx context.Context, key string, t *video.Transcript) error
	Get(ctx context.Context, key string) (*video.Transcript, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type transcriptRepo struct {
	store *recordStore[video.Transcript]
}

func NewTranscriptRepo(dir string, baseLog *logger.Logger, mirror Mirror) (TranscriptRepo, error) {
	store, err := newRecordStore[video.Transcript]("transcript", dir, baseLog.With("repo", "TranscriptRepo"), mirror)
	if err != nil {
		return nil, err
	}
	return &transcriptRepo{store: store}, nil
}

func (r *transcriptRepo) Save(ctx context.Context, key string, t *video.Transcript) error {
	return r.store.put(ctx, key, t)
}

func (r *transcriptRepo) Get(ctx context.Context, key string) (*video.Transcript, error) {
	return r.store.get(key)
}

func (r *transcriptRepo) Exists(ctx context.Context, key string) (bool, error) {
	return r.store.exists(key)
}
