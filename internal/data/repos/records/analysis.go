package records

import (
	"context"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type AnalysisRepo interface {
	// Save overwrites any prior record for rec.VideoID.
	Save(ctx context.Context, rec *video.AnalysisRecord) error
	Get(ctx context.Context, videoID string) (*video.AnalysisRecord, error)
	Exists(ctx context.Context, videoID string) (bool, error)
}

type analysisRepo struct {
	store *recordStore[video.AnalysisRecord]
}

func NewAnalysisRepo(dir string, baseLog *logger.Logger, mirror Mirror) (AnalysisRepo, error) {
	store, err := newRecordStore[video.AnalysisRecord]("analysis", dir, baseLog.With("repo", "AnalysisRepo"), mirror)
	if err != nil {
		return nil, err
	}
	return &analysisRepo{store: store}, nil
}

func (r *analysisRepo) Save(ctx context.Context, rec *video.AnalysisRecord) error {
	if rec == nil {
		return video.Errorf(video.KindPersistence, "nil analysis record")
	}
	if rec.Metadata.VideoID != rec.VideoID {
		return video.Errorf(video.KindPersistence, "analysis record key %q does not match metadata id %q", rec.VideoID, rec.Metadata.VideoID)
	}
	return r.store.put(ctx, rec.VideoID, rec)
}

func (r *analysisRepo) Get(ctx context.Context, videoID string) (*video.AnalysisRecord, error) {
	return r.store.get(videoID)
}

func (r *analysisRepo) Exists(ctx context.Context, videoID string) (bool, error) {
	return r.store.exists(videoID)
}
