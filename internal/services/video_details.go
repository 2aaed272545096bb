package services

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

// MetadataCache holds fresh lookups. A nil cache disables caching.
type MetadataCache interface {
	Get(ctx context.Context, videoID string) (*video.Metadata, bool, error)
	Set(ctx context.Context, meta video.Metadata) error
}

type VideoDetailsService interface {
	// Get prefers the metadata stored with a processed video and falls back
	// to a fresh lookup.
	Get(ctx context.Context, videoID string) (*video.Metadata, error)
}

type videoDetailsService struct {
	log      *logger.Logger
	analyzer ContentAnalyzer
	acquirer MediaAcquirer
	cache    MetadataCache
	timeout  time.Duration
	group    singleflight.Group
}

func NewVideoDetailsService(
	baseLog *logger.Logger,
	analyzer ContentAnalyzer,
	acquirer MediaAcquirer,
	cache MetadataCache,
	timeout time.Duration,
) VideoDetailsService {
	return &videoDetailsService{
		log:      baseLog.With("service", "VideoDetailsService"),
		analyzer: analyzer,
		acquirer: acquirer,
		cache:    cache,
		timeout:  timeout,
	}
}

func (s *videoDetailsService) Get(ctx context.Context, videoID string) (*video.Metadata, error) {
	if !video.IsValidKey(videoID) {
		return nil, video.Errorf(video.KindValidation, "invalid video_id %q", videoID)
	}

	rec, err := s.analyzer.Load(ctx, videoID)
	switch {
	case err == nil:
		meta := rec.Metadata
		return &meta, nil
	case !video.IsKind(err, video.KindNotFound):
		s.log.Warn("Stored analysis unreadable; falling back to lookup", "video_id", videoID, "error", err)
	}

	if s.cache != nil {
		meta, ok, cerr := s.cache.Get(ctx, videoID)
		if cerr != nil {
			s.log.Warn("Metadata cache read failed", "video_id", videoID, "error", cerr)
		} else if ok {
			return meta, nil
		}
	}

	v, err, shared := s.group.Do(videoID, func() (interface{}, error) {
		sctx, cancel := ctxutil.Stage(ctx, s.timeout)
		defer cancel()
		meta, rerr := s.acquirer.ResolveMetadata(sctx, video.CanonicalReference(videoID))
		if rerr != nil {
			return nil, rerr
		}
		if s.cache != nil {
			if serr := s.cache.Set(sctx, meta); serr != nil {
				s.log.Warn("Metadata cache write failed", "video_id", videoID, "error", serr)
			}
		}
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug("Metadata lookup shared", "video_id", videoID)
	}
	meta := v.(video.Metadata)
	return &meta, nil
}
