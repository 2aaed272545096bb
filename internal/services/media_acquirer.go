package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type MediaAcquirer interface {
	Validate(reference string) bool
	ExtractIdentifier(reference string) (string, bool)
	ResolveMetadata(ctx context.Context, reference string) (video.Metadata, error)
	// FetchAudio names the artifact after videoID, the identifier resolved
	// from metadata, not after anything parsed from reference.
	FetchAudio(ctx context.Context, reference, videoID string) (*video.AudioArtifact, error)
	// Release removes the artifact's file. Safe to call more than once.
	Release(artifact *video.AudioArtifact)
}

type mediaAcquirer struct {
	log        *logger.Logger
	metadata   MediaMetadataProvider
	downloader MediaDownloadProvider
	scratchDir string
}

func NewMediaAcquirer(
	baseLog *logger.Logger,
	metadata MediaMetadataProvider,
	downloader MediaDownloadProvider,
	scratchDir string,
) (MediaAcquirer, error) {
	if metadata == nil || downloader == nil {
		return nil, fmt.Errorf("media acquirer requires metadata and download providers")
	}
	if strings.TrimSpace(scratchDir) == "" {
		return nil, fmt.Errorf("media acquirer requires a scratch directory")
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &mediaAcquirer{
		log:        baseLog.With("service", "MediaAcquirer"),
		metadata:   metadata,
		downloader: downloader,
		scratchDir: scratchDir,
	}, nil
}

func (m *mediaAcquirer) Validate(reference string) bool {
	return video.IsValidReference(strings.TrimSpace(reference))
}

func (m *mediaAcquirer) ExtractIdentifier(reference string) (string, bool) {
	return video.IdentifierFromReference(strings.TrimSpace(reference))
}

func (m *mediaAcquirer) ResolveMetadata(ctx context.Context, reference string) (video.Metadata, error) {
	raw, err := m.metadata.Resolve(ctx, strings.TrimSpace(reference))
	if err != nil {
		return video.Metadata{}, classify(video.KindMetadataFetch, "resolve metadata", err)
	}
	if strings.TrimSpace(raw.VideoID) == "" {
		return video.Metadata{}, video.Errorf(video.KindMetadataFetch, "metadata for %q has no video id", reference)
	}
	if !video.IsValidKey(raw.VideoID) {
		return video.Metadata{}, video.Errorf(video.KindMetadataFetch, "metadata video id %q is not a usable key", raw.VideoID)
	}
	return metadataFromRaw(raw), nil
}

func (m *mediaAcquirer) FetchAudio(ctx context.Context, reference, videoID string) (*video.AudioArtifact, error) {
	reference = strings.TrimSpace(reference)
	if !video.IsValidKey(videoID) {
		return nil, video.Errorf(video.KindDownload, "no usable video id for %q", reference)
	}

	stem := filepath.Join(m.scratchDir, videoID+"."+uuid.New().String())
	path, err := m.downloader.FetchBestAudio(ctx, reference, stem)
	if err != nil {
		m.removeStrays(stem)
		return nil, classify(video.KindDownload, "fetch audio", err)
	}

	info, statErr := os.Stat(path)
	if statErr != nil || info.IsDir() {
		m.removeStrays(stem)
		return nil, video.Errorf(video.KindDownload, "download reported %q but no file exists", path)
	}

	m.log.Debug("Audio fetched", "video_id", videoID, "path", path, "bytes", info.Size())
	return &video.AudioArtifact{LocalPath: path, SourceIdentifier: videoID}, nil
}

func (m *mediaAcquirer) Release(artifact *video.AudioArtifact) {
	if artifact == nil || artifact.LocalPath == "" {
		return
	}
	err := os.Remove(artifact.LocalPath)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}
	m.log.Warn("Failed to remove audio artifact", "path", artifact.LocalPath, "error", err)
}

// removeStrays deletes partial downloads (.part, .ytdl) left next to stem.
func (m *mediaAcquirer) removeStrays(stem string) {
	matches, err := filepath.Glob(stem + ".*")
	if err != nil {
		return
	}
	for _, p := range matches {
		if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			m.log.Warn("Failed to remove partial download", "path", p, "error", rmErr)
		}
	}
}

func metadataFromRaw(raw video.RawMetadata) video.Metadata {
	meta := video.Metadata{
		VideoID:      raw.VideoID,
		Title:        orUnavailable(raw.Title),
		Description:  orUnavailable(raw.Description),
		Author:       orUnavailable(raw.Author),
		PublishDate:  orUnavailable(raw.PublishDate),
		ThumbnailURL: orUnavailable(raw.ThumbnailURL),
	}
	if raw.DurationSeconds != nil {
		meta.DurationSeconds = video.IntOf(*raw.DurationSeconds)
	}
	if raw.ViewCount != nil {
		meta.ViewCount = video.IntOf(*raw.ViewCount)
	}
	return meta
}

func orUnavailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return video.Unavailable
	}
	return s
}

// classify keeps a kind the provider already assigned and falls back to kind.
func classify(kind video.Kind, op string, err error) error {
	if k := video.KindOf(err); k != "" {
		return video.E(k, op, err)
	}
	return video.E(kind, op, err)
}
