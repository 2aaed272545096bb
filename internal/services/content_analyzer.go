package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/videoinsight-backend/internal/data/repos"
	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/observability"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
	"github.com/yungbote/videoinsight-backend/internal/platform/promptstyle"
)

type ContentAnalyzer interface {
	// Analyze never fails on unparseable model output; that degrades to an
	// unstructured record. The record is returned even when persisting it fails.
	Analyze(ctx context.Context, transcript *video.Transcript, meta video.Metadata) (*video.AnalysisRecord, error)
	Load(ctx context.Context, videoID string) (*video.AnalysisRecord, error)
}

type contentAnalyzer struct {
	log     *logger.Logger
	llm     LanguageModelProvider
	repo    repos.AnalysisRepo
	metrics *observability.Metrics
	nowFn   func() time.Time
}

func NewContentAnalyzer(
	baseLog *logger.Logger,
	llm LanguageModelProvider,
	repo repos.AnalysisRepo,
	metrics *observability.Metrics,
) (ContentAnalyzer, error) {
	if llm == nil || repo == nil {
		return nil, fmt.Errorf("content analyzer requires a language model and an analysis repo")
	}
	return &contentAnalyzer{
		log:     baseLog.With("service", "ContentAnalyzer"),
		llm:     llm,
		repo:    repo,
		metrics: metrics,
		nowFn:   time.Now,
	}, nil
}

func (a *contentAnalyzer) Analyze(ctx context.Context, transcript *video.Transcript, meta video.Metadata) (*video.AnalysisRecord, error) {
	if transcript == nil {
		return nil, video.Errorf(video.KindAnalysis, "no transcript to analyze")
	}
	if !video.IsValidKey(meta.VideoID) {
		return nil, video.Errorf(video.KindAnalysis, "metadata has no usable video id")
	}

	start := time.Now()
	raw, err := a.llm.Complete(ctx, CompletionRequest{
		System:      promptstyle.ApplySystem(analysisSystemPrompt, promptstyle.FormatJSON),
		User:        analysisPrompt(transcript, meta),
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
	})
	a.metrics.ObserveLLM("analysis", llmStatus(err), time.Since(start))
	if err != nil {
		return nil, classify(video.KindAnalysis, "analyze transcript", err)
	}

	payload := video.ParsePayload(raw)
	if payload.Format() == video.FormatUnstructured {
		a.log.Warn("Model output was not a JSON object; storing raw text", "video_id", meta.VideoID, "chars", len(raw))
	}
	rec := &video.AnalysisRecord{
		VideoID:   meta.VideoID,
		Analysis:  payload.Collapse(),
		Format:    payload.Format(),
		CreatedAt: a.nowFn().UTC(),
		Metadata:  meta,
	}
	if err := a.repo.Save(ctx, rec); err != nil {
		return rec, video.E(video.KindPersistence, "save analysis", err)
	}
	a.log.Info("Analysis saved", "video_id", rec.VideoID, "format", rec.Format)
	return rec, nil
}

func (a *contentAnalyzer) Load(ctx context.Context, videoID string) (*video.AnalysisRecord, error) {
	return a.repo.Get(ctx, videoID)
}

func llmStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
