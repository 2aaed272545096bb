package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/observability"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type QueryEngine interface {
	Answer(ctx context.Context, question string, rec *video.AnalysisRecord) (string, error)
}

type queryEngine struct {
	log     *logger.Logger
	llm     LanguageModelProvider
	metrics *observability.Metrics
}

func NewQueryEngine(baseLog *logger.Logger, llm LanguageModelProvider, metrics *observability.Metrics) (QueryEngine, error) {
	if llm == nil {
		return nil, fmt.Errorf("query engine requires a language model")
	}
	return &queryEngine{
		log:     baseLog.With("service", "QueryEngine"),
		llm:     llm,
		metrics: metrics,
	}, nil
}

func (q *queryEngine) Answer(ctx context.Context, question string, rec *video.AnalysisRecord) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", video.Errorf(video.KindValidation, "question is required")
	}
	if rec == nil {
		return "", video.Errorf(video.KindQuery, "no analysis record")
	}

	start := time.Now()
	answer, err := q.llm.Complete(ctx, CompletionRequest{
		System:      querySystemPrompt,
		User:        queryPrompt(question, rec),
		MaxTokens:   queryMaxTokens,
		Temperature: queryTemperature,
	})
	q.metrics.ObserveLLM("query", llmStatus(err), time.Since(start))
	if err != nil {
		return "", classify(video.KindQuery, "answer query", err)
	}
	q.log.Debug("Query answered", "video_id", rec.VideoID, "chars", len(answer))
	return strings.TrimSpace(answer), nil
}
