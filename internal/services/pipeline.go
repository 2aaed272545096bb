package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/observability"
	"github.com/yungbote/videoinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type Stage string

const (
	StageReceived         Stage = "received"
	StageValidated        Stage = "validated"
	StageMetadataResolved Stage = "metadata_resolved"
	StageAudioFetched     Stage = "audio_fetched"
	StageTranscribed      Stage = "transcribed"
	StageAnalyzed         Stage = "analyzed"
	StageCleaned          Stage = "cleaned"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// StageError reports the stage a run could not reach and why.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stopped before %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Transition struct {
	Stage Stage
	At    time.Time
}

// Run is the state of one process request.
type Run struct {
	VideoID  string
	History  []Transition
	Warnings []string
}

func (r *Run) advance(s Stage) {
	r.History = append(r.History, Transition{Stage: s, At: time.Now().UTC()})
}

func (r *Run) Current() Stage {
	if len(r.History) == 0 {
		return ""
	}
	return r.History[len(r.History)-1].Stage
}

func (r *Run) Stages() []Stage {
	out := make([]Stage, 0, len(r.History))
	for _, t := range r.History {
		out = append(out, t.Stage)
	}
	return out
}

type ProcessResult struct {
	VideoID       string
	Title         string
	SummaryStatus video.AnalysisFormat
	Warnings      []string
	Run           *Run
}

type QueryResult struct {
	VideoID  string
	Response string
}

// StageTimeouts bound each network stage. Zero means no bound.
type StageTimeouts struct {
	Metadata   time.Duration
	Download   time.Duration
	Transcribe time.Duration
	Completion time.Duration
}

type PipelineService interface {
	// Process runs a reference through every stage. The result carries the run
	// history even when err is non-nil.
	Process(ctx context.Context, reference string) (*ProcessResult, error)
	Query(ctx context.Context, videoID, question string) (*QueryResult, error)
}

type pipelineService struct {
	log         *logger.Logger
	acquirer    MediaAcquirer
	transcriber Transcriber
	analyzer    ContentAnalyzer
	queries     QueryEngine
	metrics     *observability.Metrics
	timeouts    StageTimeouts
}

func NewPipelineService(
	baseLog *logger.Logger,
	acquirer MediaAcquirer,
	transcriber Transcriber,
	analyzer ContentAnalyzer,
	queries QueryEngine,
	metrics *observability.Metrics,
	timeouts StageTimeouts,
) PipelineService {
	return &pipelineService{
		log:         baseLog.With("service", "PipelineService"),
		acquirer:    acquirer,
		transcriber: transcriber,
		analyzer:    analyzer,
		queries:     queries,
		metrics:     metrics,
		timeouts:    timeouts,
	}
}

func (p *pipelineService) Process(ctx context.Context, reference string) (*ProcessResult, error) {
	reference = strings.TrimSpace(reference)
	run := &Run{}
	run.advance(StageReceived)
	res := &ProcessResult{Run: run}

	fail := func(stage Stage, cause error) (*ProcessResult, error) {
		run.advance(StageFailed)
		p.log.Error("Pipeline failed", "video_id", run.VideoID, "stage", stage, "kind", video.KindOf(cause), "error", cause)
		return res, &StageError{Stage: stage, Err: cause}
	}

	if !p.acquirer.Validate(reference) {
		return fail(StageValidated, video.Errorf(video.KindValidation, "invalid YouTube URL"))
	}
	run.advance(StageValidated)

	var meta video.Metadata
	if err := p.stage(ctx, run, StageMetadataResolved, p.timeouts.Metadata, func(sctx context.Context) error {
		var rerr error
		meta, rerr = p.acquirer.ResolveMetadata(sctx, reference)
		return rerr
	}); err != nil {
		return fail(StageMetadataResolved, err)
	}
	run.VideoID = meta.VideoID
	res.VideoID = meta.VideoID
	res.Title = meta.Title

	var artifact *video.AudioArtifact
	defer func() {
		if artifact != nil {
			p.acquirer.Release(artifact)
		}
	}()
	if err := p.stage(ctx, run, StageAudioFetched, p.timeouts.Download, func(sctx context.Context) error {
		var ferr error
		artifact, ferr = p.acquirer.FetchAudio(sctx, reference, meta.VideoID)
		return ferr
	}); err != nil {
		return fail(StageAudioFetched, err)
	}

	var transcript *video.Transcript
	if err := p.stage(ctx, run, StageTranscribed, p.timeouts.Transcribe, func(sctx context.Context) error {
		var terr error
		transcript, terr = p.transcriber.Transcribe(sctx, artifact)
		return p.softPersistence(run, transcript != nil, terr)
	}); err != nil {
		return fail(StageTranscribed, err)
	}

	var rec *video.AnalysisRecord
	stored := false
	if err := p.stage(ctx, run, StageAnalyzed, p.timeouts.Completion, func(sctx context.Context) error {
		var aerr error
		rec, aerr = p.analyzer.Analyze(sctx, transcript, meta)
		stored = aerr == nil
		return p.softPersistence(run, rec != nil, aerr)
	}); err != nil {
		return fail(StageAnalyzed, err)
	}

	p.acquirer.Release(artifact)
	artifact = nil
	run.advance(StageCleaned)

	res.SummaryStatus = rec.Format
	if !stored {
		// A later query has nothing to load.
		res.SummaryStatus = video.FormatNotPersisted
	}
	res.Warnings = run.Warnings
	run.advance(StageCompleted)
	p.log.Info("Pipeline completed", "video_id", run.VideoID, "format", rec.Format, "warnings", len(run.Warnings))
	return res, nil
}

func (p *pipelineService) Query(ctx context.Context, videoID, question string) (*QueryResult, error) {
	videoID = strings.TrimSpace(videoID)
	question = strings.TrimSpace(question)
	if videoID == "" || question == "" {
		return nil, video.Errorf(video.KindValidation, "video_id and query are required")
	}
	if !video.IsValidKey(videoID) {
		return nil, video.Errorf(video.KindValidation, "invalid video_id %q", videoID)
	}

	rec, err := p.analyzer.Load(ctx, videoID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := ctxutil.Stage(ctx, p.timeouts.Completion)
	defer cancel()
	sctx, span := observability.StartSpan(sctx, "pipeline.query", attribute.String("video_id", videoID))
	answer, err := p.queries.Answer(sctx, question, rec)
	observability.EndSpan(span, err)
	if err != nil {
		p.log.Error("Query failed", "video_id", videoID, "kind", video.KindOf(err), "error", err)
		return nil, err
	}
	return &QueryResult{VideoID: videoID, Response: answer}, nil
}

// stage runs fn on a context detached from request cancellation and bounded
// by timeout, then records the transition on success.
func (p *pipelineService) stage(ctx context.Context, run *Run, target Stage, timeout time.Duration, fn func(context.Context) error) error {
	sctx, cancel := ctxutil.Stage(ctx, timeout)
	defer cancel()
	sctx, span := observability.StartSpan(sctx, "pipeline."+string(target), attribute.String("video_id", run.VideoID))

	start := time.Now()
	err := fn(sctx)
	dur := time.Since(start)
	observability.EndSpan(span, err)
	p.metrics.ObserveStage(string(target), stageStatus(err), dur)

	if err != nil {
		return err
	}
	run.advance(target)
	p.log.Info("Stage completed", "video_id", run.VideoID, "stage", target, "duration_ms", dur.Milliseconds())
	return nil
}

// softPersistence turns a failed write into a run warning when the stage
// still produced its value.
func (p *pipelineService) softPersistence(run *Run, produced bool, err error) error {
	if err == nil {
		return nil
	}
	if produced && video.IsKind(err, video.KindPersistence) {
		p.log.Warn("Record not persisted; continuing", "video_id", run.VideoID, "error", err)
		run.Warnings = append(run.Warnings, err.Error())
		return nil
	}
	return err
}

func stageStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case video.IsKind(err, video.KindTimeout):
		return "timeout"
	default:
		return "error"
	}
}
