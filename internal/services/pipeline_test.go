package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
)

func TestProcessHappyPath(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.Process(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, testVideoID, res.VideoID)
	assert.Equal(t, "Go in 200 seconds", res.Title)
	assert.Equal(t, video.FormatStructured, res.SummaryStatus)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []Stage{
		StageReceived, StageValidated, StageMetadataResolved, StageAudioFetched,
		StageTranscribed, StageAnalyzed, StageCleaned, StageCompleted,
	}, res.Run.Stages())

	assert.Empty(t, listDir(t, h.dirs.scratch), "scratch audio must be removed")
	assert.Equal(t, []string{testVideoID + ".json"}, listDir(t, h.dirs.transcripts))

	rec, err := h.analyses.Get(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.Equal(t, "A quick tour of Go.", rec.Analysis.Summary)
	assert.Equal(t, []string{"go", "concurrency"}, rec.Analysis.Topics)
	assert.Equal(t, testVideoID, rec.Metadata.VideoID)
	assert.Equal(t, video.Unavailable, rec.Metadata.Description)
	assert.False(t, rec.Metadata.ViewCount.Known)

	tr, err := h.transcripts.Get(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.Equal(t, "Hello gophers.", tr.Text)
	require.Len(t, h.stt.filenames, 1)

	require.Equal(t, 1, h.llm.calls())
	req := h.llm.reqs[0]
	assert.Equal(t, analysisMaxTokens, req.MaxTokens)
	assert.InDelta(t, analysisTemperature, req.Temperature, 1e-9)
	assert.Contains(t, req.User, "Hello gophers.")
	assert.Contains(t, req.User, "Go in 200 seconds")
}

func TestProcessRejectsInvalidReference(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.Process(context.Background(), "https://vimeo.com/12345678901")
	require.Error(t, err)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageValidated, se.Stage)
	assert.True(t, video.IsKind(err, video.KindValidation))
	assert.Equal(t, []Stage{StageReceived, StageFailed}, res.Run.Stages())
	assert.Zero(t, h.meta.calls())
}

func TestProcessDownloadFailureLeavesNoRecords(t *testing.T) {
	h := newHarness(t)
	h.dl.err = errors.New("connection reset by peer")

	res, err := h.pipeline.Process(context.Background(), testURL)
	require.Error(t, err)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageAudioFetched, se.Stage)
	assert.True(t, video.IsKind(err, video.KindDownload))
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Equal(t, StageFailed, res.Run.Current())

	assert.Empty(t, listDir(t, h.dirs.transcripts))
	assert.Empty(t, listDir(t, h.dirs.analysis))
	assert.Empty(t, listDir(t, h.dirs.scratch))
	assert.Zero(t, h.llm.calls())
}

func TestProcessNoAudioStreamKeepsKind(t *testing.T) {
	h := newHarness(t)
	h.dl.err = video.Errorf(video.KindNoAudioStream, "no audio-only stream")

	_, err := h.pipeline.Process(context.Background(), testURL)
	require.Error(t, err)
	assert.True(t, video.IsKind(err, video.KindNoAudioStream))
}

func TestProcessTranscriptionFailureReleasesAudio(t *testing.T) {
	h := newHarness(t)
	h.stt.err = errors.New("quota exceeded")

	_, err := h.pipeline.Process(context.Background(), testURL)
	require.Error(t, err)
	assert.True(t, video.IsKind(err, video.KindTranscription))
	assert.Empty(t, listDir(t, h.dirs.scratch))
	assert.Empty(t, listDir(t, h.dirs.analysis))
}

func TestProcessUnparseableOutputDegrades(t *testing.T) {
	h := newHarness(t)
	h.llm.out = "I could not produce JSON, but the video is about Go."

	res, err := h.pipeline.Process(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, video.FormatUnstructured, res.SummaryStatus)

	rec, err := h.analyses.Get(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.Equal(t, h.llm.out, rec.Analysis.Summary)
	assert.Empty(t, rec.Analysis.Topics)
	assert.Empty(t, rec.Analysis.KeyPoints)
	assert.Empty(t, rec.Analysis.Entities)
	assert.JSONEq(t, `[]`, string(rec.Analysis.Timeline))
}

func TestProcessAnalysisProviderFailure(t *testing.T) {
	h := newHarness(t)
	h.llm.err = errors.New("upstream 500")

	_, err := h.pipeline.Process(context.Background(), testURL)
	require.Error(t, err)
	assert.True(t, video.IsKind(err, video.KindAnalysis))
	assert.Empty(t, listDir(t, h.dirs.analysis))
	assert.Empty(t, listDir(t, h.dirs.scratch))
}

func TestProcessTranscriptWriteFailureIsWarning(t *testing.T) {
	h := newHarnessWith(t, failingTranscriptRepo{}, nil)

	res, err := h.pipeline.Process(context.Background(), testURL)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "disk full")

	ok, err := h.analyses.Exists(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcessAnalysisWriteFailureIsReported(t *testing.T) {
	h := newHarnessWith(t, nil, failingAnalysisRepo{})

	res, err := h.pipeline.Process(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, video.FormatNotPersisted, res.SummaryStatus)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "read-only file system")
	assert.Equal(t, StageCompleted, res.Run.Current())
	assert.Empty(t, listDir(t, h.dirs.analysis))
	assert.Empty(t, listDir(t, h.dirs.scratch))

	_, err = h.pipeline.Query(context.Background(), testVideoID, "What is this about?")
	assert.True(t, video.IsKind(err, video.KindNotFound))
	assert.Equal(t, 1, h.llm.calls())
}

func TestAnalyzeReturnsRecordWhenWriteFails(t *testing.T) {
	h := newHarnessWith(t, nil, failingAnalysisRepo{})
	meta := metadataFromRaw(sampleRaw())

	rec, err := h.analyzer.Analyze(context.Background(), &video.Transcript{Text: "Hello gophers."}, meta)
	require.Error(t, err)
	assert.True(t, video.IsKind(err, video.KindPersistence))
	require.NotNil(t, rec)
	assert.Equal(t, testVideoID, rec.VideoID)
	assert.Equal(t, "A quick tour of Go.", rec.Analysis.Summary)
}

func TestProcessNamesArtifactFromResolvedID(t *testing.T) {
	h := newHarness(t)
	ref := "https://www.youtube.com/shorts/" + testVideoID
	require.True(t, h.acquirer.Validate(ref))

	res, err := h.pipeline.Process(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, testVideoID, res.Run.VideoID)
	assert.Equal(t, StageCompleted, res.Run.Current())
	assert.Equal(t, 1, h.meta.calls())
	assert.Equal(t, []string{testVideoID + ".json"}, listDir(t, h.dirs.transcripts))
	assert.Empty(t, listDir(t, h.dirs.scratch))
}

func TestProcessRunIDComesFromMetadata(t *testing.T) {
	h := newHarness(t)
	h.meta.err = errors.New("HTTP 429")

	res, err := h.pipeline.Process(context.Background(), testURL)
	require.Error(t, err)
	assert.True(t, video.IsKind(err, video.KindMetadataFetch))
	assert.Empty(t, res.Run.VideoID)
}

func TestProcessMetadataWithoutIDFails(t *testing.T) {
	h := newHarness(t)
	h.meta.raw = video.RawMetadata{Title: "orphan"}

	_, err := h.pipeline.Process(context.Background(), testURL)
	require.Error(t, err)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageMetadataResolved, se.Stage)
	assert.True(t, video.IsKind(err, video.KindMetadataFetch))
}

func TestQueryMissingRecordSkipsModel(t *testing.T) {
	h := newHarness(t)

	_, err := h.pipeline.Query(context.Background(), testVideoID, "What is this about?")
	require.Error(t, err)
	assert.True(t, video.IsKind(err, video.KindNotFound))
	assert.Contains(t, err.Error(), "not found for video ID: "+testVideoID)
	assert.Zero(t, h.llm.calls())
}

func TestQueryAnswersFromRecord(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.Process(context.Background(), testURL)
	require.NoError(t, err)

	h.llm.out = " It is a tour of Go. "
	res, err := h.pipeline.Query(context.Background(), testVideoID, "What is this about?")
	require.NoError(t, err)
	assert.Equal(t, "It is a tour of Go.", res.Response)
	assert.Equal(t, testVideoID, res.VideoID)

	require.Equal(t, 2, h.llm.calls())
	req := h.llm.reqs[1]
	assert.Equal(t, querySystemPrompt, req.System)
	assert.Equal(t, queryMaxTokens, req.MaxTokens)
	assert.InDelta(t, queryTemperature, req.Temperature, 1e-9)
	assert.Contains(t, req.User, "What is this about?")
	assert.Contains(t, req.User, "Title: Go in 200 seconds")
	assert.Contains(t, req.User, "Summary: A quick tour of Go.")
	assert.Contains(t, req.User, "goroutines are cheap")
}

func TestQueryValidatesInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.pipeline.Query(context.Background(), "", "q")
	assert.True(t, video.IsKind(err, video.KindValidation))
	_, err = h.pipeline.Query(context.Background(), testVideoID, "  ")
	assert.True(t, video.IsKind(err, video.KindValidation))
	_, err = h.pipeline.Query(context.Background(), "../etc", "q")
	assert.True(t, video.IsKind(err, video.KindValidation))
	assert.Zero(t, h.llm.calls())
}

func TestQueryProviderFailure(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.Process(context.Background(), testURL)
	require.NoError(t, err)

	h.llm.err = errors.New("rate limited")
	_, err = h.pipeline.Query(context.Background(), testVideoID, "why?")
	require.Error(t, err)
	assert.True(t, video.IsKind(err, video.KindQuery))
}

func TestTranscriptKey(t *testing.T) {
	assert.Equal(t, testVideoID, TranscriptKey(filepath.Join("temp", testVideoID+".3f2a.m4a")))
	assert.Equal(t, "plain", TranscriptKey("plain"))
}
