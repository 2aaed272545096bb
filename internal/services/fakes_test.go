package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/videoinsight-backend/internal/data/repos"
	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

const (
	testVideoID = "abc12345678"
	testURL     = "https://www.youtube.com/watch?v=" + testVideoID
)

type fakeMetadata struct {
	mu    sync.Mutex
	raw   video.RawMetadata
	err   error
	refs  []string
	delay time.Duration
}

func (f *fakeMetadata) Resolve(ctx context.Context, reference string) (video.RawMetadata, error) {
	f.mu.Lock()
	f.refs = append(f.refs, reference)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.raw, f.err
}

func (f *fakeMetadata) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refs)
}

type fakeDownloader struct {
	err       error
	skipWrite bool
	ext       string
}

func (f *fakeDownloader) FetchBestAudio(ctx context.Context, reference, outputStem string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	ext := f.ext
	if ext == "" {
		ext = ".m4a"
	}
	path := outputStem + ext
	if !f.skipWrite {
		if err := os.WriteFile(path, []byte("fake audio"), 0o644); err != nil {
			return "", err
		}
	}
	return path, nil
}

type fakeSTT struct {
	res       SpeechResult
	err       error
	filenames []string
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, filename string) (SpeechResult, error) {
	f.filenames = append(f.filenames, filename)
	return f.res, f.err
}

type fakeLLM struct {
	mu   sync.Mutex
	out  string
	err  error
	reqs []CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type failingTranscriptRepo struct{}

func (failingTranscriptRepo) Save(ctx context.Context, key string, t *video.Transcript) error {
	return video.Errorf(video.KindPersistence, "disk full")
}

func (failingTranscriptRepo) Get(ctx context.Context, key string) (*video.Transcript, error) {
	return nil, video.Errorf(video.KindNotFound, "missing")
}

func (failingTranscriptRepo) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

type failingAnalysisRepo struct{}

func (failingAnalysisRepo) Save(ctx context.Context, rec *video.AnalysisRecord) error {
	return video.Errorf(video.KindPersistence, "read-only file system")
}

func (failingAnalysisRepo) Get(ctx context.Context, videoID string) (*video.AnalysisRecord, error) {
	return nil, video.Errorf(video.KindNotFound, "analysis not found for video ID: %s", videoID)
}

func (failingAnalysisRepo) Exists(ctx context.Context, videoID string) (bool, error) {
	return false, nil
}

func sampleRaw() video.RawMetadata {
	length := int64(212)
	return video.RawMetadata{
		VideoID:         testVideoID,
		Title:           "Go in 200 seconds",
		Author:          "Gopher",
		DurationSeconds: &length,
	}
}

const structuredOutput = "```json\n" + `{"summary":"A quick tour of Go.","topics":["go","concurrency"],"key_points":["goroutines are cheap"],"timeline":[{"time":"00:00","topic":"intro"}],"entities":["Go team"]}` + "\n```"

type harness struct {
	dirs        struct{ transcripts, analysis, scratch string }
	meta        *fakeMetadata
	dl          *fakeDownloader
	stt         *fakeSTT
	llm         *fakeLLM
	transcripts repos.TranscriptRepo
	analyses    repos.AnalysisRepo
	acquirer    MediaAcquirer
	analyzer    ContentAnalyzer
	pipeline    PipelineService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil, nil)
}

// newHarnessWith swaps in the given repos; nil means a store under t.TempDir.
func newHarnessWith(t *testing.T, transcripts repos.TranscriptRepo, analyses repos.AnalysisRepo) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		meta: &fakeMetadata{raw: sampleRaw()},
		dl:   &fakeDownloader{},
		stt: &fakeSTT{res: SpeechResult{
			Text:     " Hello gophers. ",
			Segments: []video.Segment{{Start: 0, End: 2.5, Text: "Hello gophers."}},
		}},
		llm: &fakeLLM{out: structuredOutput},
	}
	h.dirs.transcripts = filepath.Join(root, "transcripts")
	h.dirs.analysis = filepath.Join(root, "analysis")
	h.dirs.scratch = filepath.Join(root, "temp")

	log := logger.NewNop()
	var err error
	if transcripts == nil {
		transcripts, err = repos.NewTranscriptRepo(h.dirs.transcripts, log, nil)
		require.NoError(t, err)
	}
	h.transcripts = transcripts
	if analyses == nil {
		analyses, err = repos.NewAnalysisRepo(h.dirs.analysis, log, nil)
		require.NoError(t, err)
	}
	h.analyses = analyses

	h.acquirer, err = NewMediaAcquirer(log, h.meta, h.dl, h.dirs.scratch)
	require.NoError(t, err)
	tr, err := NewTranscriber(log, h.stt, h.transcripts)
	require.NoError(t, err)
	h.analyzer, err = NewContentAnalyzer(log, h.llm, h.analyses, nil)
	require.NoError(t, err)
	qe, err := NewQueryEngine(log, h.llm, nil)
	require.NoError(t, err)
	h.pipeline = NewPipelineService(log, h.acquirer, tr, h.analyzer, qe, nil, StageTimeouts{
		Metadata:   5 * time.Second,
		Download:   5 * time.Second,
		Transcribe: 5 * time.Second,
		Completion: 5 * time.Second,
	})
	return h
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
