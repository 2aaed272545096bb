package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/gcp"
	"github.com/yungbote/videoinsight-backend/internal/platform/openai"
	"github.com/yungbote/videoinsight-backend/internal/services"
)

type stubOpenAI struct {
	system, user string
	opts         openai.TextOptions
	text         string
	tr           openai.Transcription
	err          error
}

func (s *stubOpenAI) GenerateText(ctx context.Context, system, user string, opts openai.TextOptions) (string, error) {
	s.system, s.user, s.opts = system, user, opts
	return s.text, s.err
}

func (s *stubOpenAI) TranscribeAudio(ctx context.Context, audio []byte, filename string) (openai.Transcription, error) {
	return s.tr, s.err
}

type stubSpeech struct {
	res *gcp.SpeechResult
	err error
}

func (s stubSpeech) Transcribe(ctx context.Context, audio []byte, filename string) (*gcp.SpeechResult, error) {
	return s.res, s.err
}

func (s stubSpeech) Close() error { return nil }

func TestOpenAILanguageModelPassesOptions(t *testing.T) {
	c := &stubOpenAI{text: "answer"}
	out, err := openAILanguageModel{client: c}.Complete(context.Background(), services.CompletionRequest{
		System: "sys", User: "usr", MaxTokens: 800, Temperature: 0.4,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "answer" || c.system != "sys" || c.user != "usr" {
		t.Fatalf("unexpected call: out=%q system=%q user=%q", out, c.system, c.user)
	}
	if c.opts.MaxOutputTokens != 800 || c.opts.Temperature == nil || *c.opts.Temperature != 0.4 {
		t.Fatalf("unexpected options: %+v", c.opts)
	}
}

func TestOpenAISpeechToTextMapsSegments(t *testing.T) {
	c := &stubOpenAI{tr: openai.Transcription{
		Text:     "hi there",
		Segments: []openai.TranscriptionSegment{{Start: 0, End: 1.5, Text: "hi there"}},
	}}
	res, err := openAISpeechToText{client: c}.Transcribe(context.Background(), []byte("x"), "a.m4a")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hi there" || len(res.Segments) != 1 || res.Segments[0] != (video.Segment{Start: 0, End: 1.5, Text: "hi there"}) {
		t.Fatalf("unexpected result: %+v", res)
	}

	c.err = errors.New("boom")
	if _, err := (openAISpeechToText{client: c}).Transcribe(context.Background(), []byte("x"), "a.m4a"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGCPSpeechToText(t *testing.T) {
	s := stubSpeech{res: &gcp.SpeechResult{Text: "t", Segments: []video.Segment{{Start: 1, End: 2, Text: "t"}}}}
	res, err := gcpSpeechToText{speech: s}.Transcribe(context.Background(), []byte("x"), "a.webm")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "t" || len(res.Segments) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
