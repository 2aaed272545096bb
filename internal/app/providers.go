package app

import (
	"context"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/gcp"
	"github.com/yungbote/videoinsight-backend/internal/platform/openai"
	"github.com/yungbote/videoinsight-backend/internal/services"
)

// openAILanguageModel serves completions through the Responses API.
type openAILanguageModel struct {
	client openai.Client
}

func (m openAILanguageModel) Complete(ctx context.Context, req services.CompletionRequest) (string, error) {
	temp := req.Temperature
	return m.client.GenerateText(ctx, req.System, req.User, openai.TextOptions{
		MaxOutputTokens: req.MaxTokens,
		Temperature:     &temp,
	})
}

type openAISpeechToText struct {
	client openai.Client
}

func (s openAISpeechToText) Transcribe(ctx context.Context, audio []byte, filename string) (services.SpeechResult, error) {
	tr, err := s.client.TranscribeAudio(ctx, audio, filename)
	if err != nil {
		return services.SpeechResult{}, err
	}
	segs := make([]video.Segment, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		segs = append(segs, video.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return services.SpeechResult{Text: tr.Text, Segments: segs}, nil
}

type gcpSpeechToText struct {
	speech gcp.Speech
}

func (s gcpSpeechToText) Transcribe(ctx context.Context, audio []byte, filename string) (services.SpeechResult, error) {
	res, err := s.speech.Transcribe(ctx, audio, filename)
	if err != nil {
		return services.SpeechResult{}, err
	}
	return services.SpeechResult{Text: res.Text, Segments: res.Segments}, nil
}

var (
	_ services.LanguageModelProvider = openAILanguageModel{}
	_ services.SpeechToTextProvider  = openAISpeechToText{}
	_ services.SpeechToTextProvider  = gcpSpeechToText{}
)
