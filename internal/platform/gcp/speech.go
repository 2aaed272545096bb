package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/dhowden/tag"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

// Inline audio content is capped by the API; larger files need a gs:// URI.
const inlineAudioLimit = 10 << 20

type Speech interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*SpeechResult, error)
	Close() error
}

type SpeechConfig struct {
	LanguageCode string
	Model        string
	// SegmentWindowSec groups word offsets into segments of this length.
	SegmentWindowSec float64
	SampleRateHertz  int
	Credentials      string
}

type SpeechResult struct {
	SourceURI string
	Text      string
	Segments  []video.Segment
}

// audioStager is the part of BucketService speech needs for long audio.
type audioStager interface {
	UploadFile(ctx context.Context, key string, file io.Reader) error
	DeleteFile(ctx context.Context, key string) error
	ObjectURI(key string) string
}

type recognizer interface {
	LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

type apiRecognizer struct {
	client *speech.Client
}

func (r *apiRecognizer) LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := r.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (r *apiRecognizer) Close() error { return r.client.Close() }

type speechService struct {
	log        *logger.Logger
	rec        recognizer
	staging    audioStager
	cfg        SpeechConfig
	maxRetries int
	backoff    time.Duration
}

// NewSpeech connects to Cloud Speech. staging may be nil, in which case audio
// is always sent inline.
func NewSpeech(log *logger.Logger, cfg SpeechConfig, staging BucketService) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(context.Background(), ClientOptions(cfg.Credentials)...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	var st audioStager
	if staging != nil {
		st = staging
	}
	return newSpeechService(log, &apiRecognizer{client: c}, st, cfg), nil
}

func newSpeechService(log *logger.Logger, rec recognizer, staging audioStager, cfg SpeechConfig) *speechService {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SegmentWindowSec <= 0 {
		cfg.SegmentWindowSec = 10
	}
	return &speechService{
		log:        log.With("service", "gcp.Speech"),
		rec:        rec,
		staging:    staging,
		cfg:        cfg,
		maxRetries: 4,
		backoff:    750 * time.Millisecond,
	}
}

func (s *speechService) Close() error {
	if s == nil || s.rec == nil {
		return nil
	}
	return s.rec.Close()
}

func (s *speechService) Transcribe(ctx context.Context, audio []byte, filename string) (*SpeechResult, error) {
	ctx = ctxutil.Default(ctx)
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	enc, defaultRate := detectEncoding(audio, filename)
	if enc == speechpb.RecognitionConfig_ENCODING_UNSPECIFIED {
		return nil, fmt.Errorf("audio container of %q is not supported by cloud speech", filepath.Base(filename))
	}

	rcfg := &speechpb.RecognitionConfig{
		LanguageCode:               s.cfg.LanguageCode,
		Model:                      s.cfg.Model,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		Encoding:                   enc,
		SampleRateHertz:            int32(firstPositive(s.cfg.SampleRateHertz, defaultRate)),
	}
	req := &speechpb.LongRunningRecognizeRequest{Config: rcfg}

	sourceURI := ""
	switch {
	case s.staging != nil:
		key := "stt-staging/" + filepath.Base(filename)
		if err := s.staging.UploadFile(ctx, key, bytes.NewReader(audio)); err != nil {
			return nil, fmt.Errorf("stage audio: %w", err)
		}
		defer func() {
			if err := s.staging.DeleteFile(context.WithoutCancel(ctx), key); err != nil {
				s.log.Warn("Failed to delete staged audio", "key", key, "error", err)
			}
		}()
		sourceURI = s.staging.ObjectURI(key)
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: sourceURI}}
	case len(audio) > inlineAudioLimit:
		return nil, fmt.Errorf("audio is %d bytes, above the inline limit; configure GCS_BUCKET for staging", len(audio))
	default:
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}}
	}

	start := time.Now()
	resp, err := s.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		return s.rec.LongRunningRecognize(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	out := parseSpeechResponse(resp, s.cfg.SegmentWindowSec)
	out.SourceURI = sourceURI
	s.log.Info("Speech recognition finished",
		"encoding", enc.String(),
		"staged", sourceURI != "",
		"segments", len(out.Segments),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// detectEncoding sniffs the container with dhowden/tag and falls back to
// magic bytes and the file extension. The second result is the sample rate
// to send when the container header does not carry one.
func detectEncoding(audio []byte, filename string) (speechpb.RecognitionConfig_AudioEncoding, int) {
	ext := strings.ToLower(filepath.Ext(filename))

	if _, fileType, err := tag.Identify(bytes.NewReader(audio)); err == nil {
		switch fileType {
		case tag.FLAC:
			return speechpb.RecognitionConfig_FLAC, 0
		case tag.OGG:
			return speechpb.RecognitionConfig_OGG_OPUS, 48000
		case tag.MP3:
			return speechpb.RecognitionConfig_MP3, 44100
		case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
			return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, 0
		}
	}

	switch {
	case len(audio) >= 4 && bytes.Equal(audio[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return speechpb.RecognitionConfig_WEBM_OPUS, 48000
	case len(audio) >= 12 && string(audio[:4]) == "RIFF" && string(audio[8:12]) == "WAVE":
		return speechpb.RecognitionConfig_LINEAR16, 0
	}

	switch ext {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16, 0
	case ".flac":
		return speechpb.RecognitionConfig_FLAC, 0
	case ".mp3":
		return speechpb.RecognitionConfig_MP3, 44100
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS, 48000
	case ".webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, 48000
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, 0
	}
}

type speechWord struct {
	w string
	s float64
	e float64
}

func parseSpeechResponse(resp *speechpb.LongRunningRecognizeResponse, windowSec float64) *SpeechResult {
	out := &SpeechResult{Segments: []video.Segment{}}
	if resp == nil || len(resp.Results) == 0 {
		return out
	}

	words := []speechWord{}
	var full strings.Builder
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(strings.TrimSpace(alt.Transcript))

		for _, ww := range alt.Words {
			if ww == nil {
				continue
			}
			words = append(words, speechWord{w: ww.Word, s: durToSec(ww.StartTime), e: durToSec(ww.EndTime)})
		}
	}

	out.Text = strings.TrimSpace(full.String())
	if len(words) > 0 {
		out.Segments = groupByTime(words, windowSec)
	} else if out.Text != "" {
		out.Segments = []video.Segment{{Text: out.Text}}
	}
	return out
}

func groupByTime(words []speechWord, windowSec float64) []video.Segment {
	if len(words) == 0 {
		return nil
	}
	if windowSec <= 0 {
		windowSec = 10
	}

	segs := []video.Segment{}
	curStart := words[0].s
	curEnd := words[0].e
	var buf strings.Builder

	flush := func() {
		txt := strings.TrimSpace(buf.String())
		if txt == "" {
			return
		}
		segs = append(segs, video.Segment{Start: curStart, End: curEnd, Text: txt})
		buf.Reset()
	}

	for _, w := range words {
		if (w.s-curStart) >= windowSec && buf.Len() > 0 {
			flush()
			curStart = w.s
			curEnd = w.e
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(w.w)
		if w.e > curEnd {
			curEnd = w.e
		}
	}
	flush()
	return segs
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func (s *speechService) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := s.backoff
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == s.maxRetries {
			break
		}
		s.log.Warn("Speech request retrying", "attempt", attempt+1, "code", code.String())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
