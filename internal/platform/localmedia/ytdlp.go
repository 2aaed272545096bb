package localmedia

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

// YTDLP resolves metadata and downloads audio through the yt-dlp binary.
//
// REQUIRED BINARY in runtime: yt-dlp (ffmpeg is not needed, nothing is remuxed).
type YTDLP interface {
	AssertReady(ctx context.Context) error
	Resolve(ctx context.Context, reference string) (video.RawMetadata, error)
	// FetchBestAudio writes the best audio-only stream to outputStem plus the
	// container extension and returns the final path.
	FetchBestAudio(ctx context.Context, reference string, outputStem string) (string, error)
}

type YTDLPConfig struct {
	Path        string
	CookiesFile string
	// Format is the yt-dlp format selector. Defaults to "bestaudio", which never
	// falls back to a muxed stream.
	Format string
}

type ytdlp struct {
	log    *logger.Logger
	runner commandRunner
	cfg    YTDLPConfig
}

func NewYTDLP(log *logger.Logger, cfg YTDLPConfig) YTDLP {
	return newYTDLP(log, &execRunner{}, cfg)
}

func newYTDLP(log *logger.Logger, runner commandRunner, cfg YTDLPConfig) *ytdlp {
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "yt-dlp"
	}
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = "bestaudio"
	}
	return &ytdlp{log: log.With("service", "YTDLP"), runner: runner, cfg: cfg}
}

func (y *ytdlp) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(y.cfg.Path); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", y.cfg.Path, err)
	}
	return nil
}

func (y *ytdlp) baseArgs() []string {
	args := []string{"--no-playlist", "--no-warnings", "--no-progress"}
	if y.cfg.CookiesFile != "" {
		args = append(args, "--cookies", y.cfg.CookiesFile)
	}
	return args
}

type ytdlpInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Uploader    string   `json:"uploader"`
	Channel     string   `json:"channel"`
	Duration    *float64 `json:"duration"`
	UploadDate  string   `json:"upload_date"`
	Timestamp   *int64   `json:"timestamp"`
	ViewCount   *int64   `json:"view_count"`
	Thumbnail   string   `json:"thumbnail"`
}

func (y *ytdlp) Resolve(ctx context.Context, reference string) (video.RawMetadata, error) {
	ctx = ctxutil.Default(ctx)
	args := append(y.baseArgs(), "--dump-single-json", "--skip-download", "--", reference)

	start := time.Now()
	res, err := y.runner.Run(ctx, y.cfg.Path, args...)
	if err != nil {
		return video.RawMetadata{}, video.E(video.KindMetadataFetch, "yt-dlp metadata", commandError(ctx, err, res))
	}
	var info ytdlpInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return video.RawMetadata{}, video.E(video.KindMetadataFetch, "decode yt-dlp metadata", err)
	}
	y.log.Debug("yt-dlp metadata resolved", "video_id", info.ID, "duration_ms", time.Since(start).Milliseconds())
	return info.toRaw(), nil
}

func (info ytdlpInfo) toRaw() video.RawMetadata {
	out := video.RawMetadata{
		VideoID:      info.ID,
		Title:        info.Title,
		Description:  info.Description,
		Author:       info.Uploader,
		ViewCount:    info.ViewCount,
		ThumbnailURL: info.Thumbnail,
		PublishDate:  formatUploadDate(info.UploadDate, info.Timestamp),
	}
	if out.Author == "" {
		out.Author = info.Channel
	}
	if info.Duration != nil {
		d := int64(*info.Duration)
		out.DurationSeconds = &d
	}
	return out
}

// formatUploadDate turns yt-dlp's YYYYMMDD into an ISO date.
func formatUploadDate(raw string, ts *int64) string {
	if t, err := time.Parse("20060102", strings.TrimSpace(raw)); err == nil {
		return t.Format("2006-01-02")
	}
	if ts != nil && *ts > 0 {
		return time.Unix(*ts, 0).UTC().Format("2006-01-02")
	}
	return ""
}

func (y *ytdlp) FetchBestAudio(ctx context.Context, reference string, outputStem string) (string, error) {
	ctx = ctxutil.Default(ctx)
	if outputStem == "" {
		return "", video.Errorf(video.KindDownload, "output stem required")
	}
	if err := os.MkdirAll(filepath.Dir(outputStem), 0o755); err != nil {
		return "", video.E(video.KindDownload, "create scratch dir", err)
	}

	args := append(y.baseArgs(),
		"-f", y.cfg.Format,
		"-o", outputStem+".%(ext)s",
		"--print", "after_move:filepath",
		"--", reference,
	)

	start := time.Now()
	res, err := y.runner.Run(ctx, y.cfg.Path, args...)
	if err != nil {
		if isNoAudioFormat(res.Stderr) {
			return "", video.E(video.KindNoAudioStream, "yt-dlp download", commandError(ctx, err, res))
		}
		return "", video.E(video.KindDownload, "yt-dlp download", commandError(ctx, err, res))
	}

	path := lastLine(res.Stdout)
	if path == "" {
		return "", video.Errorf(video.KindDownload, "yt-dlp reported success but printed no file path")
	}
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(outputStem)) {
		return "", video.Errorf(video.KindDownload, "yt-dlp wrote %q outside of %q", path, outputStem)
	}
	st, statErr := os.Stat(path)
	if statErr != nil || st.IsDir() || st.Size() == 0 {
		return "", video.Errorf(video.KindDownload, "yt-dlp reported success but %q is missing or empty", path)
	}
	y.log.Info("Audio downloaded",
		"path", path,
		"bytes", st.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}

func isNoAudioFormat(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "requested format is not available") ||
		strings.Contains(s, "no audio formats found")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func commandError(ctx context.Context, err error, res commandResult) error {
	// A killed process reports "signal: killed"; surface the deadline instead.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	msg := strings.TrimSpace(res.Stderr)
	if len(msg) > 1024 {
		msg = msg[len(msg)-1024:]
	}
	if msg == "" {
		return fmt.Errorf("exit %d: %w", res.ExitCode, err)
	}
	return fmt.Errorf("exit %d: %s: %w", res.ExitCode, msg, err)
}
