package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/videoinsight-backend/internal/platform/gcp"
	"github.com/yungbote/videoinsight-backend/internal/platform/httpx"
	"github.com/yungbote/videoinsight-backend/internal/platform/innertube"
	"github.com/yungbote/videoinsight-backend/internal/platform/localmedia"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
	"github.com/yungbote/videoinsight-backend/internal/platform/openai"
	"github.com/yungbote/videoinsight-backend/internal/platform/redis"
)

type Clients struct {
	OpenAI        openai.Client
	YTDLP         localmedia.YTDLP
	InnerTube     innertube.Client
	GcpBucket     gcp.BucketService
	GcpSpeech     gcp.Speech
	MetadataCache redis.MetadataCache
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// OpenAI
	oa, err := openai.NewClient(log, openai.Config{
		APIKey:            cfg.OpenAI.APIKey,
		BaseURL:           cfg.OpenAI.BaseURL,
		Model:             cfg.OpenAI.Model,
		TranscribeModel:   cfg.OpenAI.TranscribeModel,
		Timeout:           seconds(cfg.OpenAI.TimeoutSeconds),
		MaxRetries:        cfg.OpenAI.MaxRetries,
		RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	out.OpenAI = oa

	// yt-dlp downloads audio whichever metadata provider is selected.
	out.YTDLP = localmedia.NewYTDLP(log, localmedia.YTDLPConfig{
		Path:        cfg.YTDLP.Path,
		CookiesFile: cfg.YTDLP.CookiesFile,
		Format:      cfg.YTDLP.Format,
	})
	readyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = out.YTDLP.AssertReady(readyCtx)
	cancel()
	if err != nil {
		return Clients{}, fmt.Errorf("yt-dlp not usable: %w", err)
	}

	if cfg.Providers.Metadata == MetadataProviderInnerTube {
		out.InnerTube = innertube.NewClient(log, innertube.Config{
			BaseURL: cfg.InnerTube.BaseURL,
			Timeout: seconds(cfg.Timeouts.MetadataSeconds),
			Retry:   httpx.DefaultRetryConfig,
		})
	}

	// Gcs
	bucket, err := resolveBucketService(log, cfg.Storage)
	if err != nil {
		return Clients{}, err
	}
	out.GcpBucket = bucket

	// Gcp speech
	if cfg.Providers.STT == STTProviderGCP {
		sp, err := gcp.NewSpeech(log, gcp.SpeechConfig{
			LanguageCode: cfg.Speech.LanguageCode,
			Model:        cfg.Speech.Model,
			Credentials:  cfg.Storage.GCPCredentials,
		}, bucket)
		if err != nil {
			out.Close(log)
			return Clients{}, fmt.Errorf("init speech client: %w", err)
		}
		out.GcpSpeech = sp
	}

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		cache, err := redis.NewMetadataCache(log, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      seconds(cfg.Redis.CacheTTLSeconds),
		})
		if err != nil {
			out.Close(log)
			return Clients{}, fmt.Errorf("init redis metadata cache: %w", err)
		}
		out.MetadataCache = cache
	}

	return out, nil
}

func (c Clients) Close(log *logger.Logger) {
	if c.GcpSpeech != nil {
		if err := c.GcpSpeech.Close(); err != nil {
			log.Warn("Failed to close speech client", "error", err)
		}
	}
	if c.GcpBucket != nil {
		if err := c.GcpBucket.Close(); err != nil {
			log.Warn("Failed to close bucket client", "error", err)
		}
	}
	if c.MetadataCache != nil {
		if err := c.MetadataCache.Close(); err != nil {
			log.Warn("Failed to close redis client", "error", err)
		}
	}
}
