package app

import (
	"fmt"

	"github.com/yungbote/videoinsight-backend/internal/data/repos"
	"github.com/yungbote/videoinsight-backend/internal/observability"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
	"github.com/yungbote/videoinsight-backend/internal/services"
)

type Repos struct {
	Transcripts repos.TranscriptRepo
	Analyses    repos.AnalysisRepo
}

func wireRepos(log *logger.Logger, cfg Config, clients Clients) (Repos, error) {
	log.Info("Wiring repos...")
	var mirror repos.Mirror
	if cfg.Storage.MirrorEnabled && clients.GcpBucket != nil {
		mirror = clients.GcpBucket
		log.Info("Mirroring records to object storage", "bucket", cfg.Storage.GCSBucket)
	}
	transcripts, err := repos.NewTranscriptRepo(cfg.Storage.TranscriptsDir, log, mirror)
	if err != nil {
		return Repos{}, err
	}
	analyses, err := repos.NewAnalysisRepo(cfg.Storage.AnalysisDir, log, mirror)
	if err != nil {
		return Repos{}, err
	}
	return Repos{Transcripts: transcripts, Analyses: analyses}, nil
}

type Services struct {
	Acquirer    services.MediaAcquirer
	Transcriber services.Transcriber
	Analyzer    services.ContentAnalyzer
	Queries     services.QueryEngine
	Pipeline    services.PipelineService
	Details     services.VideoDetailsService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, repoSet Repos, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var metadata services.MediaMetadataProvider = clients.YTDLP
	if cfg.Providers.Metadata == MetadataProviderInnerTube {
		metadata = clients.InnerTube
	}

	var stt services.SpeechToTextProvider = openAISpeechToText{client: clients.OpenAI}
	if cfg.Providers.STT == STTProviderGCP {
		stt = gcpSpeechToText{speech: clients.GcpSpeech}
	}
	llm := openAILanguageModel{client: clients.OpenAI}

	acquirer, err := services.NewMediaAcquirer(log, metadata, clients.YTDLP, cfg.Storage.ScratchDir)
	if err != nil {
		return Services{}, fmt.Errorf("media acquirer: %w", err)
	}
	transcriber, err := services.NewTranscriber(log, stt, repoSet.Transcripts)
	if err != nil {
		return Services{}, fmt.Errorf("transcriber: %w", err)
	}
	analyzer, err := services.NewContentAnalyzer(log, llm, repoSet.Analyses, metrics)
	if err != nil {
		return Services{}, fmt.Errorf("content analyzer: %w", err)
	}
	queries, err := services.NewQueryEngine(log, llm, metrics)
	if err != nil {
		return Services{}, fmt.Errorf("query engine: %w", err)
	}

	pipeline := services.NewPipelineService(log, acquirer, transcriber, analyzer, queries, metrics, services.StageTimeouts{
		Metadata:   seconds(cfg.Timeouts.MetadataSeconds),
		Download:   seconds(cfg.Timeouts.DownloadSeconds),
		Transcribe: seconds(cfg.Timeouts.TranscribeSeconds),
		Completion: seconds(cfg.Timeouts.CompletionSeconds),
	})

	var cache services.MetadataCache
	if clients.MetadataCache != nil {
		cache = clients.MetadataCache
	}
	details := services.NewVideoDetailsService(log, analyzer, acquirer, cache, seconds(cfg.Timeouts.MetadataSeconds))

	return Services{
		Acquirer:    acquirer,
		Transcriber: transcriber,
		Analyzer:    analyzer,
		Queries:     queries,
		Pipeline:    pipeline,
		Details:     details,
	}, nil
}
