package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/videoinsight-backend/internal/platform/envutil"
)

const (
	MetadataProviderYTDLP     = "ytdlp"
	MetadataProviderInnerTube = "innertube"

	STTProviderOpenAI = "openai"
	STTProviderGCP    = "gcp"
)

type Config struct {
	Env       string          `yaml:"env"`
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	YTDLP     YTDLPConfig     `yaml:"ytdlp"`
	InnerTube InnerTubeConfig `yaml:"innertube"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Speech    SpeechConfig    `yaml:"speech"`
	Redis     RedisConfig     `yaml:"redis"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Otel      OtelConfig      `yaml:"otel"`
}

type HTTPConfig struct {
	Port                   string   `yaml:"port"`
	CORSOrigins            []string `yaml:"cors_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	MetricsEnabled         bool     `yaml:"metrics_enabled"`
	WebUIEnabled           bool     `yaml:"web_ui_enabled"`
}

type StorageConfig struct {
	DataDir        string `yaml:"data_dir"`
	TranscriptsDir string `yaml:"transcripts_dir"`
	AnalysisDir    string `yaml:"analysis_dir"`
	ScratchDir     string `yaml:"scratch_dir"`

	// GCS bucket for long-audio speech staging and record mirroring.
	GCSBucket           string `yaml:"gcs_bucket"`
	GCSPrefix           string `yaml:"gcs_prefix"`
	ObjectStorageMode   string `yaml:"object_storage_mode"`
	StorageEmulatorHost string `yaml:"storage_emulator_host"`
	MirrorEnabled       bool   `yaml:"mirror_enabled"`
	GCPCredentials      string `yaml:"gcp_credentials"`
}

type ProvidersConfig struct {
	Metadata string `yaml:"metadata"`
	STT      string `yaml:"stt"`
}

type YTDLPConfig struct {
	Path        string `yaml:"path"`
	CookiesFile string `yaml:"cookies_file"`
	Format      string `yaml:"format"`
}

type InnerTubeConfig struct {
	BaseURL string `yaml:"base_url"`
}

type OpenAIConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	TranscribeModel   string  `yaml:"transcribe_model"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

type SpeechConfig struct {
	LanguageCode string `yaml:"language_code"`
	Model        string `yaml:"model"`
}

type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type TimeoutsConfig struct {
	MetadataSeconds   int `yaml:"metadata_seconds"`
	DownloadSeconds   int `yaml:"download_seconds"`
	TranscribeSeconds int `yaml:"transcribe_seconds"`
	CompletionSeconds int `yaml:"completion_seconds"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	Version     string  `yaml:"version"`
}

func defaultConfig() Config {
	return Config{
		Env: "development",
		HTTP: HTTPConfig{
			Port:                   "8080",
			ShutdownTimeoutSeconds: 15,
			MetricsEnabled:         true,
			WebUIEnabled:           true,
		},
		Storage: StorageConfig{
			DataDir:   ".",
			GCSPrefix: "videoinsight",
		},
		Providers: ProvidersConfig{
			Metadata: MetadataProviderYTDLP,
			STT:      STTProviderOpenAI,
		},
		YTDLP: YTDLPConfig{Path: "yt-dlp"},
		OpenAI: OpenAIConfig{
			BaseURL:           "https://api.openai.com",
			Model:             "gpt-4o",
			TranscribeModel:   "whisper-1",
			MaxRetries:        4,
			RequestsPerSecond: 0,
			TimeoutSeconds:    600,
		},
		Speech: SpeechConfig{LanguageCode: "en-US"},
		Redis:  RedisConfig{CacheTTLSeconds: 6 * 60 * 60},
		Timeouts: TimeoutsConfig{
			MetadataSeconds:   60,
			DownloadSeconds:   900,
			TranscribeSeconds: 1800,
			CompletionSeconds: 180,
		},
		Otel: OtelConfig{
			ServiceName: "videoinsight-backend",
			SampleRatio: 1,
		},
	}
}

// LoadConfig layers defaults, the optional YAML file named by CONFIG_FILE and
// environment variables, in that order.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)

	cfg.HTTP.Port = envutil.String("PORT", cfg.HTTP.Port)
	cfg.HTTP.CORSOrigins = envutil.List("CORS_ALLOW_ORIGINS", cfg.HTTP.CORSOrigins)
	cfg.HTTP.ShutdownTimeoutSeconds = envutil.Int("SHUTDOWN_TIMEOUT_SECONDS", cfg.HTTP.ShutdownTimeoutSeconds)
	cfg.HTTP.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.HTTP.MetricsEnabled)
	cfg.HTTP.WebUIEnabled = envutil.Bool("WEB_UI_ENABLED", cfg.HTTP.WebUIEnabled)

	cfg.Storage.DataDir = envutil.String("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.TranscriptsDir = envutil.String("TRANSCRIPTS_DIR", cfg.Storage.TranscriptsDir)
	cfg.Storage.AnalysisDir = envutil.String("ANALYSIS_DIR", cfg.Storage.AnalysisDir)
	cfg.Storage.ScratchDir = envutil.String("SCRATCH_DIR", cfg.Storage.ScratchDir)
	cfg.Storage.GCSBucket = envutil.String("GCS_BUCKET", cfg.Storage.GCSBucket)
	cfg.Storage.GCSPrefix = envutil.String("GCS_PREFIX", cfg.Storage.GCSPrefix)
	cfg.Storage.ObjectStorageMode = envutil.String("OBJECT_STORAGE_MODE", cfg.Storage.ObjectStorageMode)
	cfg.Storage.StorageEmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Storage.StorageEmulatorHost)
	cfg.Storage.MirrorEnabled = envutil.Bool("RECORD_MIRROR_ENABLED", cfg.Storage.MirrorEnabled)
	cfg.Storage.GCPCredentials = envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", cfg.Storage.GCPCredentials)

	cfg.Providers.Metadata = strings.ToLower(envutil.String("METADATA_PROVIDER", cfg.Providers.Metadata))
	cfg.Providers.STT = strings.ToLower(envutil.String("STT_PROVIDER", cfg.Providers.STT))

	cfg.YTDLP.Path = envutil.String("YTDLP_PATH", cfg.YTDLP.Path)
	cfg.YTDLP.CookiesFile = envutil.String("YTDLP_COOKIES_FILE", cfg.YTDLP.CookiesFile)
	cfg.YTDLP.Format = envutil.String("YTDLP_FORMAT", cfg.YTDLP.Format)
	cfg.InnerTube.BaseURL = envutil.String("INNERTUBE_BASE_URL", cfg.InnerTube.BaseURL)

	cfg.OpenAI.APIKey = envutil.String("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.Model = envutil.String("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.TranscribeModel = envutil.String("OPENAI_TRANSCRIBE_MODEL", cfg.OpenAI.TranscribeModel)
	cfg.OpenAI.MaxRetries = envutil.Int("OPENAI_MAX_RETRIES", cfg.OpenAI.MaxRetries)
	cfg.OpenAI.RequestsPerSecond = envutil.Float("OPENAI_REQUESTS_PER_SECOND", cfg.OpenAI.RequestsPerSecond)
	cfg.OpenAI.TimeoutSeconds = envutil.Int("OPENAI_TIMEOUT_SECONDS", cfg.OpenAI.TimeoutSeconds)

	cfg.Speech.LanguageCode = envutil.String("GCP_SPEECH_LANGUAGE", cfg.Speech.LanguageCode)
	cfg.Speech.Model = envutil.String("GCP_SPEECH_MODEL", cfg.Speech.Model)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.CacheTTLSeconds = envutil.Int("METADATA_CACHE_TTL_SECONDS", cfg.Redis.CacheTTLSeconds)

	cfg.Timeouts.MetadataSeconds = envutil.Int("METADATA_TIMEOUT_SECONDS", cfg.Timeouts.MetadataSeconds)
	cfg.Timeouts.DownloadSeconds = envutil.Int("DOWNLOAD_TIMEOUT_SECONDS", cfg.Timeouts.DownloadSeconds)
	cfg.Timeouts.TranscribeSeconds = envutil.Int("TRANSCRIBE_TIMEOUT_SECONDS", cfg.Timeouts.TranscribeSeconds)
	cfg.Timeouts.CompletionSeconds = envutil.Int("COMPLETION_TIMEOUT_SECONDS", cfg.Timeouts.CompletionSeconds)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Otel.Headers)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_TRACES_SAMPLER_RATIO", cfg.Otel.SampleRatio)
	cfg.Otel.Version = envutil.String("APP_VERSION", cfg.Otel.Version)
}

func (cfg *Config) normalize() {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "."
	}
	if cfg.Storage.TranscriptsDir == "" {
		cfg.Storage.TranscriptsDir = filepath.Join(cfg.Storage.DataDir, "transcripts")
	}
	if cfg.Storage.AnalysisDir == "" {
		cfg.Storage.AnalysisDir = filepath.Join(cfg.Storage.DataDir, "analysis")
	}
	if cfg.Storage.ScratchDir == "" {
		cfg.Storage.ScratchDir = filepath.Join(cfg.Storage.DataDir, "temp")
	}
	cfg.OpenAI.BaseURL = strings.TrimRight(cfg.OpenAI.BaseURL, "/")
	if cfg.YTDLP.Format == "" && cfg.Providers.STT == STTProviderGCP {
		// Cloud Speech cannot decode AAC, so prefer the opus/webm stream.
		cfg.YTDLP.Format = "bestaudio[acodec=opus]/bestaudio"
	}
}

func (cfg Config) validate() error {
	switch cfg.Providers.Metadata {
	case MetadataProviderYTDLP, MetadataProviderInnerTube:
	default:
		return fmt.Errorf("invalid METADATA_PROVIDER=%q (allowed: %q, %q)", cfg.Providers.Metadata, MetadataProviderYTDLP, MetadataProviderInnerTube)
	}
	switch cfg.Providers.STT {
	case STTProviderOpenAI, STTProviderGCP:
	default:
		return fmt.Errorf("invalid STT_PROVIDER=%q (allowed: %q, %q)", cfg.Providers.STT, STTProviderOpenAI, STTProviderGCP)
	}
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.Storage.MirrorEnabled && cfg.Storage.GCSBucket == "" {
		return fmt.Errorf("RECORD_MIRROR_ENABLED requires GCS_BUCKET")
	}
	return nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
