package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

// MetadataCache holds fresh metadata lookups for videos that have no
// persisted analysis yet.
type MetadataCache interface {
	Get(ctx context.Context, videoID string) (*video.Metadata, bool, error)
	Set(ctx context.Context, meta video.Metadata) error
	Close() error
}

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

type metadataCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewMetadataCache(log *logger.Logger, cfg Config) (MetadataCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newMetadataCache(log, rdb, cfg), nil
}

func newMetadataCache(log *logger.Logger, rdb *goredis.Client, cfg Config) *metadataCache {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "videoinsight:metadata:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &metadataCache{
		log:    log.With("service", "RedisMetadataCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *metadataCache) key(videoID string) string {
	return c.prefix + videoID
}

func (c *metadataCache) Get(ctx context.Context, videoID string) (*video.Metadata, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(videoID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var meta video.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		// A bad entry is a miss; the next Set overwrites it.
		c.log.Warn("Dropping undecodable cache entry", "video_id", videoID, "error", err)
		return nil, false, nil
	}
	return &meta, true, nil
}

func (c *metadataCache) Set(ctx context.Context, meta video.Metadata) error {
	if meta.VideoID == "" {
		return fmt.Errorf("metadata without video id")
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(meta.VideoID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *metadataCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
