package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

// Mirror receives a copy of every record written. Failures are logged only.
type Mirror interface {
	MirrorRecord(ctx context.Context, store string, key string, data []byte) error
}

// recordStore keeps one pretty-printed JSON file per key. Writes go to a temp
// file in the same directory and are renamed into place, so readers never see
// a torn record. Concurrent writers to one key race; the last rename wins.
// There is no versioning and no index: existence is a stat of the key's file.
type recordStore[T any] struct {
	name   string
	dir    string
	log    *logger.Logger
	mirror Mirror
}

func newRecordStore[T any](name, dir string, log *logger.Logger, mirror Mirror) (*recordStore[T], error) {
	if dir == "" {
		return nil, fmt.Errorf("%s store: directory required", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s store: create %s: %w", name, dir, err)
	}
	return &recordStore[T]{name: name, dir: dir, log: log, mirror: mirror}, nil
}

func (s *recordStore[T]) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *recordStore[T]) checkKey(key string) error {
	if !video.IsValidKey(key) {
		return video.Errorf(video.KindValidation, "invalid %s key %q", s.name, key)
	}
	return nil
}

func (s *recordStore[T]) put(ctx context.Context, key string, rec *T) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return video.E(video.KindPersistence, "encode "+s.name, err)
	}
	if err := writeFileAtomic(s.dir, s.path(key), data); err != nil {
		return video.E(video.KindPersistence, "write "+s.name, err)
	}
	if s.mirror != nil {
		if err := s.mirror.MirrorRecord(ctx, s.name, key, data); err != nil {
			s.log.Warn("Record mirror failed", "store", s.name, "key", key, "error", err)
		}
	}
	return nil
}

func (s *recordStore[T]) get(key string) (*T, error) {
	if err := s.checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, video.Errorf(video.KindNotFound, "%s not found for video ID: %s", s.name, key)
		}
		return nil, video.E(video.KindPersistence, "read "+s.name, err)
	}
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, video.E(video.KindPersistence, "decode "+s.name+" "+key, err)
	}
	return &rec, nil
}

func (s *recordStore[T]) exists(key string) (bool, error) {
	if err := s.checkKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, video.E(video.KindPersistence, "stat "+s.name, err)
	}
}

func writeFileAtomic(dir, dst string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return err
	}
	return nil
}
