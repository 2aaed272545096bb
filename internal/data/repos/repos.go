package repos

import (
	"github.com/yungbote/videoinsight-backend/internal/data/repos/records"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type Mirror = records.Mirror

type TranscriptRepo = records.TranscriptRepo
type AnalysisRepo = records.AnalysisRepo

func NewTranscriptRepo(dir string, baseLog *logger.Logger, mirror Mirror) (TranscriptRepo, error) {
	return records.NewTranscriptRepo(dir, baseLog, mirror)
}
func NewAnalysisRepo(dir string, baseLog *logger.Logger, mirror Mirror) (AnalysisRepo, error) {
	return records.NewAnalysisRepo(dir, baseLog, mirror)
}
