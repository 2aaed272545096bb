package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps a classified failure onto an HTTP status and error code.
// Unclassified errors become 500 internal_error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	kind := video.KindOf(err)
	switch kind {
	case video.KindValidation:
		return New(http.StatusBadRequest, "invalid_request", err)
	case video.KindNotFound:
		return New(http.StatusNotFound, "not_found", err)
	case video.KindTimeout:
		return New(http.StatusGatewayTimeout, "timeout", err)
	case video.KindMetadataFetch, video.KindNoAudioStream, video.KindDownload,
		video.KindTranscription, video.KindAnalysis, video.KindQuery:
		return New(http.StatusBadGateway, string(kind)+"_failed", err)
	case video.KindPersistence:
		return New(http.StatusInternalServerError, "persistence_failed", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}
