package video

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures so the HTTP boundary can map them without
// inspecting provider-specific error types.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindMetadataFetch Kind = "metadata_fetch"
	KindNoAudioStream Kind = "no_audio_stream"
	KindDownload      Kind = "download"
	KindTranscription Kind = "transcription"
	KindAnalysis      Kind = "analysis"
	KindQuery         Kind = "query"
	KindPersistence   Kind = "persistence"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// E builds a classified error. A deadline hit inside err turns the kind into
// KindTimeout so callers can tell "retry later" from a hard failure.
func E(kind Kind, op string, err error) *Error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
