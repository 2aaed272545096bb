package video

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Unavailable marks a metadata field the source did not provide.
const Unavailable = "unavailable"

// OptionalInt is a numeric metadata field that serializes to the Unavailable
// sentinel instead of being dropped when unknown.
type OptionalInt struct {
	Value int64
	Known bool
}

func IntOf(v int64) OptionalInt { return OptionalInt{Value: v, Known: true} }

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Known {
		return json.Marshal(Unavailable)
	}
	return []byte(strconv.FormatInt(o.Value, 10)), nil
}

func (o *OptionalInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || b[0] == '"' {
		*o = OptionalInt{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*o = IntOf(int64(f))
	return nil
}

// Metadata is the display information of one video. Never partially updated.
type Metadata struct {
	VideoID         string      `json:"video_id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Author          string      `json:"author"`
	DurationSeconds OptionalInt `json:"length"`
	PublishDate     string      `json:"publish_date"`
	ViewCount       OptionalInt `json:"views"`
	ThumbnailURL    string      `json:"thumbnail_url"`
}

// AudioArtifact is a scratch audio file owned by a single pipeline run.
type AudioArtifact struct {
	LocalPath        string `json:"local_path"`
	SourceIdentifier string `json:"source_identifier"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments"`
	CreatedAt       time.Time `json:"timestamp"`
	SourceAudioPath string    `json:"audio_path"`
}

// AnalysisRecord is the durable unit later queries depend on.
type AnalysisRecord struct {
	VideoID   string         `json:"video_id"`
	Analysis  Analysis       `json:"analysis"`
	Format    AnalysisFormat `json:"format"`
	CreatedAt time.Time      `json:"timestamp"`
	Metadata  Metadata       `json:"video_info"`
}

// RawMetadata is what a metadata source returned. Empty strings and nil
// pointers are fields the source did not provide.
type RawMetadata struct {
	VideoID         string
	Title           string
	Description     string
	Author          string
	DurationSeconds *int64
	PublishDate     string
	ViewCount       *int64
	ThumbnailURL    string
}
