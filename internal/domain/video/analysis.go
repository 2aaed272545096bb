package video

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type AnalysisFormat string

const (
	FormatStructured   AnalysisFormat = "structured"
	FormatUnstructured AnalysisFormat = "unstructured"

	// FormatNotPersisted is reported for an analysis that was produced but
	// could not be stored. Records never carry it.
	FormatNotPersisted AnalysisFormat = "not_persisted"
)

// Analysis is the persisted shape. Timeline is kept as raw JSON because models
// return it either as a list of sections or as free text.
type Analysis struct {
	Summary   string          `json:"summary"`
	Topics    []string        `json:"topics"`
	KeyPoints []string        `json:"key_points"`
	Timeline  json.RawMessage `json:"timeline"`
	Entities  []string        `json:"entities"`
}

// TimelineText renders the timeline for prompts.
func (a Analysis) TimelineText() string {
	raw := bytes.TrimSpace(a.Timeline)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("[]")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err == nil {
		lines := make([]string, 0, len(items))
		for _, it := range items {
			lines = append(lines, "- "+flatten(it))
		}
		return strings.Join(lines, "\n")
	}
	return string(raw)
}

// Payload is what the model produced: either Structured or Unstructured.
type Payload interface {
	Collapse() Analysis
	Format() AnalysisFormat
}

type StructuredAnalysis struct {
	Summary   string
	Topics    []string
	KeyPoints []string
	Timeline  json.RawMessage
	Entities  []string
}

func (s StructuredAnalysis) Format() AnalysisFormat { return FormatStructured }

func (s StructuredAnalysis) Collapse() Analysis {
	tl := s.Timeline
	if len(bytes.TrimSpace(tl)) == 0 || bytes.Equal(bytes.TrimSpace(tl), []byte("null")) {
		tl = json.RawMessage("[]")
	}
	return Analysis{
		Summary:   s.Summary,
		Topics:    nonNil(s.Topics),
		KeyPoints: nonNil(s.KeyPoints),
		Timeline:  tl,
		Entities:  nonNil(s.Entities),
	}
}

type UnstructuredAnalysis struct {
	RawText string
}

func (u UnstructuredAnalysis) Format() AnalysisFormat { return FormatUnstructured }

func (u UnstructuredAnalysis) Collapse() Analysis {
	return Analysis{
		Summary:   u.RawText,
		Topics:    []string{},
		KeyPoints: []string{},
		Timeline:  json.RawMessage("[]"),
		Entities:  []string{},
	}
}

// ParsePayload interprets model output. Anything that is not a JSON object
// degrades to UnstructuredAnalysis; it never fails.
func ParsePayload(raw string) Payload {
	body := stripCodeFence(raw)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil || obj == nil {
		return UnstructuredAnalysis{RawText: raw}
	}
	fields := normalizeKeys(obj)

	out := StructuredAnalysis{
		Topics:    stringList(fields["topics"]),
		KeyPoints: stringList(fields["key_points"]),
		Entities:  stringList(fields["entities"]),
		Timeline:  fields["timeline"],
	}
	if s := fields["summary"]; len(s) > 0 {
		var text string
		if err := json.Unmarshal(s, &text); err == nil {
			out.Summary = text
		} else {
			out.Summary = string(s)
		}
	}
	return out
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// normalizeKeys maps "Key Points", "keyPoints", "key-points" onto key_points.
func normalizeKeys(obj map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		var b strings.Builder
		prevLower := false
		for _, r := range strings.TrimSpace(k) {
			switch {
			case r == ' ' || r == '-':
				b.WriteByte('_')
				prevLower = false
			case r >= 'A' && r <= 'Z':
				if prevLower {
					b.WriteByte('_')
				}
				b.WriteRune(r + ('a' - 'A'))
				prevLower = false
			default:
				b.WriteRune(r)
				prevLower = r >= 'a' && r <= 'z'
			}
		}
		key := b.String()
		if key == "main_topics" {
			key = "topics"
		}
		if key == "entities_mentioned" {
			key = "entities"
		}
		if _, exists := out[key]; !exists {
			out[key] = v
		}
	}
	return out
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
			return []string{single}
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := flatten(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
