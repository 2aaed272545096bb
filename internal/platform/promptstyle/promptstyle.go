package promptstyle

import "strings"

const marker = "[videoinsight:style]"

type Format string

const (
	FormatProse Format = "prose"
	FormatJSON  Format = "json"
)

// ApplySystem prefixes a system prompt with output-format guidance. Prompts
// that already carry the guidance block are returned unchanged.
func ApplySystem(system string, format Format) string {
	base := strings.TrimSpace(system)
	if base == "" || strings.HasPrefix(base, marker) {
		return base
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nWork only from the transcript and metadata you are given.")
	b.WriteString("\nDo not invent speakers, timestamps or facts that are not present.")
	switch format {
	case FormatJSON:
		b.WriteString("\nReply with one JSON object and nothing else: no code fences, no commentary.")
		b.WriteString("\nTimestamps are MM:SS or HH:MM:SS strings.")
	default:
		b.WriteString("\nKeep the answer short and plain.")
	}
	b.WriteString("\n\n")
	b.WriteString(base)
	return b.String()
}
