package services

import (
	"fmt"
	"strings"

	"github.com/yungbote/videoinsight-backend/internal/domain/video"
)

const (
	analysisSystemPrompt = "You are an expert content analyst specializing in extracting meaningful information from video transcripts."
	querySystemPrompt    = "You are a helpful assistant that answers questions about YouTube videos based on their content analysis."

	analysisMaxTokens   = 2000
	analysisTemperature = 0.3
	queryMaxTokens      = 800
	queryTemperature    = 0.4
)

func analysisPrompt(t *video.Transcript, meta video.Metadata) string {
	var b strings.Builder
	b.WriteString("I need a comprehensive analysis of the following YouTube video transcript:\n\n")
	fmt.Fprintf(&b, "Video Title: %s\n", meta.Title)
	fmt.Fprintf(&b, "Video Author: %s\n\n", meta.Author)
	b.WriteString("TRANSCRIPT:\n")
	b.WriteString(t.Text)
	b.WriteString("\n\nPlease provide the following:\n")
	b.WriteString("1. A concise summary of the video\n")
	b.WriteString("2. Main topics discussed\n")
	b.WriteString("3. Key points and insights\n")
	b.WriteString("4. Timeline with major sections/topics and their timestamps\n")
	b.WriteString("5. Entities mentioned (people, organizations, products, etc.)\n\n")
	b.WriteString("Format the response as a structured JSON object with the keys ")
	b.WriteString(`"summary", "topics", "key_points", "timeline" and "entities".`)
	return b.String()
}

func queryPrompt(question string, rec *video.AnalysisRecord) string {
	a := rec.Analysis
	var b strings.Builder
	b.WriteString("Answer a question about a YouTube video using only its analysis.\n\n")
	b.WriteString("VIDEO INFORMATION:\n")
	fmt.Fprintf(&b, "Title: %s\n", orNotAvailable(rec.Metadata.Title))
	fmt.Fprintf(&b, "Creator: %s\n\n", orNotAvailable(rec.Metadata.Author))
	b.WriteString("VIDEO ANALYSIS:\n")
	fmt.Fprintf(&b, "Summary: %s\n\n", orNotAvailable(a.Summary))
	fmt.Fprintf(&b, "Main Topics: %s\n\n", orNotAvailable(strings.Join(a.Topics, ", ")))
	fmt.Fprintf(&b, "Key Points:\n%s\n\n", orNotAvailable(strings.Join(a.KeyPoints, ", ")))
	fmt.Fprintf(&b, "Timeline:\n%s\n\n", orNotAvailable(a.TimelineText()))
	fmt.Fprintf(&b, "Entities Mentioned:\n%s\n\n", orNotAvailable(strings.Join(a.Entities, ", ")))
	fmt.Fprintf(&b, "USER QUERY:\n%s\n\n", question)
	b.WriteString("Give a concise and accurate answer based on the video content. ")
	b.WriteString("If the analysis does not contain the answer, say so clearly.")
	return b.String()
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not available"
	}
	return s
}
