package promptstyle

import (
	"strings"
	"testing"
)

func TestApplySystemJSON(t *testing.T) {
	got := ApplySystem("  You analyze videos.  ", FormatJSON)
	if !strings.HasPrefix(got, marker) {
		t.Fatalf("missing marker: %q", got)
	}
	if !strings.Contains(got, "one JSON object") {
		t.Fatalf("missing json guidance: %q", got)
	}
	if !strings.HasSuffix(got, "You analyze videos.") {
		t.Fatalf("base prompt not kept at the end: %q", got)
	}
}

func TestApplySystemIdempotent(t *testing.T) {
	once := ApplySystem("You analyze videos.", FormatProse)
	if twice := ApplySystem(once, FormatJSON); twice != once {
		t.Fatalf("second apply changed prompt:\n%s\n---\n%s", once, twice)
	}
}

func TestApplySystemEmpty(t *testing.T) {
	if got := ApplySystem("   ", FormatJSON); got != "" {
		t.Fatalf("expected empty prompt, got %q", got)
	}
}
