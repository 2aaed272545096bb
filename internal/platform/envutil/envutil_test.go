package envutil

import (
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("VI_INT", "12")
	t.Setenv("VI_BAD_INT", "x")
	t.Setenv("VI_BOOL", "off")
	t.Setenv("VI_SECS", "90")
	t.Setenv("VI_LIST", " a, ,b ")
	t.Setenv("VI_FLOAT", "0.5")

	if got := Int("VI_INT", 1); got != 12 {
		t.Fatalf("Int: got=%d", got)
	}
	if got := Int("VI_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback: got=%d", got)
	}
	if Bool("VI_BOOL", true) {
		t.Fatalf("Bool: want false")
	}
	if got := Seconds("VI_SECS", time.Second); got != 90*time.Second {
		t.Fatalf("Seconds: got=%s", got)
	}
	if got := Seconds("VI_MISSING", time.Minute); got != time.Minute {
		t.Fatalf("Seconds default: got=%s", got)
	}
	if got := List("VI_LIST", nil); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List: got=%v", got)
	}
	if got := Float("VI_FLOAT", 1); got != 0.5 {
		t.Fatalf("Float: got=%v", got)
	}
	if got := String("VI_MISSING", "dflt"); got != "dflt" {
		t.Fatalf("String: got=%q", got)
	}
}
