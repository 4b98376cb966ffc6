package token

import (
	"strings"
	"testing"
)

func TestCountEmpty(t *testing.T) {
	if got := Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
}

func TestCountSimple(t *testing.T) {
	got := Count("hello world")
	if got <= 0 {
		t.Errorf("Count(\"hello world\") = %d, want > 0", got)
	}
	// "hello world" is 2 tokens with cl100k_base.
	if encoding != nil && got != 2 {
		t.Errorf("Count(\"hello world\") = %d, want 2 (tiktoken)", got)
	}
}

func TestCountLongerText(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"
	got := Count(text)
	if got <= 0 {
		t.Errorf("Count(%q) = %d, want > 0", text, got)
	}
	if encoding != nil && got > 20 {
		t.Errorf("Count(%q) = %d, suspiciously high for tiktoken", text, got)
	}
}

func TestEstimateFastWhitespaceOnly(t *testing.T) {
	if got := EstimateFast("   \n\t  "); got != 0 {
		t.Errorf("EstimateFast(whitespace) = %d, want 0", got)
	}
}

func TestEstimateFastUsesWordFloor(t *testing.T) {
	// "a b c d" has 4 words, 7 runes: runes/4=1 but word count wins.
	if got := EstimateFast("a b c d"); got != 4 {
		t.Errorf("EstimateFast(\"a b c d\") = %d, want 4", got)
	}
}

func TestTruncateNoOpCases(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("Truncate under limit changed text: %q", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Errorf("Truncate with zero max should be a no-op, got %q", got)
	}
}

func TestTruncateCutsLongText(t *testing.T) {
	text := strings.Repeat("hello world ", 100)
	got := Truncate(text, 5)
	if got == text {
		t.Error("Truncate should have shortened long text")
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated result should end with ellipsis, got %q", got[len(got)-20:])
	}
}
