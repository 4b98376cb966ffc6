package style

import (
	"fmt"
	"strings"
	"testing"
)

type captureLogger struct {
	warnings []string
}

func (c *captureLogger) Debug(format string, args ...any) {}
func (c *captureLogger) Info(format string, args ...any)  {}
func (c *captureLogger) Error(format string, args ...any) {}
func (c *captureLogger) Warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func TestFormatDeterministicAndIdempotent(t *testing.T) {
	f := NewFormatter(nil)
	in := "Sure! here is the flow.\n\n\n\nFirst retrieve, then plan."

	first := f.Format(in)
	second := f.Format(in)
	if first != second {
		t.Fatalf("same input produced different outputs:\n%q\n%q", first, second)
	}
	if again := f.Format(first); again != first {
		t.Errorf("transform is not idempotent:\n%q\n%q", first, again)
	}
}

func TestFormatStripsFillerOpener(t *testing.T) {
	f := NewFormatter(nil)
	cases := map[string]string{
		"Certainly! the answer is four.":              "The answer is four.",
		"Sure, wrap the error with %w.":               "Wrap the error with %w.",
		"As an AI language model, I suggest retries.": "I suggest retries.",
		"Of course! use a context timeout.":           "Use a context timeout.",
	}
	for in, want := range cases {
		if got := f.Format(in); got != want {
			t.Errorf("Format(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatOnlyStripsOpenerAtStart(t *testing.T) {
	f := NewFormatter(nil)
	in := "He answered sure! It still works."
	if got := f.Format(in); got != in {
		t.Errorf("mid-sentence phrase was rewritten: %q", got)
	}
}

func TestFormatPreservesCodeBlocks(t *testing.T) {
	f := NewFormatter(nil)
	code := "x := 1   \nif x > 0 {\n\treturn x\n}"
	in := "Use this:   \n```go\n" + code + "\n```\nDone.   "

	got := f.Format(in)
	if !strings.Contains(got, code) {
		t.Fatalf("code block was rewritten:\n%s", got)
	}
	if strings.Contains(got, "Use this:   ") {
		t.Error("trailing spaces survived in prose")
	}
}

func TestFormatCollapsesBlankRuns(t *testing.T) {
	f := NewFormatter(nil)
	got := f.Format("First paragraph.\n\n\n\nSecond paragraph.")
	if got != "First paragraph.\n\nSecond paragraph." {
		t.Errorf("blank run not collapsed: %q", got)
	}
}

func TestFormatUnclosedFencePassesThrough(t *testing.T) {
	logger := &captureLogger{}
	f := NewFormatter(logger)
	in := "Run this:\n```bash\nrm -rf build"

	if got := f.Format(in); got != in {
		t.Fatalf("unsafe input was rewritten: %q", got)
	}
	if len(logger.warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(logger.warnings))
	}
	if !strings.Contains(logger.warnings[0], "unclosed code fence") {
		t.Errorf("warning does not name the cause: %q", logger.warnings[0])
	}
}

func TestFormatEmptyAndWhitespaceAnswers(t *testing.T) {
	f := NewFormatter(nil)
	if got := f.Format(""); got != "" {
		t.Errorf("Format(%q) = %q", "", got)
	}
	if got := f.Format("   \n"); got != "   \n" {
		t.Errorf("whitespace-only answer was altered: %q", got)
	}
}

func TestFormatLeavesPlainAnswersAlone(t *testing.T) {
	f := NewFormatter(nil)
	in := "Binary search halves the range each step, so lookup is O(log n)."
	if got := f.Format(in); got != in {
		t.Errorf("plain answer was altered: %q", got)
	}
}
