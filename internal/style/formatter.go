// Package style applies the final polish to an accepted answer: boilerplate
// openers go, whitespace is normalized, code blocks pass through untouched.
// The transform is deterministic and rewrites phrasing only; any doubt about
// the result falls back to the original text.
package style

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"conductor/internal/logging"
)

// fillerOpeners are assistant throat-clearing phrases stripped from the
// start of an answer. Matched case-insensitively, longest first.
var fillerOpeners = []string{
	"as an ai language model,",
	"as an ai assistant,",
	"great question!",
	"certainly!",
	"certainly,",
	"of course!",
	"of course,",
	"sure thing!",
	"sure!",
	"sure,",
}

var (
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
	excessBlank   = regexp.MustCompile(`\n{3,}`)
)

// Formatter is the terminal pipeline stage. Stateless; one instance serves
// all requests.
type Formatter struct {
	logger logging.Logger
}

// NewFormatter builds a formatter.
func NewFormatter(logger logging.Logger) *Formatter {
	return &Formatter{logger: logging.OrNop(logger)}
}

// Format returns the polished answer. A transform that cannot be applied
// safely returns the answer unchanged with a warning; this stage never fails
// a request.
func (f *Formatter) Format(answer string) string {
	polished, err := polish(answer)
	if err != nil {
		f.logger.Warn("Style transform skipped, answer returned unchanged: %v", err)
		return answer
	}
	return polished
}

// polish rewrites the prose segments of the answer and stitches the code
// segments back in verbatim.
func polish(answer string) (string, error) {
	if strings.TrimSpace(answer) == "" {
		return answer, nil
	}

	segments := strings.Split(answer, "```")
	// Even segment count means an unclosed fence; rewriting around it could
	// swallow code into prose.
	if len(segments)%2 == 0 {
		return "", errors.New("unclosed code fence")
	}

	for i := 0; i < len(segments); i += 2 {
		segments[i] = polishProse(segments[i], i == 0)
	}

	result := strings.TrimSpace(strings.Join(segments, "```"))
	if result == "" {
		return "", errors.New("transform produced an empty answer")
	}
	return result, nil
}

func polishProse(text string, opening bool) string {
	if opening {
		text = stripFillerOpener(text)
	}
	text = trailingSpace.ReplaceAllString(text, "")
	text = excessBlank.ReplaceAllString(text, "\n\n")
	return text
}

// stripFillerOpener drops at most one leading filler phrase and recapitalizes
// what follows.
func stripFillerOpener(text string) string {
	trimmed := strings.TrimLeft(text, " \t\n")
	lower := strings.ToLower(trimmed)
	for _, opener := range fillerOpeners {
		if !strings.HasPrefix(lower, opener) {
			continue
		}
		rest := strings.TrimLeft(trimmed[len(opener):], " \t")
		if rest == "" {
			return trimmed
		}
		return capitalize(rest)
	}
	return text
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
