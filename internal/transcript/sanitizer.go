// Package transcript post-processes raw recognition output into the
// single-line string embedded in the client response.
//
// The cleaning steps run in a fixed order that clients depend on:
// space-join, trim, bracketed-annotation removal, double-quote escaping,
// then the configured correction rules one by one. Reordering any of them
// changes observable output. An optional phonetic vocabulary stage runs
// last, after all literal corrections.
package transcript

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/sonoscribe/internal/transcript/phonetic"
)

// bracketRun matches a bracket-delimited annotation run such as the
// "[soft music]" commentary whisper inserts. The `.*` is greedy, so when a
// transcript contains several annotations the match spans from the first
// "[" to the last "]" and everything between is removed in one cut. That
// is the behaviour deployed clients were built against, so it stays.
var bracketRun = regexp.MustCompile(`\[.*\]`)

// Rule is one find/replace correction applied to raw transcripts, used for
// site-local fixes of words the engine consistently mishears (for example
// rewriting "Conner" to "Conor"). Pattern is a regular expression.
type Rule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// correction is a compiled Rule.
type correction struct {
	re          *regexp.Regexp
	replacement string
}

// Sanitizer cleans raw engine segments into a single response-safe line.
// It is immutable after construction and safe for concurrent use by any
// number of sessions.
type Sanitizer struct {
	corrections []correction
	vocabulary  *phonetic.Matcher
}

// SanitizerOption configures optional cleaning stages.
type SanitizerOption func(*Sanitizer)

// WithVocabulary enables a final phonetic-alignment stage that rewrites
// words matching a configured vocabulary term. A nil or empty matcher
// leaves the stage disabled.
func WithVocabulary(m *phonetic.Matcher) SanitizerOption {
	return func(s *Sanitizer) {
		s.vocabulary = m
	}
}

// NewSanitizer compiles rules in the given order. Rule order is
// significant: rules are applied sequentially and a later rule observes
// the replacements of every earlier one. Returns an error if any pattern
// does not compile.
func NewSanitizer(rules []Rule, opts ...SanitizerOption) (*Sanitizer, error) {
	s := &Sanitizer{corrections: make([]correction, 0, len(rules))}
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("transcript: compile rule %d pattern %q: %w", i, r.Pattern, err)
		}
		s.corrections = append(s.corrections, correction{re: re, replacement: r.Replacement})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustSanitizer is like [NewSanitizer] but panics on compile errors. Use
// only with rules known to be valid, such as an empty set.
func MustSanitizer(rules []Rule, opts ...SanitizerOption) *Sanitizer {
	s, err := NewSanitizer(rules, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Sanitize joins segments with single spaces and applies the fixed
// cleaning steps. The result contains no bracket-annotation runs and no
// unescaped double quotes, so it is safe to embed in a JSON string even
// without an encoder; the server still uses encoding/json and keeps this
// escaping as defence in depth.
func (s *Sanitizer) Sanitize(segments []string) string {
	text := strings.TrimSpace(strings.Join(segments, " "))
	text = strings.TrimSpace(bracketRun.ReplaceAllString(text, ""))
	text = strings.ReplaceAll(text, `"`, `\"`)
	for _, c := range s.corrections {
		text = c.re.ReplaceAllString(text, c.replacement)
	}
	if s.vocabulary != nil {
		text = applyVocabulary(text, s.vocabulary)
	}
	return text
}
