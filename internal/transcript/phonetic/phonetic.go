// Package phonetic aligns misrecognized words against a configured
// vocabulary of expected terms.
//
// Speech engines reliably butcher proper nouns that never appear in their
// training data: a user saying "Eldrinax" comes back as "elder nacks". When
// a deployment knows which names to expect, the matcher recovers them in
// two stages: Double Metaphone codes select phonetically plausible
// candidates, then Jaro-Winkler similarity on the raw strings ranks them.
// A candidate only wins when its similarity clears a threshold; without a
// phonetic overlap a stricter fuzzy threshold applies.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetically
// overlapping term needs to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic overlap exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// term is one vocabulary entry with its precomputed phonetic codes.
type term struct {
	text   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Matcher aligns words against a fixed vocabulary. It is read-only after
// construction and safe for concurrent use by any number of sessions.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64

	terms    []term
	maxWords int
}

// New builds a Matcher over vocabulary. Phonetic codes for every term are
// computed once here, not per call. Blank vocabulary entries are skipped.
func New(vocabulary []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	for _, v := range vocabulary {
		lower := strings.ToLower(strings.TrimSpace(v))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		m.terms = append(m.terms, term{
			text:   strings.TrimSpace(v),
			lower:  lower,
			tokens: tokens,
			codes:  codesFor(tokens),
		})
		if len(tokens) > m.maxWords {
			m.maxWords = len(tokens)
		}
	}
	return m
}

// Empty reports whether the matcher has no vocabulary to align against.
func (m *Matcher) Empty() bool { return len(m.terms) == 0 }

// MaxWords returns the token count of the longest vocabulary term. Callers
// use it to size their n-gram windows.
func (m *Matcher) MaxWords() int { return m.maxWords }

// Match finds the vocabulary term most similar to phrase. When matched is
// false, corrected is phrase unchanged and score is 0.
//
// phrase may span several whitespace-separated tokens; multi-word terms
// match when any token pair overlaps phonetically.
func (m *Matcher) Match(phrase string) (corrected string, score float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if lower == "" || len(m.terms) == 0 {
		return phrase, 0, false
	}
	tokens := strings.Fields(lower)
	codes := codesFor(tokens)

	var (
		bestTerm     string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range m.terms {
		sim := similarity(tokens, t.tokens, lower, t.lower)
		if overlap(codes, t.codes) {
			if sim >= m.phoneticThreshold && (!bestPhonetic || sim > bestScore) {
				bestTerm, bestScore, bestPhonetic = t.text, sim, true
			}
		} else if !bestPhonetic && sim >= m.fuzzyThreshold && sim > bestScore {
			bestTerm, bestScore = t.text, sim
		}
	}

	if bestTerm == "" {
		return phrase, 0, false
	}
	return bestTerm, bestScore, true
}

// codesFor returns the union of Double Metaphone codes across tokens.
// Tokens without a code (too short, no consonants) contribute nothing.
func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the highest Jaro-Winkler score found between the phrase and
// the term: full strings, space-stripped strings, and the best individual
// token pair. The space-stripped pass catches one spoken term split into
// several recognized words ("elder nacks" vs "eldrinax").
func similarity(phraseTokens, termTokens []string, phraseFull, termFull string) float64 {
	score := matchr.JaroWinkler(phraseFull, termFull, false)

	if len(phraseTokens) > 1 || len(termTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(phraseTokens, ""), strings.Join(termTokens, ""), false)
		if joined > score {
			score = joined
		}
	}

	for _, pt := range phraseTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(pt, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}
