package transcript

import (
	"strings"

	"github.com/MrWong99/sonoscribe/internal/transcript/phonetic"
)

// applyVocabulary rewrites tokens of text that phonetically align with a
// configured vocabulary term. At each position the longest candidate window
// is tried first so that multi-word terms beat partial single-word matches;
// the cursor advances past whatever the window consumed.
func applyVocabulary(text string, m *phonetic.Matcher) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || m == nil || m.Empty() {
		return text
	}

	out := make([]string, 0, len(tokens))
	i := 0
	for i < len(tokens) {
		window := m.MaxWords()
		if i+window > len(tokens) {
			window = len(tokens) - i
		}

		matched := false
		for n := window; n >= 1; n-- {
			phrase := strings.Join(tokens[i:i+n], " ")
			term, _, ok := m.Match(phrase)
			if !ok {
				continue
			}
			out = append(out, strings.Fields(term)...)
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return strings.Join(out, " ")
}
