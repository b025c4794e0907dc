// Package moderation masks configured words in player chat before it reaches
// the room log.
package moderation

import (
	"bufio"
	"os"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator holds an Aho-Corasick automaton built from the configured word
// list. The zero-word moderator censors nothing.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
	empty       bool
}

func NewModerator(words []string, replacement rune) (*Moderator, error) {
	if len(words) == 0 {
		return &Moderator{replacement: replacement, empty: true}, nil
	}
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if w != "" {
			patterns = append(patterns, []rune(w))
		}
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, replacement: replacement}, nil
}

// FromFile builds a moderator from a newline-separated word list. A missing
// path yields a moderator that censors nothing.
func FromFile(path string, replacement rune) (*Moderator, error) {
	if path == "" {
		return NewModerator(nil, replacement)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewModerator(nil, replacement)
		}
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			words = append(words, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewModerator(words, replacement)
}

// Censor replaces every matched word with the replacement rune, preserving
// the length and the untouched surroundings of the original text.
func (m *Moderator) Censor(original string) string {
	if m.empty {
		return original
	}

	runes := []rune(original)
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}

	spans := m.matcher.MultiPatternSearch(lowered, false)
	if len(spans) == 0 {
		return original
	}

	for _, span := range spans {
		end := span.Pos + len(span.Word)
		if span.Pos < 0 || end > len(runes) {
			continue
		}
		for i := span.Pos; i < end; i++ {
			runes[i] = m.replacement
		}
	}
	return string(runes)
}
