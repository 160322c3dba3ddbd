package moderation

import (
	"chat-realtime/contract"
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator masks censored words in message content before it is stored.
// Matching runs on a folded copy of the text, so leet speak and punctuation
// between letters still match, while the masking applies to the original runes.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

var _ contract.Censor = (*Moderator)(nil)

// folded is the searchable form of a text. positions[i] is the index in the
// original runes of folded rune i.
type folded struct {
	runes     []rune
	positions []int
}

// NewModerator builds the automaton from the folded word list.
// Words that fold to nothing (pure punctuation) are dropped.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if f := fold(word); len(f.runes) > 0 {
			patterns = append(patterns, f.runes)
		}
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	log.Debug("Moderator ready", "patterns", len(patterns))
	return &Moderator{matcher: m, censoredChar: censoredChar, log: log}, nil
}

// Censor returns the masked content and the distinct words that matched,
// nil when nothing did. Spacing and untouched runes are preserved.
func (m *Moderator) Censor(original string) (string, []string) {
	f := fold(original)
	if len(f.runes) == 0 {
		return original, nil
	}
	hits := m.matcher.MultiPatternSearch(f.runes, false)
	if len(hits) == 0 {
		return original, nil
	}

	masked := []rune(original)
	var words []string
	for _, hit := range hits {
		start, end := hit.Pos, hit.Pos+len(hit.Word)
		if start < 0 || end > len(f.positions) {
			continue
		}
		for i := f.positions[start]; i <= f.positions[end-1]; i++ {
			masked[i] = m.censoredChar
		}
		words = append(words, string(hit.Word))
	}
	if len(words) == 0 {
		return original, nil
	}

	words = lo.Uniq(words)
	m.log.Debug("Content censored", "words", len(words))
	return string(masked), words
}

func fold(input string) folded {
	original := []rune(input)
	f := folded{runes: make([]rune, 0, len(original)), positions: make([]int, 0, len(original))}
	for i, r := range original {
		clean := unleet(r)
		if isNoise(clean) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(clean))
		f.positions = append(f.positions, i)
	}
	return f
}

// unleet maps common leet speak characters back to letters.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
