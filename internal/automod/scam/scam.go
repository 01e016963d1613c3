// Package scam detects scam phrases in chat messages. A phrase is an
// ordered list of slots, each slot a set of alternative words; the words
// may appear in any slot order, in leetspeak, and separated by a few
// unrelated words.
package scam

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxSlots      = 5
	DefaultMaxGap = 3
)

var (
	ErrEmptyPhrase   = errors.New("scam: phrase has no slots")
	ErrTooManySlots  = fmt.Errorf("scam: phrase has more than %d slots", MaxSlots)
	ErrEmptySlotWord = errors.New("scam: empty slot word")
)

type Phrase struct {
	Name  string     `yaml:"name"`
	Slots [][]string `yaml:"slots"`
	// MaxGap is how many unrelated words may sit between two slots.
	// Zero uses DefaultMaxGap, a negative value allows none.
	MaxGap int `yaml:"max_gap"`
}

// DefaultPhrases covers the scams seen most often in community servers.
var DefaultPhrases = []Phrase{
	{Name: "free_nitro", Slots: [][]string{{"free", "gift", "claim"}, {"nitro"}}},
	{Name: "steam_gift", Slots: [][]string{{"steam"}, {"gift", "giveaway", "card"}}},
	{Name: "crypto_airdrop", Slots: [][]string{{"airdrop", "giveaway"}, {"crypto", "nft", "token", "eth", "btc"}}},
	{Name: "account_verify", Slots: [][]string{{"verify", "confirm"}, {"account"}, {"ban", "suspend", "disable"}}},
	{Name: "easy_money", Slots: [][]string{{"earn", "make"}, {"money", "cash", "profit"}, {"daily", "week", "hour"}}},
}

var leet = map[rune]string{
	'a': "a4@",
	'b': "b8",
	'e': "e3",
	'g': "g9",
	'i': "i1!l|",
	'l': "l1|i",
	'o': "o0",
	's': "s5$",
	't': "t7+",
	'z': "z2",
}

type compiled struct {
	name string
	re   *regexp.Regexp
}

type Filter struct {
	phrases []compiled
}

type Match struct {
	Phrase string
	Text   string
}

func Compile(phrases []Phrase) (*Filter, error) {
	filter := &Filter{}
	for _, phrase := range phrases {
		pattern, err := phrasePattern(phrase)
		if err != nil {
			return nil, fmt.Errorf("phrase %q: %w", phrase.Name, err)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("phrase %q: %w", phrase.Name, err)
		}
		filter.phrases = append(filter.phrases, compiled{name: phrase.Name, re: re})
	}
	return filter, nil
}

// Match folds text and returns the first phrase it contains.
func (f *Filter) Match(text string) (Match, bool) {
	folded := Fold(text)
	if folded == "" {
		return Match{}, false
	}
	for _, phrase := range f.phrases {
		if loc := phrase.re.FindStringIndex(folded); loc != nil {
			return Match{Phrase: phrase.name, Text: folded[loc[0]:loc[1]]}, true
		}
	}
	return Match{}, false
}

func (f *Filter) Len() int { return len(f.phrases) }

func phrasePattern(phrase Phrase) (string, error) {
	if len(phrase.Slots) == 0 {
		return "", ErrEmptyPhrase
	}
	if len(phrase.Slots) > MaxSlots {
		return "", ErrTooManySlots
	}
	slots := make([]string, len(phrase.Slots))
	for i, words := range phrase.Slots {
		alt, err := slotPattern(words)
		if err != nil {
			return "", err
		}
		slots[i] = alt
	}

	gap := phrase.MaxGap
	if gap == 0 {
		gap = DefaultMaxGap
	}
	sep := `\s+`
	if gap > 0 {
		sep = fmt.Sprintf(`(?:\s+\S+){0,%d}\s+`, gap)
	}

	var orders []string
	permute(slots, 0, func(order []string) {
		orders = append(orders, strings.Join(order, sep))
	})
	return "(?:" + strings.Join(orders, "|") + ")", nil
}

func slotPattern(words []string) (string, error) {
	if len(words) == 0 {
		return "", ErrEmptyPhrase
	}
	alts := make([]string, 0, len(words))
	for _, word := range words {
		word = Fold(word)
		if word == "" {
			return "", ErrEmptySlotWord
		}
		var b strings.Builder
		for _, r := range word {
			if class, ok := leet[r]; ok {
				b.WriteString("[" + regexp.QuoteMeta(class) + "]+")
				continue
			}
			b.WriteString(regexp.QuoteMeta(string(r)) + "+")
		}
		alts = append(alts, b.String())
	}
	return "(?:" + strings.Join(alts, "|") + ")", nil
}

// permute calls emit with every ordering of items.
func permute(items []string, k int, emit func([]string)) {
	if k == len(items) {
		out := make([]string, len(items))
		copy(out, items)
		emit(out)
		return
	}
	for i := k; i < len(items); i++ {
		items[k], items[i] = items[i], items[k]
		permute(items, k+1, emit)
		items[k], items[i] = items[i], items[k]
	}
}
