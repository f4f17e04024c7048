package suggest

import (
	"cmp"
	"fmt"
	"slices"
)

// TermOption is one correction candidate.
type TermOption struct {
	Text  string
	Score float32
	Freq  int64
}

// TermEntry holds the candidates for one token of the input text.
type TermEntry struct {
	Text    string
	Offset  int
	Length  int
	Options []TermOption
}

// Term suggests spelling corrections per input token.
type Term struct {
	SuggestName string
	Size        int
	Entries     []TermEntry
}

func (t *Term) Name() string { return t.SuggestName }
func (t *Term) Type() string { return TypeTerm }

// Reduce merges entries positionally. Options with equal text keep the best
// score and add up their frequencies.
func (t *Term) Reduce(group []Suggestion) (Suggestion, error) {
	in, err := castGroup[*Term](group)
	if err != nil {
		return nil, err
	}
	out := &Term{SuggestName: t.SuggestName, Size: t.Size, Entries: make([]TermEntry, len(t.Entries))}
	for _, other := range in {
		if len(other.Entries) != len(t.Entries) {
			return nil, fmt.Errorf("%w: %d != %d", ErrEntryMismatch, len(other.Entries), len(t.Entries))
		}
	}

	for i, entry := range t.Entries {
		index := make(map[string]int)
		var options []TermOption
		for _, other := range in {
			for _, o := range other.Entries[i].Options {
				j, ok := index[o.Text]
				if !ok {
					index[o.Text] = len(options)
					options = append(options, o)
					continue
				}
				options[j].Score = max(options[j].Score, o.Score)
				options[j].Freq += o.Freq
			}
		}
		slices.SortFunc(options, func(a, b TermOption) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			if c := cmp.Compare(b.Freq, a.Freq); c != 0 {
				return c
			}
			return cmp.Compare(a.Text, b.Text)
		})
		if size := sizeOr(t.Size); len(options) > size {
			options = options[:size]
		}
		out.Entries[i] = TermEntry{Text: entry.Text, Offset: entry.Offset, Length: entry.Length, Options: options}
	}
	return out, nil
}
