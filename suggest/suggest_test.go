package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(shard int, name string, options ...CompletionOption) *Completion {
	c := &Completion{SuggestName: name, Size: 3, Options: options}
	c.SetShardIndex(shard)
	return c
}

func opt(text string, score float32, doc int) CompletionOption {
	return CompletionOption{Text: text, Score: score, Doc: doc}
}

func TestReduce_GroupsByFirstOccurrence(t *testing.T) {
	perShard := [][]Suggestion{
		{completion(0, "song", opt("nirvana", 3, 1)), &Term{SuggestName: "fix"}},
		{&Term{SuggestName: "fix"}, completion(1, "artist", opt("nina", 5, 0))},
		nil,
		{completion(2, "song", opt("nine", 3, 0))},
	}

	out, err := Reduce(perShard)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "song", out[0].Name())
	assert.Equal(t, "fix", out[1].Name())
	assert.Equal(t, "artist", out[2].Name())

	song := out[0].(*Completion)
	require.Len(t, song.Options, 2)
	assert.Equal(t, 0, song.Options[0].ShardIndex)
	assert.Equal(t, 2, song.Options[1].ShardIndex)

	assert.Len(t, Completions(out), 2)
}

func TestReduce_Empty(t *testing.T) {
	out, err := Reduce(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestReduce_TypeMismatch(t *testing.T) {
	_, err := Reduce([][]Suggestion{
		{completion(0, "x")},
		{&Term{SuggestName: "x"}},
	})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestCompletion_Reduce(t *testing.T) {
	a := completion(0, "s", opt("abba", 4, 7), opt("abc", 2, 1))
	b := completion(1, "s", opt("abba", 4, 3), opt("abbey", 3, 9), opt("ab", 1, 2))

	merged, err := a.Reduce([]Suggestion{b, a})
	require.NoError(t, err)
	c := merged.(*Completion)
	texts := make([]string, len(c.Options))
	for i, o := range c.Options {
		texts[i] = o.Text
	}
	// Equal scores break on shard then doc, independent of arrival.
	assert.Equal(t, []string{"abba", "abba", "abbey"}, texts)
	assert.Equal(t, 0, c.Options[0].ShardIndex)

	a.SkipDuplicates = true
	merged, err = a.Reduce([]Suggestion{a, b})
	require.NoError(t, err)
	c = merged.(*Completion)
	require.Len(t, c.Options, 3)
	assert.Equal(t, "abba", c.Options[0].Text)
	assert.Equal(t, "abbey", c.Options[1].Text)
	assert.Equal(t, "abc", c.Options[2].Text)

	doc := c.Options[0].ScoredDoc()
	assert.Equal(t, 0, doc.ShardIndex)
	assert.Equal(t, 7, doc.Doc)
	assert.Equal(t, float32(4), doc.Score)
}

func TestTerm_Reduce(t *testing.T) {
	shard := func(options ...TermOption) *Term {
		return &Term{SuggestName: "fix", Size: 2, Entries: []TermEntry{{Text: "helo", Length: 4, Options: options}}}
	}
	a := shard(TermOption{Text: "hello", Score: 0.8, Freq: 10}, TermOption{Text: "help", Score: 0.75, Freq: 3})
	b := shard(TermOption{Text: "hello", Score: 0.9, Freq: 5}, TermOption{Text: "halo", Score: 0.75, Freq: 8})

	merged, err := a.Reduce([]Suggestion{a, b})
	require.NoError(t, err)
	entry := merged.(*Term).Entries[0]
	assert.Equal(t, "helo", entry.Text)
	assert.Equal(t, []TermOption{
		{Text: "hello", Score: 0.9, Freq: 15},
		{Text: "halo", Score: 0.75, Freq: 8},
	}, entry.Options)

	// Inputs are not modified.
	assert.Equal(t, int64(10), a.Entries[0].Options[0].Freq)

	_, err = a.Reduce([]Suggestion{a, &Term{SuggestName: "fix"}})
	assert.ErrorIs(t, err, ErrEntryMismatch)
}
