package suggest

import (
	"cmp"
	"slices"

	"github.com/hupe1980/shardreduce/model"
)

// CompletionOption is one completed input backed by a document.
type CompletionOption struct {
	Text       string
	Score      float32
	ShardIndex int
	Doc        int
	// Hit is attached after the fetch phase.
	Hit *model.Hit
}

// ScoredDoc returns the doc reference of the option.
func (o CompletionOption) ScoredDoc() model.ScoredDoc {
	return model.ScoredDoc{ShardIndex: o.ShardIndex, Doc: o.Doc, Score: o.Score}
}

// Completion suggests documents whose field completes a prefix.
type Completion struct {
	SuggestName    string
	Size           int
	SkipDuplicates bool
	Options        []CompletionOption
}

func (c *Completion) Name() string { return c.SuggestName }
func (c *Completion) Type() string { return TypeCompletion }

// SetShardIndex stamps every option with the owning shard.
func (c *Completion) SetShardIndex(shardIndex int) {
	for i := range c.Options {
		c.Options[i].ShardIndex = shardIndex
	}
}

// Reduce keeps the top options across shards, ordered by score, then shard
// and doc.
func (c *Completion) Reduce(group []Suggestion) (Suggestion, error) {
	in, err := castGroup[*Completion](group)
	if err != nil {
		return nil, err
	}
	var options []CompletionOption
	for _, other := range in {
		options = append(options, other.Options...)
	}
	slices.SortFunc(options, func(a, b CompletionOption) int {
		if r := cmp.Compare(b.Score, a.Score); r != 0 {
			return r
		}
		if r := cmp.Compare(a.ShardIndex, b.ShardIndex); r != 0 {
			return r
		}
		return cmp.Compare(a.Doc, b.Doc)
	})

	size := sizeOr(c.Size)
	kept := make([]CompletionOption, 0, min(size, len(options)))
	seen := make(map[string]struct{})
	for _, o := range options {
		if len(kept) == size {
			break
		}
		if c.SkipDuplicates {
			if _, dup := seen[o.Text]; dup {
				continue
			}
			seen[o.Text] = struct{}{}
		}
		kept = append(kept, o)
	}
	return &Completion{SuggestName: c.SuggestName, Size: c.Size, SkipDuplicates: c.SkipDuplicates, Options: kept}, nil
}
