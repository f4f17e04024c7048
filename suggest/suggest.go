// Package suggest merges per-shard suggestions by name.
package suggest

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when shards disagree on the type of a
	// same-named suggestion.
	ErrTypeMismatch = errors.New("suggest: suggestion type mismatch")
	// ErrEntryMismatch is returned when term suggestions of one name carry
	// a different number of entries.
	ErrEntryMismatch = errors.New("suggest: entry count mismatch")
)

// Suggestion types.
const (
	TypeTerm       = "term"
	TypeCompletion = "completion"
)

// DefaultSize is the number of options kept when a suggestion sets none.
const DefaultSize = 5

// Suggestion is one named suggestion of a shard result.
type Suggestion interface {
	Name() string
	Type() string
	// Reduce merges a group of same-named suggestions, the receiver
	// included. The group is ordered by shard arrival; the result must not
	// depend on that order.
	Reduce(group []Suggestion) (Suggestion, error)
}

// Reduce merges the suggestions of every shard, grouping them by name in
// first-occurrence order.
func Reduce(perShard [][]Suggestion) ([]Suggestion, error) {
	var order []string
	groups := make(map[string][]Suggestion)
	for _, list := range perShard {
		for _, s := range list {
			if s == nil {
				continue
			}
			if _, ok := groups[s.Name()]; !ok {
				order = append(order, s.Name())
			}
			groups[s.Name()] = append(groups[s.Name()], s)
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	out := make([]Suggestion, 0, len(order))
	for _, name := range order {
		group := groups[name]
		for _, s := range group[1:] {
			if s.Type() != group[0].Type() {
				return nil, fmt.Errorf("%w: %q is both %s and %s", ErrTypeMismatch, name, group[0].Type(), s.Type())
			}
		}
		merged, err := group[0].Reduce(group)
		if err != nil {
			return nil, fmt.Errorf("suggest: reduce %q: %w", name, err)
		}
		out = append(out, merged)
	}
	return out, nil
}

// Completions returns the completion suggestions of a list, in order.
func Completions(list []Suggestion) []*Completion {
	var out []*Completion
	for _, s := range list {
		if c, ok := s.(*Completion); ok {
			out = append(out, c)
		}
	}
	return out
}

func sizeOr(n int) int {
	if n <= 0 {
		return DefaultSize
	}
	return n
}

func castGroup[T Suggestion](group []Suggestion) ([]T, error) {
	out := make([]T, len(group))
	for i, s := range group {
		v, ok := s.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %q has unexpected implementation %T", ErrTypeMismatch, s.Name(), s)
		}
		out[i] = v
	}
	return out, nil
}
