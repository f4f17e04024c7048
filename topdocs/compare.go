package topdocs

import (
	"cmp"
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/shardreduce/model"
)

// Comparator orders ScoredDocs that share one set of sort fields.
type Comparator struct {
	fields []model.SortField
}

// NewComparator returns a comparator for the given sort fields.
// A nil or empty slice orders by score.
func NewComparator(fields []model.SortField) Comparator {
	return Comparator{fields: fields}
}

// Compare returns a negative number when a ranks before b, a positive number
// when b ranks before a, and zero only for the same (shard, doc) reference.
func (c Comparator) Compare(a, b model.ScoredDoc) int {
	if len(c.fields) == 0 {
		if r := compareScore(a.Score, b.Score); r != 0 {
			return r
		}
	} else {
		for i, f := range c.fields {
			r := compareField(f, i, a, b)
			if f.Reverse {
				r = -r
			}
			if r != 0 {
				return r
			}
		}
	}
	if r := cmp.Compare(a.ShardIndex, b.ShardIndex); r != 0 {
		return r
	}
	return cmp.Compare(a.Doc, b.Doc)
}

// Less reports whether a ranks strictly before b.
func (c Comparator) Less(a, b model.ScoredDoc) bool {
	return c.Compare(a, b) < 0
}

// compareScore orders scores descending with NaN last.
func compareScore(a, b float32) int {
	aNaN, bNaN := math.IsNaN(float64(a)), math.IsNaN(float64(b))
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	return cmp.Compare(b, a)
}

func compareField(f model.SortField, i int, a, b model.ScoredDoc) int {
	switch f.Type {
	case model.SortDoc:
		return cmp.Compare(a.Doc, b.Doc)
	case model.SortScore:
		sa, sb := a.Score, b.Score
		if v, ok := sortValue(a, i); ok && v != nil {
			sa = float32(toFloat(f, v))
		}
		if v, ok := sortValue(b, i); ok && v != nil {
			sb = float32(toFloat(f, v))
		}
		return compareScore(sa, sb)
	}

	va, _ := sortValue(a, i)
	vb, _ := sortValue(b, i)

	// Missing values sort last in natural order.
	switch {
	case va == nil && vb == nil:
		return 0
	case va == nil:
		return 1
	case vb == nil:
		return -1
	}

	switch f.Type {
	case model.SortInt:
		return cmp.Compare(toInt(f, va), toInt(f, vb))
	case model.SortFloat:
		fa, fb := toFloat(f, va), toFloat(f, vb)
		// cmp.Compare orders NaN first; missing-like NaN belongs last.
		aNaN, bNaN := math.IsNaN(fa), math.IsNaN(fb)
		switch {
		case aNaN && bNaN:
			return 0
		case aNaN:
			return 1
		case bNaN:
			return -1
		}
		return cmp.Compare(fa, fb)
	case model.SortString:
		return strings.Compare(toString(f, va), toString(f, vb))
	default:
		panic(fmt.Sprintf("topdocs: unknown sort type %d for field %q", f.Type, f.Field))
	}
}

func sortValue(d model.ScoredDoc, i int) (any, bool) {
	if i >= len(d.SortValues) {
		return nil, false
	}
	return d.SortValues[i], true
}

func toInt(f model.SortField, v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	default:
		panic(fmt.Sprintf("topdocs: sort field %q expects an integer, got %T", f.Field, v))
	}
}

func toFloat(f model.SortField, v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	default:
		panic(fmt.Sprintf("topdocs: sort field %q expects a float, got %T", f.Field, v))
	}
}

func toString(f model.SortField, v any) string {
	s, ok := v.(string)
	if !ok {
		panic(fmt.Sprintf("topdocs: sort field %q expects a string, got %T", f.Field, v))
	}
	return s
}
