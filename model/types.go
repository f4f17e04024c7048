package model

import (
	"fmt"
	"math"
)

// ShardTarget identifies the shard copy that produced a partial result.
type ShardTarget struct {
	NodeID  string
	Index   string
	ShardID int
}

// String returns a string representation of the ShardTarget.
func (t ShardTarget) String() string {
	return fmt.Sprintf("[%s][%s][%d]", t.NodeID, t.Index, t.ShardID)
}

// ScoredDoc is a shard-local document reference produced by the query phase.
type ScoredDoc struct {
	// ShardIndex is the position of the owning shard in the request.
	// It is stamped by the consumer when the shard's top docs are consumed.
	ShardIndex int
	// Doc is the shard-local document id.
	Doc int
	// Score is the relevance score. NaN when scores were not tracked.
	Score float32
	// SortValues holds one value per sort field for field-sorted results.
	// Values are nil, int64, float32, float64 or string.
	SortValues []any
}

// String returns a string representation of the ScoredDoc.
func (d ScoredDoc) String() string {
	return fmt.Sprintf("Doc(%d:%d score=%v)", d.ShardIndex, d.Doc, d.Score)
}

// Relation describes how TotalHits.Value relates to the true hit count.
type Relation uint8

const (
	// EqualTo means the count is exact.
	EqualTo Relation = iota
	// GreaterThanOrEqualTo means the count is a lower bound.
	GreaterThanOrEqualTo
)

// String returns the relation name.
func (r Relation) String() string {
	switch r {
	case EqualTo:
		return "eq"
	case GreaterThanOrEqualTo:
		return "gte"
	default:
		return fmt.Sprintf("Relation(%d)", r)
	}
}

// TotalHits is a hit count with its exactness relation.
type TotalHits struct {
	Value    int64
	Relation Relation
}

// String returns a string representation of the TotalHits.
func (t TotalHits) String() string {
	if t.Relation == GreaterThanOrEqualTo {
		return fmt.Sprintf("%d+ hits", t.Value)
	}
	return fmt.Sprintf("%d hits", t.Value)
}

// SortType selects how a sort field's values are compared.
type SortType uint8

const (
	// SortScore sorts by relevance score (descending in natural order).
	SortScore SortType = iota
	// SortDoc sorts by shard-local doc id.
	SortDoc
	// SortInt sorts by an int64 field value.
	SortInt
	// SortFloat sorts by a float32/float64 field value.
	SortFloat
	// SortString sorts by a string field value.
	SortString
)

// SortField is one criterion of a field sort.
type SortField struct {
	Field   string
	Type    SortType
	Reverse bool
}

// ScoreSort is the field sort equivalent of the default relevance order.
var ScoreSort = SortField{Type: SortScore}

// TopDocs is a shard's ordered top-N list.
//
// A nil Fields slice means the docs are sorted by score. A non-empty
// CollapseField means the docs are collapsed and CollapseValues[i] holds the
// group key of ScoreDocs[i].
type TopDocs struct {
	TotalHits      TotalHits
	ScoreDocs      []ScoredDoc
	Fields         []SortField
	CollapseField  string
	CollapseValues []any
}

// IsSortedByField reports whether the docs carry explicit sort values.
func (td *TopDocs) IsSortedByField() bool {
	return len(td.Fields) > 0
}

// IsCollapsed reports whether the docs are collapsed by a group key.
func (td *TopDocs) IsCollapsed() bool {
	return td.CollapseField != ""
}

// SetShardIndex stamps every doc with the given shard index.
func (td *TopDocs) SetShardIndex(shardIndex int) {
	for i := range td.ScoreDocs {
		td.ScoreDocs[i].ShardIndex = shardIndex
	}
}

// TopDocsAndMaxScore couples a shard's TopDocs with its max score.
type TopDocsAndMaxScore struct {
	TopDocs  TopDocs
	MaxScore float32
}

// NaNScore is the max score reported when no scores were computed.
var NaNScore = float32(math.NaN())

// Hit is the content of one document loaded by the fetch phase.
type Hit struct {
	ID     string
	Source []byte
	Fields map[string]any
}
