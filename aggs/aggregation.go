package aggs

// Aggregation is one named node of an aggregation tree.
type Aggregation interface {
	// Name returns the user-given aggregation name.
	Name() string
	// Type returns the registry tag that selects the merge strategy.
	Type() string
}

// SingleValue is implemented by metric aggregations that resolve to one number.
type SingleValue interface {
	Aggregation
	Value() float64
}

// Bucket is a read-only view of one bucket of a multi-bucket aggregation.
type Bucket struct {
	Key      string
	DocCount int64
	Aggs     Aggregations
}

// MultiBucket is implemented by bucketed aggregations.
type MultiBucket interface {
	Aggregation
	ListBuckets() []Bucket
}

// Aggregations is an ordered forest of aggregations.
type Aggregations []Aggregation

// Get returns the aggregation with the given name, or nil.
func (a Aggregations) Get(name string) Aggregation {
	for _, agg := range a {
		if agg.Name() == name {
			return agg
		}
	}
	return nil
}

// Names returns the aggregation names in order.
func (a Aggregations) Names() []string {
	names := make([]string, len(a))
	for i, agg := range a {
		names[i] = agg.Name()
	}
	return names
}
