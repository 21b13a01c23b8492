package pipeline

// Record is one element of a pipeline's output: an ordered sequence of field
// values positionally aligned with the owning node's Schema. Allowed value
// types are string, int64, float64, bool and nil; Schema.Convert normalizes
// raw source tuples into this set.
type Record []any

// Clone returns a shallow copy of the record. Field values are immutable
// scalars, so a shallow copy is safe to hand to another consumer.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}
