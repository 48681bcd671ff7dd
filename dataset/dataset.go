// Package dataset holds the per-person table the pipeline stages pass
// between each other. A Dataset is immutable: every transformation returns
// a new one.
package dataset

import (
	"sort"
)

// Record maps feature name to value for one entity.
type Record map[string]Value

// Dataset maps entity id to record. Every record carries the same set of
// feature names.
type Dataset struct {
	records  map[string]Record
	keys     []string
	features []string
}

// New builds a Dataset from raw records. Records are copied and normalized to
// the union of all feature names; a feature absent from a record is Missing.
func New(raw map[string]Record) *Dataset {
	featureSet := map[string]struct{}{}
	for _, r := range raw {
		for f := range r {
			featureSet[f] = struct{}{}
		}
	}
	features := make([]string, 0, len(featureSet))
	for f := range featureSet {
		features = append(features, f)
	}
	sort.Strings(features)

	records := make(map[string]Record, len(raw))
	keys := make([]string, 0, len(raw))
	for id, r := range raw {
		rec := make(Record, len(features))
		for _, f := range features {
			if v, ok := r[f]; ok {
				rec[f] = v
			} else {
				rec[f] = Missing()
			}
		}
		records[id] = rec
		keys = append(keys, id)
	}
	sort.Strings(keys)

	return &Dataset{records: records, keys: keys, features: features}
}

// Len returns the number of entities.
func (d *Dataset) Len() int {
	return len(d.keys)
}

// Keys returns entity ids in sorted order.
func (d *Dataset) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Features returns feature names in sorted order.
func (d *Dataset) Features() []string {
	return append([]string(nil), d.features...)
}

// HasFeature reports whether name is a column of the dataset.
func (d *Dataset) HasFeature(name string) bool {
	i := sort.SearchStrings(d.features, name)
	return i < len(d.features) && d.features[i] == name
}

// Record returns a copy of one entity's record.
func (d *Dataset) Record(id string) (Record, bool) {
	r, ok := d.records[id]
	if !ok {
		return nil, false
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out, true
}

// Value returns a single cell. Unknown ids or features are Missing.
func (d *Dataset) Value(id, feature string) Value {
	return d.records[id][feature]
}

// Column returns the values of one feature in key order.
func (d *Dataset) Column(name string) []Value {
	out := make([]Value, len(d.keys))
	for i, k := range d.keys {
		out[i] = d.records[k][name]
	}
	return out
}

// Raw returns a deep copy of the underlying records.
func (d *Dataset) Raw() map[string]Record {
	out := make(map[string]Record, len(d.records))
	for id := range d.records {
		out[id], _ = d.Record(id)
	}
	return out
}

// Without returns a dataset without the given entities. Unknown ids are
// ignored.
func (d *Dataset) Without(ids ...string) *Dataset {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	raw := make(map[string]Record, len(d.records))
	for id, r := range d.records {
		if _, ok := drop[id]; !ok {
			raw[id] = r
		}
	}
	return New(raw)
}

// WithColumn returns a dataset with feature name set (or replaced) to
// fn(record) on every record.
func (d *Dataset) WithColumn(name string, fn func(Record) Value) *Dataset {
	raw := d.Raw()
	for id, r := range raw {
		r[name] = fn(d.records[id])
	}
	return New(raw)
}

// Map returns a dataset where every cell is replaced by fn(feature, value).
func (d *Dataset) Map(fn func(feature string, v Value) Value) *Dataset {
	raw := d.Raw()
	for _, r := range raw {
		for f, v := range r {
			r[f] = fn(f, v)
		}
	}
	return New(raw)
}

// MapColumns returns a dataset where the listed columns are replaced. fn
// receives each column in key order and returns the new values in the same
// order.
func (d *Dataset) MapColumns(columns []string, fn func(feature string, col []Value) []Value) *Dataset {
	raw := d.Raw()
	for _, f := range columns {
		col := fn(f, d.Column(f))
		for i, k := range d.keys {
			raw[k][f] = col[i]
		}
	}
	return New(raw)
}
