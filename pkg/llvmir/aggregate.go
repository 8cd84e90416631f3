// Package llvmir counts LLVM IR instruction lines per function and folds
// them into per-generic-function instantiation totals.
package llvmir

import (
	"iter"
	"maps"

	"github.com/Sumatoshi-tech/llvmlines/pkg/symbol"
)

// Instantiations holds the totals for one normalized function name.
type Instantiations struct {
	Copies     int `json:"copies"      yaml:"copies"`
	TotalLines int `json:"total_lines" yaml:"total_lines"`
}

func (i *Instantiations) record(lines int) {
	i.Copies++
	i.TotalLines += lines
}

// Aggregate maps normalized function names to their instantiation totals.
// It is owned by a single analysis run and is not safe for concurrent use.
type Aggregate struct {
	normalize symbol.Normalizer
	entries   map[string]*Instantiations
}

// NewAggregate creates an empty aggregate keyed by [symbol.Normalize].
func NewAggregate() *Aggregate {
	return NewAggregateWith(symbol.Normalize)
}

// NewAggregateWith creates an empty aggregate using a custom normalizer.
func NewAggregateWith(normalize symbol.Normalizer) *Aggregate {
	if normalize == nil {
		normalize = symbol.Normalize
	}

	return &Aggregate{
		normalize: normalize,
		entries:   make(map[string]*Instantiations),
	}
}

// Record adds one function definition of the given raw symbol and body size.
// Observations that normalize to the same key accumulate into one entry.
func (a *Aggregate) Record(rawName string, lines int) {
	key := a.normalize(rawName)

	entry, ok := a.entries[key]
	if !ok {
		entry = &Instantiations{}
		a.entries[key] = entry
	}

	entry.record(lines)
}

// Get returns the totals recorded for a normalized name.
func (a *Aggregate) Get(name string) (Instantiations, bool) {
	entry, ok := a.entries[name]
	if !ok {
		return Instantiations{}, false
	}

	return *entry, true
}

// Len returns the number of distinct normalized names.
func (a *Aggregate) Len() int {
	return len(a.entries)
}

// All iterates over every entry in unspecified order.
func (a *Aggregate) All() iter.Seq2[string, Instantiations] {
	return func(yield func(string, Instantiations) bool) {
		for name, entry := range a.entries {
			if !yield(name, *entry) {
				return
			}
		}
	}
}

// Names returns the normalized names in unspecified order.
func (a *Aggregate) Names() iter.Seq[string] {
	return maps.Keys(a.entries)
}

// Total returns the element-wise sum over all entries.
func (a *Aggregate) Total() Instantiations {
	var total Instantiations

	for _, entry := range a.entries {
		total.Copies += entry.Copies
		total.TotalLines += entry.TotalLines
	}

	return total
}
