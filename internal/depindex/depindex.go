// Package depindex maintains the reverse-dependency relation derived from the
// forward dependency lists of live records.
//
// Rebuild policy: invalidation only marks the index stale and repeated
// invalidations coalesce. The next query rebuilds synchronously on the
// calling goroutine, so a query after a mutation pays the full O(E log E)
// rebuild cost. The index is never served stale.
package depindex

import (
	"sort"
	"time"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// Records is the live record set the index is derived from.
type Records interface {
	// ForEach visits live records until fn returns false.
	ForEach(fn func(*asset.Record) bool)
	// FindByPrimaryPath resolves a dependent back to its live record.
	FindByPrimaryPath(path string) (*asset.Record, bool)
}

// Entry is one (dependency, dependent, usageCount) triple.
type Entry struct {
	DependencyKey string
	Dependency    string
	DependentKey  string
	DependentPath string
	UsageCount    int
}

// Dependent is a reverse-dependency query result.
type Dependent struct {
	Record     *asset.Record
	Path       string
	UsageCount int
}

// Index is the sorted reverse-dependency table.
type Index struct {
	records  Records
	entries  []Entry
	stale    bool
	rebuilds int

	onRebuild func(entries int, took time.Duration)
}

// New creates a stale index over records; the first query builds it.
func New(records Records) *Index {
	return &Index{records: records, stale: true}
}

// Invalidate marks the index stale. A pending rebuild absorbs further calls.
func (x *Index) Invalidate() {
	if x.stale {
		return
	}
	x.stale = true
	debug.LogDeps("dependency index invalidated\n")
}

// IsStale reports whether the next query will rebuild.
func (x *Index) IsStale() bool {
	return x.stale
}

// Rebuilds returns how many times the table has been built.
func (x *Index) Rebuilds() int {
	return x.rebuilds
}

// Len returns the number of entries, rebuilding first if stale.
func (x *Index) Len() int {
	x.ensure()
	return len(x.entries)
}

// SetOnRebuild installs a hook called after each rebuild (for tests and stats).
func (x *Index) SetOnRebuild(fn func(entries int, took time.Duration)) {
	x.onRebuild = fn
}

// Rebuild recomputes the table unconditionally.
func (x *Index) Rebuild() {
	start := time.Now()
	entries := x.entries[:0]
	x.records.ForEach(func(r *asset.Record) bool {
		dependentKey := r.Key()
		for _, d := range r.Dependencies() {
			entries = append(entries, Entry{
				DependencyKey: pathutil.Normalize(d.Path),
				Dependency:    d.Path,
				DependentKey:  dependentKey,
				DependentPath: r.PrimaryPath(),
				UsageCount:    d.UsageCount,
			})
		}
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DependencyKey != entries[j].DependencyKey {
			return entries[i].DependencyKey < entries[j].DependencyKey
		}
		return entries[i].DependentKey < entries[j].DependentKey
	})
	x.entries = entries
	x.stale = false
	x.rebuilds++

	took := time.Since(start)
	debug.LogDeps("dependency index rebuilt: %d entries in %v\n", len(entries), took)
	if x.onRebuild != nil {
		x.onRebuild(len(entries), took)
	}
}

func (x *Index) ensure() {
	if x.stale {
		x.Rebuild()
	}
}

// lowerBound returns the first entry whose dependency key is >= key.
func (x *Index) lowerBound(key string) int {
	return sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].DependencyKey >= key
	})
}

// ReverseDependenciesOf lists the live records depending on path, ordered by
// dependent primary path.
func (x *Index) ReverseDependenciesOf(path string) []Dependent {
	x.ensure()
	key := pathutil.Normalize(path)
	var out []Dependent
	for i := x.lowerBound(key); i < len(x.entries) && x.entries[i].DependencyKey == key; i++ {
		e := x.entries[i]
		r, ok := x.records.FindByPrimaryPath(e.DependentPath)
		if !ok {
			continue
		}
		out = append(out, Dependent{Record: r, Path: e.DependentPath, UsageCount: e.UsageCount})
	}
	return out
}

// HasReverseDependencies reports whether any live record depends on path.
func (x *Index) HasReverseDependencies(path string) bool {
	x.ensure()
	key := pathutil.Normalize(path)
	for i := x.lowerBound(key); i < len(x.entries) && x.entries[i].DependencyKey == key; i++ {
		if _, ok := x.records.FindByPrimaryPath(x.entries[i].DependentPath); ok {
			return true
		}
	}
	return false
}

// IsUsedBy reports whether dependentPath declares a dependency on path and
// with which usage count.
func (x *Index) IsUsedBy(path, dependentPath string) (bool, int) {
	x.ensure()
	key := pathutil.Normalize(path)
	dependentKey := pathutil.Normalize(dependentPath)
	i := sort.Search(len(x.entries), func(i int) bool {
		e := x.entries[i]
		if e.DependencyKey != key {
			return e.DependencyKey > key
		}
		return e.DependentKey >= dependentKey
	})
	if i < len(x.entries) && x.entries[i].DependencyKey == key && x.entries[i].DependentKey == dependentKey {
		return true, x.entries[i].UsageCount
	}
	return false, 0
}

// Entries returns a copy of the table.
func (x *Index) Entries() []Entry {
	x.ensure()
	return append([]Entry(nil), x.entries...)
}
