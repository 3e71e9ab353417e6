// Package fileindex maps normalized file paths to the records owning them.
package fileindex

import (
	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// Index is the contract shared by the exclusive and shared variants.
// Paths are normalized on every call.
type Index interface {
	SetIndex(path string, r *asset.Record)
	RemoveIndex(path string, r *asset.Record)
	Count(path string) int
	Lookup(path string) []*asset.Record
	Len() int
	Clear()
}

// Exclusive allows one owner per path.
type Exclusive struct {
	owners map[string]*asset.Record
}

// NewExclusive creates an empty exclusive index.
func NewExclusive() *Exclusive {
	return &Exclusive{owners: make(map[string]*asset.Record)}
}

// SetIndex overwrites any previous owner of path.
func (x *Exclusive) SetIndex(path string, r *asset.Record) {
	key := pathutil.Normalize(path)
	if key == "" {
		return
	}
	x.owners[key] = r
}

// RemoveIndex erases path regardless of its current owner.
func (x *Exclusive) RemoveIndex(path string, _ *asset.Record) {
	delete(x.owners, pathutil.Normalize(path))
}

func (x *Exclusive) Count(path string) int {
	if _, ok := x.owners[pathutil.Normalize(path)]; ok {
		return 1
	}
	return 0
}

// Owner returns the sole owner of path.
func (x *Exclusive) Owner(path string) (*asset.Record, bool) {
	r, ok := x.owners[pathutil.Normalize(path)]
	return r, ok
}

func (x *Exclusive) Lookup(path string) []*asset.Record {
	if r, ok := x.Owner(path); ok {
		return []*asset.Record{r}
	}
	return nil
}

func (x *Exclusive) Len() int { return len(x.owners) }

func (x *Exclusive) Clear() {
	x.owners = make(map[string]*asset.Record)
}

// Shared allows several owners per path. Registration is idempotent per
// (path, record) pair: Count is the number of distinct owners and a single
// RemoveIndex drops the pair. A path with no owners has no entry.
type Shared struct {
	owners map[string]map[*asset.Record]struct{}
}

// NewShared creates an empty shared index.
func NewShared() *Shared {
	return &Shared{owners: make(map[string]map[*asset.Record]struct{})}
}

func (s *Shared) SetIndex(path string, r *asset.Record) {
	key := pathutil.Normalize(path)
	if key == "" || r == nil {
		return
	}
	set, ok := s.owners[key]
	if !ok {
		set = make(map[*asset.Record]struct{}, 1)
		s.owners[key] = set
	}
	set[r] = struct{}{}
}

func (s *Shared) RemoveIndex(path string, r *asset.Record) {
	key := pathutil.Normalize(path)
	set, ok := s.owners[key]
	if !ok {
		return
	}
	delete(set, r)
	if len(set) == 0 {
		delete(s.owners, key)
	}
}

func (s *Shared) Count(path string) int {
	return len(s.owners[pathutil.Normalize(path)])
}

// Has reports whether r is registered under path.
func (s *Shared) Has(path string, r *asset.Record) bool {
	_, ok := s.owners[pathutil.Normalize(path)][r]
	return ok
}

// Lookup returns the owners of path ordered by primary path.
func (s *Shared) Lookup(path string) []*asset.Record {
	set := s.owners[pathutil.Normalize(path)]
	if len(set) == 0 {
		return nil
	}
	out := make([]*asset.Record, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	asset.SortByPrimaryPath(out)
	return out
}

func (s *Shared) Len() int { return len(s.owners) }

func (s *Shared) Clear() {
	s.owners = make(map[string]map[*asset.Record]struct{})
}

var (
	_ Index = (*Exclusive)(nil)
	_ Index = (*Shared)(nil)
)
