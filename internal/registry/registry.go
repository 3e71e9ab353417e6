// Package registry is the in-memory asset registry. It owns every live
// record and the indices over them, and must only be used from its owner
// context: it performs no locking. Asynchronous work (scans, batch deletes)
// reports back through the owner.Dispatcher supplied at construction.
package registry

import (
	"errors"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	"github.com/standardbeagle/assetindex/internal/depindex"
	"github.com/standardbeagle/assetindex/internal/fileindex"
	"github.com/standardbeagle/assetindex/internal/fileops"
	"github.com/standardbeagle/assetindex/internal/owner"
	"github.com/standardbeagle/assetindex/internal/scan"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

var (
	ErrDuplicateID          = errors.New("duplicate record id")
	ErrDuplicatePrimaryPath = errors.New("duplicate primary path")
	ErrNotLive              = errors.New("record is not registered")
	ErrReadOnly             = errors.New("record is read-only or open for edit")
	ErrPathTaken            = errors.New("destination path is already registered")
	ErrNoScanner            = errors.New("registry has no scanner")
	ErrNoDispatcher         = errors.New("registry has no owner dispatcher")
	ErrClosed               = errors.New("registry is closed")
)

// Scanner produces record batches off the owner context. *scan.Engine
// satisfies it.
type Scanner interface {
	Start(roots []string, done func(scan.Result)) error
	Acknowledge()
}

// DerivedCache holds artifacts rendered from a record, such as thumbnails.
type DerivedCache interface {
	Invalidate(primaryPath string)
}

// MetadataWriter persists a record to its metadata file. *scan.MetadataWriter
// satisfies it.
type MetadataWriter interface {
	WriteMetadata(rec *asset.Record) error
}

// Options wires a registry to its collaborators. Dispatch is required for
// scans and physical deletes; other nil collaborators disable their feature.
type Options struct {
	Dispatch owner.Dispatcher
	Sink     Sink
	Scanner  Scanner
	Deleter  fileops.Executor
	Mover    fileops.Mover
	Writer   MetadataWriter
	Derived  DerivedCache
}

// Registry owns all live records and their indices.
type Registry struct {
	records map[asset.ID]*asset.Record
	byPath  map[string]*asset.Record

	files   *fileindex.Exclusive
	sources *fileindex.Shared
	works   *fileindex.Shared
	deps    *depindex.Index

	dispatch owner.Dispatcher
	sink     Sink
	scanner  Scanner
	deleter  fileops.Executor
	mover    fileops.Mover
	writer   MetadataWriter
	derived  DerivedCache

	scanning       bool
	deferred       []deferredBatch
	tombstones     map[string]struct{}
	pendingDeletes int
	closed         bool
}

// New creates an empty registry.
func New(opts Options) *Registry {
	r := &Registry{
		records:  make(map[asset.ID]*asset.Record),
		byPath:   make(map[string]*asset.Record),
		files:    fileindex.NewExclusive(),
		sources:  fileindex.NewShared(),
		works:    fileindex.NewShared(),
		dispatch: opts.Dispatch,
		sink:     opts.Sink,
		scanner:  opts.Scanner,
		deleter:  opts.Deleter,
		mover:    opts.Mover,
		writer:   opts.Writer,
		derived:  opts.Derived,
	}
	if r.sink == nil {
		r.sink = NopSink{}
	}
	r.deps = depindex.New(r)
	return r
}

// Close detaches the registry. Completions still in flight are dropped
// when they arrive and deferred batches are discarded.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if len(r.deferred) > 0 {
		debug.LogRegistry("closing with %d deferred batches discarded\n", len(r.deferred))
	}
	r.deferred = nil
	r.tombstones = nil
}

// Count returns the number of live records.
func (r *Registry) Count() int {
	return len(r.records)
}

// IsLive reports whether rec is currently registered. Holders of record
// pointers check it before use.
func (r *Registry) IsLive(rec *asset.Record) bool {
	if rec == nil {
		return false
	}
	live, ok := r.records[rec.ID()]
	return ok && live == rec
}

// FindByPrimaryPath returns the record whose metadata file is path.
func (r *Registry) FindByPrimaryPath(path string) (*asset.Record, bool) {
	rec, ok := r.byPath[pathutil.Normalize(path)]
	return rec, ok
}

// FindByID returns the record with the given identifier.
func (r *Registry) FindByID(id asset.ID) (*asset.Record, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// FindByAnyFile resolves any file a record owns: its metadata or data files
// first, then source and work files. Shared files resolve to the owner with
// the lowest primary path.
func (r *Registry) FindByAnyFile(path string) (*asset.Record, bool) {
	if rec, ok := r.files.Owner(path); ok {
		return rec, true
	}
	if owners := r.sources.Lookup(path); len(owners) > 0 {
		return owners[0], true
	}
	if owners := r.works.Lookup(path); len(owners) > 0 {
		return owners[0], true
	}
	return nil, false
}

// FindBySourceFile returns every record imported from path.
func (r *Registry) FindBySourceFile(path string) []*asset.Record {
	return r.sources.Lookup(path)
}

// SourceFileOwners returns how many records share the source file path.
func (r *Registry) SourceFileOwners(path string) int {
	return r.sources.Count(path)
}

// index adds rec to the primary maps and every file index.
func (r *Registry) index(rec *asset.Record) {
	r.records[rec.ID()] = rec
	r.byPath[rec.Key()] = rec
	r.indexFiles(rec)
}

// unindex removes rec from the primary maps and every file index.
func (r *Registry) unindex(rec *asset.Record) {
	r.unindexFiles(rec)
	if r.byPath[rec.Key()] == rec {
		delete(r.byPath, rec.Key())
	}
	if r.records[rec.ID()] == rec {
		delete(r.records, rec.ID())
	}
}

func (r *Registry) indexFiles(rec *asset.Record) {
	for _, f := range rec.OwnedFiles() {
		r.files.SetIndex(f, rec)
	}
	if src := rec.SourceFile(); src != "" {
		r.sources.SetIndex(src, rec)
	}
	for _, w := range rec.WorkFiles() {
		r.works.SetIndex(w, rec)
	}
}

// unindexFiles only erases exclusive entries still owned by rec, so a file
// claimed later by another record keeps resolving to it.
func (r *Registry) unindexFiles(rec *asset.Record) {
	for _, f := range rec.OwnedFiles() {
		if holder, ok := r.files.Owner(f); ok && holder == rec {
			r.files.RemoveIndex(f, rec)
		}
	}
	if src := rec.SourceFile(); src != "" {
		r.sources.RemoveIndex(src, rec)
	}
	for _, w := range rec.WorkFiles() {
		r.works.RemoveIndex(w, rec)
	}
}

// post runs fn on the owner context unless the registry is closed by then,
// in which case dropped runs instead when non-nil. Callers check r.dispatch
// before starting asynchronous work.
func (r *Registry) post(fn, dropped func()) {
	r.dispatch.Post(func() {
		if r.closed {
			debug.LogRegistry("registry closed, dropping completion\n")
			if dropped != nil {
				dropped()
			}
			return
		}
		fn()
	})
}

// ForEach visits live records until fn returns false. It satisfies
// depindex.Records together with FindByPrimaryPath.
func (r *Registry) ForEach(fn func(*asset.Record) bool) {
	for _, rec := range r.records {
		if !fn(rec) {
			return
		}
	}
}

func lifecycle(rec *asset.Record) (asset.Lifecycle, bool) {
	if rec.Type() == nil {
		return nil, false
	}
	lc, ok := rec.Type().(asset.Lifecycle)
	return lc, ok
}

var _ depindex.Records = (*Registry)(nil)
