package registry

import (
	"log"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	apperrors "github.com/standardbeagle/assetindex/internal/errors"
)

// Rejection is an incoming record the merge refused.
type Rejection struct {
	Record *asset.Record
	Err    error
}

// MergeResult describes what one merge did. When Deferred is set the batch
// was queued behind a running scan and nothing else is filled in.
type MergeResult struct {
	// Updated holds the surviving registered records whose fields were
	// overwritten in place.
	Updated  []*asset.Record
	Inserted []*asset.Record
	// Replaced holds registered records removed because an incoming record
	// claimed their primary path with a different id or type.
	Replaced  []*asset.Record
	Conflicts []*apperrors.IdentityConflictError
	Rejected  []Rejection
	Deferred  bool
}

type batchKind int

const (
	insertBatch batchKind = iota
	mergeBatch
)

type deferredBatch struct {
	kind    batchKind
	records []*asset.Record
}

type update struct {
	existing *asset.Record
	incoming *asset.Record
}

// MergeBatch reconciles batch against the registry by primary path. A
// record matching an existing one by path, id and type updates it in place
// and is discarded; an unmatched record is inserted; a path match with a
// different id or type replaces the existing record. While a scan is
// running the batch is queued and applied after the scan's own batch.
func (r *Registry) MergeBatch(batch []*asset.Record) MergeResult {
	if r.closed {
		return MergeResult{}
	}
	if r.scanning {
		r.enqueue(mergeBatch, batch)
		return MergeResult{Deferred: true}
	}
	return r.merge(batch)
}

// InsertBatch registers new records. A batch with an id or primary path
// that is already registered, or repeated within the batch, is refused as
// a whole. While a scan is running the batch is queued and validated when
// it is applied.
func (r *Registry) InsertBatch(batch []*asset.Record) error {
	if r.closed {
		return ErrClosed
	}
	if r.scanning {
		r.enqueue(insertBatch, batch)
		return nil
	}
	return r.insert(batch)
}

func (r *Registry) enqueue(kind batchKind, batch []*asset.Record) {
	r.deferred = append(r.deferred, deferredBatch{kind: kind, records: append([]*asset.Record(nil), batch...)})
	debug.LogMerge("scan in progress, deferred batch of %d (queue: %d)\n", len(batch), len(r.deferred))
}

func (r *Registry) insert(batch []*asset.Record) error {
	ids := make(map[asset.ID]struct{}, len(batch))
	keys := make(map[string]struct{}, len(batch))
	valid := make([]*asset.Record, 0, len(batch))
	for _, rec := range batch {
		if rec == nil {
			continue
		}
		if _, dup := r.records[rec.ID()]; dup {
			return apperrors.NewRegistryError("insert", ErrDuplicateID).WithPath(rec.PrimaryPath())
		}
		if _, dup := ids[rec.ID()]; dup {
			return apperrors.NewRegistryError("insert", ErrDuplicateID).WithPath(rec.PrimaryPath())
		}
		key := rec.Key()
		if _, dup := r.byPath[key]; dup {
			return apperrors.NewRegistryError("insert", ErrDuplicatePrimaryPath).WithPath(rec.PrimaryPath())
		}
		if _, dup := keys[key]; dup {
			return apperrors.NewRegistryError("insert", ErrDuplicatePrimaryPath).WithPath(rec.PrimaryPath())
		}
		ids[rec.ID()] = struct{}{}
		keys[key] = struct{}{}
		valid = append(valid, rec)
	}
	r.insertNow(valid)
	return nil
}

// insertNow adds already validated records as one notified batch.
func (r *Registry) insertNow(batch []*asset.Record) {
	if len(batch) == 0 {
		return
	}
	r.sink.BeforeInserted(batch)
	for _, rec := range batch {
		r.index(rec)
	}
	r.deps.Invalidate()
	debug.LogRegistry("inserted %d records (total %d)\n", len(batch), len(r.records))
	r.sink.AfterInserted(batch)
}

// removeNow drops live records from every index as one notified batch.
func (r *Registry) removeNow(batch []*asset.Record) {
	if len(batch) == 0 {
		return
	}
	r.sink.BeforeRemoved(batch)
	for _, rec := range batch {
		r.unindex(rec)
		if r.tombstones != nil {
			r.tombstones[rec.Key()] = struct{}{}
		}
		if r.derived != nil {
			r.derived.Invalidate(rec.PrimaryPath())
		}
		if lc, ok := lifecycle(rec); ok {
			lc.OnDelete(rec)
		}
	}
	r.deps.Invalidate()
	debug.LogRegistry("removed %d records (total %d)\n", len(batch), len(r.records))
	r.sink.AfterRemoved(batch)
}

func (r *Registry) merge(batch []*asset.Record) MergeResult {
	var res MergeResult
	var updates []update
	var inserts []*asset.Record

	keys := make(map[string]struct{}, len(batch))
	ids := make(map[asset.ID]struct{}, len(batch))
	reject := func(rec *asset.Record, err error) {
		res.Rejected = append(res.Rejected, Rejection{
			Record: rec,
			Err:    apperrors.NewRegistryError("merge", err).WithPath(rec.PrimaryPath()),
		})
	}

	for _, in := range batch {
		if in == nil {
			continue
		}
		key := in.Key()
		if _, dup := keys[key]; dup {
			reject(in, ErrDuplicatePrimaryPath)
			continue
		}
		if _, dup := ids[in.ID()]; dup {
			reject(in, ErrDuplicateID)
			continue
		}
		keys[key] = struct{}{}
		ids[in.ID()] = struct{}{}

		existing, found := r.byPath[key]
		if found && existing.ID() == in.ID() && existing.TypeName() == in.TypeName() {
			updates = append(updates, update{existing: existing, incoming: in})
			continue
		}
		if other, live := r.records[in.ID()]; live && other != existing {
			conflict := apperrors.NewIdentityConflictError(other.PrimaryPath(), other.ID().String(), in.ID().String(), other.TypeName(), in.TypeName())
			log.Printf("Warning: rejecting %s: id already registered: %v", in.PrimaryPath(), conflict)
			res.Conflicts = append(res.Conflicts, conflict)
			reject(in, ErrDuplicateID)
			continue
		}
		if found {
			conflict := apperrors.NewIdentityConflictError(existing.PrimaryPath(), existing.ID().String(), in.ID().String(), existing.TypeName(), in.TypeName())
			log.Printf("Warning: %v, replacing the registered record", conflict)
			res.Conflicts = append(res.Conflicts, conflict)
			res.Replaced = append(res.Replaced, existing)
		}
		inserts = append(inserts, in)
	}

	r.removeNow(res.Replaced)

	if len(updates) > 0 {
		res.Updated = make([]*asset.Record, 0, len(updates))
		for _, u := range updates {
			r.apply(u)
			res.Updated = append(res.Updated, u.existing)
		}
		r.deps.Invalidate()
		r.sink.Updated(res.Updated)
	}

	r.insertNow(inserts)
	res.Inserted = inserts

	debug.LogMerge("merged %d: %d updated, %d inserted, %d replaced, %d rejected\n",
		len(batch), len(res.Updated), len(res.Inserted), len(res.Replaced), len(res.Rejected))
	return res
}

// apply overwrites the existing record in place so references to it stay
// valid. Derived artifacts are dropped unless the metadata bytes are
// provably unchanged.
func (r *Registry) apply(u update) {
	e := u.existing
	unchanged := e.Fingerprint() != 0 && e.Fingerprint() == u.incoming.Fingerprint()

	r.unindexFiles(e)
	e.Assign(u.incoming)
	r.indexFiles(e)

	if !unchanged && r.derived != nil {
		r.derived.Invalidate(e.PrimaryPath())
	}
}

// flushDeferred applies queued batches in arrival order.
func (r *Registry) flushDeferred() {
	for len(r.deferred) > 0 && !r.closed && !r.scanning {
		b := r.deferred[0]
		r.deferred[0] = deferredBatch{}
		r.deferred = r.deferred[1:]
		switch b.kind {
		case insertBatch:
			if err := r.insert(b.records); err != nil {
				log.Printf("Warning: deferred insert of %d records refused: %v", len(b.records), err)
			}
		case mergeBatch:
			r.merge(b.records)
		}
	}
	if len(r.deferred) == 0 {
		r.deferred = nil
	}
}
