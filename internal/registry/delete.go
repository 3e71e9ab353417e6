package registry

import (
	"log"
	"sort"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	"github.com/standardbeagle/assetindex/internal/fileops"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// DeleteIndexOnly unregisters records without touching their files and
// returns the ones that were live.
func (r *Registry) DeleteIndexOnly(records []*asset.Record) []*asset.Record {
	live := r.liveUnique(records)
	r.removeNow(live)
	return live
}

// DeleteWithFiles unregisters records immediately and hands their files to
// the batch-delete executor. Records sharing a source file form one group;
// the source file itself is deleted only when every record importing it is
// part of the request. The returned groups are what was handed over.
func (r *Registry) DeleteWithFiles(records []*asset.Record) []fileops.FileGroup {
	live := r.liveUnique(records)
	if len(live) == 0 {
		return nil
	}

	sort.SliceStable(live, func(i, j int) bool {
		si, sj := pathutil.Normalize(live[i].SourceFile()), pathutil.Normalize(live[j].SourceFile())
		if si != sj {
			return si < sj
		}
		return live[i].Key() < live[j].Key()
	})

	var groups []fileops.FileGroup
	for start := 0; start < len(live); {
		source := pathutil.Normalize(live[start].SourceFile())
		end := start + 1
		for end < len(live) && pathutil.Normalize(live[end].SourceFile()) == source {
			end++
		}
		groups = append(groups, r.fileGroup(live[start:end]))
		start = end
	}

	r.removeNow(live)

	switch {
	case r.deleter == nil:
		debug.LogRegistry("no delete executor, %d file groups left on disk\n", len(groups))
	case r.dispatch == nil:
		log.Printf("Warning: %v, %d file groups left on disk", ErrNoDispatcher, len(groups))
	default:
		r.pendingDeletes++
		r.deleter.Delete(groups, func(res fileops.Result) {
			r.post(func() { r.completeDelete(res) }, nil)
		})
	}
	return groups
}

// fileGroup collects the files of one run of records sharing a source file.
// Counts are taken before the run is unindexed.
func (r *Registry) fileGroup(run []*asset.Record) fileops.FileGroup {
	var group fileops.FileGroup
	seen := make(map[string]struct{})
	add := func(f string) {
		key := pathutil.Normalize(f)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		group.Files = append(group.Files, f)
	}

	for _, rec := range run {
		group.Records = append(group.Records, rec.ID())
		if typ := rec.Type(); typ != nil {
			for _, f := range typ.AssetFiles(rec, asset.FileOptions{IncludeThumbnail: true, IncludeDerived: true}) {
				add(f)
			}
		} else {
			for _, f := range rec.OwnedFiles() {
				add(f)
			}
		}
	}

	if source := run[0].SourceFile(); source != "" {
		if owners := r.sources.Count(source); owners == len(run) {
			add(source)
		} else {
			debug.LogRegistry("keeping %s: %d of %d owners deleted\n", source, len(run), owners)
		}
	}
	return group
}

func (r *Registry) completeDelete(res fileops.Result) {
	r.pendingDeletes--
	for _, f := range res.Failures {
		log.Printf("Warning: could not delete %s: %v", f.Path, f.Err)
	}
	debug.LogRegistry("delete completed: %d removed, %d missing, %d failed\n",
		len(res.Deleted), len(res.Missing), len(res.Failures))
	r.sink.FilesDeleted(res)
}

// PendingDeletes returns the number of batch deletes not yet reported back.
func (r *Registry) PendingDeletes() int {
	return r.pendingDeletes
}

func (r *Registry) liveUnique(records []*asset.Record) []*asset.Record {
	out := make([]*asset.Record, 0, len(records))
	seen := make(map[*asset.Record]struct{}, len(records))
	for _, rec := range records {
		if !r.IsLive(rec) {
			continue
		}
		if _, dup := seen[rec]; dup {
			continue
		}
		seen[rec] = struct{}{}
		out = append(out, rec)
	}
	return out
}
