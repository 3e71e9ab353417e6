package registry

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/depindex"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// ForEachOfType visits live records of the named type until fn returns false.
func (r *Registry) ForEachOfType(typeName string, fn func(*asset.Record) bool) {
	r.ForEach(func(rec *asset.Record) bool {
		if rec.TypeName() != typeName {
			return true
		}
		return fn(rec)
	})
}

// Select returns the live records matching pred ordered by primary path.
func (r *Registry) Select(pred func(*asset.Record) bool) []*asset.Record {
	var out []*asset.Record
	r.ForEach(func(rec *asset.Record) bool {
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
		return true
	})
	asset.SortByPrimaryPath(out)
	return out
}

// ReverseDependenciesOf lists the live records that depend on path. The
// dependency index is rebuilt first if any mutation happened since the
// last query.
func (r *Registry) ReverseDependenciesOf(path string) []depindex.Dependent {
	return r.deps.ReverseDependenciesOf(path)
}

// IsUsedBy reports whether the record at dependentPath depends on path and
// with which usage count.
func (r *Registry) IsUsedBy(path, dependentPath string) (bool, int) {
	return r.deps.IsUsedBy(path, dependentPath)
}

// HasAnyReverseDependencies reports whether a record outside records
// depends on a metadata or data file of any of them.
func (r *Registry) HasAnyReverseDependencies(records []*asset.Record) bool {
	within := make(map[*asset.Record]struct{}, len(records))
	for _, rec := range records {
		within[rec] = struct{}{}
	}
	for _, rec := range records {
		if !r.IsLive(rec) {
			continue
		}
		for _, f := range rec.OwnedFiles() {
			for _, d := range r.deps.ReverseDependenciesOf(f) {
				if _, self := within[d.Record]; !self {
					return true
				}
			}
		}
	}
	return false
}

// Suggest returns up to limit registered primary paths closest to path by
// edit distance, for reporting lookup misses.
func (r *Registry) Suggest(path string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	key := pathutil.Normalize(path)
	type candidate struct {
		path     string
		distance int
	}
	candidates := make([]candidate, 0, len(r.byPath))
	for k, rec := range r.byPath {
		d := edlib.LevenshteinDistance(key, k)
		// a shared base name is a strong hint even across folders
		if strings.HasSuffix(k, "/"+baseName(key)) {
			d /= 2
		}
		candidates = append(candidates, candidate{path: rec.PrimaryPath(), distance: d})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].path < candidates[j].path
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.path
	}
	return out
}

func baseName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// Stats is a snapshot of registry sizes.
type Stats struct {
	Records         int
	Files           int
	SourceFiles     int
	WorkFiles       int
	DeferredBatches int
	PendingDeletes  int
	DependencyEdges int
	DepRebuilds     int
	Scanning        bool
	ByType          map[string]int
}

// Stats reports current sizes. It rebuilds the dependency index if stale.
func (r *Registry) Stats() Stats {
	s := Stats{
		Records:         len(r.records),
		Files:           r.files.Len(),
		SourceFiles:     r.sources.Len(),
		WorkFiles:       r.works.Len(),
		DeferredBatches: len(r.deferred),
		PendingDeletes:  r.pendingDeletes,
		DependencyEdges: r.deps.Len(),
		Scanning:        r.scanning,
		ByType:          make(map[string]int),
	}
	s.DepRebuilds = r.deps.Rebuilds()
	for _, rec := range r.records {
		s.ByType[rec.TypeName()]++
	}
	return s
}
