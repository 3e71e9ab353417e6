package asset

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// ID is the 128-bit identifier of a record. It never changes once assigned.
type ID = uuid.UUID

// NewID returns a fresh random identifier.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the textual form of an identifier.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// Flags holds the mutable editor state of a record.
type Flags uint8

const (
	FlagModified Flags = 1 << iota
	FlagOpenForEdit
	FlagReadOnly
)

// Dependency is a forward edge: the record references Path UsageCount times.
type Dependency struct {
	Path       string
	UsageCount int
}

// Detail is a named value attached to a record (triangle count, resolution, ...).
type Detail struct {
	Name  string
	Value string
}

// Fields is the constructor input for a record.
type Fields struct {
	ID           ID
	Type         Type
	Name         string
	PrimaryPath  string
	SourceFile   string
	WorkFiles    []string
	DataFiles    []string
	Details      []Detail
	Dependencies []Dependency
	LastModified time.Time
	Fingerprint  uint64
	Flags        Flags
}

// Record is a registered content item. Identity (ID, Type) is fixed at
// construction. Path-bearing fields are indexed by the registry and may only
// be changed through it while the record is registered.
type Record struct {
	id           ID
	typ          Type
	name         string
	primaryPath  string
	sourceFile   string
	workFiles    []string
	dataFiles    []string
	details      []Detail
	dependencies []Dependency
	lastModified time.Time
	fingerprint  uint64
	flags        Flags
}

// New builds a record. Work and data files are de-duplicated keeping first
// occurrence, detail names are made unique (last value wins, first position
// kept) and duplicate dependency paths are folded by summing usage counts.
func New(f Fields) *Record {
	r := &Record{
		id:           f.ID,
		typ:          f.Type,
		name:         f.Name,
		primaryPath:  f.PrimaryPath,
		lastModified: f.LastModified,
		fingerprint:  f.Fingerprint,
		flags:        f.Flags,
	}
	if r.name == "" {
		r.name = nameFromPath(f.PrimaryPath)
	}
	r.setFiles(f.SourceFile, f.WorkFiles, f.DataFiles)
	r.details = uniqueDetails(f.Details)
	r.dependencies = foldDependencies(f.Dependencies)
	return r
}

func (r *Record) ID() ID                  { return r.id }
func (r *Record) Type() Type              { return r.typ }
func (r *Record) Name() string            { return r.name }
func (r *Record) PrimaryPath() string     { return r.primaryPath }
func (r *Record) SourceFile() string      { return r.sourceFile }
func (r *Record) LastModified() time.Time { return r.lastModified }
func (r *Record) Fingerprint() uint64     { return r.fingerprint }
func (r *Record) Flags() Flags            { return r.flags }

// TypeName returns the name of the record's type, "" for an untyped record.
func (r *Record) TypeName() string {
	if r.typ == nil {
		return ""
	}
	return r.typ.TypeName()
}

// Key is the normalized primary path used as the registry's primary key.
func (r *Record) Key() string {
	return pathutil.Normalize(r.primaryPath)
}

// Folder is the directory holding the metadata file.
func (r *Record) Folder() string {
	return pathutil.Dir(r.primaryPath)
}

// WorkFiles returns a copy of the work file list.
func (r *Record) WorkFiles() []string {
	return append([]string(nil), r.workFiles...)
}

// DataFiles returns a copy of the data file list, relative to Folder.
func (r *Record) DataFiles() []string {
	return append([]string(nil), r.dataFiles...)
}

// DataFilePaths resolves DataFiles against the record's folder.
func (r *Record) DataFilePaths() []string {
	folder := r.Folder()
	out := make([]string, 0, len(r.dataFiles))
	for _, f := range r.dataFiles {
		out = append(out, pathutil.Join(folder, f))
	}
	return out
}

// OwnedFiles is every path the record owns exclusively: the metadata file
// followed by the resolved data files.
func (r *Record) OwnedFiles() []string {
	out := make([]string, 0, len(r.dataFiles)+1)
	out = append(out, r.primaryPath)
	return append(out, r.DataFilePaths()...)
}

// Details returns a copy of the details in declaration order.
func (r *Record) Details() []Detail {
	return append([]Detail(nil), r.details...)
}

// Detail returns the value of a named detail.
func (r *Record) Detail(name string) (string, bool) {
	for _, d := range r.details {
		if d.Name == name {
			return d.Value, true
		}
	}
	return "", false
}

// SetDetail adds or replaces a detail. Details are not indexed.
func (r *Record) SetDetail(name, value string) {
	for i := range r.details {
		if r.details[i].Name == name {
			r.details[i].Value = value
			return
		}
	}
	r.details = append(r.details, Detail{Name: name, Value: value})
}

// Dependencies returns a copy of the forward dependency list.
func (r *Record) Dependencies() []Dependency {
	return append([]Dependency(nil), r.dependencies...)
}

// DoesUse reports whether the record declares a dependency on path and how often.
func (r *Record) DoesUse(path string) (bool, int) {
	key := pathutil.Normalize(path)
	for _, d := range r.dependencies {
		if pathutil.Normalize(d.Path) == key {
			return true, d.UsageCount
		}
	}
	return false, 0
}

func (r *Record) IsModified() bool    { return r.flags&FlagModified != 0 }
func (r *Record) IsOpenForEdit() bool { return r.flags&FlagOpenForEdit != 0 }
func (r *Record) IsReadOnly() bool    { return r.flags&FlagReadOnly != 0 }

// IsWritable reports whether the record may be renamed, moved or saved.
func (r *Record) IsWritable() bool {
	return !r.IsReadOnly() && !r.IsOpenForEdit()
}

func (r *Record) SetModified(v bool)    { r.setFlag(FlagModified, v) }
func (r *Record) SetOpenForEdit(v bool) { r.setFlag(FlagOpenForEdit, v) }
func (r *Record) SetReadOnly(v bool)    { r.setFlag(FlagReadOnly, v) }

func (r *Record) setFlag(f Flags, v bool) {
	if v {
		r.flags |= f
	} else {
		r.flags &^= f
	}
}

// Assign overwrites r's mutable content with src's: source file, work and
// data files, timestamp, fingerprint, dependencies and details. Identity,
// name, primary path and flags are untouched, so existing references to r
// stay valid. Registry only.
func (r *Record) Assign(src *Record) {
	r.setFiles(src.sourceFile, src.workFiles, src.dataFiles)
	r.lastModified = src.lastModified
	r.fingerprint = src.fingerprint
	r.dependencies = append([]Dependency(nil), src.dependencies...)
	r.details = append([]Detail(nil), src.details...)
}

// Relocate changes the primary path, name and data file names. Registry only.
func (r *Record) Relocate(primaryPath, name string, dataFiles []string) {
	r.primaryPath = primaryPath
	if name != "" {
		r.name = name
	}
	r.dataFiles = uniquePaths(dataFiles)
}

// SetLastModified stamps the record. Timestamps are not indexed.
func (r *Record) SetLastModified(t time.Time) {
	r.lastModified = t
}

// SetFingerprint records the hash of the metadata content. Not indexed.
func (r *Record) SetFingerprint(fp uint64) {
	r.fingerprint = fp
}

func (r *Record) setFiles(source string, work, data []string) {
	r.sourceFile = source
	r.workFiles = uniquePaths(work)
	r.dataFiles = uniquePaths(data)
}

func uniquePaths(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		key := pathutil.Normalize(p)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func uniqueDetails(in []Detail) []Detail {
	if len(in) == 0 {
		return nil
	}
	pos := make(map[string]int, len(in))
	out := make([]Detail, 0, len(in))
	for _, d := range in {
		if i, ok := pos[d.Name]; ok {
			out[i].Value = d.Value
			continue
		}
		pos[d.Name] = len(out)
		out = append(out, d)
	}
	return out
}

func foldDependencies(in []Dependency) []Dependency {
	if len(in) == 0 {
		return nil
	}
	pos := make(map[string]int, len(in))
	out := make([]Dependency, 0, len(in))
	for _, d := range in {
		key := pathutil.Normalize(d.Path)
		if key == "" {
			continue
		}
		if i, ok := pos[key]; ok {
			out[i].UsageCount += d.UsageCount
			continue
		}
		pos[key] = len(out)
		out = append(out, d)
	}
	return out
}

// nameFromPath strips the folder and every extension: "a/tree.cgf.cryasset" → "tree".
func nameFromPath(p string) string {
	base := p
	if i := lastSlash(p); i >= 0 {
		base = p[i+1:]
	}
	for i := 0; i < len(base); i++ {
		if base[i] == '.' && i > 0 {
			return base[:i]
		}
	}
	return base
}

func lastSlash(p string) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return i
		}
	}
	return -1
}

// SortByPrimaryPath orders records by their normalized primary path.
func SortByPrimaryPath(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key() < records[j].Key()
	})
}
