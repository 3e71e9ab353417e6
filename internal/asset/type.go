package asset

import (
	"fmt"
	"sort"

	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// ThumbnailSuffix is appended to a metadata path to name its thumbnail file.
const ThumbnailSuffix = ".thmb.png"

// FileOptions selects which files Type.AssetFiles reports.
type FileOptions struct {
	IncludeSource    bool
	Absolute         bool
	IncludeThumbnail bool
	IncludeDerived   bool
}

// Type describes a kind of asset. Implementations are registered once in a
// TypeTable owned by the application; records hold a reference to theirs.
type Type interface {
	// TypeName is the unique key of the type ("Model", "Texture", ...).
	TypeName() string
	// AssetFiles lists the files making up r: the metadata file and data
	// files always, the others as selected by opts.
	AssetFiles(r *Record, opts FileOptions) []string
	// IsImported reports whether records of this type come from a source file.
	IsImported() bool
	// HasThumbnail reports whether records of this type carry a thumbnail file.
	HasThumbnail() bool
}

// Lifecycle is implemented by types that react to registry operations.
// Hooks run on the registry's owner context after the indices are updated.
type Lifecycle interface {
	OnRename(r *Record, oldPrimaryPath string)
	OnMove(r *Record, oldPrimaryPath string)
	OnDelete(r *Record)
}

// TypeTable maps type names to descriptors.
type TypeTable struct {
	types map[string]Type
}

// NewTypeTable builds a table from the given types. Duplicate names are an error.
func NewTypeTable(types ...Type) (*TypeTable, error) {
	t := &TypeTable{types: make(map[string]Type, len(types))}
	for _, typ := range types {
		if err := t.Register(typ); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register adds a type. Registering the same descriptor twice is a no-op;
// a different descriptor under an existing name is an error.
func (t *TypeTable) Register(typ Type) error {
	name := typ.TypeName()
	if name == "" {
		return fmt.Errorf("asset type with empty name")
	}
	if existing, ok := t.types[name]; ok {
		if existing == typ {
			return nil
		}
		return fmt.Errorf("asset type %q already registered", name)
	}
	t.types[name] = typ
	return nil
}

// Lookup returns the type registered under name.
func (t *TypeTable) Lookup(name string) (Type, bool) {
	if t == nil {
		return nil, false
	}
	typ, ok := t.types[name]
	return typ, ok
}

// Names returns the registered type names in sorted order.
func (t *TypeTable) Names() []string {
	names := make([]string, 0, len(t.types))
	for name := range t.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered types.
func (t *TypeTable) Len() int {
	return len(t.types)
}

// BasicType is a configurable Type for asset kinds without custom behaviour.
type BasicType struct {
	Name      string
	Imported  bool
	Thumbnail bool
	// DerivedExts are appended to each data file to name derived files
	// (".cgfm" next to "tree.cgf" for instance).
	DerivedExts []string
	// Root resolves paths when FileOptions.Absolute is set.
	Root string
}

func (b *BasicType) TypeName() string   { return b.Name }
func (b *BasicType) IsImported() bool   { return b.Imported }
func (b *BasicType) HasThumbnail() bool { return b.Thumbnail }

// AssetFiles implements Type.
func (b *BasicType) AssetFiles(r *Record, opts FileOptions) []string {
	data := r.DataFilePaths()
	files := make([]string, 0, len(data)*(1+len(b.DerivedExts))+3)
	files = append(files, r.PrimaryPath())
	files = append(files, data...)
	if opts.IncludeDerived {
		for _, f := range data {
			for _, ext := range b.DerivedExts {
				files = append(files, f+ext)
			}
		}
	}
	if opts.IncludeThumbnail && b.Thumbnail {
		files = append(files, ThumbnailPath(r))
	}
	if opts.IncludeSource && r.SourceFile() != "" {
		files = append(files, r.SourceFile())
	}
	if opts.Absolute {
		for i, f := range files {
			files[i] = pathutil.ToAbsolute(f, b.Root)
		}
	}
	return files
}

// ThumbnailPath names the thumbnail file of a record.
func ThumbnailPath(r *Record) string {
	return r.PrimaryPath() + ThumbnailSuffix
}
