// Package testhelpers provides shared fixtures for asset registry tests
package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/scan"
)

// Type names registered by Types.
const (
	ModelType   = "model"
	TextureType = "texture"
	LevelType   = "level"
)

// Types returns a table with a thumbnailed imported model type, an imported
// texture type and a plain level type.
func Types(t testing.TB) *asset.TypeTable {
	t.Helper()
	table, err := asset.NewTypeTable(
		&asset.BasicType{Name: ModelType, Imported: true, Thumbnail: true, DerivedExts: []string{"m"}},
		&asset.BasicType{Name: TextureType, Imported: true},
		&asset.BasicType{Name: LevelType},
	)
	require.NoError(t, err)
	return table
}

// RecordBuilder provides a fluent API for building records in tests.
// Usage:
//
//	rec := testhelpers.NewRecord(types, "objects/tree.cgf.cryasset").
//		Source("src/tree.fbx").
//		Data("tree.cgf").
//		Uses("textures/bark.dds", 2).
//		Build()
type RecordBuilder struct {
	types  *asset.TypeTable
	fields asset.Fields
}

// NewRecord starts a model record at primaryPath with a fresh id.
func NewRecord(types *asset.TypeTable, primaryPath string) *RecordBuilder {
	b := &RecordBuilder{
		types: types,
		fields: asset.Fields{
			ID:          asset.NewID(),
			PrimaryPath: primaryPath,
		},
	}
	return b.Type(ModelType)
}

// ID sets the identifier.
func (b *RecordBuilder) ID(id asset.ID) *RecordBuilder {
	b.fields.ID = id
	return b
}

// IDString sets the identifier from a uuid literal and panics on bad input.
func (b *RecordBuilder) IDString(s string) *RecordBuilder {
	b.fields.ID = uuid.MustParse(s)
	return b
}

// Type looks the type up in the table; unknown names leave it nil.
func (b *RecordBuilder) Type(name string) *RecordBuilder {
	b.fields.Type, _ = b.types.Lookup(name)
	return b
}

func (b *RecordBuilder) Name(name string) *RecordBuilder {
	b.fields.Name = name
	return b
}

func (b *RecordBuilder) Source(path string) *RecordBuilder {
	b.fields.SourceFile = path
	return b
}

func (b *RecordBuilder) Work(paths ...string) *RecordBuilder {
	b.fields.WorkFiles = append(b.fields.WorkFiles, paths...)
	return b
}

// Data adds data files relative to the record's folder.
func (b *RecordBuilder) Data(names ...string) *RecordBuilder {
	b.fields.DataFiles = append(b.fields.DataFiles, names...)
	return b
}

func (b *RecordBuilder) Detail(name, value string) *RecordBuilder {
	b.fields.Details = append(b.fields.Details, asset.Detail{Name: name, Value: value})
	return b
}

// Uses adds a dependency on path.
func (b *RecordBuilder) Uses(path string, count int) *RecordBuilder {
	b.fields.Dependencies = append(b.fields.Dependencies, asset.Dependency{Path: path, UsageCount: count})
	return b
}

func (b *RecordBuilder) Fingerprint(fp uint64) *RecordBuilder {
	b.fields.Fingerprint = fp
	return b
}

func (b *RecordBuilder) Modified(at time.Time) *RecordBuilder {
	b.fields.LastModified = at
	return b
}

func (b *RecordBuilder) ReadOnly() *RecordBuilder {
	b.fields.Flags |= asset.FlagReadOnly
	return b
}

// Build creates the record.
func (b *RecordBuilder) Build() *asset.Record {
	return asset.New(b.fields)
}

// Clone returns a builder for a record with the same fields as rec,
// for building the incoming side of a merge.
func Clone(types *asset.TypeTable, rec *asset.Record) *RecordBuilder {
	b := &RecordBuilder{types: types}
	b.fields = asset.Fields{
		ID:           rec.ID(),
		Type:         rec.Type(),
		Name:         rec.Name(),
		PrimaryPath:  rec.PrimaryPath(),
		SourceFile:   rec.SourceFile(),
		WorkFiles:    rec.WorkFiles(),
		DataFiles:    rec.DataFiles(),
		Details:      rec.Details(),
		Dependencies: rec.Dependencies(),
		LastModified: rec.LastModified(),
		Fingerprint:  rec.Fingerprint(),
	}
	return b
}

// WriteMetadata encodes rec into its metadata file under root, creating
// folders as needed, and returns the absolute path written.
func WriteMetadata(t testing.TB, root string, rec *asset.Record) string {
	t.Helper()
	data, err := scan.Encode(rec)
	require.NoError(t, err)
	return WriteFile(t, root, rec.PrimaryPath(), string(data))
}

// WriteFile creates root/rel with content and returns its absolute path.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}
