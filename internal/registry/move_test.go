package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/assetindex/internal/asset"
	apperrors "github.com/standardbeagle/assetindex/internal/errors"
	"github.com/standardbeagle/assetindex/internal/fileops"
	"github.com/standardbeagle/assetindex/testhelpers"
)

func TestRename_ReindexesUnderNewPath(t *testing.T) {
	r := newRig(t)
	a := r.record("objects/oak.cgf.cryasset").
		Data("oak.cgf", "oak_lod1.cgf", "bark.mtl").
		Build()
	other := r.record("objects/pine.cgf.cryasset").Uses("objects/oak.cgf", 1).Build()
	require.NoError(t, r.reg.InsertBatch([]*asset.Record{a, other}))
	id := a.ID()
	r.sink.Reset()

	require.NoError(t, r.reg.Rename(a, "elm"))

	assert.Equal(t, "objects/elm.cgf.cryasset", a.PrimaryPath())
	assert.Equal(t, "elm", a.Name())
	assert.Equal(t, []string{"elm.cgf", "elm_lod1.cgf", "bark.mtl"}, a.DataFiles())

	for _, old := range []string{"objects/oak.cgf.cryasset", "objects/oak.cgf", "objects/oak_lod1.cgf"} {
		_, ok := r.reg.FindByAnyFile(old)
		assert.False(t, ok, old)
	}
	for _, now := range []string{"objects/elm.cgf.cryasset", "objects/elm.cgf", "objects/bark.mtl"} {
		got, ok := r.reg.FindByAnyFile(now)
		require.True(t, ok, now)
		assert.Equal(t, id, got.ID())
	}
	assert.Same(t, a, mustFind(t, r.reg, "objects/elm.cgf.cryasset"))

	require.Len(t, r.mover.moves, 1)
	assert.Equal(t, []fileops.Move{
		{From: "objects/oak.cgf.cryasset", To: "objects/elm.cgf.cryasset"},
		{From: "objects/oak.cgf", To: "objects/elm.cgf"},
		{From: "objects/oak_lod1.cgf", To: "objects/elm_lod1.cgf"},
		{From: "objects/bark.mtl", To: "objects/bark.mtl"},
		{From: "objects/oak.cgf.cryasset" + asset.ThumbnailSuffix, To: "objects/elm.cgf.cryasset" + asset.ThumbnailSuffix},
	}, r.mover.moves[0])

	assert.Equal(t, []string{testhelpers.EventUpdated}, r.sink.Events())
	assert.Equal(t, []string{"objects/oak.cgf.cryasset"}, r.derived.invalidated)
	assert.Equal(t, []string{"objects/elm.cgf.cryasset elm"}, r.writer.written)
	assert.True(t, r.reg.IsLive(other))
	assert.Equal(t, "objects/pine.cgf.cryasset", other.PrimaryPath())
}

func TestMove_KeepsFileNames(t *testing.T) {
	r := newRig(t)
	a := r.record("textures/bark.dds.cryasset").Type(testhelpers.TextureType).Source("src/bark.tif").Data("bark.dds").Build()
	require.NoError(t, r.reg.InsertBatch([]*asset.Record{a}))

	require.NoError(t, r.reg.Move(a, "textures/trees"))

	assert.Equal(t, "textures/trees/bark.dds.cryasset", a.PrimaryPath())
	assert.Equal(t, "bark", a.Name())
	got, ok := r.reg.FindByAnyFile("textures/trees/bark.dds")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = r.reg.FindByAnyFile("textures/bark.dds")
	assert.False(t, ok)
	assert.Equal(t, 1, r.reg.SourceFileOwners("src/bark.tif"), "source files stay where they are")
	assert.Len(t, r.mover.moves[0], 2, "textures have no thumbnail to move")
	assert.Equal(t, []string{"textures/trees/bark.dds.cryasset bark"}, r.writer.written)
}

func TestRelocate_MetadataWriteFailure(t *testing.T) {
	r := newRig(t)
	a := r.record("objects/oak.cgf.cryasset").Data("oak.cgf").Build()
	require.NoError(t, r.reg.InsertBatch([]*asset.Record{a}))
	r.writer.err = errDiskFull
	r.sink.Reset()

	err := r.reg.Rename(a, "elm")

	var perr *apperrors.PartialIndexError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, "objects/elm.cgf.cryasset", perr.Path)
	assert.Equal(t, 3, perr.Completed)
	assert.Equal(t, 4, perr.Total)

	assert.Same(t, a, mustFind(t, r.reg, "objects/elm.cgf.cryasset"), "files were moved, the index follows them")
	got, ok := r.reg.FindByAnyFile("objects/elm.cgf")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, []string{testhelpers.EventUpdated}, r.sink.Events())
}

func TestMove_NoOpWhenUnchanged(t *testing.T) {
	r := newRig(t)
	a := r.record("levels/a.lvl.cryasset").Build()
	require.NoError(t, r.reg.InsertBatch([]*asset.Record{a}))
	r.sink.Reset()

	require.NoError(t, r.reg.Move(a, "Levels"))
	assert.Empty(t, r.mover.moves)
	assert.Empty(t, r.sink.Events())
}

func TestRelocate_Refusals(t *testing.T) {
	r := newRig(t)
	a := r.record("objects/a.cgf.cryasset").Data("a.cgf").Build()
	taken := r.record("objects/b.cgf.cryasset").Build()
	dataOwner := r.record("other/x.cgf.cryasset").Data("../objects/c.cgf").Build()
	locked := r.record("objects/locked.cgf.cryasset").ReadOnly().Build()
	require.NoError(t, r.reg.InsertBatch([]*asset.Record{a, taken, dataOwner, locked}))
	stranger := r.record("objects/s.cgf.cryasset").Build()

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"nil record", func() error { return r.reg.Rename(nil, "x") }, ErrNotLive},
		{"not registered", func() error { return r.reg.Move(stranger, "elsewhere") }, ErrNotLive},
		{"read only", func() error { return r.reg.Rename(locked, "open") }, ErrReadOnly},
		{"primary path taken", func() error { return r.reg.Rename(a, "b") }, ErrPathTaken},
		{"data file taken", func() error { return r.reg.Rename(a, "c") }, ErrPathTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.ErrorContains(t, r.reg.Rename(a, "sub/dir"), "invalid name")
	assert.Empty(t, r.mover.moves, "refusals never touch the disk")
	assert.Same(t, a, mustFind(t, r.reg, "objects/a.cgf.cryasset"))
}

func TestRename_OpenForEditIsRefused(t *testing.T) {
	r := newRig(t)
	a := r.record("a.cgf.cryasset").Build()
	require.NoError(t, r.reg.InsertBatch([]*asset.Record{a}))
	a.SetOpenForEdit(true)
	assert.ErrorIs(t, r.reg.Rename(a, "b"), ErrReadOnly)
}

func TestRename_PartialFailureRestoresIndex(t *testing.T) {
	r := newRig(t)
	r.mover.failAfter = 1
	a := r.record("objects/oak.cgf.cryasset").Data("oak.cgf").Build()
	require.NoError(t, r.reg.InsertBatch([]*asset.Record{a}))
	r.sink.Reset()

	err := r.reg.Rename(a, "elm")
	require.Error(t, err)

	var partial *apperrors.PartialIndexError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 1, partial.Completed)
	assert.Equal(t, 3, partial.Total)
	assert.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, "objects/oak.cgf.cryasset", a.PrimaryPath())
	assert.Same(t, a, mustFind(t, r.reg, "objects/oak.cgf.cryasset"))
	got, ok := r.reg.FindByAnyFile("objects/oak.cgf")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = r.reg.FindByAnyFile("objects/elm.cgf")
	assert.False(t, ok)
	assert.Empty(t, r.sink.Events())
}

func TestRelocate_LifecycleHooks(t *testing.T) {
	r := newRig(t)
	hooks := &hookType{BasicType: &asset.BasicType{Name: "hooked"}}
	require.NoError(t, r.types.Register(hooks))
	a := r.record("a.x.cryasset").Type("hooked").Build()
	require.NoError(t, r.reg.InsertBatch([]*asset.Record{a}))

	require.NoError(t, r.reg.Rename(a, "b"))
	require.NoError(t, r.reg.Move(a, "sub"))

	assert.Equal(t, []string{"a.x.cryasset"}, hooks.renamed)
	assert.Equal(t, []string{"b.x.cryasset"}, hooks.moved)
	assert.Equal(t, "sub/b.x.cryasset", a.PrimaryPath())
}

func TestRename_LocalMover(t *testing.T) {
	root := t.TempDir()
	types := testhelpers.Types(t)
	a := testhelpers.NewRecord(types, "objects/oak.cgf.cryasset").Data("oak.cgf").Build()
	testhelpers.WriteMetadata(t, root, a)
	testhelpers.WriteFile(t, root, "objects/oak.cgf", "mesh")
	testhelpers.WriteFile(t, root, "objects/elm.cgf", "in the way")

	r := newRig(t)
	reg := New(Options{Dispatch: r.loop, Mover: fileops.NewLocalMover(root)})
	defer reg.Close()
	require.NoError(t, reg.InsertBatch([]*asset.Record{a}))

	err := reg.Rename(a, "elm")
	require.ErrorIs(t, err, fileops.ErrDestinationExists)
	assert.FileExists(t, filepath.Join(root, "objects", "elm.cgf.cryasset"), "metadata moved before the failure")
	assert.Equal(t, "objects/oak.cgf.cryasset", a.PrimaryPath(), "record keeps its old paths")

	require.NoError(t, reg.Rename(a, "ash"), "missing sources are skipped")
	assert.Equal(t, "objects/ash.cgf.cryasset", a.PrimaryPath())
	assert.NoFileExists(t, filepath.Join(root, "objects", "oak.cgf"))
}
