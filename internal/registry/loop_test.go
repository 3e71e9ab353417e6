package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/config"
	"github.com/standardbeagle/assetindex/internal/fileops"
	"github.com/standardbeagle/assetindex/internal/owner"
	"github.com/standardbeagle/assetindex/internal/scan"
	"github.com/standardbeagle/assetindex/testhelpers"
)

// TestRegistry_OwnerLoop drives a registry from a running owner loop with
// the real scan engine and delete executor, as the CLI does.
func TestRegistry_OwnerLoop(t *testing.T) {
	root := t.TempDir()
	cfg := testhelpers.NewTestConfigBuilder(root).
		WithTypes(
			config.TypeConfig{Name: testhelpers.ModelType, Imported: true},
			config.TypeConfig{Name: testhelpers.TextureType, Imported: true},
		).
		WithExclusions("**/backup/**").
		Build()
	types, err := cfg.TypeTable()
	require.NoError(t, err)

	tree := testhelpers.NewRecord(types, "objects/tree.cgf.cryasset").Data("tree.cgf").Source("src/tree.fbx").Build()
	bark := testhelpers.NewRecord(types, "textures/bark.dds.cryasset").Type(testhelpers.TextureType).Build()
	old := testhelpers.NewRecord(types, "backup/tree.cgf.cryasset").Build()
	for _, rec := range []*asset.Record{tree, bark, old} {
		testhelpers.WriteMetadata(t, root, rec)
	}
	testhelpers.WriteFile(t, root, "objects/tree.cgf", "mesh")
	testhelpers.WriteFile(t, root, "src/tree.fbx", "scene")

	engine := scan.New(scan.Options{
		Root:    root,
		Exclude: cfg.Exclude,
		Workers: cfg.Scan.Workers,
	}, scan.NewTOMLParser(types))
	deleter := fileops.NewLocalExecutor(root, cfg.Files.DeleteWorkers)
	sink := testhelpers.NewRecordingSink()
	loop := owner.NewLoop()
	reg := New(Options{Dispatch: loop, Sink: sink, Scanner: engine, Deleter: deleter})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	t.Cleanup(func() {
		engine.Wait()
		deleter.Wait()
		cancel()
		<-done
	})

	scanned := sink.Bus.Subscribe(testhelpers.EventScanCompleted)
	var startErr error
	require.NoError(t, loop.Do(ctx, func() { startErr = reg.StartScan(cfg.Scan.Roots) }))
	require.NoError(t, startErr)
	require.True(t, testhelpers.WaitFor(ctx, scanned, 5*time.Second), "scan never completed")

	var count int
	var found bool
	require.NoError(t, loop.Do(ctx, func() {
		count = reg.Count()
		_, found = reg.FindByAnyFile("src/tree.fbx")
	}))
	assert.Equal(t, 2, count, "backup folder is excluded")
	assert.True(t, found)

	deleted := sink.Bus.Subscribe(testhelpers.EventFilesDeleted)
	var groups []fileops.FileGroup
	require.NoError(t, loop.Do(ctx, func() {
		if rec, ok := reg.FindByPrimaryPath("objects/tree.cgf.cryasset"); ok {
			groups = reg.DeleteWithFiles([]*asset.Record{rec})
		}
	}))
	require.Len(t, groups, 1)
	require.True(t, testhelpers.WaitFor(ctx, deleted, 5*time.Second), "delete never reported")

	assert.NoFileExists(t, filepath.Join(root, "objects", "tree.cgf.cryasset"))
	assert.NoFileExists(t, filepath.Join(root, "objects", "tree.cgf"))
	assert.NoFileExists(t, filepath.Join(root, "src", "tree.fbx"))
	assert.FileExists(t, filepath.Join(root, "backup", "tree.cgf.cryasset"))
}
