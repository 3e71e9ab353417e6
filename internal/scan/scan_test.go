package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/assetindex/internal/asset"
	apperrors "github.com/standardbeagle/assetindex/internal/errors"
	"github.com/standardbeagle/assetindex/internal/security"
)

func testTypes(t *testing.T) *asset.TypeTable {
	t.Helper()
	types, err := asset.NewTypeTable(
		&asset.BasicType{Name: "Model", Imported: true, Thumbnail: true},
		&asset.BasicType{Name: "Texture", Imported: true, Thumbnail: true},
	)
	require.NoError(t, err)
	return types
}

func metadata(id asset.ID, typ string, extra ...string) string {
	lines := []string{fmt.Sprintf("id = %q", id.String()), fmt.Sprintf("type = %q", typ)}
	return strings.Join(append(lines, extra...), "\n") + "\n"
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func TestScan_ParsesAndFilters(t *testing.T) {
	root := t.TempDir()
	treeID, rockID, barkID := asset.NewID(), asset.NewID(), asset.NewID()
	treeMeta := metadata(treeID, "Model", `source = "tree.fbx"`, `data_files = ["tree.cgf"]`)
	writeTree(t, root, map[string]string{
		"Assets/trees/tree.cgf.cryasset":     treeMeta,
		"Assets/rocks/rock.cgf.CRYASSET":     metadata(rockID, "Model"),
		"Assets/tex/bark.dds.cryasset":       metadata(barkID, "Texture"),
		"Assets/tex/broken.dds.cryasset":     "id = ",
		"Assets/tex/unknown.dds.cryasset":    metadata(asset.NewID(), "Sound"),
		"Assets/.thumbs/tree.cgf.cryasset":   metadata(asset.NewID(), "Model"),
		"Assets/trees/tree.cgf":              "binary",
		"Engine/shaders/common.cfx.cryasset": metadata(asset.NewID(), "Texture"),
	})

	e := New(Options{Root: root, Exclude: []string{"**/.thumbs/**"}, Workers: 2}, NewTOMLParser(testTypes(t)))
	res, err := e.Scan(context.Background(), []string{"Assets"})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Files)
	require.Len(t, res.Records, 3)
	require.Len(t, res.Timestamps, 3)
	assert.Len(t, res.Skipped, 2)

	paths := map[string]*asset.Record{}
	for i, r := range res.Records {
		paths[r.PrimaryPath()] = r
		assert.False(t, res.Timestamps[i].IsZero())
	}
	tree := paths["Assets/trees/tree.cgf.cryasset"]
	require.NotNil(t, tree)
	assert.Equal(t, treeID, tree.ID())
	assert.Equal(t, "Assets/trees/tree.fbx", tree.SourceFile())
	assert.Equal(t, []string{"Assets/trees/tree.cgf"}, tree.DataFilePaths())
	assert.Equal(t, xxhash.Sum64String(treeMeta), tree.Fingerprint())
	assert.False(t, tree.LastModified().IsZero(), "file mtime stamps records without last_modified")

	assert.Contains(t, paths, "Assets/rocks/rock.cgf.CRYASSET", "extension match is case-insensitive")
	assert.Contains(t, paths, "Assets/tex/bark.dds.cryasset")

	for _, s := range res.Skipped {
		var perr *apperrors.ParseError
		assert.True(t, errors.As(s.Err, &perr), "%s: %v", s.Path, s.Err)
	}
}

func TestScan_IncludePatternsAndWholeRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Assets/a.cryasset": metadata(asset.NewID(), "Model"),
		"Engine/b.cryasset": metadata(asset.NewID(), "Model"),
	})

	e := New(Options{Root: root, Include: []string{"Engine/**"}}, NewTOMLParser(testTypes(t)))
	res, err := e.Scan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Engine/b.cryasset", res.Records[0].PrimaryPath())
}

func TestScan_MissingRootAndOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Assets/big.cryasset": metadata(asset.NewID(), "Model", `name = "`+strings.Repeat("x", 200)+`"`),
	})

	e := New(Options{Root: root, MaxFileSize: 64}, NewTOMLParser(testTypes(t)))
	res, err := e.Scan(context.Background(), []string{"Missing", "Assets"})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "Missing", res.Skipped[0].Path)
	assert.Equal(t, "Assets/big.cryasset", res.Skipped[1].Path)
}

func TestScan_RejectsBinaryMetadata(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Assets/good.cryasset":   metadata(asset.NewID(), "Model"),
		"Assets/pasted.cryasset": "\x89PNG\r\n\x1a\nIHDR",
	})

	e := New(Options{Root: root}, NewTOMLParser(testTypes(t)))
	res, err := e.Scan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Assets/pasted.cryasset", res.Skipped[0].Path)
	assert.ErrorIs(t, res.Skipped[0].Err, security.ErrBinaryContent)
}

func TestScan_DuplicatePrimaryPathKeepsFirst(t *testing.T) {
	root := t.TempDir()
	first := asset.NewID()
	writeTree(t, root, map[string]string{"Assets/a.cryasset": metadata(first, "Model")})

	e := New(Options{Root: root}, NewTOMLParser(testTypes(t)))
	// the same folder listed twice yields every file twice
	res, err := e.Scan(context.Background(), []string{"Assets", "assets/../Assets"})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, first, res.Records[0].ID())
	assert.Len(t, res.Skipped, 1)
}

func TestScan_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.cryasset": metadata(asset.NewID(), "Model")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{Root: root}, NewTOMLParser(testTypes(t))).Scan(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_StartLifecycle(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.cryasset": metadata(asset.NewID(), "Model")})

	release := make(chan struct{})
	base := NewTOMLParser(testTypes(t))
	parser := parserFunc(func(p string, data []byte) (*asset.Record, error) {
		<-release
		return base.Parse(p, data)
	})
	e := New(Options{Root: root}, parser)
	assert.Equal(t, Idle, e.State())

	results := make(chan Result, 1)
	calls := 0
	require.NoError(t, e.Start(nil, func(r Result) {
		calls++
		results <- r
	}))
	assert.Equal(t, Scanning, e.State())
	assert.ErrorIs(t, e.Start(nil, func(Result) {}), ErrScanInProgress)

	close(release)
	select {
	case res := <-results:
		assert.Len(t, res.Records, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not complete")
	}
	e.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, Completed, e.State())
	assert.ErrorIs(t, e.Start(nil, func(Result) {}), ErrScanInProgress, "a completed scan must be acknowledged first")

	e.Acknowledge()
	assert.Equal(t, Idle, e.State())
	assert.Equal(t, "idle", e.State().String())
}

func TestNew_Defaults(t *testing.T) {
	e := New(Options{MetadataExt: "meta"}, nil)
	opts := e.Options()
	assert.Equal(t, ".meta", opts.MetadataExt)
	assert.Equal(t, DefaultWorkers, opts.Workers)
	assert.Equal(t, int64(DefaultMaxFileSize), opts.MaxFileSize)
}

type parserFunc func(string, []byte) (*asset.Record, error)

func (f parserFunc) Parse(p string, data []byte) (*asset.Record, error) { return f(p, data) }
