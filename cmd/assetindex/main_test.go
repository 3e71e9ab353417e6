package main

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/config"
	"github.com/standardbeagle/assetindex/internal/registry"
	"github.com/standardbeagle/assetindex/testhelpers"
)

const projectConfig = `
project {
    name "forest"
}
types {
    type "model" {
        imported
        thumbnail
        derived "m"
    }
    type "texture" {
        imported
    }
    type "level"
}
cache {
    cleanup_interval_s 0
}
`

type testProject struct {
	root string
	tree *asset.Record
	bark *asset.Record
}

// setupTestProject writes a model using a texture, a thumbnail for the model
// and a project config declaring the fixture types.
func setupTestProject(t *testing.T) testProject {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	types := testhelpers.Types(t)
	tree := testhelpers.NewRecord(types, "objects/tree.cgf.cryasset").
		Data("tree.cgf").
		Uses("textures/bark.dds", 2).
		Detail("triangles", "1200").
		Build()
	bark := testhelpers.NewRecord(types, "textures/bark.dds.cryasset").
		Type(testhelpers.TextureType).
		Source("src/bark.tif").
		Data("bark.dds").
		Build()

	testhelpers.WriteMetadata(t, root, tree)
	testhelpers.WriteMetadata(t, root, bark)
	testhelpers.WriteFile(t, root, "objects/tree.cgf", "mesh")
	testhelpers.WriteFile(t, root, "objects/tree.cgf.cryasset"+asset.ThumbnailSuffix, "png!")
	testhelpers.WriteFile(t, root, "textures/bark.dds", "pixels")
	testhelpers.WriteFile(t, root, "src/bark.tif", "layers")
	testhelpers.WriteFile(t, root, config.ConfigFileName, projectConfig)

	return testProject{root: root, tree: tree, bark: bark}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"assetindex"}, args...))
	return out.String(), err
}

func TestScanCommand(t *testing.T) {
	p := setupTestProject(t)

	out, err := run(t, "--root", p.root, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 assets under "+p.root)
	assert.Contains(t, out, "model")
	assert.Contains(t, out, "texture")
}

func TestFindCommand(t *testing.T) {
	p := setupTestProject(t)

	t.Run("by data file", func(t *testing.T) {
		out, err := run(t, "--root", p.root, "find", "objects/tree.cgf")
		require.NoError(t, err)
		assert.Contains(t, out, "objects/tree.cgf.cryasset")
		assert.Contains(t, out, p.tree.ID().String())
		assert.Contains(t, out, "triangles: 1200")
		assert.Contains(t, out, "thumbnail: 4 bytes")
	})

	t.Run("absolute path as json", func(t *testing.T) {
		out, err := run(t, "--root", p.root, "find", "--json", filepath.Join(p.root, "textures", "bark.dds.cryasset"))
		require.NoError(t, err)

		var view map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.Equal(t, p.bark.ID().String(), view["id"])
		assert.Equal(t, "src/bark.tif", view["source_file"])
	})

	t.Run("miss suggests nearby paths", func(t *testing.T) {
		out, err := run(t, "--root", p.root, "find", "objects/tre.cgf.cryasset")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no asset owns objects/tre.cgf.cryasset")
		assert.Contains(t, out, "Did you mean:")
		assert.Contains(t, out, "objects/tree.cgf.cryasset")
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := run(t, "--root", p.root, "find")
		assert.ErrorContains(t, err, "missing argument 1")
	})
}

func TestDependencyCommands(t *testing.T) {
	p := setupTestProject(t)

	out, err := run(t, "--root", p.root, "deps", "objects/tree.cgf.cryasset")
	require.NoError(t, err)
	assert.Equal(t, "textures/bark.dds\t2\n", out)

	out, err = run(t, "--root", p.root, "rdeps", "Textures/Bark.dds")
	require.NoError(t, err)
	assert.Equal(t, "objects/tree.cgf.cryasset\t2\n", out)
}

func TestDepsCommand_Tree(t *testing.T) {
	p := setupTestProject(t)

	out, err := run(t, "--root", p.root, "deps", "--tree", "objects/tree.cgf")
	require.NoError(t, err)
	assert.Contains(t, out, "→ objects/tree.cgf.cryasset\n")
	assert.Contains(t, out, "  └─→ textures/bark.dds x2 [textures/bark.dds.cryasset]\n")

	out, err = run(t, "--root", p.root, "deps", "-t", "--format", "compact", "objects/tree.cgf")
	require.NoError(t, err)
	assert.Equal(t, "objects/tree.cgf.cryasset → textures/bark.dds\n", out)
}

func TestChangedCommand(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	p := setupTestProject(t)
	git := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = p.root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	git("init", "-q")
	git("config", "user.email", "test@example.com")
	git("config", "user.name", "Test")
	git("config", "commit.gpgsign", "false")
	git("add", ".")
	git("commit", "-q", "-m", "forest")
	testhelpers.WriteFile(t, p.root, "textures/bark.dds", "new pixels")

	out, err := run(t, "--root", p.root, "changed")
	require.NoError(t, err)
	assert.Equal(t, "modified\ttextures/bark.dds\ttextures/bark.dds.cryasset\n  used by objects/tree.cgf.cryasset\n", out)

	_, err = run(t, "--root", p.root, "changed", "--scope", "yesterday")
	assert.ErrorContains(t, err, "unknown scope")
}

func TestStatsCommand_JSON(t *testing.T) {
	p := setupTestProject(t)

	out, err := run(t, "--root", p.root, "stats", "--json")
	require.NoError(t, err)

	var stats registry.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 1, stats.SourceFiles)
	assert.Equal(t, 1, stats.DependencyEdges)
	assert.False(t, stats.Scanning)
}

func TestRenameCommand(t *testing.T) {
	p := setupTestProject(t)

	out, err := run(t, "--root", p.root, "rename", "objects/tree.cgf.cryasset", "oak")
	require.NoError(t, err)
	assert.Equal(t, "objects/tree.cgf.cryasset -> objects/oak.cgf.cryasset\n", out)

	assert.FileExists(t, filepath.Join(p.root, "objects", "oak.cgf.cryasset"))
	assert.FileExists(t, filepath.Join(p.root, "objects", "oak.cgf"))
	assert.FileExists(t, filepath.Join(p.root, "objects", "oak.cgf.cryasset"+asset.ThumbnailSuffix))
	assert.NoFileExists(t, filepath.Join(p.root, "objects", "tree.cgf"))

	out, err = run(t, "--root", p.root, "find", "objects/oak.cgf")
	require.NoError(t, err, "a fresh scan finds the asset by its renamed data file")
	assert.Contains(t, out, "  name:   oak\n")
	assert.Contains(t, out, p.tree.ID().String())
	assert.NotContains(t, out, "tree.cgf")
}

func TestMoveCommand(t *testing.T) {
	p := setupTestProject(t)

	out, err := run(t, "--root", p.root, "mv", "textures/bark.dds.cryasset", "textures/trees")
	require.NoError(t, err)
	assert.Equal(t, "textures/bark.dds.cryasset -> textures/trees/bark.dds.cryasset\n", out)
	assert.FileExists(t, filepath.Join(p.root, "textures", "trees", "bark.dds"))
	assert.FileExists(t, filepath.Join(p.root, "src", "bark.tif"), "source files stay put")

	out, err = run(t, "--root", p.root, "find", "--json", "textures/trees/bark.dds")
	require.NoError(t, err)
	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, p.bark.ID().String(), view["id"])
	assert.Equal(t, "src/bark.tif", view["source_file"], "the source resolves to the same file from the new folder")

	out, err = run(t, "--root", p.root, "find", "src/bark.tif")
	require.NoError(t, err)
	assert.Contains(t, out, "textures/trees/bark.dds.cryasset")
}

func TestDeleteCommand(t *testing.T) {
	p := setupTestProject(t)

	_, err := run(t, "--root", p.root, "delete", "textures/bark.dds")
	assert.ErrorContains(t, err, "--force")
	assert.FileExists(t, filepath.Join(p.root, "textures", "bark.dds"))

	out, err := run(t, "--root", p.root, "rm", "--force", "textures/bark.dds")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted textures/bark.dds\n")
	assert.NoFileExists(t, filepath.Join(p.root, "textures", "bark.dds.cryasset"))
	assert.NoFileExists(t, filepath.Join(p.root, "src", "bark.tif"), "last owner takes the source file")
	assert.FileExists(t, filepath.Join(p.root, "objects", "tree.cgf.cryasset"))
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	testhelpers.WriteFile(t, root, config.ConfigFileName, "scan {\n    workers -3\n}\n")

	_, err := run(t, "--root", root, "scan")
	assert.ErrorContains(t, err, "scan.workers")
}
