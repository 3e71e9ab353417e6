package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfigs_ExclusionsMerge(t *testing.T) {
	base := &Config{Exclude: []string{"**/.git/**", "**/_cache/**"}}
	project := &Config{Exclude: []string{"**/export/**", "**/.git/**"}}

	merged := mergeConfigs(base, project)

	assert.Equal(t, []string{"**/.git/**", "**/_cache/**", "**/export/**"}, merged.Exclude)
}

func TestMergeConfigs_ProjectOverrides(t *testing.T) {
	base := &Config{
		Include:  []string{"objects/**"},
		Scan:     Scan{Roots: []string{"objects"}, Workers: 4},
		Types:    []TypeConfig{{Name: "Base"}},
		typesSet: true,
	}

	t.Run("project values win", func(t *testing.T) {
		project := &Config{
			Include:  []string{"levels/**"},
			Scan:     Scan{Roots: []string{"levels"}, Workers: 1},
			Types:    []TypeConfig{{Name: "Level"}},
			typesSet: true,
		}
		merged := mergeConfigs(base, project)
		assert.Equal(t, []string{"levels/**"}, merged.Include)
		assert.Equal(t, []string{"levels"}, merged.Scan.Roots)
		assert.Equal(t, 1, merged.Scan.Workers)
		assert.Equal(t, "Level", merged.Types[0].Name)
	})

	t.Run("unset project values fall back to the base", func(t *testing.T) {
		project := &Config{Types: DefaultTypes()}
		merged := mergeConfigs(base, project)
		assert.Equal(t, []string{"objects/**"}, merged.Include)
		assert.Equal(t, []string{"objects"}, merged.Scan.Roots)
		assert.Equal(t, []TypeConfig{{Name: "Base"}}, merged.Types)
	})
}

func TestMergeConfigs_DoesNotAliasBase(t *testing.T) {
	base := &Config{Exclude: []string{"a"}}
	project := &Config{Exclude: []string{"b"}}

	merged := mergeConfigs(base, project)
	merged.Exclude[0] = "changed"

	assert.Equal(t, []string{"a"}, base.Exclude)
}

func TestDeduplicatePatterns(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, DeduplicatePatterns([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, DeduplicatePatterns(nil))
}

func TestLoadWithRoot_HomeAndProject(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, `
exclude "**/.git/**" "**/personal/**"
scan { workers 6 }
`)

	project := t.TempDir()
	writeConfig(t, project, `
exclude "**/export/**"
scan { roots "objects" }
`)

	cfg, err := LoadWithRoot("", project)
	require.NoError(t, err)

	assert.Equal(t, project, cfg.Project.Root)
	assert.Equal(t, []string{"**/.git/**", "**/personal/**", "**/export/**"}, cfg.Exclude)
	assert.Equal(t, []string{"objects"}, cfg.Scan.Roots)
	assert.Zero(t, cfg.Scan.Workers, "scalar settings come from the project file")
}

func TestLoadWithRoot_HomeOnly(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, `scan { metadata_ext ".meta" }`)

	project := t.TempDir()
	cfg, err := LoadWithRoot(project, "")
	require.NoError(t, err)

	assert.Equal(t, ".meta", cfg.Scan.MetadataExt)
	assert.Equal(t, project, cfg.Project.Root, "root is the searched directory, not home")
}

func TestLoadWithRoot_NoFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, project, cfg.Project.Root)
	assert.Equal(t, DefaultTypes(), cfg.Types)
}

func TestLoadWithRoot_SearchingHomeReadsItOnce(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, `exclude "**/a/**"`)

	cfg, err := LoadWithRoot(home, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"**/a/**"}, cfg.Exclude)
}

func TestEnrichExclusionsWithGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("export/\n*.bak\n"), 0o644))

	cfg := Default()
	cfg.Project.Root = root
	require.NoError(t, cfg.EnrichExclusionsWithGitignore())
	assert.Contains(t, cfg.Exclude, "**/export/**")
	assert.Contains(t, cfg.Exclude, "**/*.bak")

	off := Default()
	off.Project.Root = root
	off.Scan.RespectGitignore = false
	require.NoError(t, off.EnrichExclusionsWithGitignore())
	assert.Equal(t, getDefaultExclusions(), off.Exclude)
}

func TestConfigTypeTable(t *testing.T) {
	cfg := Default()
	cfg.Project.Root = "/game"

	table, err := cfg.TypeTable()
	require.NoError(t, err)

	model, ok := table.Lookup("Model")
	require.True(t, ok)
	assert.Equal(t, "Model", model.TypeName())

	cfg.Types = append(cfg.Types, TypeConfig{Name: "Model"})
	_, err = cfg.TypeTable()
	assert.Error(t, err, "duplicate type names are rejected")
}
