package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/standardbeagle/assetindex/internal/asset"
)

// Defaults shared by the KDL loader and the validator.
const (
	DefaultMetadataExt     = ".cryasset"
	DefaultMaxFileSize     = 1 << 20
	DefaultThumbnailTTL    = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
	DefaultDeleteWorkers   = 8

	// ConfigFileName is looked up in the project root and the home directory.
	ConfigFileName = ".assetindex.kdl"
)

type Config struct {
	Version int
	Project Project
	Scan    Scan
	Types   []TypeConfig
	Cache   Cache
	Files   Files
	Include []string
	Exclude []string

	// typesSet records that Types came from a config file rather than defaults.
	typesSet bool
}

type Project struct {
	Root string
	Name string
}

type Scan struct {
	Roots            []string // Asset-relative folders to scan; empty scans the whole root
	MetadataExt      string   // Extension of per-asset metadata files
	Workers          int      // Parallel metadata parsers, 0 = auto-detect
	MaxFileSize      int64    // Larger metadata files are skipped
	RespectGitignore bool     // Add the root .gitignore patterns to Exclude
}

// TypeConfig declares one asset type.
type TypeConfig struct {
	Name      string
	Imported  bool
	Thumbnail bool
	// DerivedExts name files generated next to each data file, such as ".cgfm".
	DerivedExts []string
}

type Cache struct {
	ThumbnailTTL    time.Duration
	CleanupInterval time.Duration
}

type Files struct {
	DeleteWorkers int
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Version: 1,
		Project: Project{Root: cwd},
		Scan: Scan{
			MetadataExt:      DefaultMetadataExt,
			MaxFileSize:      DefaultMaxFileSize,
			RespectGitignore: true,
		},
		Types: DefaultTypes(),
		Cache: Cache{
			ThumbnailTTL:    DefaultThumbnailTTL,
			CleanupInterval: DefaultCleanupInterval,
		},
		Files:   Files{DeleteWorkers: DefaultDeleteWorkers},
		Include: []string{},
		Exclude: getDefaultExclusions(),
	}
}

// DefaultTypes is the asset type set of a stock project.
func DefaultTypes() []TypeConfig {
	return []TypeConfig{
		{Name: "Model", Imported: true, Thumbnail: true, DerivedExts: []string{"m"}},
		{Name: "Texture", Imported: true, Thumbnail: true},
		{Name: "Material", Thumbnail: true},
		{Name: "Particles", Thumbnail: true},
		{Name: "Animation", Imported: true},
		{Name: "Sound", Imported: true},
		{Name: "Level"},
	}
}

func getDefaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/.svn/**",
		"**/.thumbs/**",
		"**/_cache/**",
		"**/user/**",
	}
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads ~/.assetindex.kdl as a base and the project file from
// rootDir (or path when rootDir is empty) over it.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := path
	if rootDir != "" {
		searchDir = rootDir
	}
	if searchDir == "" {
		searchDir = "."
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if abs, _ := filepath.Abs(searchDir); abs != filepath.Clean(homeDir) {
			if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
				baseConfig = globalCfg
			}
		}
	}

	projectConfig, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = absOr(searchDir)
		return baseConfig, nil
	}

	cfg := Default()
	cfg.Project.Root = absOr(searchDir)
	return cfg, nil
}

func absOr(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string(nil), base.Exclude...), project.Exclude...))
	}

	// Inclusions, roots and types: the project replaces the base when it sets them
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}
	if len(project.Scan.Roots) == 0 && len(base.Scan.Roots) > 0 {
		merged.Scan.Roots = base.Scan.Roots
	}
	if !project.typesSet && base.typesSet {
		merged.Types = base.Types
	}

	return &merged
}

// DeduplicatePatterns removes repeated patterns keeping first occurrence.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// EnrichExclusionsWithGitignore adds the project's .gitignore patterns to
// Exclude when Scan.RespectGitignore is set.
func (c *Config) EnrichExclusionsWithGitignore() error {
	if !c.Scan.RespectGitignore || c.Project.Root == "" {
		return nil
	}
	gp := NewGitignoreParser()
	if err := gp.LoadGitignore(c.Project.Root); err != nil {
		return err
	}
	if patterns := gp.GetExclusionPatterns(); len(patterns) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, patterns...))
	}
	return nil
}

// TypeTable builds the asset type descriptors. Absolute paths resolve
// against the project root.
func (c *Config) TypeTable() (*asset.TypeTable, error) {
	types := make([]asset.Type, 0, len(c.Types))
	for _, tc := range c.Types {
		types = append(types, &asset.BasicType{
			Name:        tc.Name,
			Imported:    tc.Imported,
			Thumbnail:   tc.Thumbnail,
			DerivedExts: append([]string(nil), tc.DerivedExts...),
			Root:        c.Project.Root,
		})
	}
	return asset.NewTypeTable(types...)
}
