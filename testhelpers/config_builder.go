package testhelpers

import (
	"github.com/standardbeagle/assetindex/internal/config"
)

// TestConfigBuilder builds configs for tests without touching the home directory.
type TestConfigBuilder struct {
	cfg *config.Config
}

// NewTestConfigBuilder starts from the defaults with projectRoot as the root.
// Gitignore handling is off so tests see exactly the patterns they set.
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	cfg := config.Default()
	cfg.Project.Root = projectRoot
	cfg.Scan.RespectGitignore = false
	cfg.Scan.Workers = 2
	cfg.Files.DeleteWorkers = 2
	return &TestConfigBuilder{cfg: cfg}
}

// WithExclusions replaces the exclusion patterns.
func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.cfg.Exclude = patterns
	return b
}

func (b *TestConfigBuilder) WithIncludePatterns(patterns ...string) *TestConfigBuilder {
	b.cfg.Include = patterns
	return b
}

func (b *TestConfigBuilder) WithRoots(roots ...string) *TestConfigBuilder {
	b.cfg.Scan.Roots = roots
	return b
}

func (b *TestConfigBuilder) WithTypes(types ...config.TypeConfig) *TestConfigBuilder {
	b.cfg.Types = types
	return b
}

func (b *TestConfigBuilder) WithMetadataExt(ext string) *TestConfigBuilder {
	b.cfg.Scan.MetadataExt = ext
	return b
}

func (b *TestConfigBuilder) Build() *config.Config {
	return b.cfg
}
