package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/assetindex/internal/config"
	"github.com/standardbeagle/assetindex/internal/debug"
	"github.com/standardbeagle/assetindex/internal/fileops"
	"github.com/standardbeagle/assetindex/internal/owner"
	"github.com/standardbeagle/assetindex/internal/registry"
	"github.com/standardbeagle/assetindex/internal/scan"
	"github.com/standardbeagle/assetindex/internal/thumbcache"
)

// project is the composition root of one CLI invocation: a registry driven
// by an owner loop, scanned from the configured root.
type project struct {
	cfg     *config.Config
	reg     *registry.Registry
	loop    *owner.Loop
	engine  *scan.Engine
	deleter *fileops.LocalExecutor
	thumbs  *thumbcache.Cache
	sink    *cliSink

	stop context.CancelFunc
	done chan struct{}
}

// cliSink tracks scan completion and delete results for the CLI.
type cliSink struct {
	registry.NopSink
	scanned chan struct{}
	deleted chan fileops.Result
}

func (s *cliSink) ScanCompleted() {
	select {
	case s.scanned <- struct{}{}:
	default:
	}
}

func (s *cliSink) FilesDeleted(res fileops.Result) {
	select {
	case s.deleted <- res:
	default:
		debug.LogFileOps("delete result dropped, %d files deleted\n", len(res.Deleted))
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	// --config names the directory holding .assetindex.kdl when it is not the root
	searchDir := absRoot
	if dir := c.String("config"); dir != "" {
		searchDir = dir
	}
	cfg, err := config.Load(searchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.String("root") != "" {
		cfg.Project.Root = absRoot
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Scan.Workers = workers
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.EnrichExclusionsWithGitignore(); err != nil {
		return nil, fmt.Errorf("failed to read .gitignore: %w", err)
	}
	return cfg, nil
}

func openProject(cfg *config.Config) (*project, error) {
	types, err := cfg.TypeTable()
	if err != nil {
		return nil, fmt.Errorf("invalid asset types: %w", err)
	}

	p := &project{
		cfg:  cfg,
		loop: owner.NewLoop(),
		engine: scan.New(scan.Options{
			Root:        cfg.Project.Root,
			Include:     cfg.Include,
			Exclude:     cfg.Exclude,
			MetadataExt: cfg.Scan.MetadataExt,
			Workers:     cfg.Scan.Workers,
			MaxFileSize: cfg.Scan.MaxFileSize,
		}, scan.NewTOMLParser(types)),
		deleter: fileops.NewLocalExecutor(cfg.Project.Root, cfg.Files.DeleteWorkers),
		thumbs:  thumbcache.New(cfg.Cache.ThumbnailTTL, cfg.Cache.CleanupInterval, thumbcache.DiskLoader(cfg.Project.Root)),
		sink: &cliSink{
			scanned: make(chan struct{}, 1),
			deleted: make(chan fileops.Result, 1),
		},
		done: make(chan struct{}),
	}
	p.reg = registry.New(registry.Options{
		Dispatch: p.loop,
		Sink:     p.sink,
		Scanner:  p.engine,
		Deleter:  p.deleter,
		Mover:    fileops.NewLocalMover(cfg.Project.Root),
		Writer:   scan.NewMetadataWriter(cfg.Project.Root),
		Derived:  p.thumbs,
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.stop = cancel
	go func() {
		defer close(p.done)
		p.loop.Run(ctx)
	}()
	return p, nil
}

// scan fills the registry from disk and waits for the batch to be merged.
func (p *project) scan(ctx context.Context) error {
	start := time.Now()
	var startErr error
	if err := p.do(ctx, func(reg *registry.Registry) {
		startErr = reg.StartScan(p.cfg.Scan.Roots)
	}); err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}

	select {
	case <-p.sink.scanned:
	case <-ctx.Done():
		return ctx.Err()
	}
	debug.LogScan("project %s scanned in %v\n", p.cfg.Project.Name, time.Since(start))
	return nil
}

// do runs fn on the owner loop and waits for it.
func (p *project) do(ctx context.Context, fn func(*registry.Registry)) error {
	return p.loop.Do(ctx, func() { fn(p.reg) })
}

// waitDeleted blocks until the registry reports the outcome of a delete.
func (p *project) waitDeleted(ctx context.Context) (fileops.Result, error) {
	select {
	case res := <-p.sink.deleted:
		return res, nil
	case <-ctx.Done():
		return fileops.Result{}, ctx.Err()
	}
}

func (p *project) Close() {
	// in-flight work reports before the loop goes away
	p.engine.Wait()
	p.deleter.Wait()

	_ = p.do(context.Background(), func(reg *registry.Registry) { reg.Close() })
	p.stop()
	<-p.done
}
