// Package scan enumerates metadata files under the configured roots and
// parses them into a record batch off the registry's owner context.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	apperrors "github.com/standardbeagle/assetindex/internal/errors"
	"github.com/standardbeagle/assetindex/internal/security"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

const (
	DefaultMetadataExt = ".cryasset"
	DefaultWorkers     = 8
	DefaultMaxFileSize = 1 << 20
)

// ErrScanInProgress is returned by Start while a previous scan is unacknowledged.
var ErrScanInProgress = errors.New("scan already in progress")

// State of the engine.
type State int32

const (
	Idle State = iota
	Scanning
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures an Engine.
type Options struct {
	// Root is the project root; record paths are relative to it.
	Root        string
	Include     []string
	Exclude     []string
	MetadataExt string
	Workers     int
	MaxFileSize int64
}

// Skipped is a metadata file left out of the batch.
type Skipped struct {
	Path string
	Err  error
}

// Result is the batch delivered by a scan.
type Result struct {
	Records []*asset.Record
	// Timestamps[i] is the modification time of the metadata file of Records[i].
	Timestamps []time.Time
	Skipped    []Skipped
	Files      int
	Duration   time.Duration
}

// Engine scans metadata files. Only one asynchronous scan runs at a time.
type Engine struct {
	opts      Options
	parser    Parser
	validator *security.MetadataValidator

	state atomic.Int32
	wg    sync.WaitGroup
}

// New creates an engine. Zero options take their defaults.
func New(opts Options, parser Parser) *Engine {
	if opts.MetadataExt == "" {
		opts.MetadataExt = DefaultMetadataExt
	}
	if !strings.HasPrefix(opts.MetadataExt, ".") {
		opts.MetadataExt = "." + opts.MetadataExt
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Root != "" {
		if abs, err := filepath.Abs(opts.Root); err == nil {
			opts.Root = abs
		}
	}
	return &Engine{opts: opts, parser: parser, validator: security.NewMetadataValidator()}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// State returns the current state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Start scans roots on a new goroutine and calls done exactly once with the
// whole batch. Roots are asset-relative folders; none means the whole root.
// The engine stays Completed until Acknowledge.
func (e *Engine) Start(roots []string, done func(Result)) error {
	if !e.state.CompareAndSwap(int32(Idle), int32(Scanning)) {
		return ErrScanInProgress
	}
	roots = append([]string(nil), roots...)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		res, err := e.Scan(context.Background(), roots)
		if err != nil {
			log.Printf("Warning: scan stopped early: %v", err)
		}
		e.state.Store(int32(Completed))
		done(res)
	}()
	return nil
}

// Acknowledge returns a Completed engine to Idle.
func (e *Engine) Acknowledge() {
	e.state.CompareAndSwap(int32(Completed), int32(Idle))
}

// Wait blocks until every started scan has delivered its result.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Scan runs synchronously on the caller's goroutine without touching the
// engine state. It returns the files parsed so far with ctx's error if ctx ends.
func (e *Engine) Scan(ctx context.Context, roots []string) (Result, error) {
	start := time.Now()
	if len(roots) == 0 {
		roots = []string{""}
	}

	var res Result
	var files []string
	for _, root := range roots {
		found, skipped, err := e.collect(ctx, root)
		files = append(files, found...)
		res.Skipped = append(res.Skipped, skipped...)
		if err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
	}
	res.Files = len(files)
	debug.LogScan("found %d metadata files under %d roots\n", len(files), len(roots))

	parsed := make([]*asset.Record, len(files))
	stamps := make([]time.Time, len(files))
	failures := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i], stamps[i], failures[i] = e.parseFile(file)
			return nil
		})
	}
	waitErr := g.Wait()

	seen := make(map[string]string, len(files))
	for i, file := range files {
		if failures[i] != nil {
			log.Printf("Warning: skipping %s: %v", file, failures[i])
			res.Skipped = append(res.Skipped, Skipped{Path: file, Err: failures[i]})
			continue
		}
		r := parsed[i]
		if r == nil {
			continue
		}
		if first, dup := seen[r.Key()]; dup {
			log.Printf("Warning: %s duplicates primary path of %s, keeping the first", file, first)
			res.Skipped = append(res.Skipped, Skipped{Path: file, Err: fmt.Errorf("duplicate primary path %s", r.PrimaryPath())})
			continue
		}
		seen[r.Key()] = file
		res.Records = append(res.Records, r)
		res.Timestamps = append(res.Timestamps, stamps[i])
	}

	res.Duration = time.Since(start)
	debug.LogScan("scan finished: %d records, %d skipped in %v\n", len(res.Records), len(res.Skipped), res.Duration)
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	return res, waitErr
}

// collect walks one root and returns the asset paths of matching metadata files.
func (e *Engine) collect(ctx context.Context, root string) ([]string, []Skipped, error) {
	absRoot := pathutil.ToAbsolute(root, e.opts.Root)
	if absRoot == "" {
		absRoot = e.opts.Root
	}
	if absRoot == "" {
		absRoot = "."
	}
	var files []string
	var skipped []Skipped

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == absRoot {
				skipped = append(skipped, Skipped{Path: root, Err: apperrors.NewFileError("scan", root, walkErr)})
				return filepath.SkipDir
			}
			debug.LogScan("scanner error for %s: %v\n", path, walkErr)
			return nil
		}

		rel := e.assetPath(path)
		if d.IsDir() {
			if path != absRoot && (e.shouldExclude(rel) || e.shouldExclude(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), e.opts.MetadataExt) {
			return nil
		}
		if e.shouldExclude(rel) || !e.shouldInclude(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			skipped = append(skipped, Skipped{Path: rel, Err: apperrors.NewFileError("stat", rel, err)})
			return nil
		}
		if info.Size() > e.opts.MaxFileSize {
			skipped = append(skipped, Skipped{Path: rel, Err: fmt.Errorf("file size %d exceeds limit %d", info.Size(), e.opts.MaxFileSize)})
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return files, skipped, err
}

func (e *Engine) parseFile(assetPath string) (*asset.Record, time.Time, error) {
	abs := pathutil.ToAbsolute(assetPath, e.opts.Root)
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, time.Time{}, apperrors.NewFileError("read", assetPath, err)
	}
	if err := e.validator.Validate(data); err != nil {
		return nil, time.Time{}, apperrors.NewParseError(assetPath, "", err)
	}
	var modTime time.Time
	if info, err := os.Stat(abs); err == nil {
		modTime = info.ModTime()
	}

	r, err := e.parser.Parse(assetPath, data)
	if err != nil {
		return nil, time.Time{}, err
	}
	r.SetFingerprint(xxhash.Sum64(data))
	if r.LastModified().IsZero() {
		r.SetLastModified(modTime)
	}
	return r, modTime, nil
}

// assetPath converts a walked filesystem path to slash form relative to Root.
func (e *Engine) assetPath(path string) string {
	if e.opts.Root == "" {
		return filepath.ToSlash(filepath.Clean(path))
	}
	if rel, ok := pathutil.ToAssetPath(path, e.opts.Root); ok {
		return rel
	}
	return filepath.ToSlash(path)
}

func (e *Engine) shouldExclude(path string) bool {
	for _, pattern := range e.opts.Exclude {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func (e *Engine) shouldInclude(path string) bool {
	if len(e.opts.Include) == 0 {
		return true
	}
	for _, pattern := range e.opts.Include {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
