// Package fileops holds the physical file collaborators of the registry: a
// batch-delete executor that completes asynchronously and a synchronous
// file mover. Paths are asset-relative; the local implementations resolve
// them against a project root.
package fileops

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	apperrors "github.com/standardbeagle/assetindex/internal/errors"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// DefaultWorkers bounds parallel file operations when none is configured.
const DefaultWorkers = 8

// ErrDestinationExists is returned by a move whose target is already on disk.
var ErrDestinationExists = errors.New("destination already exists")

// FileGroup is the set of files to remove for one run of records sharing a
// source file.
type FileGroup struct {
	Records []asset.ID
	Files   []string
}

// Failure is a file that could not be removed.
type Failure struct {
	Path string
	Err  error
}

// Result reports the outcome of one Delete call.
type Result struct {
	Groups   []FileGroup
	Deleted  []string
	Missing  []string
	Failures []Failure
}

// Err folds every failure into one error, nil when all files were handled.
func (r Result) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	if multi := apperrors.NewMultiError(errs); multi != nil {
		return multi
	}
	return nil
}

// Executor removes files off the caller's goroutine and reports once.
type Executor interface {
	// Delete must return promptly. done is called exactly once, from any goroutine.
	Delete(groups []FileGroup, done func(Result))
}

// Move is one file relocation.
type Move struct {
	From string
	To   string
}

// Mover relocates files synchronously.
type Mover interface {
	// MoveFiles applies moves in order and stops at the first failure,
	// returning how many completed.
	MoveFiles(moves []Move) (int, error)
}

// LocalExecutor deletes files under Root with bounded parallelism.
type LocalExecutor struct {
	Root    string
	Workers int

	wg sync.WaitGroup
}

// NewLocalExecutor creates an executor rooted at root.
func NewLocalExecutor(root string, workers int) *LocalExecutor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &LocalExecutor{Root: root, Workers: workers}
}

// Delete implements Executor.
func (e *LocalExecutor) Delete(groups []FileGroup, done func(Result)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		done(e.deleteAll(groups))
	}()
}

// Wait blocks until every in-flight Delete has reported.
func (e *LocalExecutor) Wait() {
	e.wg.Wait()
}

func (e *LocalExecutor) deleteAll(groups []FileGroup) Result {
	res := Result{Groups: groups}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.Workers)
	for _, group := range groups {
		for _, file := range group.Files {
			g.Go(func() error {
				abs := pathutil.ToAbsolute(file, e.Root)
				err := os.Remove(abs)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					res.Deleted = append(res.Deleted, file)
				case errors.Is(err, os.ErrNotExist):
					res.Missing = append(res.Missing, file)
				default:
					res.Failures = append(res.Failures, Failure{
						Path: file,
						Err:  apperrors.NewFileError("remove", file, err),
					})
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	debug.LogFileOps("deleted %d files (%d missing, %d failed) in %d groups\n",
		len(res.Deleted), len(res.Missing), len(res.Failures), len(groups))
	return res
}

// LocalMover renames files under Root, creating destination folders.
type LocalMover struct {
	Root string
}

// NewLocalMover creates a mover rooted at root.
func NewLocalMover(root string) *LocalMover {
	return &LocalMover{Root: root}
}

// MoveFiles implements Mover. A missing source counts as moved: data files
// are often produced later by a build step.
func (m *LocalMover) MoveFiles(moves []Move) (int, error) {
	for i, mv := range moves {
		from := pathutil.ToAbsolute(mv.From, m.Root)
		to := pathutil.ToAbsolute(mv.To, m.Root)
		if from == to {
			continue
		}
		if _, err := os.Lstat(from); errors.Is(err, os.ErrNotExist) {
			debug.LogFileOps("move skipped, %s does not exist\n", mv.From)
			continue
		}
		if _, err := os.Lstat(to); err == nil {
			return i, apperrors.NewFileError("move", mv.To, ErrDestinationExists)
		}
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return i, apperrors.NewFileError("mkdir", mv.To, err)
		}
		if err := os.Rename(from, to); err != nil {
			return i, apperrors.NewFileError("move", mv.From, err)
		}
		debug.LogFileOps("moved %s -> %s\n", mv.From, mv.To)
	}
	return len(moves), nil
}

var (
	_ Executor = (*LocalExecutor)(nil)
	_ Mover    = (*LocalMover)(nil)
)
