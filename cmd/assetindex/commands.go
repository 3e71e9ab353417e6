package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/display"
	"github.com/standardbeagle/assetindex/internal/fileops"
	"github.com/standardbeagle/assetindex/internal/registry"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

const suggestionLimit = 5

// recordView is the printable form of a record, built on the owner loop.
type recordView struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	Name         string             `json:"name"`
	PrimaryPath  string             `json:"primary_path"`
	SourceFile   string             `json:"source_file,omitempty"`
	WorkFiles    []string           `json:"work_files,omitempty"`
	DataFiles    []string           `json:"data_files,omitempty"`
	Dependencies []asset.Dependency `json:"dependencies,omitempty"`
	Details      map[string]string  `json:"details,omitempty"`
	ReadOnly     bool               `json:"read_only,omitempty"`
	Thumbnail    int                `json:"thumbnail_bytes,omitempty"`
	hasThumbnail bool
}

func newRecordView(rec *asset.Record) recordView {
	v := recordView{
		ID:           rec.ID().String(),
		Type:         rec.TypeName(),
		Name:         rec.Name(),
		PrimaryPath:  rec.PrimaryPath(),
		SourceFile:   rec.SourceFile(),
		WorkFiles:    rec.WorkFiles(),
		DataFiles:    rec.DataFilePaths(),
		Dependencies: rec.Dependencies(),
		ReadOnly:     rec.IsReadOnly(),
		hasThumbnail: rec.Type() != nil && rec.Type().HasThumbnail(),
	}
	if details := rec.Details(); len(details) > 0 {
		v.Details = make(map[string]string, len(details))
		for _, d := range details {
			v.Details[d.Name] = d.Value
		}
	}
	return v
}

// withProject loads the configured project, scans it and runs fn.
func withProject(c *cli.Context, fn func(ctx context.Context, p *project) error) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	p, err := openProject(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := c.Context
	if err := p.scan(ctx); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return fn(ctx, p)
}

// assetArg returns argument i as a root-relative asset path.
func assetArg(c *cli.Context, i int, root string) (string, error) {
	arg := c.Args().Get(i)
	if arg == "" {
		return "", fmt.Errorf("missing argument %d, usage: %s %s", i+1, c.Command.Name, c.Command.ArgsUsage)
	}
	if filepath.IsAbs(arg) {
		rel, ok := pathutil.ToAssetPath(arg, root)
		if !ok {
			return "", fmt.Errorf("%s is outside the project root %s", arg, root)
		}
		return rel, nil
	}
	return filepath.ToSlash(arg), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scanCommand(c *cli.Context) error {
	start := time.Now()
	return withProject(c, func(ctx context.Context, p *project) error {
		var stats registry.Stats
		if err := p.do(ctx, func(reg *registry.Registry) { stats = reg.Stats() }); err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(c.App.Writer, stats)
		}

		w := c.App.Writer
		fmt.Fprintf(w, "Indexed %d assets under %s in %v\n", stats.Records, p.cfg.Project.Root, time.Since(start).Round(time.Millisecond))
		for _, name := range sortedKeys(stats.ByType) {
			fmt.Fprintf(w, "  %-12s %d\n", name, stats.ByType[name])
		}
		return nil
	})
}

func findCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, p *project) error {
		query, err := assetArg(c, 0, p.cfg.Project.Root)
		if err != nil {
			return err
		}

		var (
			view        recordView
			found       bool
			suggestions []string
		)
		err = p.do(ctx, func(reg *registry.Registry) {
			if rec, ok := reg.FindByAnyFile(query); ok {
				view, found = newRecordView(rec), true
				return
			}
			suggestions = reg.Suggest(query, suggestionLimit)
		})
		if err != nil {
			return err
		}

		if !found {
			if len(suggestions) > 0 {
				fmt.Fprintf(c.App.Writer, "Did you mean:\n")
				for _, s := range suggestions {
					fmt.Fprintf(c.App.Writer, "  %s\n", s)
				}
			}
			return fmt.Errorf("no asset owns %s", query)
		}

		if view.hasThumbnail {
			if data, err := p.thumbs.Load(ctx, view.PrimaryPath); err == nil {
				view.Thumbnail = len(data)
			}
		}
		if c.Bool("json") {
			return writeJSON(c.App.Writer, view)
		}
		printRecord(c.App.Writer, view)
		return nil
	})
}

func printRecord(w io.Writer, v recordView) {
	fmt.Fprintf(w, "%s\n", v.PrimaryPath)
	fmt.Fprintf(w, "  id:     %s\n", v.ID)
	fmt.Fprintf(w, "  type:   %s\n", v.Type)
	fmt.Fprintf(w, "  name:   %s\n", v.Name)
	if v.SourceFile != "" {
		fmt.Fprintf(w, "  source: %s\n", v.SourceFile)
	}
	for _, f := range v.WorkFiles {
		fmt.Fprintf(w, "  work:   %s\n", f)
	}
	for _, f := range v.DataFiles {
		fmt.Fprintf(w, "  data:   %s\n", f)
	}
	for _, name := range sortedKeys(v.Details) {
		fmt.Fprintf(w, "  %s: %s\n", name, v.Details[name])
	}
	if v.ReadOnly {
		fmt.Fprintf(w, "  read-only\n")
	}
	if v.Thumbnail > 0 {
		fmt.Fprintf(w, "  thumbnail: %d bytes\n", v.Thumbnail)
	}
}

func depsCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, p *project) error {
		query, err := assetArg(c, 0, p.cfg.Project.Root)
		if err != nil {
			return err
		}

		if c.Bool("tree") {
			return depsTree(ctx, c, p, query)
		}

		var (
			deps  []asset.Dependency
			found bool
		)
		if err := p.do(ctx, func(reg *registry.Registry) {
			var rec *asset.Record
			if rec, found = reg.FindByAnyFile(query); found {
				deps = rec.Dependencies()
			}
		}); err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no asset owns %s", query)
		}

		for _, d := range deps {
			fmt.Fprintf(c.App.Writer, "%s\t%d\n", d.Path, d.UsageCount)
		}
		return nil
	})
}

func depsTree(ctx context.Context, c *cli.Context, p *project, query string) error {
	var tree *display.DependencyTree
	if err := p.do(ctx, func(reg *registry.Registry) {
		tree = display.BuildDependencyTree(reg, query, c.Int("depth"))
	}); err != nil {
		return err
	}
	if tree == nil {
		return fmt.Errorf("no asset owns %s", query)
	}

	format := c.String("format")
	if c.Bool("json") {
		format = "json"
	}
	formatter := display.NewTreeFormatter(display.FormatterOptions{
		Format:     format,
		ShowCounts: true,
		ShowOwners: true,
	})
	fmt.Fprintln(c.App.Writer, formatter.Format(tree))
	return nil
}

func rdepsCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, p *project) error {
		query, err := assetArg(c, 0, p.cfg.Project.Root)
		if err != nil {
			return err
		}

		var lines []string
		if err := p.do(ctx, func(reg *registry.Registry) {
			for _, d := range reg.ReverseDependenciesOf(query) {
				lines = append(lines, fmt.Sprintf("%s\t%d", d.Record.PrimaryPath(), d.UsageCount))
			}
		}); err != nil {
			return err
		}

		for _, l := range lines {
			fmt.Fprintln(c.App.Writer, l)
		}
		return nil
	})
}

func statsCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, p *project) error {
		var stats registry.Stats
		if err := p.do(ctx, func(reg *registry.Registry) { stats = reg.Stats() }); err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(c.App.Writer, stats)
		}

		w := c.App.Writer
		fmt.Fprintf(w, "Records:           %d\n", stats.Records)
		fmt.Fprintf(w, "Indexed files:     %d\n", stats.Files)
		fmt.Fprintf(w, "Source files:      %d\n", stats.SourceFiles)
		fmt.Fprintf(w, "Work files:        %d\n", stats.WorkFiles)
		fmt.Fprintf(w, "Dependency edges:  %d\n", stats.DependencyEdges)
		fmt.Fprintf(w, "Deferred batches:  %d\n", stats.DeferredBatches)
		fmt.Fprintf(w, "Pending deletes:   %d\n", stats.PendingDeletes)
		return nil
	})
}

func renameCommand(c *cli.Context) error {
	return relocateCommand(c, func(reg *registry.Registry, rec *asset.Record, to string) error {
		return reg.Rename(rec, to)
	})
}

func moveCommand(c *cli.Context) error {
	return relocateCommand(c, func(reg *registry.Registry, rec *asset.Record, to string) error {
		return reg.Move(rec, to)
	})
}

func relocateCommand(c *cli.Context, op func(*registry.Registry, *asset.Record, string) error) error {
	return withProject(c, func(ctx context.Context, p *project) error {
		query, err := assetArg(c, 0, p.cfg.Project.Root)
		if err != nil {
			return err
		}
		to := c.Args().Get(1)
		if to == "" {
			return fmt.Errorf("missing argument 2, usage: %s %s", c.Command.Name, c.Command.ArgsUsage)
		}

		var from, now string
		var opErr error
		if err := p.do(ctx, func(reg *registry.Registry) {
			rec, ok := reg.FindByAnyFile(query)
			if !ok {
				opErr = fmt.Errorf("no asset owns %s", query)
				return
			}
			from = rec.PrimaryPath()
			opErr = op(reg, rec, to)
			now = rec.PrimaryPath()
		}); err != nil {
			return err
		}
		if opErr != nil {
			return opErr
		}

		fmt.Fprintf(c.App.Writer, "%s -> %s\n", from, now)
		return nil
	})
}

func deleteCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, p *project) error {
		if c.NArg() == 0 {
			return fmt.Errorf("usage: %s %s", c.Command.Name, c.Command.ArgsUsage)
		}
		queries := make([]string, 0, c.NArg())
		for i := 0; i < c.NArg(); i++ {
			q, err := assetArg(c, i, p.cfg.Project.Root)
			if err != nil {
				return err
			}
			queries = append(queries, q)
		}

		var (
			groups []fileops.FileGroup
			opErr  error
		)
		if err := p.do(ctx, func(reg *registry.Registry) {
			records := make([]*asset.Record, 0, len(queries))
			for _, q := range queries {
				rec, ok := reg.FindByAnyFile(q)
				if !ok {
					opErr = fmt.Errorf("no asset owns %s", q)
					return
				}
				records = append(records, rec)
			}
			if !c.Bool("force") && reg.HasAnyReverseDependencies(records) {
				opErr = fmt.Errorf("other assets still use the selection, rerun with --force to delete anyway")
				return
			}
			groups = reg.DeleteWithFiles(records)
		}); err != nil {
			return err
		}
		if opErr != nil {
			return opErr
		}
		if len(groups) == 0 {
			return nil
		}

		res, err := p.waitDeleted(ctx)
		if err != nil {
			return err
		}
		for _, f := range res.Deleted {
			fmt.Fprintf(c.App.Writer, "deleted %s\n", f)
		}
		if len(res.Missing) > 0 {
			fmt.Fprintf(c.App.Writer, "%d files were already gone: %s\n", len(res.Missing), strings.Join(res.Missing, ", "))
		}
		return res.Err()
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
