package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/assetindex/internal/git"
	"github.com/standardbeagle/assetindex/internal/registry"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// changedAsset is a changed file with the asset owning it and the assets using it.
type changedAsset struct {
	Path   string               `json:"path"`
	Status git.FileChangeStatus `json:"status"`
	Owner  string               `json:"owner,omitempty"`
	UsedBy []string             `json:"used_by,omitempty"`
}

func changedCommand(c *cli.Context) error {
	scope, ok := git.ParseScope(c.String("scope"))
	if !ok {
		return fmt.Errorf("unknown scope %q, expected staged, wip, commit or range", c.String("scope"))
	}

	return withProject(c, func(ctx context.Context, p *project) error {
		provider, err := git.NewProvider(p.cfg.Project.Root)
		if err != nil {
			return err
		}
		files, err := provider.GetChangedFiles(ctx, git.AnalysisParams{
			Scope:     scope,
			BaseRef:   c.String("base"),
			TargetRef: c.String("target"),
		})
		if err != nil {
			return err
		}

		root := p.cfg.Project.Root
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		var changes []changedAsset
		for _, f := range files {
			rel, ok := pathutil.ToAssetPath(filepath.Join(provider.GetRepoRoot(), filepath.FromSlash(f.Path)), root)
			if !ok {
				continue
			}
			changes = append(changes, changedAsset{Path: rel, Status: f.Status})
		}

		if err := p.do(ctx, func(reg *registry.Registry) {
			for i := range changes {
				ch := &changes[i]
				if rec, ok := reg.FindByAnyFile(ch.Path); ok {
					ch.Owner = rec.PrimaryPath()
				}
				for _, d := range reg.ReverseDependenciesOf(ch.Path) {
					ch.UsedBy = append(ch.UsedBy, d.Record.PrimaryPath())
				}
			}
		}); err != nil {
			return err
		}

		if c.Bool("json") {
			return writeJSON(c.App.Writer, changes)
		}
		w := c.App.Writer
		for _, ch := range changes {
			owner := ch.Owner
			if owner == "" {
				owner = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", ch.Status, ch.Path, owner)
			for _, u := range ch.UsedBy {
				fmt.Fprintf(w, "  used by %s\n", u)
			}
		}
		return nil
	})
}
