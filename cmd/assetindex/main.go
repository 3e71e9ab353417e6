package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/assetindex/internal/debug"
	"github.com/standardbeagle/assetindex/internal/version"
)

func newApp() *cli.App {
	return &cli.App{
		Name:                   "assetindex",
		Usage:                  "Index and query game assets from their metadata files",
		Version:                version.FullInfo(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Directory holding .assetindex.kdl, defaults to the root",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Only scan metadata matching glob patterns (e.g., --include 'objects/**')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip metadata matching glob patterns (e.g., --exclude '**/test/**')",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Parallel metadata parsers (0 = auto)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write debug output to stderr",
			},
			&cli.StringFlag{
				Name:  "debug-only",
				Usage: "Limit debug output to components (e.g., --debug-only scan,merge)",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug output to a file under the temp dir",
			},
		},
		Before: func(c *cli.Context) error {
			switch {
			case c.Bool("debug-log"):
				debug.EnableDebug = "true"
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
			case c.Bool("debug"):
				debug.EnableDebug = "true"
				debug.SetDebugOutput(c.App.ErrWriter)
			}
			debug.SetComponents(c.String("debug-only"))
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "Scan the project and report what was indexed",
				Flags:  []cli.Flag{jsonFlag()},
				Action: scanCommand,
			},
			{
				Name:      "find",
				Aliases:   []string{"f"},
				Usage:     "Show the asset owning a file, with suggestions on a miss",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    findCommand,
			},
			{
				Name:      "deps",
				Usage:     "List the files an asset uses",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "tree",
						Aliases: []string{"t"},
						Usage:   "Expand dependencies transitively",
					},
					&cli.IntFlag{
						Name:    "depth",
						Aliases: []string{"d"},
						Usage:   "Maximum tree depth (0 = unlimited)",
					},
					&cli.StringFlag{
						Name:  "format",
						Value: "text",
						Usage: "Tree format: text, compact or json",
					},
					jsonFlag(),
				},
				Action: depsCommand,
			},
			{
				Name:      "rdeps",
				Usage:     "List the assets that use a file",
				ArgsUsage: "<path>",
				Action:    rdepsCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show registry statistics",
				Flags:  []cli.Flag{jsonFlag()},
				Action: statsCommand,
			},
			{
				Name:  "changed",
				Usage: "Map files changed in git to the assets owning and using them",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "scope",
						Value: "wip",
						Usage: "Changes to report: staged, wip, commit or range",
					},
					&cli.StringFlag{
						Name:  "base",
						Usage: "Commit for --scope commit, range start for --scope range",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "Range end for --scope range (default HEAD)",
					},
					jsonFlag(),
				},
				Action: changedCommand,
			},
			{
				Name:      "rename",
				Usage:     "Rename an asset and its files",
				ArgsUsage: "<path> <new-name>",
				Action:    renameCommand,
			},
			{
				Name:      "move",
				Aliases:   []string{"mv"},
				Usage:     "Move an asset and its files to another folder",
				ArgsUsage: "<path> <folder>",
				Action:    moveCommand,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete assets with their files",
				ArgsUsage: "<path>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Delete even when other assets still use them",
					},
				},
				Action: deleteCommand,
			},
		},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
