package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/quire/internal/codec"
	"github.com/hpungsan/quire/internal/config"
	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/metrics"
	"github.com/hpungsan/quire/internal/ops"
	"github.com/hpungsan/quire/internal/web"
	"github.com/hpungsan/quire/internal/workspace"
)

// newCLIApp creates the CLI application with all commands. rt may be nil
// when only help or version output is needed.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "quire",
		Usage:   "Batch document and spreadsheet transforms",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(rt),
			transformCmd(rt, codec.KindCompress, "compress", "Pack files into a zip archive", []cli.Flag{
				&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Usage: "Compression: low|recommended|high (or 0|1|2)"},
			}, func(c *cli.Context, in *ops.TransformInput) error {
				in.Compression = c.String("level")
				return nil
			}),
			transformCmd(rt, codec.KindConvertToPDF, "to-pdf", "Convert images, HTML, Markdown, text and office files to PDF", nil, nil),
			transformCmd(rt, codec.KindSplit, "split", "Keep selected pages of each PDF", []cli.Flag{
				&cli.StringFlag{Name: "ranges", Aliases: []string{"r"}, Required: true, Usage: `Pages to keep, e.g. "1-3,5"`},
			}, func(c *cli.Context, in *ops.TransformInput) error {
				in.Ranges = c.String("ranges")
				return nil
			}),
			transformCmd(rt, codec.KindMerge, "merge", "Merge PDFs into one, in argument order", nil, nil),
			transformCmd(rt, codec.KindConvertToWord, "to-word", "Convert PDFs to DOCX", nil, nil),
			transformCmd(rt, codec.KindExcelExpand, "expand", "Repeat spreadsheet rows by their quantity column", []cli.Flag{
				&cli.StringSliceFlag{Name: "column", Aliases: []string{"c"}, Usage: "Repeat-count header name (repeatable)"},
			}, func(c *cli.Context, in *ops.TransformInput) error {
				in.RepeatColumn = c.StringSlice("column")
				return nil
			}),
			transformCmd(rt, codec.KindDuplicateRow, "duplicate-row", "Insert copies of one spreadsheet row", []cli.Flag{
				&cli.IntFlag{Name: "row", Required: true, Usage: "Spreadsheet row number (header is row 1)"},
				&cli.IntFlag{Name: "count", Value: 1, Usage: "Copies to insert after the row"},
			}, func(c *cli.Context, in *ops.TransformInput) error {
				in.Row, in.Count = c.Int("row"), c.Int("count")
				return nil
			}),
			pagesCmd(),
			previewCmd(rt),
			pdfPreviewCmd(rt),
			jobsCmd(rt),
			jobCmd(rt),
			purgeCmd(rt),
			exportCmd(rt),
			sweepCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// cliConfig is the config used for file access from the command line: the
// caller names the files, so the allowed-directory rule is lifted. Symlink
// and traversal checks still apply.
func (rt *runtime) cliConfig() *config.Config {
	cfg := *rt.cfg
	cfg.AllowUnsafePaths = true
	return &cfg
}

// transformCmd builds a command that runs kind over the file arguments and
// saves the result.
func transformCmd(rt *runtime, kind codec.Kind, name, usage string, flags []cli.Flag, fill func(*cli.Context, *ops.TransformInput) error) *cli.Command {
	flags = append([]cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Destination file or directory (default: exports dir)"},
	}, flags...)

	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<file>...",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewValidation("no input files"))
			}
			cfg := rt.cliConfig()

			items, err := ops.ReadInputs(c.Context, cfg, c.Args().Slice())
			if err != nil {
				return outputError(err)
			}

			input := ops.TransformInput{Kind: string(kind), Inputs: items}
			if fill != nil {
				if err := fill(c, &input); err != nil {
					return outputError(err)
				}
			}

			var saved *ops.SaveOutput
			_, err = ops.Deliver(c.Context, rt.deps, input, func(out *ops.TransformOutput) error {
				var err error
				saved, err = ops.SaveResult(cfg, out, ops.SaveInput{Path: c.String("output")})
				return err
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(saved)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP file API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
			&cli.BoolFlag{Name: "no-metrics", Usage: "Do not serve /metrics"},
		},
		Action: func(c *cli.Context) error {
			sweeper, err := workspace.NewSweeper(rt.workspaces.Root(), rt.cfg.WorkspaceTTL())
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := sweeper.Start(rt.cfg.SweepInterval()); err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer func() { _ = sweeper.Stop() }()

			opts := web.Options{Version: Version, Bind: c.String("bind"), Port: c.Int("port")}
			if !c.Bool("no-metrics") {
				opts.Metrics = metrics.HTTPHandler(rt.registry)
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return web.Run(ctx, web.NewServer(rt.deps, opts))
		},
	}
}

// pagesCmd creates the pages command.
func pagesCmd() *cli.Command {
	return &cli.Command{
		Name:      "pages",
		Usage:     "Parse a page-range expression",
		ArgsUsage: "<ranges>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page-count", Usage: "Drop pages beyond this count"},
		},
		Action: func(c *cli.Context) error {
			return outputJSON(ops.ParsePages(ops.ParsePagesInput{
				Ranges:    c.Args().First(),
				PageCount: c.Int("page-count"),
			}))
		},
	}
}

// previewCmd creates the preview command.
func previewCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Show one page of rows from an XLSX or CSV file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Value: 1, Usage: "1-based page"},
			&cli.IntFlag{Name: "page-size", Value: ops.DefaultPreviewPageSize, Usage: "Rows per page"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one file is required"))
			}
			items, err := ops.ReadInputs(c.Context, rt.cliConfig(), c.Args().Slice())
			if err != nil {
				return outputError(err)
			}

			output, err := ops.PreviewTable(ops.PreviewInput{
				Item:     items[0],
				Page:     c.Int("page"),
				PageSize: c.Int("page-size"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// pdfPreviewCmd creates the pdf-preview command.
func pdfPreviewCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "pdf-preview",
		Usage:     "Render one PDF page to a PNG data URI",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Value: 1, Usage: "1-based page"},
			&cli.IntFlag{Name: "dpi", Value: codec.DefaultPreviewDPI, Usage: "Resolution (36-300)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one file is required"))
			}
			items, err := ops.ReadInputs(c.Context, rt.cliConfig(), c.Args().Slice())
			if err != nil {
				return outputError(err)
			}

			output, err := ops.PreviewPDF(c.Context, rt.deps, ops.PDFPreviewInput{
				Item: items[0],
				Page: c.Int("page"),
				DPI:  c.Int("dpi"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// jobsCmd creates the jobs command.
func jobsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "List recorded jobs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by transform kind"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items"},
			&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListJobs(rt.deps.DB, ops.ListInput{
				Kind:   c.String("kind"),
				Status: c.String("status"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// jobCmd creates the job command.
func jobCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "job",
		Usage:     "Show one recorded job",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.FetchJob(rt.deps.DB, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete finished jobs from the history",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by transform kind"},
			&cli.StringFlag{Name: "older-than", Usage: "Only purge jobs created more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if kind := c.String("kind"); kind != "" {
				input.Kind = &kind
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = days
			}

			output, err := ops.PurgeJobs(rt.deps.DB, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the job history to JSONL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output .jsonl file (default: exports dir)"},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by transform kind"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{Path: c.String("path")}
			if kind := c.String("kind"); kind != "" {
				input.Kind = &kind
			}

			output, err := ops.ExportJobs(c.Context, rt.deps.DB, rt.cliConfig(), input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// sweepCmd creates the sweep command.
func sweepCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove workspaces older than workspace_ttl_minutes once",
		Action: func(c *cli.Context) error {
			sweeper, err := workspace.NewSweeper(rt.workspaces.Root(), rt.cfg.WorkspaceTTL())
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			removed, err := sweeper.Sweep(c.Context)
			if err != nil {
				return outputError(errors.NewResource("sweep failed", err))
			}
			return outputJSON(map[string]any{"removed": removed, "root": rt.workspaces.Root()})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if qErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", qErr.Code, qErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
