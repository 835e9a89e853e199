package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/quire/internal/config"
	"github.com/hpungsan/quire/internal/db"
	"github.com/hpungsan/quire/internal/logfields"
	"github.com/hpungsan/quire/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "sweep": true,
	"compress": true, "to-pdf": true, "split": true, "merge": true,
	"to-word": true, "expand": true, "duplicate-row": true,
	"pages": true, "preview": true, "pdf-preview": true,
	"jobs": true, "job": true, "purge": true, "export": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
    __ _ _  _(_)_ _ ___
   / _' | || | | '_/ -_)
   \__, |\_,_|_|_| \___|
      |_|

  Batch document and spreadsheet transforms

  Usage: quire <command> [options]
         quire --help

  MCP server mode requires piped input.`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need neither config nor database
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fail("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, _ := os.Getwd()
	cfg, err := config.LoadAll(baseDir, cwd)
	if err != nil {
		fail("failed to load config: %v", err)
	}

	// stdout belongs to MCP or to JSON output; logs go to stderr
	logfields.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		slog.Warn("Ignoring unknown disabled_tools", slog.Any("names", unknown))
	}
	if unknown := mcp.ValidateDisabledKinds(cfg.DisabledKinds); len(unknown) > 0 {
		slog.Warn("Ignoring unknown disabled_kinds", slog.Any("names", unknown))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	rt := newRuntime(cfg, database)
	defer rt.Close()

	if isCLIMode() {
		if err := newCLIApp(rt).Run(os.Args); err != nil {
			rt.Close()
			database.Close()
			fail("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'quire --help' for usage.\n")
		rt.Close()
		database.Close()
		os.Exit(1)
	}

	if err := mcp.Run(rt.deps, Version); err != nil {
		rt.Close()
		database.Close()
		fail("%v", err)
	}
}
