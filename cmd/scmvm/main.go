// scmvm CLI - runs, dumps and disassembles mission script containers
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chazu/scmvm/config"
	"github.com/chazu/scmvm/scm"
)

// options collects command-line overrides on top of scmvm.toml.
type options struct {
	configDir string
	ticks     int
	tickMS    int
	strict    bool
	trace     string
	dump      bool
	disasm    bool
	serve     string
	save      bool
	resume    bool
	verbose   bool
	script    string
}

func main() {
	var opts options
	flag.StringVar(&opts.configDir, "config", "", "Directory containing scmvm.toml (default: search upward from cwd)")
	flag.IntVar(&opts.ticks, "ticks", 0, "Number of ticks to run (0 = until interrupted or all threads end)")
	flag.IntVar(&opts.tickMS, "tick-ms", 0, "Milliseconds per tick (overrides [engine] tick-ms)")
	flag.BoolVar(&opts.strict, "strict", false, "Fail threads on out-of-range variable access")
	flag.StringVar(&opts.trace, "trace", "", "Trace instructions of threads whose name starts with NAME")
	flag.BoolVar(&opts.dump, "dump", false, "Print the container layout as YAML and exit")
	flag.BoolVar(&opts.disasm, "disasm", false, "Print a listing of the main script and exit")
	flag.StringVar(&opts.serve, "serve", "", "Serve the inspect service on this address while running")
	flag.BoolVar(&opts.save, "save", false, "Store a snapshot when the run ends")
	flag.BoolVar(&opts.resume, "resume", false, "Start from the latest snapshot in the save slot")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose (debug) logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scmvm [options] [file.scm]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a mission script container. Settings come from scmvm.toml;\n")
		fmt.Fprintf(os.Stderr, "flags override them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  scmvm main.scm -ticks 600          # Run ten seconds of game time\n")
		fmt.Fprintf(os.Stderr, "  scmvm main.scm -dump               # Show headers, models and missions\n")
		fmt.Fprintf(os.Stderr, "  scmvm main.scm -disasm             # List the main script\n")
		fmt.Fprintf(os.Stderr, "  scmvm -serve :7070 -trace MAIN     # Run with inspection and tracing\n")
		fmt.Fprintf(os.Stderr, "  scmvm -resume -save                # Continue the last saved run\n")
	}
	flag.Parse()
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.script = flag.Arg(0)

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	f, err := scm.Open(cfg.ScriptPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case opts.dump:
		err = dumpSummary(os.Stdout, f)
	case opts.disasm:
		err = disassemble(os.Stdout, f)
	default:
		err = run(cfg, opts, f, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig finds scmvm.toml and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configDir != "" {
		cfg, err = config.Load(opts.configDir)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}

	if opts.script != "" {
		// command-line paths are relative to the working directory
		path, err := filepath.Abs(opts.script)
		if err != nil {
			return nil, err
		}
		cfg.Script.Path = path
	}
	if opts.tickMS > 0 {
		cfg.Engine.TickMS = opts.tickMS
	}
	if opts.strict {
		cfg.Engine.Bounds = "strict"
	}
	if opts.trace != "" {
		cfg.Engine.TraceThread = opts.trace
	}
	if opts.serve != "" {
		cfg.Inspect.Addr = opts.serve
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
