package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tracebench/internal/bench"
	"github.com/samcharles93/tracebench/internal/dump"
	"github.com/samcharles93/tracebench/internal/logger"
	"github.com/samcharles93/tracebench/internal/version"
)

const usageText = "tracebench -m model.gguf -n n_tokens [-p output_dir]"

type appOptions struct {
	modelPath  string
	tokens     int64
	outputDir  string
	threads    int64
	memProfile bool
	configPath string
	logLevel   string
	logFormat  string
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	var o appOptions
	return &cli.Command{
		Name:            "tracebench",
		Usage:           "time one forward pass over a fixed token window",
		UsageText:       usageText,
		Version:         version.String(),
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		Flags:           appFlags(&o),
		// main owns the exit code.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			printUsage(stderr)
			return &bench.UsageError{Msg: err.Error()}
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runBench(ctx, cmd, &o, stdout, stderr)
		},
	}
}

func appFlags(o *appOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "m",
			Aliases:     []string{"model"},
			Usage:       "path to the model .gguf file",
			Sources:     cli.EnvVars("TRACEBENCH_MODEL"),
			Destination: &o.modelPath,
		},
		&cli.Int64Flag{
			Name:        "n",
			Aliases:     []string{"tokens"},
			Usage:       "number of corpus tokens to evaluate",
			Destination: &o.tokens,
		},
		&cli.StringFlag{
			Name:        "p",
			Aliases:     []string{"output-dir"},
			Usage:       "directory for timing.json, compute_graph.json and metrics.prom (enables profiling)",
			Destination: &o.outputDir,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Aliases:     []string{"t"},
			Usage:       "compute threads, 0 for one per CPU (forced to 1 when profiling)",
			Destination: &o.threads,
		},
		&cli.BoolFlag{
			Name:        "mem-profile",
			Usage:       "also write memory.pprof to the output directory",
			Destination: &o.memProfile,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file",
			Value:       configPath(),
			Sources:     cli.EnvVars("TRACEBENCH_CONFIG"),
			Destination: &o.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &o.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &o.logFormat,
		},
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "\nexample usage:\n\n    %s\n\n", usageText)
}

func runBench(ctx context.Context, cmd *cli.Command, o *appOptions, stdout, stderr io.Writer) error {
	if cmd.NArg() > 0 {
		printUsage(stderr)
		return &bench.UsageError{Msg: fmt.Sprintf("unknown argument: %s", cmd.Args().First())}
	}

	cfg, err := LoadConfig(o.configPath, cmd.IsSet("config"))
	if err != nil {
		return err
	}
	applyConfig(cmd, cfg, o)

	log := logger.ForFormat(stderr, o.logFormat, logger.ParseLevel(o.logLevel))
	ctx = logger.WithContext(ctx, log)

	opts := bench.Options{
		ModelPath:     o.modelPath,
		Tokens:        int(o.tokens),
		OutputDir:     o.outputDir,
		Threads:       int(o.threads),
		MemoryProfile: o.memProfile,
		DumpPath:      dump.DefaultPath,
	}
	if err := opts.Validate(); err != nil {
		printUsage(stderr)
		return err
	}
	if opts.MemoryProfile && opts.OutputDir == "" {
		log.Warn("--mem-profile has no effect without -p")
	}

	h := &bench.Harness{
		Loader: bench.NativeLoader{},
		Logger: log,
		Stdout: stdout,
	}
	_, err = h.Run(ctx, opts)
	return err
}
