// cmd/sqlstorm/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elchinoo/sqlstorm/internal/config"
	"github.com/elchinoo/sqlstorm/internal/engine"
	"github.com/elchinoo/sqlstorm/internal/generator"
	"github.com/elchinoo/sqlstorm/internal/logging"
)

// Version information (set by build system via ldflags)
var (
	Version   = "v0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:                "sqlstorm",
		Short:              "A configurable SQL load driver",
		DisableFlagParsing: true, // spec §6's CLI grammar is bespoke, parsed by internal/config.ParseArgs
		RunE: func(_ *cobra.Command, args []string) error {
			return run(args)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("sqlstorm %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	parsed, err := config.ParseArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if parsed.Help {
		printUsage()
		return nil
	}

	resolved := config.ResolveVariables(parsed.Values)
	bag, err := config.ToBag(resolved)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if parsed.Check {
		fmt.Print(config.Render(bag))
		return nil
	}

	if err := config.Validate(&bag); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var table *generator.DataTable
	if bag.Data != "" {
		t, terr := generator.LoadDataTable(afero.NewOsFs(), bag.Data)
		if terr != nil {
			fmt.Fprintln(os.Stderr, terr)
			os.Exit(1)
		}
		table = t
	}

	logger := logging.NewDefaultLogger()
	defer logger.Sync()

	sup := &engine.Supervisor{
		Config: bag,
		Logger: logger,
		Table:  table,
	}

	// Graceful shutdown on SIGINT/SIGTERM: the Engine Supervisor already
	// stops every worker at its own wall-clock deadline, so a signal only
	// needs to bring that deadline forward, not tear anything down directly
	// — grounded in the teacher's cmd/stormdb/main.go signal-to-context-
	// cancel pattern.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received signal, stopping", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := sup.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return nil
}

func printUsage() {
	fmt.Println(`sqlstorm [-opt[=|]value ...]

Options (spec §3):
  -url=value       database connection URL (required)
  -user=value      database user (required)
  -password=value  database password (required)
  -threads=N       worker thread count (default 10)
  -time=N          run duration in seconds (default 1)
  -batch=N         statements per transaction (default 1)
  -rate=N          target transactions/sec (optional)
  -load=N          target database load percent, 1-100 (default 95)
  -report=N        report period in seconds (default 1)
  -data=path       data table file (CSV or whitespace-delimited)
  -iterate=bool    iterate SELECT result rows (default false)
  -sql=text        parameterised SQL statement
  -params=specs    semicolon-separated parameter spec override

  -property name=value   merge an arbitrary key into the property bag
  -config path            load key=value file (command line wins on conflict)
  -check                  print the resolved property bag and exit
  -help                   print this message and exit`)
}
