// Package cli implements the apex-toolrun command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MuteSoft/apextext-sub002/internal/config"
	"github.com/MuteSoft/apextext-sub002/internal/logging"
	"github.com/MuteSoft/apextext-sub002/internal/orchestrator"
)

// Exit statuses not produced by a tool.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitUsage       = 2
	ExitPreflight   = 3
	ExitUnknownTool = 4
)

// Streams are the standard streams of the command.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// app holds the state shared by all subcommands of one invocation.
type app struct {
	version string
	streams Streams
	cfg     *config.Config
	catalog *config.Catalog
	logger  *slog.Logger

	// exitCode is set by "run" from the tool's result.
	exitCode int
}

// Execute runs the command line args and returns the process exit status.
func Execute(ctx context.Context, args []string, streams Streams, version string) int {
	return ExecuteWithEnv(ctx, args, streams, version, nil)
}

// ExecuteWithEnv is Execute with an explicit environment. A nil environ reads
// the process environment.
func ExecuteWithEnv(ctx context.Context, args []string, streams Streams, version string, environ map[string]string) int {
	a := &app{version: version, streams: streams, cfg: config.DefaultConfig()}

	var err error
	if environ == nil {
		err = config.ApplyEnv(a.cfg)
	} else {
		err = config.ApplyEnvFrom(a.cfg, environ)
	}
	if err != nil {
		fmt.Fprintf(streams.Stderr, "Configuration error: %v\n", err)
		return ExitUsage
	}

	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetIn(streams.Stdin)
	root.SetOut(streams.Stdout)
	root.SetErr(streams.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(streams.Stderr, "Error: %v\n", err)
		return exitStatusFor(err)
	}
	return a.exitCode
}

// usageError marks errors caused by the command line itself.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func exitStatusFor(err error) int {
	var ue usageError
	switch {
	case errors.As(err, &ue):
		return ExitUsage
	case errors.Is(err, orchestrator.ErrPreflightFailed):
		return ExitPreflight
	case errors.Is(err, orchestrator.ErrUnknownTool):
		return ExitUnknownTool
	default:
		return ExitError
	}
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "apex-toolrun",
		Short:         "Run compilers, documentation generators and catalog tools on a source file",
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetVersionTemplate("apex-toolrun {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	config.BindFlags(root.PersistentFlags(), a.cfg)
	root.SetUsageFunc(a.usage)

	root.AddCommand(
		a.newRunCmd(),
		a.newPrintCmd(),
		a.newListCmd(),
		a.newCheckCmd(),
		newVersionCmd(a.version),
	)
	return root
}

// setup validates the configuration, creates the logger and loads the
// catalog. It runs after flag parsing.
func (a *app) setup() error {
	if err := config.Validate(a.cfg); err != nil {
		return usageError{fmt.Errorf("invalid configuration:\n%w", err)}
	}

	// The console owns the terminal; log records would tear it
	if a.cfg.TUIEnabled {
		a.logger = logging.Discard()
	} else {
		a.logger = logging.New(logging.Options{
			Format:  a.cfg.LogFormat,
			Level:   a.cfg.LogLevel,
			Verbose: a.cfg.Verbose,
			Output:  a.streams.Stderr,
		})
	}
	logging.SetDefault(a.logger)

	if a.cfg.CatalogPath != "" {
		cat, err := config.LoadCatalog(a.cfg.CatalogPath)
		if err != nil {
			return err
		}
		a.catalog = cat
		a.logger.Debug("catalog_loaded", "path", a.cfg.CatalogPath, "tools", len(cat.Tools))
	}
	return nil
}

func (a *app) orchestrator() (*orchestrator.Orchestrator, error) {
	return orchestrator.New(a.cfg, a.catalog, a.logger, orchestrator.Options{
		Version: a.version,
		Stdin:   a.streams.Stdin,
		Stdout:  a.streams.Stdout,
		Stderr:  a.streams.Stderr,
	})
}

func (a *app) usage(cmd *cobra.Command) error {
	w := cmd.OutOrStderr()
	fmt.Fprintf(w, "Usage:\n  %s\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, "\nCommands:")
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-12s %s\n", sub.Name(), sub.Short)
			}
		}
	}

	config.PrintFlagCategories(w, cmd.Root().PersistentFlags())
	fmt.Fprintf(w, "\nEvery flag can also be set through %s<NAME> environment variables.\n", config.EnvPrefix)
	return nil
}

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <tool> [file]",
		Short: "Run a tool and stream its output",
		Long: `Run a tool on a source file and stream its output to the console.

Tool names are matched ignoring case; dashes stand for spaces, so
"run-application" selects "Run Application".`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			result, err := o.Run(cmd.Context(), args[0], fileArg(args))
			if err != nil {
				return err
			}
			a.exitCode = orchestrator.ExitStatus(result)
			return nil
		},
	}
}

func (a *app) newPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-cmd <tool> [file]",
		Short: "Print the command a tool would run",
		Args:  usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			return o.PrintCommand(cmd.OutOrStdout(), args[0], fileArg(args))
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and catalog tools",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			o.List(cmd.OutOrStdout())
			return nil
		},
	}
}

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the configured tools are installed",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			return o.Check(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version",
		Args:  usageArgs(cobra.NoArgs),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apex-toolrun %s\n", version)
		},
	}
}

// usageArgs reports argument errors as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func fileArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

// DefaultStreams returns the process streams.
func DefaultStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}
