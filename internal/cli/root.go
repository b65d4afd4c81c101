// Package cli wires the rnabatch commands: run, resume, and status.
package cli

import (
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/seqlab/rnabatch/internal/config"
	"github.com/seqlab/rnabatch/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ErrInterrupted marks a run stopped by a signal. The batch is resumable;
// the process exits with the conventional interrupt code.
var ErrInterrupted = errors.New("run interrupted, resume to continue")

// ExitCode maps a command error to the process exit code: 0 clean,
// 130 interrupted, 1 everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInterrupted):
		return 130
	default:
		return 1
	}
}

// rootOptions carries state shared between the root command and its
// subcommands: the loaded configuration and the log file closer.
type rootOptions struct {
	configPath string
	debug      bool

	cfg      *config.Config
	closeLog func() error
}

// NewRootCmd creates the root Cobra command for the rnabatch CLI. It
// loads configuration, applies flag overrides, and attaches the process
// logger to the command context for all subcommands.
func NewRootCmd(ver string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "rnabatch",
		Short:   "Batch feature extraction for RNA targets",
		Long:    "rnabatch runs memory-gated, checkpointed feature extraction over a list of RNA targets.",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			applyRootFlags(cmd, cfg)

			logger, closer, err := config.NewLogger(cfg.Logging, isTerminal(os.Stderr))
			if err != nil {
				return err
			}
			if opts.debug {
				logger = logger.Level(zerolog.DebugLevel)
			}

			opts.cfg = cfg
			opts.closeLog = closer
			cmd.SetContext(logging.WithContext(cmd.Context(), logger))
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.closeLog != nil {
				_ = opts.closeLog()
			}
		},
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.String("log-level", "", "log level (trace, debug, info, warn, error)")
	pf.String("log-file", "", "also write JSON logs to this file")
	pf.String("data-dir", "", "directory with raw inputs (sequence CSV, MSA FASTA)")
	pf.String("out-dir", "", "directory receiving feature artifacts")
	pf.String("state-dir", "", "directory holding checkpoints and run locks")

	cmd.AddCommand(newRunCmd(opts), newResumeCmd(opts), newStatusCmd(opts))

	return cmd
}

// applyRootFlags layers explicitly-set persistent flags over the loaded
// configuration.
func applyRootFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-file") {
		cfg.Logging.File, _ = flags.GetString("log-file")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("out-dir") {
		cfg.OutDir, _ = flags.GetString("out-dir")
	}
	if flags.Changed("state-dir") {
		cfg.StateDir, _ = flags.GetString("state-dir")
	}
}

const rootCmdExample = `  # Run extraction over a target list with 2 GB of headroom
  rnabatch run --targets-file targets.txt --max-memory-gb 2

  # Resume an interrupted batch
  rnabatch resume batch-01J8X2M4N5P6Q7R8S9T0V1W2X3

  # Show the standing of every known batch
  rnabatch status`
