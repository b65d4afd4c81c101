package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seqlab/rnabatch/internal/artifact"
	"github.com/seqlab/rnabatch/internal/batch"
	"github.com/seqlab/rnabatch/internal/checkpoint"
	"github.com/seqlab/rnabatch/internal/config"
	"github.com/seqlab/rnabatch/internal/dataset"
	"github.com/seqlab/rnabatch/internal/features"
	"github.com/seqlab/rnabatch/internal/logging"
	"github.com/seqlab/rnabatch/internal/memory"
	"github.com/seqlab/rnabatch/internal/metrics"
	"github.com/seqlab/rnabatch/internal/validate"
)

// batchFlags registers the flags shared by run and resume.
func batchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("targets-file", "", "file listing target identifiers, one per line")
	flags.Int("chunk-size", config.DefaultChunkSize, "targets processed between checkpoints")
	flags.Float64("max-memory-gb", config.DefaultMaxMemoryGB, "advisory memory ceiling in GB (0 disables)")
	flags.Bool("thermo", true, "compute thermodynamic features")
	flags.Bool("mi", true, "compute mutual-information features")
	flags.Float64("pseudocount", config.AdaptivePseudocount, "MI pseudocount (negative = adaptive from MSA depth)")
	flags.String("metrics-listen", "", "host:port for the Prometheus /metrics endpoint")
}

// applyBatchFlags layers explicitly-set batch flags over the configuration.
func applyBatchFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("chunk-size") {
		cfg.Batch.ChunkSize, _ = flags.GetInt("chunk-size")
	}
	if flags.Changed("max-memory-gb") {
		cfg.Batch.MaxMemoryGB, _ = flags.GetFloat64("max-memory-gb")
	}
	if flags.Changed("thermo") {
		cfg.Extract.Thermo, _ = flags.GetBool("thermo")
	}
	if flags.Changed("mi") {
		cfg.Extract.MI, _ = flags.GetBool("mi")
	}
	if flags.Changed("pseudocount") {
		cfg.Extract.Pseudocount, _ = flags.GetFloat64("pseudocount")
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Listen, _ = flags.GetString("metrics-listen")
	}
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var batchName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a new batch and process it to completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			applyBatchFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			var targets []string
			if targetsFile, _ := cmd.Flags().GetString("targets-file"); targetsFile != "" {
				fromFile, err := readTargetsFile(targetsFile)
				if err != nil {
					return err
				}
				targets = fromFile
			}
			extra, _ := cmd.Flags().GetStringArray("target")
			targets = append(targets, extra...)
			if len(targets) == 0 {
				return batch.ErrNoTargets
			}

			if batchName == "" {
				batchName = batch.GenerateBatchName()
			}
			params := checkpoint.Params{
				BatchName:    batchName,
				TargetIDs:    targets,
				Extract:      cfg.Extract,
				ChunkSize:    cfg.Batch.ChunkSize,
				CeilingBytes: cfg.Batch.MaxMemoryBytes(),
				CreatedAt:    time.Now().UTC(),
			}

			return executeBatch(cmd, cfg, params, false)
		},
	}

	batchFlags(cmd)
	cmd.Flags().StringVar(&batchName, "batch-name", "", "batch name (generated when omitted)")
	cmd.Flags().StringArray("target", nil, "target identifier (repeatable; alternative to --targets-file)")

	return cmd
}

// executeBatch assembles the pipeline and drives the controller. Shared by
// run and resume; the params for a resume must match the checkpoint.
func executeBatch(cmd *cobra.Command, cfg *config.Config, params checkpoint.Params, resume bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := checkpoint.NewFileStore(cfg.StateDir)
	if err != nil {
		return err
	}
	writer, err := artifact.NewWriter(cfg.FeaturesDir())
	if err != nil {
		return err
	}

	runner := batch.NewPipelineRunner(
		dataset.NewLoader(cfg.DataDir),
		features.NewExtractor(),
		validate.NewValidator(),
		writer,
	)

	collector := metrics.NewCollector()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logger := logging.FromContext(ctx)
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	ctrl := batch.NewController(
		store,
		checkpoint.DirLocker{Directory: store.Directory()},
		memory.NewMonitor(params.CeilingBytes),
		runner,
		collector,
	)

	var summary *batch.Summary
	if resume {
		summary, err = ctrl.Resume(ctx, params)
	} else {
		summary, err = ctrl.Run(ctx, params)
	}
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary)
	}
	if err != nil {
		return err
	}
	if summary.State == batch.StateInterrupted {
		return fmt.Errorf("%w: batch %s", ErrInterrupted, summary.BatchName)
	}
	return nil
}
