package cli

import (
	"github.com/spf13/cobra"

	"github.com/seqlab/rnabatch/internal/checkpoint"
)

func newResumeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <batch-name>",
		Short: "Continue an interrupted batch from its checkpoint",
		Long: `Resume loads the checkpoint for the named batch and continues from the
persisted cursor. Completed targets are never redone; failed and
memory-skipped targets are retried. Parameters default to the ones
recorded at batch creation; explicitly overriding them is rejected
unless the values match the checkpoint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			applyBatchFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			batchName := args[0]
			store, err := checkpoint.NewFileStore(cfg.StateDir)
			if err != nil {
				return err
			}
			record, err := store.Load(cmd.Context(), batchName)
			if err != nil {
				return err
			}

			// Stored params are the source of truth; flags the user set
			// explicitly are layered on top and verified against them.
			params := record.Params
			flags := cmd.Flags()
			if flags.Changed("chunk-size") {
				params.ChunkSize = cfg.Batch.ChunkSize
			}
			if flags.Changed("max-memory-gb") {
				params.CeilingBytes = cfg.Batch.MaxMemoryBytes()
			}
			if flags.Changed("thermo") || flags.Changed("mi") || flags.Changed("pseudocount") {
				params.Extract = cfg.Extract
			}
			if flags.Changed("targets-file") {
				targetsFile, _ := flags.GetString("targets-file")
				targets, err := readTargetsFile(targetsFile)
				if err != nil {
					return err
				}
				params.TargetIDs = targets
			}

			return executeBatch(cmd, cfg, params, true)
		},
	}

	batchFlags(cmd)

	return cmd
}
