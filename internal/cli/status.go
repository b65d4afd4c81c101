package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/seqlab/rnabatch/internal/batch"
	"github.com/seqlab/rnabatch/internal/checkpoint"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var showFailures bool

	cmd := &cobra.Command{
		Use:   "status [batch-name]",
		Short: "Show the standing of one batch, or of all known batches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := checkpoint.NewFileStore(root.cfg.StateDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				record, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printSummary(out, batch.Summarize(record))
				if showFailures {
					printFailures(out, record)
				}
				return nil
			}

			records, err := store.ListBatches(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No batches found.")
				return nil
			}
			printBatchList(out, records)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFailures, "failures", false, "list failed targets with their stage and error")

	return cmd
}

// printSummary renders one batch rollup.
func printSummary(out io.Writer, s *batch.Summary) {
	table := tablewriter.NewWriter(out)
	table.Header("Field", "Value")

	table.Append("Batch", s.BatchName)
	table.Append("State", string(s.State))
	table.Append("Requested", fmt.Sprintf("%d", s.TotalRequested))
	table.Append("Succeeded", fmt.Sprintf("%d", s.Succeeded))
	table.Append("Failed", fmt.Sprintf("%d", s.Failed))
	table.Append("Skipped (memory)", fmt.Sprintf("%d", s.SkippedMemory))
	table.Append("Skipped (already done)", fmt.Sprintf("%d", s.SkippedDone))
	table.Append("Pending", fmt.Sprintf("%d", s.Pending))
	table.Append("Next chunk", fmt.Sprintf("%d", s.NextChunk))

	table.Render()

	if retry := s.Retryable(); retry > 0 {
		fmt.Fprintf(out, "\n%d target(s) will be retried on resume.\n", retry)
	}
}

// printFailures lists failed targets with stage and detail.
func printFailures(out io.Writer, record *checkpoint.Record) {
	var failed []checkpoint.Outcome
	for _, o := range record.Ledger {
		if o.Status == checkpoint.StatusFailed {
			failed = append(failed, o)
		}
	}
	if len(failed) == 0 {
		return
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].TargetID < failed[j].TargetID })

	table := tablewriter.NewWriter(out)
	table.Header("Target", "Stage", "Error")
	for _, o := range failed {
		table.Append(o.TargetID, o.Stage, truncate(o.ErrorDetail, 80))
	}
	table.Render()
}

// printBatchList renders one row per known batch.
func printBatchList(out io.Writer, records []*checkpoint.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Params.BatchName < records[j].Params.BatchName
	})

	table := tablewriter.NewWriter(out)
	table.Header("Batch", "State", "Requested", "Succeeded", "Failed", "Skipped", "Pending")
	for _, record := range records {
		s := batch.Summarize(record)
		table.Append(
			s.BatchName,
			string(s.State),
			fmt.Sprintf("%d", s.TotalRequested),
			fmt.Sprintf("%d", s.Succeeded),
			fmt.Sprintf("%d", s.Failed),
			fmt.Sprintf("%d", s.SkippedMemory+s.SkippedDone),
			fmt.Sprintf("%d", s.Pending),
		)
	}
	table.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
