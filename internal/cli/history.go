package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FgForrest/evitaDB-sub062/internal/engine"
	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	From    int64
	Reverse bool
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List committed engine mutations",
		Long: `List committed engine mutations from the WAL.

By default the log is printed oldest first starting at --from. With --reverse
it is printed newest first, starting at --from when given.

Example:
  evitactl history --from 10
  evitactl history --reverse --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.From, "from", 1, "first engine version to print")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "print newest first")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of mutations to print (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	return withEngine(opts.RootOptions, cmd, f, func(e *engine.Engine) error {
		ctx := commandContext(cmd)
		var (
			stream mutation.Stream
			err    error
		)
		if opts.Reverse {
			var from *int64
			if cmd.Flags().Changed("from") {
				from = &opts.From
			}
			stream, err = e.ReversedCommittedMutations(ctx, from)
		} else {
			stream, err = e.CommittedMutations(ctx, opts.From)
		}
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStorage, "failed to read history", err)
		}
		defer stream.Close()

		h, err := collectHistory(stream, opts.Limit)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStorage, "failed to read history", err)
		}
		return f.Success(h)
	})
}

// collectHistory pairs every transaction wrapper with the engine mutation
// that follows it.
func collectHistory(stream mutation.Stream, limit int) (history, error) {
	h := history{Entries: []historyEntry{}}
	var tx *mutation.TransactionMutation
	for stream.Next() {
		switch m := stream.Mutation().(type) {
		case mutation.TransactionMutation:
			tx = &m
		case mutation.EngineMutation:
			if tx == nil {
				return h, fmt.Errorf("engine mutation %s without transaction", m.Kind())
			}
			h.Entries = append(h.Entries, historyEntry{
				Version:       tx.Version,
				TransactionID: tx.TransactionID.String(),
				CommittedAt:   tx.CommittedAt,
				Operation:     m.Kind().String(),
				Mutation:      m,
			})
			tx = nil
			if limit > 0 && len(h.Entries) == limit {
				return h, nil
			}
		}
	}
	return h, stream.Err()
}
