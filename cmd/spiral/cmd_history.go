package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/The-Spiral/internal/ledger"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history [artifact]",
		Short: "Show the lifecycle ledger",
		Long: "Without arguments, list every artifact the ledger has seen. With an artifact " +
			"name, print its recorded actions oldest first. The ledger is locked while " +
			"`spiral run` is active; use the status API's /artifacts endpoints instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, params, err := opts.loadStore()
			if err != nil {
				return err
			}
			book, err := ledger.Open(ledger.Options{Dir: params.Paths.Ledger})
			if err != nil {
				return err
			}
			defer book.Close()
			if len(args) == 0 {
				return printArtifacts(cmd.OutOrStdout(), book)
			}
			return printHistory(cmd.OutOrStdout(), book, args[0])
		},
	}
}

func printArtifacts(out io.Writer, book *ledger.Ledger) error {
	names, err := book.Artifacts()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "Ledger is empty.")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func printHistory(out io.Writer, book *ledger.Ledger, artifact string) error {
	events, err := book.History(artifact)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no history for %s", artifact)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTAGE\tACTION\tFROM\tTO\tDETAIL")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.Format(time.RFC3339), e.Stage, e.Action, dash(e.From), dash(e.To), e.Detail)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
