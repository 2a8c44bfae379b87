package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/The-Spiral/internal/status"
	"github.com/kingrea/The-Spiral/internal/tui"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print partition counts, control parameters and the latest records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, params, err := opts.loadStore()
			if err != nil {
				return err
			}
			snap := status.Collect(params, time.Now())
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			return printStatus(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func printStatus(out io.Writer, snap status.Snapshot) error {
	gen := fmt.Sprintf("%d", snap.Generation)
	if snap.MaxGenerations > 0 {
		gen = fmt.Sprintf("%d/%d", snap.Generation, snap.MaxGenerations)
	}
	c := snap.Controls
	fmt.Fprintf(out, "Generation %s · bias %.4f · chaos %.4f · delete %.4f · obscure %.4f · decay %.0fs\n\n",
		gen, c.ComplexityBias, c.ChaosIntensity, c.DeletionChance, c.ObscurityChance, c.DecayWindowSeconds)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARTITION\tFILES\tPATH")
	for _, pc := range snap.Partitions {
		count := fmt.Sprintf("%d", pc.Count)
		if pc.Err != "" {
			count = "?"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", pc.Name, count, pc.Dir)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d results · %d chaos events · %d sandboxes\n", snap.Results, snap.ChaosEvents, snap.Sandboxes)
	if r := snap.LatestResult; r != nil {
		fmt.Fprintf(out, "Latest experiment: %s %s at %s\n", r.Artifact, r.Status, r.Timestamp.Format(time.RFC3339))
	}
	if e := snap.LatestChaos; e != nil {
		fmt.Fprintf(out, "Latest chaos: %s on %s\n", e.Kind, e.Target)
	}
	return nil
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := opts.loadStore()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tui.Run(ctx, store)
		},
	}
}
