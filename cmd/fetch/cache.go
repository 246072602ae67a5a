package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pricefeed/internal/cache"
	"pricefeed/internal/series"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the local price cache",
	}
	cmd.AddCommand(newCacheListCmd(root), newCacheInvalidateCmd(root))
	return cmd
}

func newCacheListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List cached series with their covered range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(root)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ASSET\tTIMEFRAME\tFROM\tTO")
			for _, e := range store.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Asset, e.Timeframe, series.EncodeMinute(e.CoveredStart), series.EncodeMinute(e.CoveredEnd))
			}
			return tw.Flush()
		},
	}
}

func newCacheInvalidateCmd(root *rootOptions) *cobra.Command {
	var timeframe string
	cmd := &cobra.Command{
		Use:   "rm ASSET...",
		Short: "Drop cached series so the next fetch downloads them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := series.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}
			store, err := openStore(root)
			if err != nil {
				return err
			}
			for _, asset := range args {
				e, ok := store.Find(asset, tf)
				if !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: no %s entry\n", asset, tf)
					continue
				}
				if err := store.Invalidate(e); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", e.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "daily", "daily, weekly or monthly")
	return cmd
}

// openStore needs no API key: cache maintenance never talks to the provider.
func openStore(root *rootOptions) (*cache.Store, error) {
	cfg, log, err := root.load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cache.Open(cfg.Cache.Dir, cache.WithLogger(log))
}
