package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pricefeed/internal/app"
	"pricefeed/internal/config"
	"pricefeed/internal/feed"
	"pricefeed/internal/logging"
	"pricefeed/internal/series"
)

type rootOptions struct {
	configPath string
	cacheDir   string
	logLevel   string

	assets    []string
	from      string
	to        string
	timeframe string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch historical prices through the local cache",
		Long: `Fetch prints historical OHLC series for one or more assets as JSON.

Windows already covered by the cache directory are answered from disk; anything else
downloads the provider's full history once and stores it.

Example:
  fetch --asset PETR4 --asset VALE3 --from 2021-01-01 --to 2021-06-30 --timeframe daily`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml (optional)")
	pf.StringVar(&opts.cacheDir, "cache-dir", "", "cache directory (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")

	f := cmd.Flags()
	f.StringArrayVarP(&opts.assets, "asset", "a", nil, "asset code, repeatable (required)")
	f.StringVar(&opts.from, "from", "", "window start, YYYY-MM-DD or RFC 3339 (required)")
	f.StringVar(&opts.to, "to", "", "window end, YYYY-MM-DD or RFC 3339 (required)")
	f.StringVarP(&opts.timeframe, "timeframe", "t", "daily", "daily, weekly or monthly")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	cmd.AddCommand(newCacheCmd(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if o.cacheDir != "" {
		cfg.Cache.Dir = o.cacheDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}

func runFetch(cmd *cobra.Command, opts *rootOptions) error {
	window, err := app.ParseWindow(opts.from, opts.to)
	if err != nil {
		return err
	}
	tf, err := series.ParseTimeframe(opts.timeframe)
	if err != nil {
		return err
	}
	cfg, log, err := opts.load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	f, _, err := app.Build(cfg, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	started := time.Now()
	byAsset, err := feed.LoadMarket(ctx, feed.NewSerialized(f), opts.assets, window, tf, cfg.AlphaVantage.MaxConcurrency)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"assets": len(byAsset), "took": time.Since(started).String()}).Info("fetch done")

	results := make([]*feed.Result, 0, len(byAsset))
	seen := make(map[string]struct{}, len(opts.assets))
	for _, a := range opts.assets {
		res, ok := byAsset[a]
		if _, dup := seen[a]; dup || !ok {
			continue
		}
		seen[a] = struct{}{}
		results = append(results, res)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Results []*feed.Result `json:"results"`
	}{results})
}
