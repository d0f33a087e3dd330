package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SirClappington/genejobs/internal/app"
	"github.com/SirClappington/genejobs/internal/config"
	"github.com/SirClappington/genejobs/internal/genes"
	"github.com/SirClappington/genejobs/internal/logging"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		url     string
		replace bool
	)
	cmd := &cobra.Command{
		Use:          "loader",
		Short:        "Load the HGNC gene dataset into the gene store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			if url == "" {
				url = cfg.HGNCDataURL
			}
			logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := deps.Close(); err != nil {
					logger.Error("close backends", zap.Error(err))
				}
			}()

			n, err := genes.NewLoader(deps.Genes, nil, logger).Load(ctx, url, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d genes\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "dataset URL (defaults to HGNC_DATA_URL)")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete existing genes before loading")
	return cmd
}
