package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appLog "schedcard/internal/log"
	"schedcard/internal/pipeline"
	"schedcard/internal/web"
)

const refreshTimeout = 2 * time.Minute

func newServeCmd(root *rootOpts) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and refresh the preview card on schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			pipe, err := pipeline.New(cfg, afero.NewOsFs())
			if err != nil {
				return err
			}

			refresh := func(ctx context.Context) error {
				_, err := pipe.WritePreview(ctx)
				if errors.Is(err, pipeline.ErrNoEntries) {
					appLog.Info("no upcoming entries; preview left unchanged")
					return nil
				}
				return err
			}
			sched, err := pipeline.NewScheduler(cfg.RefreshCron, cfg.Location(), refreshTimeout, refresh)
			if err != nil {
				return err
			}

			appLog.Info("schedcard starting", "version", version, "listen", cfg.Listen, "refresh", cfg.RefreshCron)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return web.NewServer(cfg, pipe).ListenAndServe(ctx)
			})
			g.Go(func() error {
				sched.Start(ctx)
				return nil
			})
			err = g.Wait()
			appLog.Info("schedcard exiting")
			return err
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (overrides config if set)")
	return cmd
}
