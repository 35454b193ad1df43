package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	appLog "schedcard/internal/log"
	"schedcard/internal/model"
	"schedcard/internal/pipeline"
	"schedcard/internal/render"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	out         string // output path, "-" for stdout
	entriesPath string // JSON array of entries; empty reads the calendars
	theme       string
	title       string
}

func newRenderCmd(root *rootOpts) *cobra.Command {
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one schedule card to a PNG file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			fsys := afero.NewOsFs()
			pipe, err := pipeline.New(cfg, fsys)
			if err != nil {
				return err
			}

			entries, err := loadEntries(cmd, pipe, fsys, opts.entriesPath)
			if err != nil {
				return err
			}

			card := pipe.DefaultCardOptions()
			if opts.theme != "" {
				card.Theme = opts.theme
			}
			if opts.title != "" {
				card.Title = opts.title
			}

			res, err := pipe.Render(cmd.Context(), entries, card)
			if err != nil {
				return err
			}
			logImageStatuses(res)

			out := opts.out
			if out == "" {
				out = cfg.OutputPath
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(res.PNG)
				return err
			}
			if err := pipeline.WriteFileAtomic(fsys, out, res.PNG); err != nil {
				return err
			}
			appLog.Info("card written", "path", out, "entries", len(entries), "bytes", len(res.PNG))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output PNG path, - for stdout (default: output_path from config)")
	cmd.Flags().StringVarP(&opts.entriesPath, "entries", "e", "", "JSON file with entries (default: read the configured calendars)")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "card theme: dark, light (default: from config)")
	cmd.Flags().StringVar(&opts.title, "title", "", "header title (default: from config)")
	return cmd
}

func loadEntries(cmd *cobra.Command, pipe *pipeline.Pipeline, fsys afero.Fs, path string) ([]model.ScheduleEntry, error) {
	if path == "" {
		es, err := pipe.Entries(cmd.Context())
		if err != nil {
			return nil, err
		}
		if len(es.Entries) == 0 {
			return nil, pipeline.ErrNoEntries
		}
		return es.Entries, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = afero.ReadAll(cmd.InOrStdin())
	} else {
		data, err = afero.ReadFile(fsys, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	var entries []model.ScheduleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse entries %s: %w", path, err)
	}
	if len(entries) > model.MaxEntries {
		appLog.Info("truncating entries", "got", len(entries), "max", model.MaxEntries)
		entries = entries[:model.MaxEntries]
	}
	return entries, nil
}

func logImageStatuses(res *render.Result) {
	for i, st := range res.Images {
		if st.State == render.ImageSkipped && st.Ref != "" {
			appLog.Info("category image skipped", "row", i, "ref", st.Ref, "reason", st.Reason)
		}
	}
}
