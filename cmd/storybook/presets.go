package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fpang/storybook-illustrator/internal/picker"
	"github.com/fpang/storybook-illustrator/internal/storybook"
	"github.com/spf13/cobra"
)

func newPresetsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage saved art-style presets",
	}
	cmd.AddCommand(newPresetsListCmd(opts), newPresetsAddCmd(opts), newPresetsRemoveCmd(opts))
	return cmd
}

// openStudio builds a studio without seed data for offline preset edits.
func openStudio(cmd *cobra.Command, opts *options) (*storybook.Studio, *app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	studio := storybook.NewStudio(cmd.Context(), storybook.StudioConfig{
		Remote:   a.remote,
		Store:    a.store,
		SkipSeed: true,
	})
	return studio, a, nil
}

func newPresetsListCmd(opts *options) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			studio, a, err := openStudio(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			presets := studio.Snapshot().Presets
			out := cmd.OutOrStdout()
			if len(presets) == 0 {
				fmt.Fprintln(out, "No presets saved.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, p := range presets {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, summarize(p.Description, verbose))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print full style descriptions")
	return cmd
}

func newPresetsAddCmd(opts *options) *cobra.Command {
	var pick bool
	cmd := &cobra.Command{
		Use:   "add NAME [IMAGE]",
		Short: "Analyze a reference image and save it as a preset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch {
			case len(args) == 2:
				path = args[1]
			case pick:
				p, err := picker.PickImage()
				if errors.Is(err, picker.ErrCanceled) {
					fmt.Fprintln(cmd.OutOrStdout(), "Canceled.")
					return nil
				}
				if err != nil {
					return fmt.Errorf("file picker failed: %w", err)
				}
				path = p
			default:
				return errors.New("an image path or --pick is required")
			}

			upload, err := storybook.UploadFromFile(path)
			if err != nil {
				return err
			}
			studio, a, err := openStudio(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			preset, err := studio.CreatePreset(context.WithoutCancel(cmd.Context()), args[0], upload)
			if err != nil {
				var remoteErr *storybook.RemoteError
				if errors.As(err, &remoteErr) {
					return errors.New(remoteErr.Message)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %s (%s)\n%s\n", preset.Name, preset.ID, preset.Description)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pick, "pick", false, "Choose the reference image with a file dialog")
	return cmd
}

func newPresetsRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Delete a saved preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studio, a, err := openStudio(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if !studio.RemovePreset(cmd.Context(), args[0]) {
				return fmt.Errorf("preset %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed preset %s\n", args[0])
			return nil
		},
	}
}

func summarize(description string, full bool) string {
	const maxLen = 60
	if full {
		return description
	}
	r := []rune(description)
	for i, c := range r {
		if c == '\n' {
			r = r[:i]
			break
		}
	}
	if len(r) > maxLen {
		return string(r[:maxLen-1]) + "…"
	}
	return string(r)
}
