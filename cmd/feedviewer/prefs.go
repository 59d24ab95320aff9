package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// prefsCmd groups the preference subcommands.
func prefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show, change or clear stored preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			data, err := json.MarshalIndent(store.Load(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", store.Path(), data)
			return nil
		},
	})

	var ff filterFlags
	set := &cobra.Command{
		Use:   "set [subreddit...]",
		Short: "Store sources and filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			p := ff.apply(cmd, store.Load())
			if len(args) > 0 {
				names, err := sources(args, p)
				if err != nil {
					return err
				}
				p.Subreddits = strings.Join(names, ", ")
			}
			if err := store.Save(p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Preferences saved")
			return nil
		},
	}
	set.Flags().BoolVar(&ff.images, "images", true, "Show images and animated images")
	set.Flags().BoolVar(&ff.videos, "videos", true, "Show videos")
	set.Flags().BoolVar(&ff.shuffle, "shuffle", false, "Shuffle the displayed posts")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget stored preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store().Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Preferences cleared")
			return nil
		},
	})

	return cmd
}
