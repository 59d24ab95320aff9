package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"feedviewer/internal/feed"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149")).Bold(true)
	nameStyle = lipgloss.NewStyle().Width(12)
)

type probe struct {
	relay feed.Relay
	posts int
	took  time.Duration
	err   error
}

// checkCmd probes every relay of the chain with one source.
func checkCmd(a *app) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe each relay with one source",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := a.relays(false)
			if err != nil {
				return err
			}
			client := a.client(chain)
			upstream := client.PageURL(source, "")

			results := make([]probe, len(chain.Relays))
			var g errgroup.Group
			for i, r := range chain.Relays {
				g.Go(func() error {
					start := time.Now()
					page, err := client.Attempt(cmd.Context(), r, upstream)
					results[i] = probe{relay: r, posts: len(page.Posts), took: time.Since(start), err: err}
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Relay chain %q, source r/%s\n", chain.Name, source)

			healthy := 0
			for _, p := range results {
				if p.err != nil {
					fmt.Fprintf(out, "%s %s %v\n", failStyle.Render("FAIL"), nameStyle.Render(p.relay.Name), p.err)
					continue
				}
				healthy++
				fmt.Fprintf(out, "%s %s %d posts in %s\n", okStyle.Render(" OK "), nameStyle.Render(p.relay.Name), p.posts, p.took.Round(time.Millisecond))
			}

			if healthy == 0 {
				return fmt.Errorf("no relay reachable for r/%s", source)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "pics", "Source to probe with")
	return cmd
}
