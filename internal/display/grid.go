// Package display renders posts as a grid of terminal cards.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"feedviewer/internal/media"
)

// NoContentMessage is shown when a load yields nothing to display.
const NoContentMessage = "No media content found. Try different subreddits or adjust filters."

const (
	cardWidth   = 30
	titleLength = 56
	separator   = " • "
)

var (
	colorBorder = lipgloss.Color("#30363d")
	colorMuted  = lipgloss.Color("#8b949e")
	colorText   = lipgloss.Color("#c9d1d9")

	kindColors = map[media.Kind]lipgloss.Color{
		media.Image:         lipgloss.Color("#58a6ff"),
		media.AnimatedImage: lipgloss.Color("#d29922"),
		media.Video:         lipgloss.Color("#f85149"),
	}

	cardStyle = lipgloss.NewStyle().
			Width(cardWidth).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			MarginRight(1)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true).
			Padding(1, 2)
)

// FormatNumber abbreviates counts: 1234 -> "1.2K", 3400000 -> "3.4M".
func FormatNumber(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// Badge returns the upper-case label for a media kind.
func Badge(k media.Kind) string {
	return strings.ToUpper(k.String())
}

// Truncate shortens s to max runes, adding "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return "..."
	}
	return string(r[:max-3]) + "..."
}

// Meta returns the "r/sub • ▲ score • n comments" line of a post.
func Meta(p media.Post) string {
	parts := []string{
		"r/" + p.Subreddit,
		"▲ " + FormatNumber(p.Score),
		FormatNumber(p.NumComments) + " comments",
	}
	return strings.Join(parts, separator)
}

// Card renders one post.
func Card(p media.Post) string {
	kind := media.ResolveKind(p)
	badge := badgeStyle.
		Foreground(lipgloss.Color("#0d1117")).
		Background(kindColors[kind]).
		Render(Badge(kind))

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		badge,
		titleStyle.Render(Truncate(p.Title, titleLength)),
		metaStyle.Render(Meta(p)),
	))
}

// Renderer writes card rows to w. IDs already written are skipped on
// Append so repeated pages never duplicate a card.
type Renderer struct {
	w       io.Writer
	columns int
	seen    map[string]bool
	count   int
}

// NewRenderer sizes the grid to fit width terminal columns.
func NewRenderer(w io.Writer, width int) *Renderer {
	cols := width / (cardWidth + 5)
	if cols < 1 {
		cols = 1
	}
	return &Renderer{w: w, columns: cols, seen: make(map[string]bool)}
}

// Count reports how many distinct cards have been written.
func (r *Renderer) Count() int {
	return r.count
}

// Reset forgets every rendered ID and writes posts as a fresh grid.
func (r *Renderer) Reset(posts []media.Post) error {
	r.seen = make(map[string]bool)
	r.count = 0
	if len(posts) == 0 {
		_, err := fmt.Fprintln(r.w, emptyStyle.Render(NoContentMessage))
		return err
	}
	return r.Append(posts)
}

// Append writes the posts not yet rendered.
func (r *Renderer) Append(posts []media.Post) error {
	var cards []string
	for _, p := range posts {
		if r.seen[p.ID] {
			continue
		}
		r.seen[p.ID] = true
		cards = append(cards, Card(p))
	}
	r.count += len(cards)

	for start := 0; start < len(cards); start += r.columns {
		end := min(start+r.columns, len(cards))
		row := lipgloss.JoinHorizontal(lipgloss.Top, cards[start:end]...)
		if _, err := fmt.Fprintln(r.w, row); err != nil {
			return err
		}
	}
	return nil
}
