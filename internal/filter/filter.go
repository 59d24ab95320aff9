// Package filter derives the displayed set from the aggregated posts.
package filter

import (
	"math/rand/v2"
	"slices"

	"feedviewer/internal/media"
)

// Options are the user's display choices.
type Options struct {
	Images  bool
	Videos  bool
	Shuffle bool
}

// Keep reports whether p passes the media type flags. With neither flag
// set nothing is filtered out.
func (o Options) Keep(p media.Post) bool {
	kind := media.ResolveKind(p)
	switch {
	case o.Images && o.Videos:
		return kind == media.Image || kind == media.AnimatedImage || kind == media.Video
	case o.Images:
		return kind == media.Image || kind == media.AnimatedImage
	case o.Videos:
		return kind == media.Video
	default:
		return true
	}
}

// Apply returns the posts that pass opts, in input order unless
// opts.Shuffle is set. posts is never modified. Only call Apply on a
// fully aggregated set; partial sets go through Preview. rng may be nil.
func Apply(posts []media.Post, opts Options, rng *rand.Rand) []media.Post {
	out := make([]media.Post, 0, len(posts))
	for _, p := range posts {
		if opts.Keep(p) {
			out = append(out, p)
		}
	}
	if opts.Shuffle {
		Shuffle(out, rng)
	}
	return out
}

// Preview is the progressive rendering path: posts without a URL are
// dropped, the rest are filtered, sorted by score and capped to limit.
// It never shuffles.
func Preview(posts []media.Post, opts Options, limit int) []media.Post {
	out := make([]media.Post, 0, len(posts))
	for _, p := range posts {
		if p.URL != "" && opts.Keep(p) {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(x, y media.Post) int {
		return y.Score - x.Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Shuffle permutes posts in place (Fisher-Yates). A nil rng uses the
// package-level source.
func Shuffle(posts []media.Post, rng *rand.Rand) {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	for i := len(posts) - 1; i > 0; i-- {
		j := intN(i + 1)
		posts[i], posts[j] = posts[j], posts[i]
	}
}

// IndexOf returns the index of the post with the given id, or -1.
func IndexOf(posts []media.Post, id string) int {
	return slices.IndexFunc(posts, func(p media.Post) bool {
		return p.ID == id
	})
}
