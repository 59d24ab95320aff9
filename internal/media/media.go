// Package media provides centralized media classification for feed
// posts: deciding whether a post is a video, an animated image or a
// still image, and resolving the single best URL to hand to a playback
// element.
package media

import (
	"path"
	"strings"
)

// Kind represents the resolved kind of a post's media.
type Kind int

const (
	Image Kind = iota
	AnimatedImage
	Video
)

func (k Kind) String() string {
	switch k {
	case Video:
		return "video"
	case AnimatedImage:
		return "gif"
	default:
		return "image"
	}
}

// TimeBased reports whether the kind is played by a video element.
// Animated images are served as mp4 transcodes, so they count.
func (k Kind) TimeBased() bool {
	return k == Video || k == AnimatedImage
}

// Video file extensions.
var videoExts = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// Still image file extensions.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// Extensions for which a direct link beats the platform preview.
var directExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".mp4":  true,
	".webm": true,
}

const (
	animatedExt = ".gif"

	imageHost   = "i.redd.it"
	imgurHost   = "i.imgur.com"
	previewHost = "preview.redd.it"
	videoHost   = "v.redd.it"
)

var (
	animatedHosts = []string{"gfycat.com", "redgifs.com"}
	embedHosts    = []string{"youtube.com", "youtu.be"}
)

// Placeholder is shown in place of media that failed to load.
const Placeholder = `data:image/svg+xml,%3Csvg xmlns="http://www.w3.org/2000/svg" width="400" height="400"%3E%3Crect fill="%231a1f2e" width="400" height="400"/%3E%3Ctext fill="%23b0b8c4" font-family="sans-serif" font-size="18" x="50%25" y="50%25" text-anchor="middle" dy=".3em"%3EMedia not available%3C/text%3E%3C/svg%3E`

// ext returns the lower-cased extension at the very end of u. Query
// strings are not stripped: "a.jpg?x=1" has no media extension.
func ext(u string) string {
	return strings.ToLower(path.Ext(u))
}

// IsImageURL reports whether u points at a still image.
func IsImageURL(u string) bool {
	if u == "" {
		return false
	}
	if imageExts[ext(u)] {
		return true
	}
	gif := strings.Contains(u, animatedExt)
	return (strings.Contains(u, imageHost) || strings.Contains(u, imgurHost)) && !gif
}

// IsAnimatedURL reports whether u points at an animated image.
func IsAnimatedURL(u string) bool {
	if u == "" {
		return false
	}
	if ext(u) == animatedExt {
		return true
	}
	for _, h := range animatedHosts {
		if strings.Contains(u, h) {
			return true
		}
	}
	gif := strings.Contains(u, animatedExt)
	return (strings.Contains(u, imageHost) || strings.Contains(u, imgurHost)) && gif
}

// IsNativeVideo reports whether the post carries a platform-hosted video:
// the explicit flag, or a fallback URL under the primary, secure or
// crosspost media paths.
func IsNativeVideo(p Post) bool {
	if p.IsVideo {
		return true
	}
	for _, r := range References(p) {
		switch r.Shape {
		case RefNativePrimary, RefNativeSecure, RefNativeCrosspost:
			return true
		}
	}
	return false
}

// IsVideo reports whether the post's link looks like a video: a video
// file, the platform video host, or a streaming embed.
func IsVideo(p Post) bool {
	if p.Media != nil && p.Media.RedditVideo != nil {
		return true
	}
	u := p.URL
	if u == "" {
		return false
	}
	if videoExts[ext(u)] || p.Domain == videoHost || strings.Contains(u, videoHost) {
		return true
	}
	for _, h := range embedHosts {
		if strings.Contains(u, h) {
			return true
		}
	}
	return false
}

// HasAnimatedVariant reports whether the preview exposes an mp4 or gif
// transcode of the first image.
func HasAnimatedVariant(p Post) bool {
	img := p.Preview.first()
	return img != nil && img.Variants.present()
}

// ResolveKind classifies a post. It is total: a post with no media signal
// at all is an Image.
func ResolveKind(p Post) Kind {
	switch {
	case IsNativeVideo(p), IsVideo(p):
		return Video
	case HasAnimatedVariant(p), IsAnimatedURL(p.URL):
		return AnimatedImage
	default:
		return Image
	}
}

// ResolvePlayableURL returns the best URL to hand to a playback element,
// or "" when the post carries nothing usable.
func ResolvePlayableURL(p Post) string {
	refs := References(p)
	pick := func(shapes ...RefShape) string {
		for _, s := range shapes {
			for _, r := range refs {
				if r.Shape == s {
					return r.URL
				}
			}
		}
		return ""
	}

	if u := pick(RefNativePrimary, RefNativeSecure, RefNativeCrosspost); u != "" {
		return u
	}
	if u := pick(RefVideoPreview); u != "" {
		return u
	}
	if u := pick(RefAnimatedMP4, RefAnimatedGIF); u != "" {
		return u
	}
	if ext(p.URL) == animatedExt {
		return p.URL
	}
	if u := pick(RefPreviewImage); u != "" {
		if preferDirect(p.URL) {
			return p.URL
		}
		return u
	}
	return p.URL
}

// preferDirect reports whether a direct media link should win over the
// platform's static preview.
func preferDirect(u string) bool {
	return u != "" && !strings.Contains(u, previewHost) && directExts[ext(u)]
}

// ResolveThumbnailURL returns a poster image for the post: the preview
// source, a mid-ladder resolution, or the post's own thumbnail.
func ResolveThumbnailURL(p Post) string {
	for _, r := range References(p) {
		switch r.Shape {
		case RefPreviewImage, RefPreviewResolution, RefThumbnail:
			return r.URL
		}
	}
	return ""
}

// Resolved bundles the classifier results for one post.
type Resolved struct {
	Kind      Kind
	URL       string
	Thumbnail string
}

// Classify resolves kind, playable URL and thumbnail in one call.
func Classify(p Post) Resolved {
	return Resolved{
		Kind:      ResolveKind(p),
		URL:       ResolvePlayableURL(p),
		Thumbnail: ResolveThumbnailURL(p),
	}
}
