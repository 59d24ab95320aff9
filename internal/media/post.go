package media

import "strings"

// Post is one content item from an upstream listing. Only the fields the
// viewer reads are decoded; everything else in the record is ignored.
type Post struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subreddit   string `json:"subreddit"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	Thumbnail   string `json:"thumbnail"`
	IsVideo     bool   `json:"is_video"`

	Media       *PostMedia  `json:"media,omitempty"`
	SecureMedia *PostMedia  `json:"secure_media,omitempty"`
	Crossposts  []Crosspost `json:"crosspost_parent_list,omitempty"`
	Preview     *Preview    `json:"preview,omitempty"`
}

// PostMedia wraps the platform-hosted video object.
type PostMedia struct {
	RedditVideo *NativeVideo `json:"reddit_video,omitempty"`
}

// NativeVideo is a video served by the platform itself.
type NativeVideo struct {
	FallbackURL string `json:"fallback_url"`
	Duration    int    `json:"duration,omitempty"`
	IsGIF       bool   `json:"is_gif,omitempty"`
}

// Crosspost is the parent record of a crossposted item. Only its media
// matters for resolution.
type Crosspost struct {
	Media *PostMedia `json:"media,omitempty"`
}

// Preview is the platform-generated preview block.
type Preview struct {
	Images       []PreviewImage `json:"images,omitempty"`
	VideoPreview *NativeVideo   `json:"reddit_video_preview,omitempty"`
}

// PreviewImage is one previewed image with its resolution ladder and
// transcoded variants.
type PreviewImage struct {
	Source      *ImageSource  `json:"source,omitempty"`
	Resolutions []ImageSource `json:"resolutions,omitempty"`
	Variants    *Variants     `json:"variants,omitempty"`
}

// Variants holds the animated transcodes of a preview image.
type Variants struct {
	MP4 *Variant `json:"mp4,omitempty"`
	GIF *Variant `json:"gif,omitempty"`
}

// Variant is a single transcode.
type Variant struct {
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is a sized image URL.
type ImageSource struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// RefShape tags a Reference with where in the record it was found.
type RefShape int

const (
	RefNativePrimary RefShape = iota
	RefNativeSecure
	RefNativeCrosspost
	RefVideoPreview
	RefAnimatedMP4
	RefAnimatedGIF
	RefPreviewImage
	RefPreviewResolution
	RefDirect
	RefThumbnail
)

func (s RefShape) String() string {
	switch s {
	case RefNativePrimary:
		return "native-primary"
	case RefNativeSecure:
		return "native-secure"
	case RefNativeCrosspost:
		return "native-crosspost"
	case RefVideoPreview:
		return "video-preview"
	case RefAnimatedMP4:
		return "animated-mp4"
	case RefAnimatedGIF:
		return "animated-gif"
	case RefPreviewImage:
		return "preview-image"
	case RefPreviewResolution:
		return "preview-resolution"
	case RefDirect:
		return "direct"
	case RefThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// Reference is one media URL exposed by a post, tagged with its shape.
type Reference struct {
	Shape RefShape
	URL   string
}

// References flattens the optional nested fields of a post into the list
// of media references it actually carries, in RefShape order. Entity-escaped
// ampersands are normalized for preview-derived URLs. Empty URLs are
// omitted, so every returned reference is usable.
func References(p Post) []Reference {
	var refs []Reference
	add := func(shape RefShape, u string) {
		if u != "" {
			refs = append(refs, Reference{Shape: shape, URL: u})
		}
	}

	add(RefNativePrimary, p.Media.fallbackURL())
	add(RefNativeSecure, p.SecureMedia.fallbackURL())
	if len(p.Crossposts) > 0 {
		add(RefNativeCrosspost, p.Crossposts[0].Media.fallbackURL())
	}

	if p.Preview != nil {
		if p.Preview.VideoPreview != nil {
			add(RefVideoPreview, p.Preview.VideoPreview.FallbackURL)
		}
		if img := p.Preview.first(); img != nil {
			if v := img.Variants; v != nil {
				add(RefAnimatedMP4, unescape(v.MP4.sourceURL()))
				add(RefAnimatedGIF, unescape(v.GIF.sourceURL()))
			}
			if img.Source != nil {
				add(RefPreviewImage, unescape(img.Source.URL))
			}
			if n := len(img.Resolutions); n > 0 {
				i := n / 2
				if i >= n {
					i = n - 1
				}
				add(RefPreviewResolution, unescape(img.Resolutions[i].URL))
			}
		}
	}

	add(RefDirect, p.URL)
	if !isThumbnailSentinel(p.Thumbnail) {
		add(RefThumbnail, p.Thumbnail)
	}
	return refs
}

func (m *PostMedia) fallbackURL() string {
	if m == nil || m.RedditVideo == nil {
		return ""
	}
	return m.RedditVideo.FallbackURL
}

func (p *Preview) first() *PreviewImage {
	if p == nil || len(p.Images) == 0 {
		return nil
	}
	return &p.Images[0]
}

func (v *Variant) sourceURL() string {
	if v == nil || v.Source == nil {
		return ""
	}
	return v.Source.URL
}

func (v *Variants) present() bool {
	return v != nil && (v.MP4 != nil || v.GIF != nil)
}

func unescape(u string) string {
	return strings.ReplaceAll(u, "&amp;", "&")
}

// Thumbnail values the upstream uses to mean "no thumbnail".
var thumbnailSentinels = map[string]bool{
	"":        true,
	"self":    true,
	"default": true,
	"nsfw":    true,
}

func isThumbnailSentinel(t string) bool {
	return thumbnailSentinels[t]
}
