package domain

// Social post layout choices, mirroring the post creator modal.
const (
	PostLogoTop        = "top"
	PostLogoBottom     = "bottom"
	PostAlignLeft      = "left"
	PostAlignRight     = "right"
	PostPreviewSize    = 300
	PostPublishSize    = 1200
	PostTitleMaxLen    = 60
	PostSubtitleMaxLen = 40
)

// SocialPost describes one square social-media image to compose: a title
// and optional subtitle laid over a background image, with the community
// logo pinned to an edge.
type SocialPost struct {
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	LogoPosition   string `json:"logoPosition,omitempty"`
	TitleColor     string `json:"titleColor,omitempty"`
	TitleAlignment string `json:"titleAlignment,omitempty"`

	// Size is the square edge length in pixels.
	Size int `json:"size,omitempty"`
}
