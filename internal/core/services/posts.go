package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
)

// PostService composes social-media images from the post creator modal's
// fields. Rendering is delegated to the configured image provider.
type PostService struct {
	images driven.ImageService
}

// NewPostService creates a post service. A nil image service is allowed;
// rendering then fails with domain.ErrImageUnavailable.
func NewPostService(images driven.ImageService) *PostService {
	return &PostService{images: images}
}

// Render produces the image bytes for a post.
func (s *PostService) Render(ctx context.Context, post domain.SocialPost) ([]byte, error) {
	if strings.TrimSpace(post.Title) == "" {
		return nil, fmt.Errorf("%w: a post needs a title", domain.ErrInvalidInput)
	}
	if s.images == nil {
		return nil, domain.ErrImageUnavailable
	}

	normalize(&post)

	raw, err := s.images.Generate(ctx, postPrompt(post))
	if err != nil {
		return nil, fmt.Errorf("render post: %w", err)
	}
	return raw, nil
}

// normalize clamps the field values to what the layout supports.
func normalize(post *domain.SocialPost) {
	if len(post.Title) > domain.PostTitleMaxLen {
		post.Title = post.Title[:domain.PostTitleMaxLen]
	}
	if len(post.Subtitle) > domain.PostSubtitleMaxLen {
		post.Subtitle = post.Subtitle[:domain.PostSubtitleMaxLen]
	}
	if post.LogoPosition != domain.PostLogoTop {
		post.LogoPosition = domain.PostLogoBottom
	}
	if post.TitleAlignment != domain.PostAlignRight {
		post.TitleAlignment = domain.PostAlignLeft
	}
	if post.TitleColor == "" {
		post.TitleColor = "#ffffff"
	}
	if post.Size <= 0 {
		post.Size = domain.PostPublishSize
	}
}

// postPrompt spells the layout out for the image model.
func postPrompt(post domain.SocialPost) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A square %dpx social media announcement image.\n", post.Size)
	fmt.Fprintf(&b, "Headline text, %s-aligned, in color %s: %q.\n",
		post.TitleAlignment, post.TitleColor, post.Title)
	if post.Subtitle != "" {
		fmt.Fprintf(&b, "Smaller subtitle below the headline: %q.\n", post.Subtitle)
	}
	if post.ImageURL != "" {
		fmt.Fprintf(&b, "Background based on the photograph at %s, darkened so the text stays readable.\n", post.ImageURL)
	} else {
		b.WriteString("Background: a dark, softly lit abstract gradient.\n")
	}
	fmt.Fprintf(&b, "A small community logo mark pinned to the %s edge.\n", post.LogoPosition)
	b.WriteString("Flat, modern, no extra text beyond the headline and subtitle.")
	return b.String()
}
