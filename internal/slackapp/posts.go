package slackapp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/logger"
)

// Post creator interaction identifiers, matching the Slack app manifest.
const (
	createPostShortcutID = "create_social_post"
	postModalCallbackID  = "create_social_post_callback"
)

// Post creator modal block and action ids.
const (
	postTitleBlockID    = "post_title"
	postTitleInputID    = "title_input"
	postSubtitleBlockID = "post_subtitle"
	postSubtitleInputID = "subtitle_input"
	postImageBlockID    = "post_image"
	postImageInputID    = "image_input"
	postLogoBlockID     = "post_logo"
	postLogoInputID     = "logo_input"
	postAlignBlockID    = "post_align"
	postAlignInputID    = "align_input"
	postColorBlockID    = "post_color"
	postColorInputID    = "color_input"
)

// handleCreatePostShortcut opens the post creator modal.
func (a *App) handleCreatePostShortcut(ctx context.Context, callback slack.InteractionCallback) {
	if a.posts == nil {
		return
	}
	if _, err := a.api.OpenViewContext(ctx, callback.TriggerID, postModal()); err != nil {
		logger.Error("Failed to open post modal: %v", err)
	}
}

// postModal builds the post creator modal.
func postModal() slack.ModalViewRequest {
	titleInput := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "The headline", false, false),
		postTitleInputID)
	titleInput.MaxLength = domain.PostTitleMaxLen

	subtitleInput := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "A smaller line under the headline", false, false),
		postSubtitleInputID)
	subtitleInput.MaxLength = domain.PostSubtitleMaxLen
	subtitleBlock := slack.NewInputBlock(postSubtitleBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Subtitle", false, false),
		nil, subtitleInput)
	subtitleBlock.Optional = true

	imageBlock := slack.NewInputBlock(postImageBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Background image URL", false, false),
		nil,
		slack.NewPlainTextInputBlockElement(
			slack.NewTextBlockObject(slack.PlainTextType, "https://…", false, false),
			postImageInputID))
	imageBlock.Optional = true

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: postModalCallbackID,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, "Social post", false, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, "Generate", false, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(postTitleBlockID,
				slack.NewTextBlockObject(slack.PlainTextType, "Title", false, false),
				nil, titleInput),
			subtitleBlock,
			imageBlock,
			optionalSelect(postLogoBlockID, postLogoInputID, "Logo position",
				selectOption(domain.PostLogoBottom, "Bottom"),
				selectOption(domain.PostLogoTop, "Top")),
			optionalSelect(postAlignBlockID, postAlignInputID, "Title alignment",
				selectOption(domain.PostAlignLeft, "Left"),
				selectOption(domain.PostAlignRight, "Right")),
			optionalSelect(postColorBlockID, postColorInputID, "Title color",
				selectOption("#ffffff", "White"),
				selectOption("#000000", "Black"),
				selectOption("#fbbf24", "Amber")),
		}},
	}
}

func optionalSelect(blockID, actionID, label string, options ...*slack.OptionBlockObject) *slack.InputBlock {
	block := slack.NewInputBlock(blockID,
		slack.NewTextBlockObject(slack.PlainTextType, label, false, false),
		nil,
		slack.NewOptionsSelectBlockElement(slack.OptTypeStatic,
			slack.NewTextBlockObject(slack.PlainTextType, label, false, false),
			actionID, options...))
	block.Optional = true
	return block
}

func selectOption(value, label string) *slack.OptionBlockObject {
	return slack.NewOptionBlockObject(value,
		slack.NewTextBlockObject(slack.PlainTextType, label, false, false), nil)
}

// handlePostSubmission renders the post and delivers it to the user's DM.
// Rendering takes a while, so it happens after the ack, in the
// background.
func (a *App) handlePostSubmission(ctx context.Context, callback slack.InteractionCallback) {
	if a.posts == nil {
		return
	}
	post := domain.SocialPost{
		Title:          viewStateValue(callback, postTitleBlockID, postTitleInputID).Value,
		Subtitle:       viewStateValue(callback, postSubtitleBlockID, postSubtitleInputID).Value,
		ImageURL:       viewStateValue(callback, postImageBlockID, postImageInputID).Value,
		LogoPosition:   viewStateValue(callback, postLogoBlockID, postLogoInputID).SelectedOption.Value,
		TitleAlignment: viewStateValue(callback, postAlignBlockID, postAlignInputID).SelectedOption.Value,
		TitleColor:     viewStateValue(callback, postColorBlockID, postColorInputID).SelectedOption.Value,
		Size:           domain.PostPublishSize,
	}
	userID := callback.User.ID

	go func() {
		runCtx := context.WithoutCancel(ctx)

		channel, _, _, err := a.api.OpenConversationContext(runCtx, &slack.OpenConversationParameters{
			Users: []string{userID},
		})
		if err != nil {
			logger.Error("Failed to open a DM for the post: %v", err)
			return
		}

		raw, err := a.posts.Render(runCtx, post)
		if err != nil {
			logger.Error("Failed to render post: %v", err)
			a.postMessage(runCtx, channel.ID,
				slack.MsgOptionText("Sorry, I couldn't generate that post.", false))
			return
		}

		_, err = a.api.UploadFileV2Context(runCtx, slack.UploadFileV2Parameters{
			Reader:   bytes.NewReader(raw),
			Filename: "social-post.png",
			Title:    post.Title,
			FileSize: len(raw),
			Channel:  channel.ID,
		})
		if err != nil {
			logger.Error("Failed to upload post image: %v", err)
			return
		}
		a.postMessage(runCtx, channel.ID,
			slack.MsgOptionText(fmt.Sprintf("Here is your %q post. Download it and share away.", post.Title), false))
	}()
}
