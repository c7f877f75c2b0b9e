package services

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/communitykit/communitybot/internal/core/domain"
	nclient "github.com/communitykit/communitybot/internal/notion"
)

const (
	skillLevelMin = 1
	skillLevelMax = 5
)

// SkillService tracks scholar skill entries.
type SkillService struct {
	notion     NotionStore
	databaseID string
}

// NewSkillService creates a skill tracking service.
func NewSkillService(notion NotionStore, databaseID string) *SkillService {
	return &SkillService{notion: notion, databaseID: databaseID}
}

// Skills returns the user's skill entries.
func (s *SkillService) Skills(ctx context.Context, slackUserID string) ([]domain.Skill, error) {
	if slackUserID == "" {
		return nil, domain.ErrInvalidInput
	}

	var skills []domain.Skill
	err := s.notion.QueryDatabase(ctx, s.databaseID, func(page notionapi.Page) error {
		if pageRichText(page, "Member") != slackUserID {
			return nil
		}
		skills = append(skills, domain.Skill{
			ID:     string(page.ID),
			UserID: slackUserID,
			Name:   nclient.PageTitle(&page),
			Level:  int(pageNumber(page, "Level")),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	return skills, nil
}

// SetSkill records the user's self assessment for a skill, creating the
// entry on first use.
func (s *SkillService) SetSkill(ctx context.Context, slackUserID, name string, level int) (*domain.Skill, error) {
	if slackUserID == "" || name == "" {
		return nil, domain.ErrInvalidInput
	}
	if level < skillLevelMin || level > skillLevelMax {
		return nil, fmt.Errorf("%w: level %d out of range", domain.ErrInvalidInput, level)
	}

	existing, err := s.Skills(ctx, slackUserID)
	if err != nil {
		return nil, err
	}
	for _, skill := range existing {
		if skill.Name != name {
			continue
		}
		_, err := s.notion.UpdatePage(ctx, skill.ID, &notionapi.PageUpdateRequest{
			Properties: notionapi.Properties{
				"Level": numberValue(float64(level)),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("update skill: %w", err)
		}
		skill.Level = level
		return &skill, nil
	}

	page, err := s.notion.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: databaseParent(s.databaseID),
		Properties: notionapi.Properties{
			"Name":   titleValue(name),
			"Member": richTextValue(slackUserID),
			"Level":  numberValue(float64(level)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create skill: %w", err)
	}

	return &domain.Skill{
		ID:     string(page.ID),
		UserID: slackUserID,
		Name:   name,
		Level:  level,
	}, nil
}
