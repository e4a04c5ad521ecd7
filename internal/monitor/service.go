package monitor

import (
	"context"
	"fmt"

	"github.com/youthsafe/guardian/internal/models"
)

// Service carries the monitoring operations: identifier generation, the write
// path for ingested entities, the read-side aggregations, and family
// management.
type Service struct {
	repo  *Repo
	alloc Allocator

	// insert attempts after losing an allocation race
	maxIDRetries int
}

func NewService(repo *Repo, alloc Allocator) *Service {
	return &Service{repo: repo, alloc: alloc, maxIDRetries: 3}
}

// IDBundle is the set of identifiers minted for one extension session.
type IDBundle struct {
	ConversationID int `json:"conversationId"`
	RiskEventID    int `json:"riskEventId"`
	ChatbotID      int `json:"chatbotId"`
	MessageID      int `json:"messageId"`
}

// GenerateIDs verifies the child exists, then mints one identifier per entity
// type. Any storage failure aborts the whole bundle.
func (s *Service) GenerateIDs(ctx context.Context, childUserID int, platform string) (*IDBundle, error) {
	exists, err := s.repo.ChildUserExists(ctx, childUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: child user %d", ErrNotFound, childUserID)
	}

	chatbotID, err := s.alloc.NextChatbotID(ctx, platform)
	if err != nil {
		return nil, err
	}
	conversationID, err := s.alloc.NextConversationID(ctx, childUserID)
	if err != nil {
		return nil, err
	}
	riskEventID, err := s.alloc.NextRiskyEventID(ctx, childUserID)
	if err != nil {
		return nil, err
	}
	messageID, err := s.alloc.NextMessageID(ctx, childUserID)
	if err != nil {
		return nil, err
	}

	return &IDBundle{
		ConversationID: conversationID,
		RiskEventID:    riskEventID,
		ChatbotID:      chatbotID,
		MessageID:      messageID,
	}, nil
}

func (s *Service) AddChild(ctx context.Context, parentUserID int, childName string, childAge int) (*models.User, error) {
	if childName == "" {
		return nil, fmt.Errorf("%w: child name required", ErrValidation)
	}
	return s.repo.CreateChildWithRelation(ctx, parentUserID, childName, childAge)
}

func (s *Service) RemoveChild(ctx context.Context, parentUserID, childUserID int) error {
	return s.repo.DeleteRelation(ctx, parentUserID, childUserID)
}

func (s *Service) RenameChild(ctx context.Context, childUserID int, newName string) error {
	if newName == "" {
		return fmt.Errorf("%w: new name required", ErrValidation)
	}
	return s.repo.RenameUser(ctx, childUserID, newName)
}

func (s *Service) ListChildren(ctx context.Context, parentUserID int) ([]FamilyChild, error) {
	return s.repo.ListFamily(ctx, parentUserID)
}
