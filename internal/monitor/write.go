package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/youthsafe/guardian/internal/models"
)

const (
	defaultTopic    = "unknown"
	defaultSummary  = "No summary available"
	defaultPlatform = "unknown"
)

// ConversationInput is the canonical conversation payload after boundary
// parsing has collapsed the nested and flat request shapes.
type ConversationInput struct {
	ConversationID int
	ChildUserID    int
	ChatbotID      int
	StartTime      string
	EndTime        string
	Topic          string
	Summary        string
	Platform       string
}

type MessageInput struct {
	MessageID      int
	ConversationID int
	Sender         string
	Text           string
	Timestamp      string
	SenderType     string
}

type AlertInput struct {
	RiskEventID    int
	ConversationID int
	ChildUserID    int
	RiskLevel      string
	RiskType       string
	Reason         string
	Timestamp      string
	// Messages is the recent-chat snapshot, kept opaque and stored as-is.
	Messages json.RawMessage
}

type ChatbotInput struct {
	ChatbotID int
	Name      string
	// Metadata must already be serialized by the caller.
	Metadata string
	Platform string
}

// insertWithRetry runs one insert, and on an identifier conflict mints a
// fresh id and tries again. Explicit caller-chosen ids are never rewritten.
func (s *Service) insertWithRetry(ctx context.Context, explicitID bool, insert func(context.Context) error, realloc func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.maxIDRetries; attempt++ {
		if attempt > 0 {
			if rerr := realloc(ctx); rerr != nil {
				return rerr
			}
		}
		err = insert(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) || explicitID {
			return err
		}
	}
	return err
}

func (s *Service) WriteConversation(ctx context.Context, in ConversationInput) (*models.Conversation, error) {
	conv := &models.Conversation{
		ConversationID: in.ConversationID,
		ChildUserID:    in.ChildUserID,
		ChatbotID:      in.ChatbotID,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Topic:          in.Topic,
		Summary:        in.Summary,
		Platform:       in.Platform,
	}
	if conv.Topic == "" {
		conv.Topic = defaultTopic
	}
	if conv.Summary == "" {
		conv.Summary = defaultSummary
	}
	if conv.Platform == "" {
		conv.Platform = defaultPlatform
	}

	explicit := in.ConversationID != 0
	if !explicit {
		id, err := s.alloc.NextConversationID(ctx, in.ChildUserID)
		if err != nil {
			return nil, err
		}
		conv.ConversationID = id
	}

	err := s.insertWithRetry(ctx, explicit,
		func(ctx context.Context) error { return s.repo.InsertConversation(ctx, conv) },
		func(ctx context.Context) error {
			id, err := s.alloc.NextConversationID(ctx, in.ChildUserID)
			if err != nil {
				return err
			}
			conv.ConversationID = id
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Service) WriteMessage(ctx context.Context, in MessageInput) (*models.Message, error) {
	msg := &models.Message{
		MessageID:      in.MessageID,
		ConversationID: in.ConversationID,
		Sender:         in.Sender,
		Text:           in.Text,
		Timestamp:      in.Timestamp,
		SenderType:     in.SenderType,
	}
	if msg.SenderType == "" {
		msg.SenderType = "unknown"
	}
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().Format(time.RFC3339)
	}

	explicit := in.MessageID != 0
	if !explicit {
		id, err := s.alloc.NextMessageID(ctx, 0)
		if err != nil {
			return nil, err
		}
		msg.MessageID = id
	}

	err := s.insertWithRetry(ctx, explicit,
		func(ctx context.Context) error { return s.repo.InsertMessage(ctx, msg) },
		func(ctx context.Context) error {
			id, err := s.alloc.NextMessageID(ctx, 0)
			if err != nil {
				return err
			}
			msg.MessageID = id
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) WriteAlert(ctx context.Context, in AlertInput) (*models.RiskyEvent, error) {
	ev := &models.RiskyEvent{
		RiskyEventID:   in.RiskEventID,
		ConversationID: in.ConversationID,
		ChildUserID:    in.ChildUserID,
		RiskLevel:      in.RiskLevel,
		RiskType:       in.RiskType,
		Reason:         in.Reason,
		Timestamp:      in.Timestamp,
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().Format(time.RFC3339)
	}
	if len(in.Messages) > 0 && string(in.Messages) != "null" {
		snapshot := string(in.Messages)
		ev.Messages = &snapshot
	}

	explicit := in.RiskEventID != 0
	if !explicit {
		id, err := s.alloc.NextRiskyEventID(ctx, in.ChildUserID)
		if err != nil {
			return nil, err
		}
		ev.RiskyEventID = id
	}

	err := s.insertWithRetry(ctx, explicit,
		func(ctx context.Context) error { return s.repo.InsertRiskyEvent(ctx, ev) },
		func(ctx context.Context) error {
			id, err := s.alloc.NextRiskyEventID(ctx, in.ChildUserID)
			if err != nil {
				return err
			}
			ev.RiskyEventID = id
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// UpsertChatbot updates the row when the id is already taken, inserts
// otherwise.
func (s *Service) UpsertChatbot(ctx context.Context, in ChatbotInput) (*models.Chatbot, error) {
	if in.ChatbotID <= 0 {
		return nil, fmt.Errorf("%w: chatbot_id required", ErrValidation)
	}

	bot := &models.Chatbot{
		ChatbotID: in.ChatbotID,
		Name:      in.Name,
		Metadata:  in.Metadata,
		Platform:  in.Platform,
	}

	exists, err := s.repo.ChatbotExists(ctx, in.ChatbotID)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := s.repo.UpdateChatbot(ctx, bot); err != nil {
			return nil, err
		}
		return bot, nil
	}
	if err := s.repo.InsertChatbot(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}
