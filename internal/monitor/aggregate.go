package monitor

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/youthsafe/guardian/internal/models"
)

// Placeholder values substituted for fields missing from joined rows.
const (
	unknownUser      = "Unknown User"
	unknownRisk      = "Unknown Risk"
	unknownLevel     = "Unknown"
	noReason         = "No reason provided"
	unknownTimestamp = "Unknown timestamp"
	unknownPlatform  = "Unknown Platform"
	unknownChatbot   = "Unknown Chatbot"
	noSummary        = "No summarization available"
	unknownStart     = "Unknown start time"
	unknownEnd       = "Unknown end time"
)

const noRiskType = "no risk"

// RiskyConversation is the enriched record the dashboard renders per risky
// event: event, conversation, chatbot and username fields folded into one.
type RiskyConversation struct {
	Username           string `json:"username"`
	RiskyEventID       int    `json:"riskyEvent_id"`
	ConversationID     int    `json:"conversation_id"`
	Topics             string `json:"conversationTopics"`
	Summarization      string `json:"conversationSummarization"`
	RiskType           string `json:"riskType"`
	RiskLevel          string `json:"riskLevel"`
	Reason             string `json:"riskyReason"`
	Timestamp          string `json:"timestamp"`
	ChatbotPlatform    string `json:"chatbotPlatform"`
	ChatbotDescription string `json:"chatbotDescription"`
}

// RiskyEventDetail is the single-event lookup shape. Unlike the list it has
// no username field and the risk level keeps its stored casing. That
// divergence is observed production behavior and is kept until the dashboard
// confirms it wants it gone.
type RiskyEventDetail struct {
	RiskyEventID       int    `json:"riskyEvent_id"`
	ConversationID     int    `json:"conversation_id"`
	Topics             string `json:"conversationTopics"`
	Summarization      string `json:"conversationSummarization"`
	RiskType           string `json:"riskType"`
	RiskLevel          string `json:"riskLevel"`
	Reason             string `json:"riskyReason"`
	Timestamp          string `json:"timestamp"`
	ChatbotPlatform    string `json:"chatbotPlatform"`
	ChatbotDescription string `json:"chatbotDescription"`
}

// ConversationRecord is the flat per-conversation listing, no risk filtering.
type ConversationRecord struct {
	ConversationID     int    `json:"conversation_id"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	Topics             string `json:"conversationTopics"`
	Summarization      string `json:"conversationSummarization"`
	ChatbotPlatform    string `json:"chatbotPlatform"`
	ChatbotDescription string `json:"chatbotDescription"`
}

type ConversationTime struct {
	ConversationID int    `json:"conversation_id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return string(unicode.ToUpper(r[0])) + strings.ToLower(string(r[1:]))
}

// ListRiskyConversations fans out from the parent's children to their risky
// events, then joins conversations, chatbots and usernames in memory. Events
// whose risk type is "no risk" (case-insensitive) are skipped; an event whose
// conversation was dropped by the double filter is still emitted, with
// placeholders standing in for the missing conversation fields.
func (s *Service) ListRiskyConversations(ctx context.Context, parentUserID int) ([]RiskyConversation, error) {
	childIDs, err := s.repo.ChildIDs(ctx, parentUserID)
	if err != nil {
		return nil, err
	}
	if len(childIDs) == 0 {
		return []RiskyConversation{}, nil
	}

	events, err := s.repo.RiskyEventsByChildren(ctx, childIDs)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []RiskyConversation{}, nil
	}

	convIDs := make([]int, 0, len(events))
	for _, ev := range events {
		convIDs = append(convIDs, ev.ConversationID)
	}
	convRows, err := s.repo.ConversationsByIDsAndChildren(ctx, convIDs, childIDs)
	if err != nil {
		return nil, err
	}
	if len(convRows) == 0 {
		return []RiskyConversation{}, nil
	}
	convs := make(map[int]models.Conversation, len(convRows))
	for _, c := range convRows {
		convs[c.ConversationID] = c
	}

	chatbotIDs := make([]int, 0, len(convs))
	seen := make(map[int]bool, len(convs))
	for _, c := range convs {
		if !seen[c.ChatbotID] {
			seen[c.ChatbotID] = true
			chatbotIDs = append(chatbotIDs, c.ChatbotID)
		}
	}
	botRows, err := s.repo.ChatbotsByIDs(ctx, chatbotIDs)
	if err != nil {
		return nil, err
	}
	bots := make(map[int]models.Chatbot, len(botRows))
	for _, b := range botRows {
		bots[b.ChatbotID] = b
	}

	usernames, err := s.repo.Usernames(ctx, childIDs)
	if err != nil {
		return nil, err
	}

	out := make([]RiskyConversation, 0, len(events))
	for _, ev := range events {
		if strings.ToLower(ev.RiskType) == noRiskType {
			continue
		}
		conv := convs[ev.ConversationID]
		bot := bots[conv.ChatbotID]
		out = append(out, RiskyConversation{
			Username:           orDefault(usernames[ev.ChildUserID], unknownUser),
			RiskyEventID:       ev.RiskyEventID,
			ConversationID:     ev.ConversationID,
			Topics:             conv.Topic,
			Summarization:      orDefault(conv.Summary, noSummary),
			RiskType:           orDefault(ev.RiskType, unknownRisk),
			RiskLevel:          capitalize(orDefault(ev.RiskLevel, unknownLevel)),
			Reason:             orDefault(ev.Reason, noReason),
			Timestamp:          orDefault(ev.Timestamp, unknownTimestamp),
			ChatbotPlatform:    orDefault(bot.Platform, unknownPlatform),
			ChatbotDescription: orDefault(bot.Name, unknownChatbot),
		})
	}
	return out, nil
}

// ListConversations is the flat listing: every conversation of the parent's
// children with its chatbot fields, no risk-event filtering.
func (s *Service) ListConversations(ctx context.Context, parentUserID int) ([]ConversationRecord, error) {
	childIDs, err := s.repo.ChildIDs(ctx, parentUserID)
	if err != nil {
		return nil, err
	}
	if len(childIDs) == 0 {
		return []ConversationRecord{}, nil
	}

	convs, err := s.repo.ConversationsByChildren(ctx, childIDs)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []ConversationRecord{}, nil
	}

	chatbotIDs := make([]int, 0, len(convs))
	seen := make(map[int]bool, len(convs))
	for _, c := range convs {
		if !seen[c.ChatbotID] {
			seen[c.ChatbotID] = true
			chatbotIDs = append(chatbotIDs, c.ChatbotID)
		}
	}
	botRows, err := s.repo.ChatbotsByIDs(ctx, chatbotIDs)
	if err != nil {
		return nil, err
	}
	bots := make(map[int]models.Chatbot, len(botRows))
	for _, b := range botRows {
		bots[b.ChatbotID] = b
	}

	out := make([]ConversationRecord, 0, len(convs))
	for _, conv := range convs {
		bot := bots[conv.ChatbotID]
		out = append(out, ConversationRecord{
			ConversationID:     conv.ConversationID,
			StartTime:          conv.StartTime,
			EndTime:            conv.EndTime,
			Topics:             conv.Topic,
			Summarization:      orDefault(conv.Summary, noSummary),
			ChatbotPlatform:    orDefault(bot.Platform, unknownPlatform),
			ChatbotDescription: orDefault(bot.Name, unknownChatbot),
		})
	}
	return out, nil
}

// GetRiskyEventByID walks event -> conversation -> chatbot. A miss at any
// stage yields (nil, nil) rather than an error.
func (s *Service) GetRiskyEventByID(ctx context.Context, riskyEventID int) (*RiskyEventDetail, error) {
	ev, err := s.repo.GetRiskyEvent(ctx, riskyEventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	conv, err := s.repo.GetConversation(ctx, ev.ConversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	bot, err := s.repo.GetChatbot(ctx, conv.ChatbotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &RiskyEventDetail{
		RiskyEventID:       ev.RiskyEventID,
		ConversationID:     ev.ConversationID,
		Topics:             conv.Topic,
		Summarization:      orDefault(conv.Summary, noSummary),
		RiskType:           orDefault(ev.RiskType, unknownRisk),
		RiskLevel:          orDefault(ev.RiskLevel, unknownLevel),
		Reason:             orDefault(ev.Reason, noReason),
		Timestamp:          orDefault(ev.Timestamp, unknownTimestamp),
		ChatbotPlatform:    orDefault(bot.Platform, unknownPlatform),
		ChatbotDescription: orDefault(bot.Name, unknownChatbot),
	}, nil
}

// ListConversationTimes returns just the time window per conversation for the
// parent's children.
func (s *Service) ListConversationTimes(ctx context.Context, parentUserID int) ([]ConversationTime, error) {
	childIDs, err := s.repo.ChildIDs(ctx, parentUserID)
	if err != nil {
		return nil, err
	}
	if len(childIDs) == 0 {
		return []ConversationTime{}, nil
	}

	convs, err := s.repo.ConversationsByChildren(ctx, childIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationTime, 0, len(convs))
	for _, conv := range convs {
		out = append(out, ConversationTime{
			ConversationID: conv.ConversationID,
			StartTime:      orDefault(conv.StartTime, unknownStart),
			EndTime:        orDefault(conv.EndTime, unknownEnd),
		})
	}
	return out, nil
}
