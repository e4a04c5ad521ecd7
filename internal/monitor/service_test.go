package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/youthsafe/guardian/internal/models"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db, 0)
	return NewService(repo, NewScanAllocator(repo)), db
}

func seedFamily(t *testing.T, db *gorm.DB, parentID int, children ...models.User) {
	t.Helper()
	if err := db.Create(&models.User{UserID: parentID, Username: "parent", Role: models.RoleParent}).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	for i := range children {
		if err := db.Create(&children[i]).Error; err != nil {
			t.Fatalf("seed child: %v", err)
		}
		if err := db.Create(&models.ParentChildRelation{ParentUserID: parentID, ChildUserID: children[i].UserID}).Error; err != nil {
			t.Fatalf("seed relation: %v", err)
		}
	}
}

func TestListRiskyConversations_FiltersNoRiskAndCapitalizes(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedFamily(t, db, 10,
		models.User{UserID: 11, Username: "kidone", Role: models.RoleChild, UserAge: 12},
		models.User{UserID: 12, Username: "kidtwo", Role: models.RoleChild, UserAge: 9},
	)
	if err := db.Create(&models.Chatbot{ChatbotID: 5, Name: "StudyBuddy", Platform: "poe"}).Error; err != nil {
		t.Fatalf("seed chatbot: %v", err)
	}
	if err := db.Create(&models.Conversation{
		ConversationID: 100, ChildUserID: 11, ChatbotID: 5,
		Topic: "homework", Summary: "short summary",
	}).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	events := []models.RiskyEvent{
		{RiskyEventID: 1, ConversationID: 100, ChildUserID: 11, RiskType: "Bullying", RiskLevel: "high", Reason: "threats", Timestamp: "2026-01-02T03:04:05Z"},
		{RiskyEventID: 2, ConversationID: 100, ChildUserID: 11, RiskType: "No Risk", RiskLevel: "low"},
	}
	for i := range events {
		if err := db.Create(&events[i]).Error; err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	records, err := svc.ListRiskyConversations(ctx, 10)
	if err != nil {
		t.Fatalf("list risky: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 enriched record, got %d", len(records))
	}
	rec := records[0]
	if rec.RiskType != "Bullying" {
		t.Fatalf("unexpected risk type: %q", rec.RiskType)
	}
	if rec.RiskLevel != "High" {
		t.Fatalf("expected capitalized risk level, got %q", rec.RiskLevel)
	}
	if rec.Username != "kidone" {
		t.Fatalf("unexpected username: %q", rec.Username)
	}
	if rec.ChatbotDescription != "StudyBuddy" || rec.ChatbotPlatform != "poe" {
		t.Fatalf("unexpected chatbot fields: %q / %q", rec.ChatbotDescription, rec.ChatbotPlatform)
	}
	if rec.Summarization != "short summary" {
		t.Fatalf("unexpected summarization: %q", rec.Summarization)
	}
}

func TestListRiskyConversations_MismatchedChildStillIterated(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedFamily(t, db, 10,
		models.User{UserID: 11, Username: "kidone", Role: models.RoleChild},
	)
	// conversation 200 belongs to a child outside the family, so the double
	// filter drops it from the lookup; another in-family conversation keeps the
	// conversation set non-empty
	if err := db.Create(&models.Conversation{ConversationID: 200, ChildUserID: 99, ChatbotID: 1}).Error; err != nil {
		t.Fatalf("seed foreign conversation: %v", err)
	}
	if err := db.Create(&models.Conversation{ConversationID: 201, ChildUserID: 11, ChatbotID: 1}).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	events := []models.RiskyEvent{
		{RiskyEventID: 1, ConversationID: 200, ChildUserID: 11, RiskType: "Grooming", RiskLevel: "high"},
		{RiskyEventID: 2, ConversationID: 201, ChildUserID: 11, RiskType: "Bullying", RiskLevel: "medium"},
	}
	for i := range events {
		if err := db.Create(&events[i]).Error; err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	records, err := svc.ListRiskyConversations(ctx, 10)
	if err != nil {
		t.Fatalf("list risky: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected both events emitted, got %d", len(records))
	}
	// the event with the dropped conversation still appears, with placeholders
	var dropped *RiskyConversation
	for i := range records {
		if records[i].RiskyEventID == 1 {
			dropped = &records[i]
		}
	}
	if dropped == nil {
		t.Fatalf("event with mismatched conversation missing from output")
	}
	if dropped.Summarization != "No summarization available" {
		t.Fatalf("expected summary placeholder, got %q", dropped.Summarization)
	}
	if dropped.ChatbotPlatform != "Unknown Platform" || dropped.ChatbotDescription != "Unknown Chatbot" {
		t.Fatalf("expected chatbot placeholders, got %q / %q", dropped.ChatbotPlatform, dropped.ChatbotDescription)
	}
}

func TestAggregations_NoChildrenShortCircuit(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	if err := db.Create(&models.User{UserID: 10, Username: "parent", Role: models.RoleParent}).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}

	// count SELECTs so the short-circuit itself is observable: a parent with
	// no children costs exactly the child-id lookup and nothing more
	var queries int
	if err := db.Callback().Query().After("gorm:query").Register("count_queries", func(*gorm.DB) { queries++ }); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	risky, err := svc.ListRiskyConversations(ctx, 10)
	if err != nil {
		t.Fatalf("risky: %v", err)
	}
	if len(risky) != 0 {
		t.Fatalf("expected empty risky list, got %d", len(risky))
	}
	if queries != 1 {
		t.Fatalf("expected risky list to stop after the child lookup, saw %d queries", queries)
	}

	queries = 0
	convs, err := svc.ListConversations(ctx, 10)
	if err != nil {
		t.Fatalf("convs: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("expected empty conversation list, got %d", len(convs))
	}
	if queries != 1 {
		t.Fatalf("expected conversation list to stop after the child lookup, saw %d queries", queries)
	}

	queries = 0
	times, err := svc.ListConversationTimes(ctx, 10)
	if err != nil {
		t.Fatalf("times: %v", err)
	}
	if len(times) != 0 {
		t.Fatalf("expected empty time list, got %d", len(times))
	}
	if queries != 1 {
		t.Fatalf("expected time list to stop after the child lookup, saw %d queries", queries)
	}
}

func TestWriteConversation_RoundTripThroughFlatList(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedFamily(t, db, 10,
		models.User{UserID: 11, Username: "kidone", Role: models.RoleChild},
	)
	if err := db.Create(&models.Chatbot{ChatbotID: 3, Name: "PenPal", Platform: "characterai"}).Error; err != nil {
		t.Fatalf("seed chatbot: %v", err)
	}

	conv, err := svc.WriteConversation(ctx, ConversationInput{
		ChildUserID: 11,
		ChatbotID:   3,
		StartTime:   "2026-02-01T10:00:00Z",
		EndTime:     "2026-02-01T10:30:00Z",
		Topic:       "space travel",
		Summary:     "asked about rockets",
		Platform:    "characterai",
	})
	if err != nil {
		t.Fatalf("write conversation: %v", err)
	}
	if conv.ConversationID == 0 {
		t.Fatalf("expected allocated conversation id")
	}

	records, err := svc.ListConversations(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.ConversationID != conv.ConversationID ||
		rec.StartTime != "2026-02-01T10:00:00Z" ||
		rec.EndTime != "2026-02-01T10:30:00Z" ||
		rec.Topics != "space travel" ||
		rec.Summarization != "asked about rockets" ||
		rec.ChatbotPlatform != "characterai" ||
		rec.ChatbotDescription != "PenPal" {
		t.Fatalf("round trip mismatch: %+v", rec)
	}
}

func TestWriteConversation_AppliesDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	conv, err := svc.WriteConversation(context.Background(), ConversationInput{ChildUserID: 1, ChatbotID: 1})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if conv.Topic != "unknown" {
		t.Fatalf("expected topic default, got %q", conv.Topic)
	}
	if conv.Summary != "No summary available" {
		t.Fatalf("expected summary default, got %q", conv.Summary)
	}
	if conv.Platform != "unknown" {
		t.Fatalf("expected platform default, got %q", conv.Platform)
	}
}

// stubAllocator hands out a scripted sequence of conversation ids.
type stubAllocator struct {
	ids []int
}

func (a *stubAllocator) pop() int {
	id := a.ids[0]
	if len(a.ids) > 1 {
		a.ids = a.ids[1:]
	}
	return id
}

func (a *stubAllocator) NextChatbotID(ctx context.Context, platform string) (int, error) {
	return a.pop(), nil
}
func (a *stubAllocator) NextConversationID(ctx context.Context, childUserID int) (int, error) {
	return a.pop(), nil
}
func (a *stubAllocator) NextRiskyEventID(ctx context.Context, childUserID int) (int, error) {
	return a.pop(), nil
}
func (a *stubAllocator) NextMessageID(ctx context.Context, childUserID int) (int, error) {
	return a.pop(), nil
}

func TestWriteConversation_RetriesAfterLostAllocationRace(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db, 0)
	svc := NewService(repo, &stubAllocator{ids: []int{1, 2}})

	// id 1 is already taken, as if another writer won the race
	if err := db.Create(&models.Conversation{ConversationID: 1, ChildUserID: 1, ChatbotID: 1}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	conv, err := svc.WriteConversation(context.Background(), ConversationInput{ChildUserID: 1, ChatbotID: 1})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if conv.ConversationID != 2 {
		t.Fatalf("expected retry with id 2, got %d", conv.ConversationID)
	}
}

func TestWriteConversation_ExplicitIDConflictSurfaces(t *testing.T) {
	svc, db := newTestService(t)

	if err := db.Create(&models.Conversation{ConversationID: 7, ChildUserID: 1, ChatbotID: 1}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := svc.WriteConversation(context.Background(), ConversationInput{ConversationID: 7, ChildUserID: 1, ChatbotID: 1})
	if err == nil {
		t.Fatalf("expected conflict for explicit duplicate id")
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestWriteMessage_AppliesDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	msg, err := svc.WriteMessage(context.Background(), MessageInput{
		ConversationID: 1,
		Sender:         "kidone",
		Text:           "hi",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg.MessageID != 1 {
		t.Fatalf("expected allocated id 1, got %d", msg.MessageID)
	}
	if msg.SenderType != "unknown" {
		t.Fatalf("expected sender_type default, got %q", msg.SenderType)
	}
	if msg.Timestamp == "" {
		t.Fatalf("expected timestamp default")
	}
}

func TestWriteAlert_SerializesSnapshot(t *testing.T) {
	svc, db := newTestService(t)

	snapshot := json.RawMessage(`[{"sender":"kidone","message_text":"hello"}]`)
	ev, err := svc.WriteAlert(context.Background(), AlertInput{
		ConversationID: 1,
		ChildUserID:    11,
		RiskLevel:      "high",
		RiskType:       "Bullying",
		Reason:         "threats",
		Messages:       snapshot,
	})
	if err != nil {
		t.Fatalf("write alert: %v", err)
	}
	if ev.Timestamp == "" {
		t.Fatalf("expected timestamp default")
	}

	var stored models.RiskyEvent
	if err := db.First(&stored, "risky_event_id = ?", ev.RiskyEventID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Messages == nil || *stored.Messages != string(snapshot) {
		t.Fatalf("snapshot not stored as-is: %v", stored.Messages)
	}
}

func TestUpsertChatbot_IdempotentByID(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertChatbot(ctx, ChatbotInput{ChatbotID: 9, Name: "OldName", Metadata: "{}", Platform: "poe"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Name != "OldName" {
		t.Fatalf("unexpected name: %q", first.Name)
	}

	second, err := svc.UpsertChatbot(ctx, ChatbotInput{ChatbotID: 9, Name: "NewName", Metadata: "{}", Platform: "poe"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Name != "NewName" {
		t.Fatalf("unexpected name: %q", second.Name)
	}

	var cnt int64
	if err := db.Model(&models.Chatbot{}).Where("chatbot_id = ?", 9).Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected one row, got %d", cnt)
	}
	var stored models.Chatbot
	if err := db.First(&stored, "chatbot_id = ?", 9).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Name != "NewName" {
		t.Fatalf("expected update to win, got %q", stored.Name)
	}
}

func TestGetRiskyEventByID_NotFoundAtEachStage(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	// stage 1: event absent
	detail, err := svc.GetRiskyEventByID(ctx, 404)
	if err != nil {
		t.Fatalf("stage 1: %v", err)
	}
	if detail != nil {
		t.Fatalf("stage 1: expected nil detail")
	}

	// stage 2: event present, conversation absent
	if err := db.Create(&models.RiskyEvent{RiskyEventID: 1, ConversationID: 50, ChildUserID: 11, RiskType: "Bullying"}).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	detail, err = svc.GetRiskyEventByID(ctx, 1)
	if err != nil {
		t.Fatalf("stage 2: %v", err)
	}
	if detail != nil {
		t.Fatalf("stage 2: expected nil detail")
	}

	// stage 3: conversation present, chatbot absent
	if err := db.Create(&models.Conversation{ConversationID: 50, ChildUserID: 11, ChatbotID: 8}).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	detail, err = svc.GetRiskyEventByID(ctx, 1)
	if err != nil {
		t.Fatalf("stage 3: %v", err)
	}
	if detail != nil {
		t.Fatalf("stage 3: expected nil detail")
	}

	// all three present resolves, risk level casing untouched
	if err := db.Create(&models.Chatbot{ChatbotID: 8, Name: "PenPal", Platform: "poe"}).Error; err != nil {
		t.Fatalf("seed chatbot: %v", err)
	}
	if err := db.Model(&models.RiskyEvent{}).Where("risky_event_id = ?", 1).Update("riskLevel", "high").Error; err != nil {
		t.Fatalf("set level: %v", err)
	}
	detail, err = svc.GetRiskyEventByID(ctx, 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if detail == nil {
		t.Fatalf("expected detail")
	}
	if detail.RiskLevel != "high" {
		t.Fatalf("single lookup must not capitalize, got %q", detail.RiskLevel)
	}
}

func TestListConversationTimes_SubstitutesPlaceholders(t *testing.T) {
	svc, db := newTestService(t)

	seedFamily(t, db, 10,
		models.User{UserID: 11, Username: "kidone", Role: models.RoleChild},
	)
	if err := db.Create(&models.Conversation{ConversationID: 1, ChildUserID: 11, ChatbotID: 1}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	times, err := svc.ListConversationTimes(context.Background(), 10)
	if err != nil {
		t.Fatalf("times: %v", err)
	}
	if len(times) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(times))
	}
	if times[0].StartTime != "Unknown start time" || times[0].EndTime != "Unknown end time" {
		t.Fatalf("expected placeholders, got %+v", times[0])
	}
}
