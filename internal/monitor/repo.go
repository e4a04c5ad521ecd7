package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/youthsafe/guardian/internal/models"
	"gorm.io/gorm"
)

// Repo is the storage gateway. Every call runs under its own deadline so a
// stalled round trip surfaces as ErrTimeout instead of hanging the request.
type Repo struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewRepo(db *gorm.DB, timeout time.Duration) *Repo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Repo{db: db, timeout: timeout}
}

func (r *Repo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}

func (r *Repo) ChildUserExists(ctx context.Context, childUserID int) (bool, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var cnt int64
	err := r.db.WithContext(cctx).Model(&models.User{}).
		Where("user_id = ? AND role = ?", childUserID, models.RoleChild).
		Count(&cnt).Error
	if err != nil {
		return false, classify(err)
	}
	return cnt > 0, nil
}

// assignedIDs loads every identifier value currently stored for one entity
// table. The allocator maxes over them in application code.
func (r *Repo) assignedIDs(ctx context.Context, model any, column string) ([]int, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var ids []int
	if err := r.db.WithContext(cctx).Model(model).Pluck(column, &ids).Error; err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (r *Repo) InsertConversation(ctx context.Context, conv *models.Conversation) error {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.db.WithContext(cctx).Create(conv).Error)
}

func (r *Repo) InsertMessage(ctx context.Context, m *models.Message) error {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.db.WithContext(cctx).Create(m).Error)
}

func (r *Repo) InsertRiskyEvent(ctx context.Context, ev *models.RiskyEvent) error {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.db.WithContext(cctx).Create(ev).Error)
}

func (r *Repo) ChatbotExists(ctx context.Context, chatbotID int) (bool, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var cnt int64
	err := r.db.WithContext(cctx).Model(&models.Chatbot{}).
		Where("chatbot_id = ?", chatbotID).
		Count(&cnt).Error
	if err != nil {
		return false, classify(err)
	}
	return cnt > 0, nil
}

func (r *Repo) InsertChatbot(ctx context.Context, bot *models.Chatbot) error {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.db.WithContext(cctx).Create(bot).Error)
}

func (r *Repo) UpdateChatbot(ctx context.Context, bot *models.Chatbot) error {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.db.WithContext(cctx).Model(&models.Chatbot{}).
		Where("chatbot_id = ?", bot.ChatbotID).
		Updates(map[string]any{
			"name":            bot.Name,
			"metadata":        bot.Metadata,
			"chatbotPlatform": bot.Platform,
		}).Error)
}

func (r *Repo) ChildIDs(ctx context.Context, parentUserID int) ([]int, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var ids []int
	err := r.db.WithContext(cctx).Model(&models.ParentChildRelation{}).
		Where("parent_user_id = ?", parentUserID).
		Pluck("child_user_id", &ids).Error
	if err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (r *Repo) RiskyEventsByChildren(ctx context.Context, childIDs []int) ([]models.RiskyEvent, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var events []models.RiskyEvent
	err := r.db.WithContext(cctx).
		Where("child_user_id IN ?", childIDs).
		Find(&events).Error
	if err != nil {
		return nil, classify(err)
	}
	return events, nil
}

func (r *Repo) ConversationsByChildren(ctx context.Context, childIDs []int) ([]models.Conversation, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var convs []models.Conversation
	err := r.db.WithContext(cctx).
		Where("child_user_id IN ?", childIDs).
		Find(&convs).Error
	if err != nil {
		return nil, classify(err)
	}
	return convs, nil
}

// ConversationsByIDsAndChildren applies the double filter: a conversation is
// returned only when its id came from a risky event AND it belongs to one of
// the resolved children.
func (r *Repo) ConversationsByIDsAndChildren(ctx context.Context, convIDs, childIDs []int) ([]models.Conversation, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var convs []models.Conversation
	err := r.db.WithContext(cctx).
		Where("conversation_id IN ?", convIDs).
		Where("child_user_id IN ?", childIDs).
		Find(&convs).Error
	if err != nil {
		return nil, classify(err)
	}
	return convs, nil
}

func (r *Repo) ChatbotsByIDs(ctx context.Context, chatbotIDs []int) ([]models.Chatbot, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var bots []models.Chatbot
	err := r.db.WithContext(cctx).
		Where("chatbot_id IN ?", chatbotIDs).
		Find(&bots).Error
	if err != nil {
		return nil, classify(err)
	}
	return bots, nil
}

func (r *Repo) Usernames(ctx context.Context, userIDs []int) (map[int]string, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var users []models.User
	err := r.db.WithContext(cctx).
		Select("user_id", "username").
		Where("user_id IN ?", userIDs).
		Find(&users).Error
	if err != nil {
		return nil, classify(err)
	}
	names := make(map[int]string, len(users))
	for _, u := range users {
		names[u.UserID] = u.Username
	}
	return names, nil
}

func (r *Repo) GetRiskyEvent(ctx context.Context, riskyEventID int) (*models.RiskyEvent, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var ev models.RiskyEvent
	if err := r.db.WithContext(cctx).First(&ev, "risky_event_id = ?", riskyEventID).Error; err != nil {
		return nil, classify(err)
	}
	return &ev, nil
}

func (r *Repo) GetConversation(ctx context.Context, conversationID int) (*models.Conversation, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var conv models.Conversation
	if err := r.db.WithContext(cctx).First(&conv, "conversation_id = ?", conversationID).Error; err != nil {
		return nil, classify(err)
	}
	return &conv, nil
}

func (r *Repo) GetChatbot(ctx context.Context, chatbotID int) (*models.Chatbot, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var bot models.Chatbot
	if err := r.db.WithContext(cctx).First(&bot, "chatbot_id = ?", chatbotID).Error; err != nil {
		return nil, classify(err)
	}
	return &bot, nil
}

// CreateChildWithRelation inserts the child user and the parent/child edge in
// one transaction so a failure cannot leave an orphan user behind.
func (r *Repo) CreateChildWithRelation(ctx context.Context, parentUserID int, childName string, childAge int) (*models.User, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	child := &models.User{
		Username: childName,
		Role:     models.RoleChild,
		UserAge:  childAge,
	}
	err := r.db.WithContext(cctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(child).Error; err != nil {
			return err
		}
		return tx.Create(&models.ParentChildRelation{
			ParentUserID: parentUserID,
			ChildUserID:  child.UserID,
		}).Error
	})
	if err != nil {
		return nil, classify(err)
	}
	return child, nil
}

// DeleteRelation removes only the parent/child edge; the user row is retained.
func (r *Repo) DeleteRelation(ctx context.Context, parentUserID, childUserID int) error {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.db.WithContext(cctx).
		Where("parent_user_id = ? AND child_user_id = ?", parentUserID, childUserID).
		Delete(&models.ParentChildRelation{}).Error)
}

func (r *Repo) RenameUser(ctx context.Context, userID int, newName string) error {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()
	return classify(r.db.WithContext(cctx).Model(&models.User{}).
		Where("user_id = ?", userID).
		Update("username", newName).Error)
}

// FamilyChild is one parent/child edge joined with both user rows.
type FamilyChild struct {
	ParentUserID   int    `json:"parent_user_id"`
	ChildUserID    int    `json:"child_user_id"`
	ParentUsername string `json:"parent_username"`
	ParentRole     string `json:"parent_role"`
	Username       string `json:"username"`
	Role           string `json:"role"`
	UserAge        int    `json:"user_age"`
}

func (r *Repo) ListFamily(ctx context.Context, parentUserID int) ([]FamilyChild, error) {
	cctx, cancel := r.opCtx(ctx)
	defer cancel()

	var rows []FamilyChild
	err := r.db.WithContext(cctx).
		Table("parent_child_relations AS rel").
		Select("rel.parent_user_id, rel.child_user_id, p.username AS parent_username, p.role AS parent_role, c.username, c.role, c.user_age").
		Joins("JOIN users p ON p.user_id = rel.parent_user_id").
		Joins("JOIN users c ON c.user_id = rel.child_user_id").
		Where("rel.parent_user_id = ?", parentUserID).
		Scan(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}
