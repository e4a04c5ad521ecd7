package models

// Entities below keep the column names of the hosted store's original schema
// (mixed-case columns like riskType predate this service).

type User struct {
	UserID   int    `gorm:"column:user_id;primaryKey;autoIncrement" json:"user_id"`
	Username string `gorm:"type:varchar(64);not null" json:"username"`
	Role     string `gorm:"type:varchar(16);not null;index" json:"role"`
	UserAge  int    `gorm:"column:user_age" json:"user_age"`

	// Login credentials are only populated for parent accounts; child rows
	// are created by their parent and never authenticate themselves.
	Email        string `gorm:"type:varchar(128);index" json:"email,omitempty"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(128)" json:"-"`
}

func (User) TableName() string { return "users" }

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

type ParentChildRelation struct {
	ParentUserID int `gorm:"column:parent_user_id;primaryKey;autoIncrement:false" json:"parent_user_id"`
	ChildUserID  int `gorm:"column:child_user_id;primaryKey;autoIncrement:false" json:"child_user_id"`
}

func (ParentChildRelation) TableName() string { return "parent_child_relations" }

type Chatbot struct {
	ChatbotID int    `gorm:"column:chatbot_id;primaryKey;autoIncrement:false" json:"chatbot_id"`
	Name      string `gorm:"type:varchar(128)" json:"name"`
	// Metadata is an opaque JSON string, serialized before it reaches storage.
	Metadata string `gorm:"type:text" json:"metadata"`
	Platform string `gorm:"column:chatbotPlatform;type:varchar(64)" json:"chatbotPlatform"`
}

func (Chatbot) TableName() string { return "chatbots" }

type Conversation struct {
	ConversationID int    `gorm:"column:conversation_id;primaryKey;autoIncrement:false" json:"conversation_id"`
	ChildUserID    int    `gorm:"column:child_user_id;index" json:"child_user_id"`
	ChatbotID      int    `gorm:"column:chatbot_id;index" json:"chatbot_id"`
	StartTime      string `gorm:"column:start_time;type:varchar(64)" json:"start_time"`
	EndTime        string `gorm:"column:end_time;type:varchar(64)" json:"end_time"`
	Topic          string `gorm:"column:conversationTopic;type:text" json:"conversationTopic"`
	Summary        string `gorm:"column:conversationSummary;type:text" json:"conversationSummary"`
	Platform       string `gorm:"type:varchar(64)" json:"platform"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	MessageID      int    `gorm:"column:message_id;primaryKey;autoIncrement:false" json:"message_id"`
	ConversationID int    `gorm:"column:conversation_id;index" json:"conversation_id"`
	Sender         string `gorm:"type:varchar(128)" json:"sender"`
	Text           string `gorm:"column:message_text;type:text" json:"message_text"`
	Timestamp      string `gorm:"type:varchar(64)" json:"timestamp"`
	SenderType     string `gorm:"column:sender_type;type:varchar(32)" json:"sender_type"`
}

func (Message) TableName() string { return "messages" }

type RiskyEvent struct {
	RiskyEventID   int    `gorm:"column:risky_event_id;primaryKey;autoIncrement:false" json:"risky_event_id"`
	ConversationID int    `gorm:"column:conversation_id;index" json:"conversation_id"`
	ChildUserID    int    `gorm:"column:child_user_id;index" json:"child_user_id"`
	RiskType       string `gorm:"column:riskType;type:varchar(64)" json:"riskType"`
	RiskLevel      string `gorm:"column:riskLevel;type:varchar(32)" json:"riskLevel"`
	Reason         string `gorm:"column:riskyReason;type:text" json:"riskyReason"`
	Timestamp      string `gorm:"type:varchar(64)" json:"timestamp"`
	// Messages holds an optional JSON snapshot of the chat messages around the event.
	Messages *string `gorm:"type:text" json:"messages,omitempty"`
}

func (RiskyEvent) TableName() string { return "risky_events_log" }
