package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youthsafe/guardian/internal/common"
	"github.com/youthsafe/guardian/internal/monitor"
)

type idGenerationReq struct {
	UserID      string `json:"userId"`
	ChildUserID int    `json:"childUserId" binding:"required"`
	Platform    string `json:"platform"`
}

func (h *Handler) GenerateIDs(c *gin.Context) {
	var req idGenerationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	bundle, err := h.Svc.GenerateIDs(c.Request.Context(), req.ChildUserID, req.Platform)
	if err != nil {
		failFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, bundle)
}

// conversationDetails is the flat conversation payload. Pointer fields are
// the ones whose absence triggers a documented default.
type conversationDetails struct {
	ConversationID int     `json:"conversation_id"`
	ChildUserID    *int    `json:"child_user_id"`
	ChatbotID      int     `json:"chatbot_id"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Topic          string  `json:"conversation_topic"`
	Summary        string  `json:"conversation_summary"`
	Platform       *string `json:"platform"`
}

type nestedConversationReq struct {
	User                *string              `json:"user"`
	ConversationDetails *conversationDetails `json:"conversation_details"`
}

// fallbackChildUserID is the placeholder child id used when a flat payload
// omits child_user_id.
const fallbackChildUserID = 1

// parseConversationPayload collapses the two accepted request shapes into one
// canonical input: the nested {user, conversation_details} form is used when
// both keys are present, otherwise the body is reread as the flat form.
func parseConversationPayload(body []byte) (monitor.ConversationInput, error) {
	var nested nestedConversationReq
	if err := json.Unmarshal(body, &nested); err != nil {
		return monitor.ConversationInput{}, err
	}

	var details conversationDetails
	if nested.User != nil && nested.ConversationDetails != nil {
		details = *nested.ConversationDetails
	} else {
		if err := json.Unmarshal(body, &details); err != nil {
			return monitor.ConversationInput{}, err
		}
	}

	in := monitor.ConversationInput{
		ConversationID: details.ConversationID,
		ChildUserID:    fallbackChildUserID,
		ChatbotID:      details.ChatbotID,
		StartTime:      details.StartTime,
		EndTime:        details.EndTime,
		Topic:          details.Topic,
		Summary:        details.Summary,
		Platform:       "unknown",
	}
	if details.ChildUserID != nil {
		in.ChildUserID = *details.ChildUserID
	}
	if details.Platform != nil && *details.Platform != "" {
		in.Platform = *details.Platform
	}
	return in, nil
}

func (h *Handler) ReceiveConversation(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid body")
		return
	}

	in, err := parseConversationPayload(body)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	conv, err := h.Svc.WriteConversation(c.Request.Context(), in)
	if err != nil {
		failFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Conversation received and saved successfully",
		"conversation_id": conv.ConversationID,
	})
}

type messageReq struct {
	MessageID      int    `json:"message_id"`
	ConversationID int    `json:"conversation_id" binding:"required"`
	Sender         string `json:"sender" binding:"required"`
	Text           string `json:"message_text" binding:"required"`
	Timestamp      string `json:"timestamp"`
	SenderType     string `json:"sender_type"`
	User           string `json:"user"`
}

// ReceiveMessage never propagates a failure to the transport layer: the
// response body carries an ok flag instead. The extension drops messages
// fire-and-forget and must not see 5xx churn.
func (h *Handler) ReceiveMessage(c *gin.Context) {
	var req messageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"ok":      false,
			"error":   err.Error(),
			"message": "Error processing message",
		})
		return
	}

	msg, err := h.Svc.WriteMessage(c.Request.Context(), monitor.MessageInput{
		MessageID:      req.MessageID,
		ConversationID: req.ConversationID,
		Sender:         req.Sender,
		Text:           req.Text,
		Timestamp:      req.Timestamp,
		SenderType:     req.SenderType,
	})
	if err != nil {
		log.Printf("[ReceiveMessage] write failed conversation_id=%d err=%v", req.ConversationID, err)
		c.JSON(http.StatusOK, gin.H{
			"ok":      false,
			"error":   err.Error(),
			"message": "Error processing message",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"message":    "Message received successfully",
		"message_id": msg.MessageID,
	})
}

type alertReq struct {
	User         string `json:"user"`
	AlertType    string `json:"alert_type"`
	AlertDetails string `json:"alert_details" binding:"required"`
}

type alertDetails struct {
	RiskEventID    int             `json:"risk_event_id"`
	ConversationID int             `json:"conversation_id"`
	ChildUserID    int             `json:"child_user_id"`
	RiskLevel      string          `json:"riskLevel"`
	RiskType       string          `json:"riskType"`
	Reason         string          `json:"riskyReason"`
	Timestamp      string          `json:"timestamp"`
	Messages       json.RawMessage `json:"messages"`
}

func (h *Handler) ReceiveAlert(c *gin.Context) {
	var req alertReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// alert_details arrives as a JSON string
	var details alertDetails
	if err := json.Unmarshal([]byte(req.AlertDetails), &details); err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid JSON in alert_details: "+err.Error())
		return
	}

	ev, err := h.Svc.WriteAlert(c.Request.Context(), monitor.AlertInput{
		RiskEventID:    details.RiskEventID,
		ConversationID: details.ConversationID,
		ChildUserID:    details.ChildUserID,
		RiskLevel:      details.RiskLevel,
		RiskType:       details.RiskType,
		Reason:         details.Reason,
		Timestamp:      details.Timestamp,
		Messages:       details.Messages,
	})
	if err != nil {
		failFromErr(c, err)
		return
	}

	// queue the parent notification; ingestion succeeds even if the broker is down
	if h.Rabbit != nil {
		if err := h.Rabbit.PublishAlert(c.Request.Context(), ev.RiskyEventID); err != nil {
			log.Printf("[ReceiveAlert] publish failed risky_event_id=%d err=%v", ev.RiskyEventID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Alert received and risk event saved successfully",
		"risk_event_id": ev.RiskyEventID,
	})
}

type chatbotReq struct {
	ChatbotID int            `json:"chatbot_id" binding:"required"`
	Name      string         `json:"name" binding:"required"`
	Metadata  map[string]any `json:"metadata"`
	Platform  string         `json:"chatbotPlatform" binding:"required"`
}

func (h *Handler) ReceiveChatbot(c *gin.Context) {
	var req chatbotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// metadata is serialized here, before it reaches the write path
	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(req.Metadata)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid metadata")
		return
	}

	bot, err := h.Svc.UpsertChatbot(c.Request.Context(), monitor.ChatbotInput{
		ChatbotID: req.ChatbotID,
		Name:      req.Name,
		Metadata:  string(meta),
		Platform:  req.Platform,
	})
	if err != nil {
		if errors.Is(err, monitor.ErrValidation) {
			failFromErr(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":      false,
			"error":   err.Error(),
			"message": "Error processing chatbot",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"message":    "Chatbot received and saved successfully",
		"chatbot_id": bot.ChatbotID,
	})
}
