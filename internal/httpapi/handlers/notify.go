package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youthsafe/guardian/internal/common"
	"github.com/youthsafe/guardian/internal/email"
	"github.com/youthsafe/guardian/internal/httpapi/middleware"
)

type emailNotificationReq struct {
	Email       string `json:"email" binding:"required"`
	ChildName   string `json:"child_name" binding:"required"`
	RiskLevel   string `json:"risk_level" binding:"required"`
	RedirectURL string `json:"redirect_url" binding:"required"`
}

func (h *Handler) SendEmailNotification(c *gin.Context) {
	var req emailNotificationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	subject, body := email.RiskAlertMail(req.ChildName, req.RiskLevel, req.RedirectURL)
	if err := email.SendText(h.SMTPSetting, req.Email, subject, body); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "Error sending email: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email notification sent successfully"})
}

func (h *Handler) CheckSessionID(c *gin.Context) {
	sid := c.GetString(middleware.SessionIDKey)
	c.JSON(http.StatusOK, gin.H{"session_id": sid})
}
