package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youthsafe/guardian/internal/common"
	"github.com/youthsafe/guardian/internal/config"
	"github.com/youthsafe/guardian/internal/httpapi/handlers"
	"github.com/youthsafe/guardian/internal/httpapi/middleware"
	"github.com/youthsafe/guardian/internal/store/rabbitmq"
	"github.com/youthsafe/guardian/internal/store/redisstore"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.SessionID())

	h := handlers.NewHandler(db, cfg, rds, pub)

	r.GET("/ping", h.Ping)

	// parent account surface, reachable without a token
	a := r.Group("/api/v1/auth")
	a.POST("/register", h.RegisterParent)
	a.POST("/login", h.Login)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.ParentIdentity(cfg.JWTSecret, cfg.DefaultParentID))

	// extension ingestion
	v1.POST("/ids/generate", h.GenerateIDs)
	v1.POST("/conversations/receive", h.ReceiveConversation)
	v1.POST("/messages/receive", h.ReceiveMessage)
	v1.POST("/alerts/receive", h.ReceiveAlert)
	v1.POST("/chatbots/receive", h.ReceiveChatbot)
	v1.GET("/log/check_session_id", h.CheckSessionID)

	// parental-control dashboard reads
	v1.GET("/parental_control/get_all_conversations", h.GetAllRiskyConversations)
	v1.GET("/parental_control/get_all_convo", h.GetAllConversations)
	v1.GET("/parental_control/get_risky_event_by_id/:risky_event_id", h.GetRiskyEventByID)
	v1.GET("/parental_control/get_conversation_times", h.GetConversationTimes)

	// family management
	v1.GET("/family/get_all_children", h.GetAllChildren)
	v1.POST("/family/add_child", h.AddChild)
	v1.POST("/family/remove_child", h.RemoveChild)
	v1.POST("/family/rename_child", h.RenameChild)

	// notifications
	v1.POST("/notify/email", h.SendEmailNotification)

	return r
}
