package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/youthsafe/guardian/internal/common"
	"github.com/youthsafe/guardian/internal/config"
	"github.com/youthsafe/guardian/internal/email"
	"github.com/youthsafe/guardian/internal/httpapi/middleware"
	"github.com/youthsafe/guardian/internal/monitor"
	"github.com/youthsafe/guardian/internal/store/rabbitmq"
	"github.com/youthsafe/guardian/internal/store/redisstore"
	"gorm.io/gorm"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Svc         *monitor.Service
	Rabbit      *rabbitmq.Publisher
	SMTPSetting email.SMTPConfig
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *Handler {
	repo := monitor.NewRepo(db, cfg.DBTimeout)
	scan := monitor.NewScanAllocator(repo)

	var alloc monitor.Allocator = scan
	if strings.ToLower(cfg.IDAllocator) == "redis" && rds != nil {
		alloc = monitor.NewSequenceAllocator(rds, scan)
	}

	return &Handler{
		DB:     db,
		Cfg:    cfg,
		Svc:    monitor.NewService(repo, alloc),
		Rabbit: pub,
		SMTPSetting: email.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			User:       cfg.SMTPUser,
			Pass:       cfg.SMTPPass,
			From:       cfg.SMTPFrom,
			SenderName: cfg.SMTPSenderName,
		},
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func parentIDFromContext(c *gin.Context) (int, bool) {
	v, ok := c.Get(middleware.ParentIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

// failFromErr maps a service failure kind to an HTTP status, embedding the
// original message.
func failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, monitor.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40400, err.Error())
	case errors.Is(err, monitor.ErrValidation):
		common.Fail(c, http.StatusBadRequest, 10000, err.Error())
	case errors.Is(err, monitor.ErrConflict):
		common.Fail(c, http.StatusConflict, 40900, err.Error())
	case errors.Is(err, monitor.ErrTimeout):
		common.Fail(c, http.StatusGatewayTimeout, 50400, err.Error())
	default:
		common.Fail(c, http.StatusInternalServerError, 50000, err.Error())
	}
}
