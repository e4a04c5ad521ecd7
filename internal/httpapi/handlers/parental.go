package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/youthsafe/guardian/internal/common"
)

// The parental-control reads answer for the requesting parent, as resolved by
// the identity middleware (token if presented, configured default otherwise).

func (h *Handler) GetAllRiskyConversations(c *gin.Context) {
	pid, ok := parentIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	records, err := h.Svc.ListRiskyConversations(c.Request.Context(), pid)
	if err != nil {
		failFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetAllConversations(c *gin.Context) {
	pid, ok := parentIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	records, err := h.Svc.ListConversations(c.Request.Context(), pid)
	if err != nil {
		failFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetRiskyEventByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("risky_event_id"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "invalid risky event id")
		return
	}

	detail, err := h.Svc.GetRiskyEventByID(c.Request.Context(), id)
	if err != nil {
		failFromErr(c, err)
		return
	}
	// a miss at any lookup stage answers null, not 404
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) GetConversationTimes(c *gin.Context) {
	pid, ok := parentIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	times, err := h.Svc.ListConversationTimes(c.Request.Context(), pid)
	if err != nil {
		failFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, times)
}
