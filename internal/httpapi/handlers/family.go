package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youthsafe/guardian/internal/common"
)

func (h *Handler) GetAllChildren(c *gin.Context) {
	pid, ok := parentIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	children, err := h.Svc.ListChildren(c.Request.Context(), pid)
	if err != nil {
		failFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, children)
}

type addChildReq struct {
	ParentUserID int    `json:"parent_user_id" binding:"required"`
	ChildName    string `json:"child_name" binding:"required"`
	ChildAge     int    `json:"child_age"`
}

func (h *Handler) AddChild(c *gin.Context) {
	var req addChildReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	child, err := h.Svc.AddChild(c.Request.Context(), req.ParentUserID, req.ChildName, req.ChildAge)
	if err != nil {
		failFromErr(c, err)
		return
	}

	common.OK(c, gin.H{
		"child_user_id": child.UserID,
		"username":      child.Username,
	})
}

type removeChildReq struct {
	ParentUserID int `json:"parent_user_id" binding:"required"`
	ChildUserID  int `json:"child_user_id" binding:"required"`
}

func (h *Handler) RemoveChild(c *gin.Context) {
	var req removeChildReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.Svc.RemoveChild(c.Request.Context(), req.ParentUserID, req.ChildUserID); err != nil {
		failFromErr(c, err)
		return
	}
	common.OK(c, nil)
}

type renameChildReq struct {
	ChildUserID int    `json:"child_user_id" binding:"required"`
	NewName     string `json:"new_name" binding:"required"`
}

func (h *Handler) RenameChild(c *gin.Context) {
	var req renameChildReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.Svc.RenameChild(c.Request.Context(), req.ChildUserID, req.NewName); err != nil {
		failFromErr(c, err)
		return
	}
	common.OK(c, nil)
}
