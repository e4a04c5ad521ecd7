package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/youthsafe/guardian/internal/auth"
	"github.com/youthsafe/guardian/internal/common"
)

const (
	ParentIDKey  = "parent_id"
	RequestIDKey = "request_id"
	SessionIDKey = "session_id"

	requestIDHeader = "X-Request-ID"
	sessionIDHeader = "X-Session-ID"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered: %v", r)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			if id, err := common.NewULID(); err == nil {
				rid = id
			}
		}
		c.Set(RequestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// SessionID mirrors the browser-extension session cookie: clients that do not
// present a session id get a fresh one back with the response.
func SessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetHeader(sessionIDHeader)
		if sid == "" {
			sid = uuid.NewString()
		}
		c.Set(SessionIDKey, sid)
		c.Header(sessionIDHeader, sid)
		c.Next()
	}
}

// ParentIdentity resolves the requesting parent from a bearer token when one
// is presented, otherwise falls back to the configured single-tenant parent id.
// A token that is present but invalid is rejected rather than downgraded.
func ParentIdentity(secret string, defaultParentID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(ParentIDKey, defaultParentID)
			c.Next()
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		uid, err := auth.ParseJWT(tokenStr, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid authentication credentials")
			c.Abort()
			return
		}
		c.Set(ParentIDKey, uid)
		c.Next()
	}
}
