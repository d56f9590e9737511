package middleware

import (
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/session"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxClaims    = "user"
	ctxSession   = "session"
	ctxCurrent   = "currentUser"
	bearerPrefix = "Bearer "
)

// TokenFromRequest Authorization 头优先，websocket 握手时从 ?token= 读取
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, bearerPrefix)
	}
	return c.Query("token")
}

// AuthMiddleware 校验 JWT，并要求令牌对应的服务端会话仍处于登录状态，
// 退出登录后旧令牌立即失效
func AuthMiddleware(secret string, sessions *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := TokenFromRequest(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		store, err := sessions.Lookup(c.Request.Context(), claims.SessionID)
		if err != nil {
			util.LogInternalError(c, err)
			c.Abort()
			return
		}
		if store == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		user := store.User()
		if user == nil || user.ID != claims.UserID {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(ctxClaims, claims)
		c.Set(ctxSession, store)
		c.Set(ctxCurrent, user)
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		util.Forbidden(c)
		c.Abort()
	}
}

func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ctxCurrent)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

func CurrentSession(c *gin.Context) *session.Store {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	store, _ := v.(*session.Store)
	return store
}

// SessionID 令牌中的会话 ID
func SessionID(c *gin.Context) string {
	if claims := util.GetUserFromContext(c); claims != nil {
		return claims.SessionID
	}
	return ""
}
