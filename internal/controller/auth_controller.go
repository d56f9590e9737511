package controller

import (
	"edunexus_backend/internal/middleware"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/service"
	"edunexus_backend/internal/session"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/logger"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthController struct {
	Sessions   *session.Registry
	Navigation *service.NavigationService
	Notebooks  *service.NotebookHub
	JWTSecret  string
	JWTExpire  time.Duration
}

func NewAuthController(sessions *session.Registry, nav *service.NavigationService, notebooks *service.NotebookHub, secret string, expire time.Duration) *AuthController {
	return &AuthController{
		Sessions:   sessions,
		Navigation: nav,
		Notebooks:  notebooks,
		JWTSecret:  secret,
		JWTExpire:  expire,
	}
}

// SignupRequest defines model for registration
// swagger:model SignupRequest
type SignupRequest struct {
	Name     string `json:"name" binding:"required,notblank"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=student teacher"`
}

// LoginRequest defines model for login
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=student teacher"`
}

// AuthResponse 登录/注册成功后返回
// swagger:model AuthResponse
type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// sessionFor 请求携带的令牌对应同一邮箱的已登录会话时沿用原会话，
// 其他情况一律开启新会话，不同用户之间不共享导航状态和 AI 对话
func (c *AuthController) sessionFor(ctx *gin.Context, email string) (string, *session.Store, bool, error) {
	if token := middleware.TokenFromRequest(ctx); token != "" {
		if claims, err := util.ParseJWT(token, c.JWTSecret); err == nil && claims.SessionID != "" {
			store, err := c.Sessions.Lookup(ctx.Request.Context(), claims.SessionID)
			if err != nil {
				return "", nil, false, err
			}
			if store != nil {
				if user := store.User(); user != nil && strings.EqualFold(user.Email, strings.TrimSpace(email)) {
					return claims.SessionID, store, false, nil
				}
			}
		}
	}
	sid := model.NewID()
	store, err := c.Sessions.Open(ctx.Request.Context(), sid)
	return sid, store, true, err
}

// dropSessionState 释放会话的导航状态、AI 对话和 websocket 连接
func (c *AuthController) dropSessionState(sid string) {
	c.Navigation.Drop(sid)
	c.Notebooks.DropSession(sid)
}

func (c *AuthController) issue(ctx *gin.Context, sid string, user *model.User, status int) {
	token, err := util.GenerateJWT(user, sid, c.JWTSecret, c.JWTExpire)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if status == http.StatusCreated {
		util.Created(ctx, AuthResponse{Token: token, User: user})
		return
	}
	util.Success(ctx, AuthResponse{Token: token, User: user})
}

// Signup godoc
// @Summary 注册新用户
// @Description 注册后直接登录，返回令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body SignupRequest true "用户注册信息"
// @Success 201 {object} util.Response{data=AuthResponse} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/auth/signup [post]
func (c *AuthController) Signup(ctx *gin.Context) {
	var req SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	sid, store, fresh, err := c.sessionFor(ctx, req.Email)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	user, err := store.Signup(ctx.Request.Context(), req.Name, req.Email, req.Password, model.UserRole(req.Role))
	if err != nil {
		if fresh {
			c.Sessions.Close(sid)
		}
		util.HandleError(ctx, err)
		return
	}

	logger.Log.Info("User signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	c.issue(ctx, sid, user, http.StatusCreated)
}

// Login godoc
// @Summary 用户登录
// @Description 邮箱、密码和角色都匹配才能登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=AuthResponse} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "凭据无效"
// @Failure 409 {object} util.Response "登录请求正在处理中"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	sid, store, fresh, err := c.sessionFor(ctx, req.Email)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	user, err := store.Login(ctx.Request.Context(), req.Email, req.Password, model.UserRole(req.Role))
	if err != nil {
		if fresh {
			c.Sessions.Close(sid)
		}
		util.HandleError(ctx, err)
		return
	}

	logger.Log.Info("User logged in", zap.String("user_id", user.ID), zap.String("session", sid))
	c.issue(ctx, sid, user, http.StatusOK)
}

// Logout godoc
// @Summary 退出登录
// @Description 清除会话、导航状态和 AI 对话，原令牌随之失效
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response "未登录"
// @Router /api/auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	sid := middleware.SessionID(ctx)
	store := middleware.CurrentSession(ctx)
	if store == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := store.Logout(ctx.Request.Context()); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	c.Sessions.Close(sid)
	c.dropSessionState(sid)

	util.Success(ctx, nil)
}

// Me godoc
// @Summary 当前用户
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.User}
// @Failure 401 {object} util.Response "未登录"
// @Router /api/auth/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	util.Success(ctx, middleware.CurrentUser(ctx))
}
