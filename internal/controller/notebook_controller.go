package controller

import (
	"edunexus_backend/internal/middleware"
	"edunexus_backend/internal/service"
	"edunexus_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NotebookController struct {
	Hub *service.NotebookHub
}

func NewNotebookController(hub *service.NotebookHub) *NotebookController {
	return &NotebookController{Hub: hub}
}

// swagger:model NotebookAskRequest
type NotebookAskRequest struct {
	Question string `json:"question" binding:"required,notblank"`
}

// Ask godoc
// @Summary 向 AI 助手提问
// @Description 回答只引用本章节已发布的笔记；同一会话的上一个问题未完成时返回 409
// @Tags AI助手
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "章节ID"
// @Param   body body NotebookAskRequest true "问题"
// @Success 200 {object} util.Response{data=[]model.AIMessage} "本次新增的用户消息和助手回答"
// @Failure 409 {object} util.Response "上一个问题正在处理"
// @Router /api/chapters/{id}/notebook/ask [post]
func (c *NotebookController) Ask(ctx *gin.Context) {
	var req NotebookAskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	msgs, err := c.Hub.Ask(ctx.Request.Context(), middleware.SessionID(ctx), middleware.CurrentUser(ctx), ctx.Param("id"), req.Question)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, msgs)
}

// Transcript godoc
// @Summary AI 对话记录
// @Tags AI助手
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "章节ID"
// @Success 200 {object} util.Response{data=[]model.AIMessage}
// @Router /api/chapters/{id}/notebook [get]
func (c *NotebookController) Transcript(ctx *gin.Context) {
	msgs, err := c.Hub.Transcript(ctx.Request.Context(), middleware.SessionID(ctx), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, msgs)
}

// Connect godoc
// @Summary AI 助手 websocket
// @Description 令牌通过 ?token= 传递；连接后先推送 TRANSCRIPT，客户端发送 ASK 提问
// @Tags AI助手
// @Param   id path string true "章节ID"
// @Param   token query string true "JWT"
// @Router /api/chapters/{id}/notebook/ws [get]
func (c *NotebookController) Connect(ctx *gin.Context) {
	// 权限错误在升级前返回，此时还没有写出响应
	if err := c.Hub.Serve(ctx.Writer, ctx.Request, middleware.SessionID(ctx), middleware.CurrentUser(ctx), ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
	}
}
