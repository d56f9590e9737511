package controller

import (
	"edunexus_backend/internal/middleware"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/service"
	"edunexus_backend/internal/util"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type NoteController struct {
	NoteService *service.NoteService
}

func NewNoteController(noteService *service.NoteService) *NoteController {
	return &NoteController{NoteService: noteService}
}

// CreateNoteRequest 支持 JSON 或 multipart 表单，表单可附带 file 字段
// swagger:model CreateNoteRequest
type CreateNoteRequest struct {
	Title      string `json:"title" form:"title" binding:"required,notblank"`
	Content    string `json:"content" form:"content" binding:"required,notblank"`
	Visibility string `json:"visibility" form:"visibility" binding:"omitempty,oneof=public private"`
}

// CreateNote godoc
// @Summary 上传笔记
// @Description 教师笔记直接发布；学生公开笔记需教师审核，私有笔记仅自己可见
// @Tags 笔记
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "章节ID"
// @Param   title formData string true "标题"
// @Param   content formData string true "内容"
// @Param   visibility formData string false "public 或 private"
// @Param   file formData file false "附件（PDF、文本、图片、视频）"
// @Success 201 {object} util.Response{data=model.Note} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "无权上传"
// @Failure 409 {object} util.Response "上一次上传尚未完成"
// @Router /api/chapters/{id}/notes [post]
func (c *NoteController) CreateNote(ctx *gin.Context) {
	var req CreateNoteRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	var attachment *service.Attachment
	if strings.HasPrefix(ctx.ContentType(), gin.MIMEMultipartPOSTForm) {
		header, err := ctx.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			util.BadRequest(ctx, err.Error())
			return
		default:
			f, err := header.Open()
			if err != nil {
				util.LogInternalError(ctx, err)
				return
			}
			defer f.Close()
			attachment = &service.Attachment{Filename: header.Filename, Reader: f}
		}
	}

	note, err := c.NoteService.Create(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"), service.NoteInput{
		Title:      req.Title,
		Content:    req.Content,
		Visibility: model.Visibility(req.Visibility),
	}, attachment)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, note)
}

// ListNotes godoc
// @Summary 章节笔记
// @Description 已发布的笔记加上自己写的笔记，教师可见全部
// @Tags 笔记
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "章节ID"
// @Success 200 {object} util.Response{data=[]model.Note}
// @Router /api/chapters/{id}/notes [get]
func (c *NoteController) ListNotes(ctx *gin.Context) {
	notes, err := c.NoteService.ListForChapter(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, notes)
}

// MyNotes godoc
// @Summary 我的笔记
// @Description 包含各审核状态
// @Tags 笔记
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Note}
// @Router /api/notes/mine [get]
func (c *NoteController) MyNotes(ctx *gin.Context) {
	notes, err := c.NoteService.Mine(ctx.Request.Context(), middleware.CurrentUser(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, notes)
}

// PendingNotes godoc
// @Summary 待审核笔记
// @Description 只包含当前教师可管理章节中的笔记
// @Tags 笔记
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Note}
// @Router /api/teacher/notes/pending [get]
func (c *NoteController) PendingNotes(ctx *gin.Context) {
	notes, err := c.NoteService.PendingApprovals(ctx.Request.Context(), middleware.CurrentUser(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, notes)
}

// ApproveNote godoc
// @Summary 审核通过
// @Description 只对待审核笔记生效，其他状态原样返回
// @Tags 笔记
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "笔记ID"
// @Success 200 {object} util.Response{data=model.Note}
// @Failure 404 {object} util.Response "笔记不存在"
// @Router /api/teacher/notes/{id}/approve [post]
func (c *NoteController) ApproveNote(ctx *gin.Context) {
	note, err := c.NoteService.Approve(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, note)
}

// RejectNote godoc
// @Summary 驳回笔记
// @Description 只对待审核笔记生效，其他状态原样返回
// @Tags 笔记
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "笔记ID"
// @Success 200 {object} util.Response{data=model.Note}
// @Failure 404 {object} util.Response "笔记不存在"
// @Router /api/teacher/notes/{id}/reject [post]
func (c *NoteController) RejectNote(ctx *gin.Context) {
	note, err := c.NoteService.Reject(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, note)
}
