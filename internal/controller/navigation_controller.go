package controller

import (
	"edunexus_backend/internal/middleware"
	"edunexus_backend/internal/navigation"
	"edunexus_backend/internal/service"
	"edunexus_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NavigationController struct {
	NavigationService  *service.NavigationService
	ChapterViewService *service.ChapterViewService
}

func NewNavigationController(nav *service.NavigationService, views *service.ChapterViewService) *NavigationController {
	return &NavigationController{NavigationService: nav, ChapterViewService: views}
}

// swagger:model SelectRequest
type SelectRequest struct {
	ID string `json:"id" binding:"required"`
}

// swagger:model SelectSectionRequest
type SelectSectionRequest struct {
	Section string `json:"section"`
}

// GetState godoc
// @Summary 当前导航状态
// @Description 包含面包屑、可用分区和操作
// @Tags 导航
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.NavState}
// @Router /api/nav [get]
func (c *NavigationController) GetState(ctx *gin.Context) {
	util.Success(ctx, c.NavigationService.State(middleware.SessionID(ctx), middleware.CurrentUser(ctx)))
}

// SelectClassroom godoc
// @Summary 进入班级
// @Description 清空科目、章节和分区的选择
// @Tags 导航
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body SelectRequest true "班级ID"
// @Success 200 {object} util.Response{data=service.NavState}
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "班级不存在"
// @Router /api/nav/classroom [post]
func (c *NavigationController) SelectClassroom(ctx *gin.Context) {
	var req SelectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	state, err := c.NavigationService.SelectClassroom(ctx.Request.Context(), middleware.SessionID(ctx), middleware.CurrentUser(ctx), req.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// SelectSubject godoc
// @Summary 进入科目
// @Description 需要先进入科目所在的班级
// @Tags 导航
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body SelectRequest true "科目ID"
// @Success 200 {object} util.Response{data=service.NavState}
// @Failure 409 {object} util.Response "当前层级不能选择科目"
// @Router /api/nav/subject [post]
func (c *NavigationController) SelectSubject(ctx *gin.Context) {
	var req SelectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	state, err := c.NavigationService.SelectSubject(ctx.Request.Context(), middleware.SessionID(ctx), middleware.CurrentUser(ctx), req.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// SelectChapter godoc
// @Summary 进入章节
// @Description 默认打开笔记分区
// @Tags 导航
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body SelectRequest true "章节ID"
// @Success 200 {object} util.Response{data=service.NavState}
// @Failure 409 {object} util.Response "当前层级不能选择章节"
// @Router /api/nav/chapter [post]
func (c *NavigationController) SelectChapter(ctx *gin.Context) {
	var req SelectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	state, err := c.NavigationService.SelectChapter(ctx.Request.Context(), middleware.SessionID(ctx), middleware.CurrentUser(ctx), req.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// SelectSection godoc
// @Summary 切换分区
// @Description 未知或当前角色无权访问的分区回落到笔记
// @Tags 导航
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body SelectSectionRequest true "分区"
// @Success 200 {object} util.Response{data=service.NavState}
// @Router /api/nav/section [post]
func (c *NavigationController) SelectSection(ctx *gin.Context) {
	var req SelectSectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	state, err := c.NavigationService.SelectSection(middleware.SessionID(ctx), middleware.CurrentUser(ctx), req.Section)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// Back godoc
// @Summary 返回上一层
// @Tags 导航
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.NavState}
// @Router /api/nav/back [post]
func (c *NavigationController) Back(ctx *gin.Context) {
	util.Success(ctx, c.NavigationService.Back(middleware.SessionID(ctx), middleware.CurrentUser(ctx)))
}

// RenderChapter godoc
// @Summary 章节分区内容
// @Description section 缺省为 notes；无权访问的分区返回空视图
// @Tags 导航
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "章节ID"
// @Param   section query string false "notes/notebook/upload/ask/community"
// @Success 200 {object} util.Response{data=service.ChapterView}
// @Failure 403 {object} util.Response "无权访问"
// @Router /api/chapters/{id}/view [get]
func (c *NavigationController) RenderChapter(ctx *gin.Context) {
	section := navigation.DefaultSection
	if raw := ctx.Query("section"); raw != "" {
		section, _ = navigation.ParseSection(raw)
	}

	view, err := c.ChapterViewService.Render(ctx.Request.Context(), middleware.SessionID(ctx), middleware.CurrentUser(ctx), ctx.Param("id"), section)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
