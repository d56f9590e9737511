package controller

import (
	"edunexus_backend/internal/middleware"
	"edunexus_backend/internal/service"
	"edunexus_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ClassroomController struct {
	ClassroomService    *service.ClassroomService
	AnnouncementService *service.AnnouncementService
	ExportService       *service.ExportService
}

func NewClassroomController(classrooms *service.ClassroomService, announcements *service.AnnouncementService, export *service.ExportService) *ClassroomController {
	return &ClassroomController{
		ClassroomService:    classrooms,
		AnnouncementService: announcements,
		ExportService:       export,
	}
}

// swagger:model CreateClassroomRequest
type CreateClassroomRequest struct {
	Name string `json:"name" binding:"required,notblank"`
}

// swagger:model JoinClassroomRequest
type JoinClassroomRequest struct {
	Code string `json:"code" binding:"required,notblank"`
}

// swagger:model CreateSubjectRequest
type CreateSubjectRequest struct {
	Name string `json:"name" binding:"required,notblank"`
	Icon string `json:"icon"`
}

// swagger:model CreateChapterRequest
type CreateChapterRequest struct {
	Name string `json:"name" binding:"required,notblank"`
}

// swagger:model GrantSubjectRequest
type GrantSubjectRequest struct {
	TeacherID string `json:"teacherId" binding:"required"`
}

// swagger:model PostAnnouncementRequest
type PostAnnouncementRequest struct {
	Title   string `json:"title" binding:"required,notblank"`
	Content string `json:"content" binding:"required,notblank"`
}

// CreateClassroom godoc
// @Summary 创建班级
// @Description 生成邀请码，冲突时自动重试
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CreateClassroomRequest true "班级名称"
// @Success 201 {object} util.Response{data=model.Classroom} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "仅教师可创建"
// @Router /api/teacher/classrooms [post]
func (c *ClassroomController) CreateClassroom(ctx *gin.Context) {
	var req CreateClassroomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	classroom, err := c.ClassroomService.Create(ctx.Request.Context(), middleware.CurrentUser(ctx), req.Name)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, classroom)
}

// ListClassrooms godoc
// @Summary 我的班级
// @Description 教师返回自己创建的班级和被授权科目所在的班级，学生返回已加入的班级
// @Tags 班级
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object}
// @Router /api/classrooms [get]
func (c *ClassroomController) ListClassrooms(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	rctx := ctx.Request.Context()

	if user.IsTeacher() {
		owned, err := c.ClassroomService.ListOwned(rctx, user)
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
		accessed, err := c.ClassroomService.ListAccessed(rctx, user)
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
		util.Success(ctx, gin.H{"owned": owned, "accessed": accessed})
		return
	}

	joined, err := c.ClassroomService.ListJoined(rctx, user)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"joined": joined})
}

// JoinClassroom godoc
// @Summary 通过邀请码加入班级
// @Description 邀请码不区分大小写，重复加入不会重复计数
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body JoinClassroomRequest true "邀请码"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response "邀请码不存在"
// @Router /api/student/classrooms/join [post]
func (c *ClassroomController) JoinClassroom(ctx *gin.Context) {
	var req JoinClassroomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	classroom, joined, err := c.ClassroomService.Join(ctx.Request.Context(), middleware.CurrentUser(ctx), req.Code)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"classroom": classroom, "joined": joined})
}

// GetClassroom godoc
// @Summary 班级详情
// @Description 包含科目、章节和科目教师
// @Tags 班级
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "班级ID"
// @Success 200 {object} util.Response{data=model.Classroom}
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "班级不存在"
// @Router /api/classrooms/{id} [get]
func (c *ClassroomController) GetClassroom(ctx *gin.Context) {
	classroom, err := c.ClassroomService.Get(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, classroom)
}

// ListStudents godoc
// @Summary 班级学生名单
// @Tags 班级
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "班级ID"
// @Success 200 {object} util.Response{data=[]model.User}
// @Failure 403 {object} util.Response "仅班级所有者"
// @Router /api/teacher/classrooms/{id}/students [get]
func (c *ClassroomController) ListStudents(ctx *gin.Context) {
	students, err := c.ClassroomService.Students(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, students)
}

// CreateSubject godoc
// @Summary 添加科目
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "班级ID"
// @Param   body body CreateSubjectRequest true "科目信息"
// @Success 201 {object} util.Response{data=model.Subject}
// @Failure 403 {object} util.Response "仅班级所有者"
// @Router /api/teacher/classrooms/{id}/subjects [post]
func (c *ClassroomController) CreateSubject(ctx *gin.Context) {
	var req CreateSubjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	subject, err := c.ClassroomService.AddSubject(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"), req.Name, req.Icon)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, subject)
}

// CreateChapter godoc
// @Summary 添加章节
// @Description 班级所有者或该科目的授权教师
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "科目ID"
// @Param   body body CreateChapterRequest true "章节名称"
// @Success 201 {object} util.Response{data=model.Chapter}
// @Failure 403 {object} util.Response "无权管理该科目"
// @Router /api/teacher/subjects/{id}/chapters [post]
func (c *ClassroomController) CreateChapter(ctx *gin.Context) {
	var req CreateChapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	chapter, err := c.ClassroomService.AddChapter(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"), req.Name)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, chapter)
}

// GrantSubject godoc
// @Summary 指定科目教师
// @Description 替换该科目原有的授权
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "科目ID"
// @Param   body body GrantSubjectRequest true "教师ID"
// @Success 200 {object} util.Response{data=model.SubjectTeacherAccess}
// @Failure 400 {object} util.Response "教师无效"
// @Failure 403 {object} util.Response "仅班级所有者"
// @Router /api/teacher/subjects/{id}/teacher [put]
func (c *ClassroomController) GrantSubject(ctx *gin.Context) {
	var req GrantSubjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	access, err := c.ClassroomService.GrantSubject(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"), req.TeacherID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, access)
}

// RevokeSubject godoc
// @Summary 撤销科目教师
// @Tags 班级
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "科目ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/teacher/subjects/{id}/teacher [delete]
func (c *ClassroomController) RevokeSubject(ctx *gin.Context) {
	revoked, err := c.ClassroomService.RevokeSubject(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"revoked": revoked})
}

// ListAnnouncements godoc
// @Summary 班级公告
// @Description 按发布时间倒序
// @Tags 班级
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "班级ID"
// @Success 200 {object} util.Response{data=[]model.Announcement}
// @Router /api/classrooms/{id}/announcements [get]
func (c *ClassroomController) ListAnnouncements(ctx *gin.Context) {
	list, err := c.AnnouncementService.List(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// PostAnnouncement godoc
// @Summary 发布公告
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "班级ID"
// @Param   body body PostAnnouncementRequest true "公告内容"
// @Success 201 {object} util.Response{data=model.Announcement}
// @Failure 403 {object} util.Response "仅班级所有者"
// @Router /api/teacher/classrooms/{id}/announcements [post]
func (c *ClassroomController) PostAnnouncement(ctx *gin.Context) {
	var req PostAnnouncementRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	ann, err := c.AnnouncementService.Post(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"), req.Title, req.Content)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, ann)
}

// ExportClassroom godoc
// @Summary 导出班级数据
// @Description 笔记、提问和学生名单导出为 xlsx
// @Tags 班级
// @Produce  application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param   id path string true "班级ID"
// @Success 200 {file} file
// @Failure 403 {object} util.Response "仅班级所有者"
// @Router /api/teacher/classrooms/{id}/export [get]
func (c *ClassroomController) ExportClassroom(ctx *gin.Context) {
	filename, buf, err := c.ExportService.ClassroomWorkbook(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", "attachment; filename="+filename)
	ctx.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
