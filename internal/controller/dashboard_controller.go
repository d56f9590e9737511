package controller

import (
	"edunexus_backend/internal/middleware"
	"edunexus_backend/internal/service"
	"edunexus_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

// GetDashboard godoc
// @Summary 获取仪表盘数据
// @Description 教师返回班级、待审核笔记和待回答问题；学生返回已加入的班级和自己的笔记
// @Tags 仪表盘
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/dashboard [get]
func (c *DashboardController) GetDashboard(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if user.IsTeacher() {
		data, err := c.DashboardService.Teacher(ctx.Request.Context(), user)
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
		util.Success(ctx, data)
		return
	}

	data, err := c.DashboardService.Student(ctx.Request.Context(), user)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, data)
}
