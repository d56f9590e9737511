package app

import (
	"edunexus_backend/docs"
	"edunexus_backend/internal/config"
	"edunexus_backend/internal/middleware"
	"edunexus_backend/internal/model"
	"edunexus_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret, a.services.sessions))
	{
		// 两种角色共用的接口，权限在服务层按班级和科目校验
		a.registerCommonRoutes(authGroup, c)

		// 学生相关接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/signup", c.auth.Signup)
		public.POST("/auth/login", c.auth.Login)
	}
}

func (a *App) registerCommonRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.POST("/auth/logout", c.auth.Logout)
	rg.GET("/auth/me", c.auth.Me)
	rg.GET("/dashboard", c.dashboard.GetDashboard)

	// 班级
	rg.GET("/classrooms", c.classroom.ListClassrooms)
	rg.GET("/classrooms/:id", c.classroom.GetClassroom)
	rg.GET("/classrooms/:id/announcements", c.classroom.ListAnnouncements)

	// 章节内容
	rg.GET("/chapters/:id/view", c.navigation.RenderChapter)
	rg.GET("/chapters/:id/notes", c.note.ListNotes)
	rg.POST("/chapters/:id/notes", c.note.CreateNote)
	rg.GET("/chapters/:id/questions", c.question.ListQuestions)
	rg.GET("/chapters/:id/community", c.question.CommunityQA)
	rg.GET("/notes/mine", c.note.MyNotes)

	// AI 助手
	rg.GET("/chapters/:id/notebook", c.notebook.Transcript)
	rg.POST("/chapters/:id/notebook/ask", c.notebook.Ask)
	rg.GET("/chapters/:id/notebook/ws", c.notebook.Connect)

	// 导航
	nav := rg.Group("/nav")
	{
		nav.GET("", c.navigation.GetState)
		nav.POST("/classroom", c.navigation.SelectClassroom)
		nav.POST("/subject", c.navigation.SelectSubject)
		nav.POST("/chapter", c.navigation.SelectChapter)
		nav.POST("/section", c.navigation.SelectSection)
		nav.POST("/back", c.navigation.Back)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	student := rg.Group("/student")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.POST("/classrooms/join", c.classroom.JoinClassroom)
		student.POST("/chapters/:id/questions", c.question.AskQuestion)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		// 班级管理
		teacher.POST("/classrooms", c.classroom.CreateClassroom)
		teacher.GET("/classrooms/:id/students", c.classroom.ListStudents)
		teacher.POST("/classrooms/:id/subjects", c.classroom.CreateSubject)
		teacher.POST("/classrooms/:id/announcements", c.classroom.PostAnnouncement)
		teacher.GET("/classrooms/:id/export", c.classroom.ExportClassroom)

		// 科目与授权
		teacher.POST("/subjects/:id/chapters", c.classroom.CreateChapter)
		teacher.PUT("/subjects/:id/teacher", c.classroom.GrantSubject)
		teacher.DELETE("/subjects/:id/teacher", c.classroom.RevokeSubject)

		// 审核与答疑
		teacher.GET("/notes/pending", c.note.PendingNotes)
		teacher.POST("/notes/:id/approve", c.note.ApproveNote)
		teacher.POST("/notes/:id/reject", c.note.RejectNote)
		teacher.GET("/questions/unanswered", c.question.UnansweredQuestions)
		teacher.POST("/questions/:id/answer", c.question.AnswerQuestion)
	}
}
