package controller

import (
	"edunexus_backend/internal/middleware"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/service"
	"edunexus_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// swagger:model AskQuestionRequest
type AskQuestionRequest struct {
	Text       string `json:"text" binding:"required,notblank"`
	Visibility string `json:"visibility" binding:"omitempty,oneof=public private"`
}

// swagger:model AnswerQuestionRequest
type AnswerQuestionRequest struct {
	Answer string `json:"answer"`
}

// AskQuestion godoc
// @Summary 向教师提问
// @Description 私有提问只有提问者和教师可见
// @Tags 问答
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "章节ID"
// @Param   body body AskQuestionRequest true "问题"
// @Success 201 {object} util.Response{data=model.Question}
// @Failure 403 {object} util.Response "仅学生可提问"
// @Router /api/student/chapters/{id}/questions [post]
func (c *QuestionController) AskQuestion(ctx *gin.Context) {
	var req AskQuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	q, err := c.QuestionService.Ask(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"), req.Text, model.Visibility(req.Visibility))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// ListQuestions godoc
// @Summary 章节提问
// @Tags 问答
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "章节ID"
// @Success 200 {object} util.Response{data=[]model.Question}
// @Router /api/chapters/{id}/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	list, err := c.QuestionService.ListForChapter(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// CommunityQA godoc
// @Summary 社区问答
// @Description 公开且已回答的问题
// @Tags 问答
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "章节ID"
// @Success 200 {object} util.Response{data=[]model.Question}
// @Router /api/chapters/{id}/community [get]
func (c *QuestionController) CommunityQA(ctx *gin.Context) {
	list, err := c.QuestionService.Community(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// UnansweredQuestions godoc
// @Summary 待回答问题
// @Tags 问答
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Question}
// @Router /api/teacher/questions/unanswered [get]
func (c *QuestionController) UnansweredQuestions(ctx *gin.Context) {
	list, err := c.QuestionService.Unanswered(ctx.Request.Context(), middleware.CurrentUser(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// AnswerQuestion godoc
// @Summary 回答问题
// @Description 每个问题只能回答一次，空白答案不生效，两种情况都原样返回问题
// @Tags 问答
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "问题ID"
// @Param   body body AnswerQuestionRequest true "答案"
// @Success 200 {object} util.Response{data=model.Question}
// @Failure 404 {object} util.Response "问题不存在"
// @Router /api/teacher/questions/{id}/answer [post]
func (c *QuestionController) AnswerQuestion(ctx *gin.Context) {
	var req AnswerQuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}

	q, err := c.QuestionService.Answer(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("id"), req.Answer)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}
