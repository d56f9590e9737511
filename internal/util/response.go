package util

import (
	"edunexus_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// HandleError 把领域错误映射为 HTTP 响应
func HandleError(c *gin.Context, err error) {
	var (
		validErr    *ValidationError
		fieldErrs   FieldErrors
		notFoundErr *NotFoundError
		stateErr    *StateError
	)

	switch {
	case IsAuthError(err):
		Error(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, ErrEmailRegistered):
		Error(c, http.StatusConflict, ErrEmailRegistered.Error())
	case errors.As(err, &fieldErrs):
		c.JSON(http.StatusBadRequest, Response{
			Code:    http.StatusBadRequest,
			Message: "validation failed",
			Data:    fieldErrs,
		})
	case errors.As(err, &validErr):
		c.JSON(http.StatusBadRequest, Response{
			Code:    http.StatusBadRequest,
			Message: validErr.Error(),
			Data:    gin.H{"field": validErr.Field, "reason": validErr.Reason},
		})
	case errors.As(err, &notFoundErr):
		Error(c, http.StatusNotFound, notFoundErr.Error())
	case errors.Is(err, ErrPermissionDenied):
		Forbidden(c)
	case errors.Is(err, ErrBusy):
		Error(c, http.StatusConflict, ErrBusy.Error())
	case errors.As(err, &stateErr):
		Error(c, http.StatusConflict, stateErr.Error())
	default:
		LogInternalError(c, err)
	}
}

// BindError 处理 ShouldBind 返回的错误
func BindError(c *gin.Context, err error) {
	if fe := TranslateValidation(err); fe != nil {
		HandleError(c, fe)
		return
	}
	BadRequest(c, err.Error())
}
