package util

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrBusy             = errors.New("action already in progress")
	ErrEmailRegistered  = errors.New("email already registered")
)

type AuthErrorKind string

const (
	InvalidCredentials AuthErrorKind = "invalid_credentials"
)

// AuthError 登录失败，不区分账号不存在和密码错误
type AuthError struct {
	Kind AuthErrorKind
}

func (e *AuthError) Error() string {
	return "auth: " + string(e.Kind)
}

func NewInvalidCredentials() error {
	return &AuthError{Kind: InvalidCredentials}
}

type ValidationReason string

const (
	EmptyRequiredField ValidationReason = "empty_required_field"
	InvalidValue       ValidationReason = "invalid_value"
	DuplicateValue     ValidationReason = "duplicate_value"
)

type ValidationError struct {
	Field  string
	Reason ValidationReason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewEmptyFieldError(field string) error {
	return &ValidationError{Field: field, Reason: EmptyRequiredField}
}

func NewInvalidValueError(field string, err error) error {
	return &ValidationError{Field: field, Reason: InvalidValue, Err: err}
}

// FieldErrors 请求体校验失败时按 JSON 字段名汇总的错误信息
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e))
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// StateError 非法状态迁移，调用方按空操作处理
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid transition %s from %s", e.Op, e.State)
}

func NewStateError(op, state string) error {
	return &StateError{Op: op, State: state}
}

func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
