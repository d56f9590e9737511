package service

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
	"errors"
	"strings"
	"time"
)

const minPasswordLength = 6

var errPasswordTooShort = errors.New("password must be at least 6 characters")

// AuthService 实现 session.Authenticator
type AuthService struct {
	Users repository.UserRepository
	now   func() time.Time
}

func NewAuthService(users repository.UserRepository) *AuthService {
	return &AuthService{Users: users, now: time.Now}
}

// Login 邮箱不存在、密码错误、角色不符都返回同一个 InvalidCredentials
func (s *AuthService) Login(ctx context.Context, email, password string, role model.UserRole) (*model.User, error) {
	user, err := s.Users.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if util.IsNotFound(err) {
			return nil, util.NewInvalidCredentials()
		}
		return nil, err
	}
	if !util.CheckPassword(user.Password, password) {
		return nil, util.NewInvalidCredentials()
	}
	if role != "" && user.Role != role {
		return nil, util.NewInvalidCredentials()
	}
	return user, nil
}

func (s *AuthService) Signup(ctx context.Context, name, email, password string, role model.UserRole) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	switch {
	case name == "":
		return nil, util.NewEmptyFieldError("name")
	case email == "":
		return nil, util.NewEmptyFieldError("email")
	case password == "":
		return nil, util.NewEmptyFieldError("password")
	}
	if err := util.Validate.Var(email, "email"); err != nil {
		return nil, util.NewInvalidValueError("email", err)
	}
	if len(password) < minPasswordLength {
		return nil, util.NewInvalidValueError("password", errPasswordTooShort)
	}
	if role == "" {
		role = model.Student
	}
	if !role.Valid() {
		return nil, &util.ValidationError{Field: "role", Reason: util.InvalidValue}
	}

	hashed, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:        model.NewID(),
		Name:      name,
		Email:     email,
		Password:  hashed,
		Role:      role,
		CreatedAt: s.now(),
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, util.ErrEmailRegistered) {
			return nil, &util.ValidationError{Field: "email", Reason: util.DuplicateValue, Err: err}
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.Users.FindUser(ctx, id)
}
