package validator

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	repo "app/internal/repository"
	"app/internal/usecase"
)

type authValidator struct {
	users repo.UserRepository
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repo.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users}
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	if email == "" || password == "" {
		return usecase.NewHTTPError(http.StatusBadRequest, usecase.CodeValidation, "email and password are required")
	}
	if !emailRe.MatchString(email) {
		return usecase.NewHTTPError(http.StatusBadRequest, usecase.CodeValidation, "invalid email format")
	}
	if len(password) < 8 {
		return usecase.NewHTTPError(http.StatusBadRequest, usecase.CodeValidation, "password must be at least 8 characters")
	}

	// email重複の早期チェック（最終的にはDBのunique制約が守る）
	u, err := v.users.FindByEmail(ctx, email)
	if err == nil && u != nil {
		return usecase.NewHTTPError(http.StatusConflict, usecase.CodeConflict, "email already used")
	}

	return nil
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	if email == "" || password == "" {
		return usecase.NewHTTPError(http.StatusBadRequest, usecase.CodeValidation, "email and password are required")
	}
	if !emailRe.MatchString(email) {
		return usecase.NewHTTPError(http.StatusBadRequest, usecase.CodeValidation, "invalid email format")
	}

	return nil
}

// refresh 入力を検証
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return usecase.NewHTTPError(http.StatusUnauthorized, usecase.CodeUnauthorized, "refresh token is required")
	}
	return nil
}
