// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/notekeeper/internal/auth"
	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.AuthResult, error)
	ListUsers(ctx context.Context, callerID string) ([]*model.User, error)
}

// AuthHandler はアカウント登録・ログイン・ユーザー一覧のHTTPハンドラー。
type AuthHandler struct {
	service      AccountServiceInterface
	maxBodyBytes int64
}

// NewAuthHandler はAuthHandlerを生成する。maxBodyBytesが0以下の場合は既定値を使う。
func NewAuthHandler(service AccountServiceInterface, maxBodyBytes int64) *AuthHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &AuthHandler{
		service:      service,
		maxBodyBytes: maxBodyBytes,
	}
}

type createAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateAccount は新規アカウントを登録する。
// POST /api/v1/user/create-account
func (h *AuthHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, authResponse{
		User:        toUserResponse(result.User),
		AccessToken: result.AccessToken,
	}, "Registration successful")
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/v1/user/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, authResponse{
		User:        toUserResponse(result.User),
		AccessToken: result.AccessToken,
	}, "Login successful")
}

// GetUsers は全ユーザーの一覧を返す。
// GET /api/v1/user/get-user
func (h *AuthHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := make([]userSummaryResponse, len(users))
	for i, u := range users {
		result[i] = userSummaryResponse{
			FullName:  u.FullName,
			UserID:    u.ID,
			Email:     u.Email,
			CreatedAt: u.CreatedAt,
		}
	}

	middleware.WriteJSON(w, http.StatusOK, result, "All users fetched successfully")
}
