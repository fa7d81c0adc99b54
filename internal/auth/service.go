// Package auth はパスワード認証、アクセストークンの発行・検証、アカウント管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// TokenIssuer はアクセストークンを発行するインターフェース。
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// EventRecorder はアカウント操作の結果を記録するインターフェース。
type EventRecorder interface {
	RecordAccountEvent(event string)
}

// アカウントイベント名
const (
	EventRegistered       = "registered"
	EventRegisterConflict = "register_conflict"
	EventLoginSucceeded   = "login_succeeded"
	EventLoginFailed      = "login_failed"
)

// RegisterInput はアカウント登録の入力。
type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// LoginInput はログインの入力。
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult は登録・ログイン成功時の結果。
type AuthResult struct {
	User        *model.User
	AccessToken string
}

// Service はアカウント登録・ログイン・ユーザー一覧のビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	recorder EventRecorder
	now      func() time.Time

	// dummyHash は未登録メールアドレスでのログイン時に照合するハッシュ。
	// 登録済みかどうかで応答時間が変わらないようにする。
	dummyHash string
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, recorder EventRecorder) *Service {
	dummyHash, err := hasher.Hash(uuid.New().String())
	if err != nil {
		slog.Warn("failed to prepare dummy password hash", slog.String("error", err.Error()))
	}

	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		recorder:  recorder,
		now:       time.Now,
		dummyHash: dummyHash,
	}
}

// Register は新規ユーザーを登録し、アクセストークンを発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	switch {
	case strings.TrimSpace(in.FullName) == "":
		return nil, model.NewValidationError("Full name is required")
	case strings.TrimSpace(in.Email) == "":
		return nil, model.NewValidationError("Email is required")
	case in.Password == "":
		return nil, model.NewValidationError("Password is required")
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		s.record(EventRegisterConflict)
		return nil, model.NewUserAlreadyExistsError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New().String(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	// FindByEmailとCreateの間に同じメールアドレスで登録された場合は一意制約で検出する
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.record(EventRegisterConflict)
			return nil, model.NewUserAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.record(EventRegistered)
	slog.Info("user registered", slog.String("user_id", user.ID))

	return &AuthResult{User: user, AccessToken: token}, nil
}

// Login はメールアドレスとパスワードを照合し、アクセストークンを発行する。
// メールアドレス未登録とパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	switch {
	case strings.TrimSpace(in.Email) == "":
		return nil, model.NewValidationError("Email is required")
	case in.Password == "":
		return nil, model.NewValidationError("Password is required")
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil {
		s.hasher.Verify(in.Password, s.dummyHash)
		s.record(EventLoginFailed)
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.record(EventLoginFailed)
		slog.Warn("login failed", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.record(EventLoginSucceeded)
	return &AuthResult{User: user, AccessToken: token}, nil
}

// ListUsers は全ユーザーを返す。
// 呼び出し元ユーザーが既に存在しない場合（トークン発行後に削除された等）はUserNotFoundを返す。
func (s *Service) ListUsers(ctx context.Context, callerID string) ([]*model.User, error) {
	if callerID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find caller: %w", err)
	}
	if caller == nil {
		return nil, model.NewUserNotFoundError()
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *Service) record(event string) {
	if s.recorder != nil {
		s.recorder.RecordAccountEvent(event)
	}
}
