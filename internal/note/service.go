// Package note はノートの作成・編集・一覧・削除・ピン留め・検索のドメインロジックを提供する。
package note

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// OperationRecorder はノート操作の成功を記録するインターフェース。
type OperationRecorder interface {
	RecordNoteOperation(operation string)
}

// 操作名
const (
	OpCreate    = "create"
	OpEdit      = "edit"
	OpList      = "list"
	OpDelete    = "delete"
	OpSetPinned = "set_pinned"
	OpSearch    = "search"
)

// CreateInput はノート作成の入力。
type CreateInput struct {
	Title   string
	Content string
	Tags    []string
}

// EditInput はノート編集の入力。nilのフィールドは「指定なし」を表す。
type EditInput struct {
	Title    *string
	Content  *string
	Tags     *[]string
	IsPinned *bool
}

// Service はノート管理のサービス層。
// 全ての操作は所有者IDで絞り込み、他ユーザーのノートは存在しないノートと同じ扱いにする。
// タイトル・本文・タグは入力どおりに保存する。レスポンスはJSONのため、表示側でのエスケープに任せる。
type Service struct {
	repo     repository.NoteRepository
	recorder OperationRecorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(repo repository.NoteRepository, recorder OperationRecorder) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		now:      time.Now,
	}
}

// Create はノートを作成する。タグ未指定の場合は空のタグで作成する。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Note, error) {
	if ownerID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	if isBlank(in.Title) {
		return nil, model.NewValidationError("Title is required")
	}
	if isBlank(in.Content) {
		return nil, model.NewValidationError("Content is required")
	}

	now := s.now()
	n := &model.Note{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      copyTags(in.Tags),
		IsPinned:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("ノートの作成に失敗しました: %w", err)
	}

	s.record(OpCreate)
	return n, nil
}

// Edit はノートを部分更新する。指定されたフィールドのみを変更し、最終更新日時を更新する。
// isPinnedのみの指定も有効な編集として扱う。
func (s *Service) Edit(ctx context.Context, ownerID, noteID string, in EditInput) (*model.Note, error) {
	if ownerID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	update := model.NoteUpdate{IsPinned: in.IsPinned}
	if in.Title != nil {
		if isBlank(*in.Title) {
			return nil, model.NewValidationError("Title is required")
		}
		title := *in.Title
		update.Title = &title
	}
	if in.Content != nil {
		if isBlank(*in.Content) {
			return nil, model.NewValidationError("Content is required")
		}
		content := *in.Content
		update.Content = &content
	}
	if in.Tags != nil {
		tags := copyTags(*in.Tags)
		update.Tags = &tags
	}
	if update.IsEmpty() {
		return nil, model.NewValidationError("At least one field is required")
	}

	if !isNoteID(noteID) {
		return nil, model.NewNoteNotFoundError()
	}

	now := s.now()
	update.UpdatedAt = &now

	n, err := s.repo.UpdateByOwner(ctx, ownerID, noteID, update)
	if err != nil {
		return nil, fmt.Errorf("ノートの更新に失敗しました: %w", err)
	}
	if n == nil {
		return nil, model.NewNoteNotFoundError()
	}

	s.record(OpEdit)
	return n, nil
}

// List は所有者のノート一覧をピン留め優先・作成日時の降順で返す。
// ノートが1件もない場合は空のスライスを返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.Note, error) {
	if ownerID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	notes, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ノート一覧の取得に失敗しました: %w", err)
	}
	if notes == nil {
		notes = []*model.Note{}
	}

	s.record(OpList)
	return notes, nil
}

// Delete はノートを削除する。所有するノートが削除されなかった場合はNotFoundを返す。
func (s *Service) Delete(ctx context.Context, ownerID, noteID string) error {
	if ownerID == "" {
		return model.NewUnauthenticatedError()
	}
	if !isNoteID(noteID) {
		return model.NewNoteNotFoundError()
	}

	deleted, err := s.repo.DeleteByOwner(ctx, ownerID, noteID)
	if err != nil {
		return fmt.Errorf("ノートの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewNoteNotFoundError()
	}

	s.record(OpDelete)
	return nil
}

// SetPinned はノートのピン留め状態を設定する。
// pinnedがnilの場合はバリデーションエラー、falseは有効な値として扱う。
// 最終更新日時は変更しない。
func (s *Service) SetPinned(ctx context.Context, ownerID, noteID string, pinned *bool) (*model.Note, error) {
	if ownerID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	if pinned == nil {
		return nil, model.NewValidationError("isPinned is required")
	}
	if !isNoteID(noteID) {
		return nil, model.NewNoteNotFoundError()
	}

	value := *pinned
	n, err := s.repo.UpdateByOwner(ctx, ownerID, noteID, model.NoteUpdate{IsPinned: &value})
	if err != nil {
		return nil, fmt.Errorf("ピン留め状態の更新に失敗しました: %w", err)
	}
	if n == nil {
		return nil, model.NewNoteNotFoundError()
	}

	s.record(OpSetPinned)
	return n, nil
}

// Search はタイトル・本文・タグのいずれかにqueryを含むノートを返す。
// 大文字小文字を区別せず、queryはリテラル文字列として扱う。
func (s *Service) Search(ctx context.Context, ownerID, query string) ([]*model.Note, error) {
	if ownerID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	if isBlank(query) {
		return nil, model.NewValidationError("Search query is required")
	}

	notes, err := s.repo.SearchByOwner(ctx, ownerID, query)
	if err != nil {
		return nil, fmt.Errorf("ノートの検索に失敗しました: %w", err)
	}
	if notes == nil {
		notes = []*model.Note{}
	}

	s.record(OpSearch)
	return notes, nil
}

func (s *Service) record(op string) {
	if s.recorder != nil {
		s.recorder.RecordNoteOperation(op)
	}
}

// isNoteID はノートIDとして有効なUUID文字列かを返す。
// 不正な形式のIDは存在しないノートとして扱う。
func isNoteID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// copyTags は呼び出し元のスライスと共有しないコピーを返す。nilは空スライスになる。
func copyTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
