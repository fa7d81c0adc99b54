package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/note"
)

// NoteServiceInterface はノートハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	Create(ctx context.Context, ownerID string, in note.CreateInput) (*model.Note, error)
	Edit(ctx context.Context, ownerID, noteID string, in note.EditInput) (*model.Note, error)
	List(ctx context.Context, ownerID string) ([]*model.Note, error)
	Delete(ctx context.Context, ownerID, noteID string) error
	SetPinned(ctx context.Context, ownerID, noteID string, pinned *bool) (*model.Note, error)
	Search(ctx context.Context, ownerID, query string) ([]*model.Note, error)
}

// NoteHandler はノート管理のHTTPハンドラー。
type NoteHandler struct {
	service      NoteServiceInterface
	maxBodyBytes int64
}

// NewNoteHandler はNoteHandlerを生成する。maxBodyBytesが0以下の場合は既定値を使う。
func NewNoteHandler(service NoteServiceInterface, maxBodyBytes int64) *NoteHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &NoteHandler{
		service:      service,
		maxBodyBytes: maxBodyBytes,
	}
}

type addNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// editNoteRequest はフィールドの有無で更新対象を判定するためポインタで受け取る。
type editNoteRequest struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Tags     *[]string `json:"tags"`
	IsPinned *bool     `json:"isPinned"`
}

type pinNoteRequest struct {
	IsPinned *bool `json:"isPinned"`
}

// AddNote はノートを作成する。
// POST /api/v1/user/add-note
func (h *NoteHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addNoteRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}

	n, err := h.service.Create(r.Context(), userID, note.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toNoteResponse(n), "Note added successfully")
}

// EditNote はノートを部分更新する。
// PUT /api/v1/user/edit-note/{noteId}
func (h *NoteHandler) EditNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req editNoteRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}

	n, err := h.service.Edit(r.Context(), userID, chi.URLParam(r, "noteId"), note.EditInput{
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		IsPinned: req.IsPinned,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toNoteResponse(n), "Note updated successfully")
}

// ListNotes は認証ユーザーのノート一覧を返す。
// GET /api/v1/user/all-notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toNoteResponses(notes), "All notes fetched successfully")
}

// DeleteNote はノートを削除する。
// DELETE /api/v1/user/delete-note/{noteId}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "noteId")); err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, nil, "Note deleted successfully")
}

// UpdatePin はノートのピン留め状態を更新する。
// PUT /api/v1/user/update-pin-note/{noteId}
func (h *NoteHandler) UpdatePin(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req pinNoteRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}

	n, err := h.service.SetPinned(r.Context(), userID, chi.URLParam(r, "noteId"), req.IsPinned)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toNoteResponse(n), "Note updated successfully")
}

// SearchNotes はクエリ文字列に一致するノートを返す。
// GET /api/v1/user/search-notes?query=...
func (h *NoteHandler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	notes, err := h.service.Search(r.Context(), userID, r.URL.Query().Get("query"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toNoteResponses(notes), "Notes retrieved successfully")
}
