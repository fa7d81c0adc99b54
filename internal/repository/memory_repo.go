package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/notekeeper/internal/model"
)

// MemoryStore はプロセス内メモリ上のユーザー・ノートストア。
// STORE_DRIVER=memory での開発用途とテストで使用する。プロセス終了でデータは失われる。
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]model.User
	notes map[string]model.Note
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]model.User),
		notes: make(map[string]model.Note),
	}
}

// Users はMemoryStoreをUserRepositoryとして返す。
func (s *MemoryStore) Users() *MemoryUserRepo {
	return &MemoryUserRepo{store: s}
}

// Notes はMemoryStoreをNoteRepositoryとして返す。
func (s *MemoryStore) Notes() *MemoryNoteRepo {
	return &MemoryNoteRepo{store: s}
}

// MemoryUserRepo はMemoryStoreのユーザー操作。
type MemoryUserRepo struct {
	store *MemoryStore
}

// Create はユーザーを作成する。
func (r *MemoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, u := range r.store.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	r.store.users[user.ID] = *user
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, u := range r.store.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// List は全ユーザーを作成日時の昇順で返す。
func (r *MemoryUserRepo) List(_ context.Context) ([]*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]*model.User, 0, len(r.store.users))
	for _, u := range r.store.users {
		u := u
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// MemoryNoteRepo はMemoryStoreのノート操作。
type MemoryNoteRepo struct {
	store *MemoryStore
}

// Create はノートを作成する。
func (r *MemoryNoteRepo) Create(_ context.Context, note *model.Note) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	n := *note
	n.Tags = cloneTags(note.Tags)
	r.store.notes[n.ID] = n
	return nil
}

// ListByOwner は所有者のノート一覧を返す。
func (r *MemoryNoteRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.Note, error) {
	return r.filter(ownerID, func(model.Note) bool { return true }), nil
}

// SearchByOwner はタイトル・本文・タグを対象に大文字小文字を区別しない部分一致検索をする。
func (r *MemoryNoteRepo) SearchByOwner(_ context.Context, ownerID, query string) ([]*model.Note, error) {
	q := strings.ToLower(query)
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), q) }

	return r.filter(ownerID, func(n model.Note) bool {
		if contains(n.Title) || contains(n.Content) {
			return true
		}
		for _, tag := range n.Tags {
			if contains(tag) {
				return true
			}
		}
		return false
	}), nil
}

// UpdateByOwner は所有者条件付きでノートを部分更新する。
// 所有者の確認と書き込みは同一の書き込みロック内で行う。
func (r *MemoryNoteRepo) UpdateByOwner(_ context.Context, ownerID, noteID string, update model.NoteUpdate) (*model.Note, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	n, ok := r.store.notes[noteID]
	if !ok || n.UserID != ownerID {
		return nil, nil
	}

	if update.Title != nil {
		n.Title = *update.Title
	}
	if update.Content != nil {
		n.Content = *update.Content
	}
	if update.Tags != nil {
		n.Tags = cloneTags(*update.Tags)
	}
	if update.IsPinned != nil {
		n.IsPinned = *update.IsPinned
	}
	if update.UpdatedAt != nil {
		n.UpdatedAt = *update.UpdatedAt
	}
	r.store.notes[noteID] = n

	out := n
	out.Tags = cloneTags(n.Tags)
	return &out, nil
}

// DeleteByOwner は所有者条件付きでノートを削除する。
func (r *MemoryNoteRepo) DeleteByOwner(_ context.Context, ownerID, noteID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	n, ok := r.store.notes[noteID]
	if !ok || n.UserID != ownerID {
		return false, nil
	}
	delete(r.store.notes, noteID)
	return true, nil
}

func (r *MemoryNoteRepo) filter(ownerID string, match func(model.Note) bool) []*model.Note {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	notes := []*model.Note{}
	for _, n := range r.store.notes {
		if n.UserID != ownerID || !match(n) {
			continue
		}
		out := n
		out.Tags = cloneTags(n.Tags)
		notes = append(notes, &out)
	}
	SortNotes(notes)
	return notes
}

// SortNotes はノートをピン留め優先、作成日時の降順、IDの昇順で並べ替える。
func SortNotes(notes []*model.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func cloneTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// compile-time interface check
var (
	_ UserRepository = (*MemoryUserRepo)(nil)
	_ NoteRepository = (*MemoryNoteRepo)(nil)
)
