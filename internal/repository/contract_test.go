package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notekeeper/internal/model"
)

// ストア実装共通の振る舞いを検証するテスト群。
// メモリ実装はユニットテストから、PostgreSQL/MongoDB実装はintegrationタグ付きテストから呼び出す。

// contractBaseTime はMongoDBのミリ秒精度に合わせたテスト用基準時刻。
var contractBaseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newContractUser(t *testing.T, users UserRepository, email string, offset time.Duration) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.NewString(),
		FullName:     "User " + email,
		Email:        email,
		PasswordHash: "$2a$10$hash",
		CreatedAt:    contractBaseTime.Add(offset),
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user %q: %v", email, err)
	}
	return u
}

func newContractNote(t *testing.T, notes NoteRepository, ownerID, title string, tags []string, pinned bool, offset time.Duration) *model.Note {
	t.Helper()
	ts := contractBaseTime.Add(offset)
	n := &model.Note{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Title:     title,
		Content:   "content of " + title,
		Tags:      tags,
		IsPinned:  pinned,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := notes.Create(context.Background(), n); err != nil {
		t.Fatalf("Create note %q: %v", title, err)
	}
	return n
}

func noteTitles(notes []*model.Note) []string {
	titles := make([]string, len(notes))
	for i, n := range notes {
		titles[i] = n.Title
	}
	return titles
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func runUserRepositoryContract(t *testing.T, users UserRepository) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		u := newContractUser(t, users, "alice@example.com", 0)

		byID, err := users.FindByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if byID == nil || byID.Email != u.Email || byID.FullName != u.FullName {
			t.Fatalf("FindByID = %+v, want %+v", byID, u)
		}
		if byID.PasswordHash != u.PasswordHash {
			t.Errorf("PasswordHash = %q, want %q", byID.PasswordHash, u.PasswordHash)
		}

		byEmail, err := users.FindByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if byEmail == nil || byEmail.ID != u.ID {
			t.Fatalf("FindByEmail = %+v, want id %q", byEmail, u.ID)
		}
	})

	t.Run("email lookup is case sensitive", func(t *testing.T) {
		got, err := users.FindByEmail(ctx, "ALICE@example.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if got != nil {
			t.Errorf("FindByEmail(upper) = %+v, want nil", got)
		}
	})

	t.Run("missing user returns nil", func(t *testing.T) {
		got, err := users.FindByID(ctx, uuid.NewString())
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got != nil {
			t.Errorf("FindByID = %+v, want nil", got)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := &model.User{
			ID:           uuid.NewString(),
			FullName:     "Another Alice",
			Email:        "alice@example.com",
			PasswordHash: "x",
			CreatedAt:    contractBaseTime,
		}
		err := users.Create(ctx, dup)
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("Create duplicate error = %v, want ErrDuplicateEmail", err)
		}
	})

	t.Run("list ordered by creation", func(t *testing.T) {
		newContractUser(t, users, "bob@example.com", time.Minute)

		list, err := users.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("len(List) = %d, want 2", len(list))
		}
		if list[0].Email != "alice@example.com" || list[1].Email != "bob@example.com" {
			t.Errorf("List order = [%s %s], want [alice bob]", list[0].Email, list[1].Email)
		}
	})
}

func runNoteRepositoryContract(t *testing.T, users UserRepository, notes NoteRepository) {
	ctx := context.Background()
	owner := newContractUser(t, users, "owner@example.com", 0)
	other := newContractUser(t, users, "other@example.com", time.Second)

	older := newContractNote(t, notes, owner.ID, "older", []string{"Go"}, false, time.Minute)
	newer := newContractNote(t, notes, owner.ID, "newer", nil, false, 2*time.Minute)
	pinned := newContractNote(t, notes, owner.ID, "pinned", []string{"Q-practice"}, true, 0)
	foreign := newContractNote(t, notes, other.ID, "foreign", nil, false, 3*time.Minute)

	t.Run("list is owner scoped and ordered", func(t *testing.T) {
		list, err := notes.ListByOwner(ctx, owner.ID)
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		want := []string{"pinned", "newer", "older"}
		if got := noteTitles(list); !equalStrings(got, want) {
			t.Errorf("ListByOwner titles = %v, want %v", got, want)
		}
		for _, n := range list {
			if n.Tags == nil {
				t.Errorf("note %q has nil tags, want empty slice", n.Title)
			}
		}
	})

	t.Run("list for user without notes is empty", func(t *testing.T) {
		list, err := notes.ListByOwner(ctx, uuid.NewString())
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		if list == nil || len(list) != 0 {
			t.Errorf("ListByOwner = %v, want empty non-nil slice", list)
		}
	})

	t.Run("search matches title content and tags case insensitively", func(t *testing.T) {
		got, err := notes.SearchByOwner(ctx, owner.ID, "q")
		if err != nil {
			t.Fatalf("SearchByOwner: %v", err)
		}
		if titles := noteTitles(got); !equalStrings(titles, []string{"pinned"}) {
			t.Errorf("search q = %v, want [pinned]", titles)
		}

		got, err = notes.SearchByOwner(ctx, owner.ID, "CONTENT OF")
		if err != nil {
			t.Fatalf("SearchByOwner: %v", err)
		}
		if titles := noteTitles(got); !equalStrings(titles, []string{"pinned", "newer", "older"}) {
			t.Errorf("search content = %v, want all owner notes", titles)
		}

		got, err = notes.SearchByOwner(ctx, owner.ID, "foreign")
		if err != nil {
			t.Fatalf("SearchByOwner: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("search foreign = %v, want none", noteTitles(got))
		}
	})

	t.Run("search treats metacharacters literally", func(t *testing.T) {
		got, err := notes.SearchByOwner(ctx, owner.ID, ".*")
		if err != nil {
			t.Fatalf("SearchByOwner: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("search .* = %v, want none", noteTitles(got))
		}

		got, err = notes.SearchByOwner(ctx, owner.ID, "%")
		if err != nil {
			t.Fatalf("SearchByOwner: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("search %% = %v, want none", noteTitles(got))
		}
	})

	t.Run("angle brackets round trip and are searchable", func(t *testing.T) {
		author := newContractUser(t, users, "brackets@example.com", 2*time.Second)
		inputs := []string{"use vector<int> here", "if a<b and c>d", "x<y"}
		for i, in := range inputs {
			n := &model.Note{
				ID:        uuid.NewString(),
				UserID:    author.ID,
				Title:     in,
				Content:   in,
				Tags:      []string{in},
				CreatedAt: contractBaseTime.Add(time.Duration(i) * time.Minute),
				UpdatedAt: contractBaseTime.Add(time.Duration(i) * time.Minute),
			}
			if err := notes.Create(ctx, n); err != nil {
				t.Fatalf("Create %q: %v", in, err)
			}
		}

		list, err := notes.ListByOwner(ctx, author.ID)
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		want := []string{"x<y", "if a<b and c>d", "use vector<int> here"}
		if got := noteTitles(list); !equalStrings(got, want) {
			t.Errorf("titles = %q, want %q", got, want)
		}
		for _, n := range list {
			if n.Content != n.Title || len(n.Tags) != 1 || n.Tags[0] != n.Title {
				t.Errorf("note %q stored as content %q tags %q", n.Title, n.Content, n.Tags)
			}
		}

		got, err := notes.SearchByOwner(ctx, author.ID, "VECTOR<INT>")
		if err != nil {
			t.Fatalf("SearchByOwner: %v", err)
		}
		if titles := noteTitles(got); !equalStrings(titles, []string{"use vector<int> here"}) {
			t.Errorf("search vector<int> = %q, want [use vector<int> here]", titles)
		}

		got, err = notes.SearchByOwner(ctx, author.ID, "a<b")
		if err != nil {
			t.Fatalf("SearchByOwner: %v", err)
		}
		if titles := noteTitles(got); !equalStrings(titles, []string{"if a<b and c>d"}) {
			t.Errorf("search a<b = %q, want [if a<b and c>d]", titles)
		}
	})

	t.Run("partial update keeps absent fields", func(t *testing.T) {
		tags := []string{"x", "y"}
		bumped := contractBaseTime.Add(time.Hour)
		updated, err := notes.UpdateByOwner(ctx, owner.ID, older.ID, model.NoteUpdate{Tags: &tags, UpdatedAt: &bumped})
		if err != nil {
			t.Fatalf("UpdateByOwner: %v", err)
		}
		if updated == nil {
			t.Fatal("UpdateByOwner returned nil for owned note")
		}
		if updated.Title != "older" || updated.Content != "content of older" {
			t.Errorf("title/content changed: %q / %q", updated.Title, updated.Content)
		}
		if !equalStrings(updated.Tags, tags) {
			t.Errorf("Tags = %v, want %v", updated.Tags, tags)
		}
		if !updated.UpdatedAt.Equal(bumped) {
			t.Errorf("UpdatedAt = %v, want %v", updated.UpdatedAt, bumped)
		}
		if !updated.CreatedAt.Equal(older.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", updated.CreatedAt, older.CreatedAt)
		}
	})

	t.Run("pin false is applied and updated time kept", func(t *testing.T) {
		f := false
		updated, err := notes.UpdateByOwner(ctx, owner.ID, pinned.ID, model.NoteUpdate{IsPinned: &f})
		if err != nil {
			t.Fatalf("UpdateByOwner: %v", err)
		}
		if updated == nil || updated.IsPinned {
			t.Fatalf("IsPinned after unpin = %+v, want false", updated)
		}
		if !updated.UpdatedAt.Equal(pinned.UpdatedAt) {
			t.Errorf("UpdatedAt = %v, want unchanged %v", updated.UpdatedAt, pinned.UpdatedAt)
		}
	})

	t.Run("empty tags replace existing tags", func(t *testing.T) {
		empty := []string{}
		updated, err := notes.UpdateByOwner(ctx, owner.ID, older.ID, model.NoteUpdate{Tags: &empty})
		if err != nil {
			t.Fatalf("UpdateByOwner: %v", err)
		}
		if updated == nil || updated.Tags == nil || len(updated.Tags) != 0 {
			t.Errorf("Tags = %v, want empty slice", updated)
		}
	})

	t.Run("foreign note cannot be updated or deleted", func(t *testing.T) {
		title := "hijacked"
		updated, err := notes.UpdateByOwner(ctx, owner.ID, foreign.ID, model.NoteUpdate{Title: &title})
		if err != nil {
			t.Fatalf("UpdateByOwner: %v", err)
		}
		if updated != nil {
			t.Errorf("UpdateByOwner(foreign) = %+v, want nil", updated)
		}

		deleted, err := notes.DeleteByOwner(ctx, owner.ID, foreign.ID)
		if err != nil {
			t.Fatalf("DeleteByOwner: %v", err)
		}
		if deleted {
			t.Error("DeleteByOwner(foreign) = true, want false")
		}

		list, err := notes.ListByOwner(ctx, other.ID)
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		if titles := noteTitles(list); !equalStrings(titles, []string{"foreign"}) {
			t.Errorf("other owner's notes = %v, want [foreign]", titles)
		}
	})

	t.Run("delete is idempotent in effect", func(t *testing.T) {
		deleted, err := notes.DeleteByOwner(ctx, owner.ID, newer.ID)
		if err != nil {
			t.Fatalf("DeleteByOwner: %v", err)
		}
		if !deleted {
			t.Fatal("first DeleteByOwner = false, want true")
		}

		deleted, err = notes.DeleteByOwner(ctx, owner.ID, newer.ID)
		if err != nil {
			t.Fatalf("DeleteByOwner: %v", err)
		}
		if deleted {
			t.Error("second DeleteByOwner = true, want false")
		}

		list, err := notes.ListByOwner(ctx, owner.ID)
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		for _, n := range list {
			if n.ID == newer.ID {
				t.Error("deleted note still listed")
			}
		}
	})
}
