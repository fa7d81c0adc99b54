package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/notekeeper/internal/model"
)

const noteColumns = `id, user_id, title, content, tags, is_pinned, created_at, updated_at`

// ノート一覧の並び順。ピン留めを先頭に、同順位は作成日時の新しい順。
const noteOrderBy = ` ORDER BY is_pinned DESC, created_at DESC, id ASC`

// PostgresNoteRepo はPostgreSQLを使用したノートリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

// Create はノートを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, content, tags, is_pinned, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		note.ID, note.UserID, note.Title, note.Content, pq.Array(nonNilTags(note.Tags)),
		note.IsPinned, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// ListByOwner は所有者のノート一覧を返す。
func (r *PostgresNoteRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = $1`+noteOrderBy,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// SearchByOwner はタイトル・本文・タグを対象に部分一致検索する。
// strposを使うためLIKEのワイルドカード文字もリテラルとして扱われる。
func (r *PostgresNoteRepo) SearchByOwner(ctx context.Context, ownerID, query string) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE user_id = $1
		   AND (
		     strpos(lower(title), lower($2)) > 0
		     OR strpos(lower(content), lower($2)) > 0
		     OR EXISTS (SELECT 1 FROM unnest(tags) AS t(tag) WHERE strpos(lower(t.tag), lower($2)) > 0)
		   )`+noteOrderBy,
		ownerID, query,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// UpdateByOwner は所有者条件付きの単一UPDATE文でノートを部分更新する。
// 対象行がない場合（存在しない・所有者が異なる）はnilを返す。
func (r *PostgresNoteRepo) UpdateByOwner(ctx context.Context, ownerID, noteID string, update model.NoteUpdate) (*model.Note, error) {
	var tags []string
	if update.Tags != nil {
		tags = nonNilTags(*update.Tags)
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE notes SET
		   title      = COALESCE($3::text, title),
		   content    = COALESCE($4::text, content),
		   tags       = CASE WHEN $5::boolean THEN $6::text[] ELSE tags END,
		   is_pinned  = COALESCE($7::boolean, is_pinned),
		   updated_at = COALESCE($8::timestamptz, updated_at)
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+noteColumns,
		noteID, ownerID,
		nullString(update.Title), nullString(update.Content),
		update.Tags != nil, pq.Array(tags),
		nullBool(update.IsPinned), nullTime(update),
	)

	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return n, nil
}

// DeleteByOwner は所有者条件付きでノートを削除する。
func (r *PostgresNoteRepo) DeleteByOwner(ctx context.Context, ownerID, noteID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1 AND user_id = $2`,
		noteID, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (*model.Note, error) {
	n := &model.Note{}
	var tags pq.StringArray
	if err := s.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &tags, &n.IsPinned, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Tags = nonNilTags(tags)
	return n, nil
}

func scanNotes(rows *sql.Rows) ([]*model.Note, error) {
	notes := []*model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// nonNilTags はnilのタグを空スライスに正規化する。
func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullTime(u model.NoteUpdate) sql.NullTime {
	if u.UpdatedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *u.UpdatedAt, Valid: true}
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
