// Package repository はデータ永続化のインターフェースと各ストア向けの実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/notekeeper/internal/model"
)

// ErrDuplicateEmail は既に登録済みのメールアドレスでユーザーを作成しようとした場合に返る。
// 一意制約違反をストアごとのエラー型から変換して返す。
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// 大文字小文字は区別する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)
}

// NoteRepository はノートデータの永続化インターフェース。
// 全ての読み書きは所有者IDで絞り込まれ、他ユーザーのノートは存在しないものとして扱う。
type NoteRepository interface {
	// Create はノートを作成する。
	Create(ctx context.Context, note *model.Note) error

	// ListByOwner は所有者のノート一覧をピン留め優先・作成日時の降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error)

	// SearchByOwner はタイトル・本文・タグのいずれかにqueryを部分一致（大文字小文字を区別しない）
	// で含むノートを返す。queryは正規表現ではなくリテラルとして扱う。並び順はListByOwnerと同じ。
	SearchByOwner(ctx context.Context, ownerID, query string) ([]*model.Note, error)

	// UpdateByOwner は所有者条件付きでノートを部分更新し、更新後のノートを返す。
	// 該当ノートが存在しないか所有者が異なる場合はnilを返す。
	// 所有者の確認と更新は1回の条件付き更新で行う。
	UpdateByOwner(ctx context.Context, ownerID, noteID string, update model.NoteUpdate) (*model.Note, error)

	// DeleteByOwner は所有者条件付きでノートを削除する。
	// 削除した場合はtrue、該当ノートがなかった場合はfalseを返す。
	DeleteByOwner(ctx context.Context, ownerID, noteID string) (bool, error)
}
