// Package model はドメインモデルを定義する。
package model

import "time"

// Note はユーザーが作成したテキストノートを表す。
// UserIDは作成時に割り当てられ、以後変更されない。
type Note struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	Tags      []string
	IsPinned  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteUpdate はノートの部分更新内容を表す。
// nilフィールドは変更しない（値の有無で判定し、false や空文字を「未指定」とはみなさない）。
type NoteUpdate struct {
	Title     *string
	Content   *string
	Tags      *[]string
	IsPinned  *bool
	UpdatedAt *time.Time // nilの場合は最終更新日時を据え置く
}

// IsEmpty は更新対象のフィールドが1つも指定されていないかを返す。
func (u NoteUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil && u.Tags == nil && u.IsPinned == nil
}
