// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Emailはログインキーであり、全ユーザーで一意。
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string // bcryptハッシュ。平文パスワードは保持しない
	CreatedAt    time.Time
}
