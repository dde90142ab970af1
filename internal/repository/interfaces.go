// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/funapp/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、DBが採番したIDとcreated_atをuserに書き戻す。
	// emailのUNIQUE制約違反の場合はmodel.ErrCodeEmailExistsのAPIErrorを返す。
	// 事前重複チェックとの間に競合したリクエストもこの経路で検出される。
	Create(ctx context.Context, user *model.User) error
}
