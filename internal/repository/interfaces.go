// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/remindman/internal/model"
	"github.com/hitoshi/remindman/internal/search"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByKeycloakID はKeycloakのsubject idでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error)

	// Upsert はkeycloak_idをキーにユーザーを原子的にfind-or-createする。
	// 既存の場合は既存レコードを返し、新規の場合は作成したレコードを返す。
	// 同一subjectの初回ログインが並行しても重複レコードを作らない。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)

	// UpdateChatID はユーザーの通知先チャットIDを更新する。
	UpdateChatID(ctx context.Context, userID, chatID string) error
}

// DueReminder は通知対象のリマインダーと所有者の通知先を結合した構造体。
type DueReminder struct {
	model.Reminder
	ChatID string // 所有者のTelegramチャットID。未設定の場合は空文字列。
}

// ReminderRepository はリマインダーデータの永続化インターフェース。
type ReminderRepository interface {
	// FindByID は指定IDのリマインダーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Reminder, error)

	// FindByIDAndUserID は指定IDかつ指定所有者のリマインダーを取得する。
	// IDが存在しても所有者が異なる場合はnilを返す。
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Reminder, error)

	// Create はリマインダーを作成する。
	Create(ctx context.Context, reminder *model.Reminder) error

	// Update はリマインダーのタイトル・説明・通知予定日時を更新する。
	Update(ctx context.Context, reminder *model.Reminder) error

	// Delete は指定IDのリマインダーを削除する。
	Delete(ctx context.Context, id string) error

	// Search は検索Specに合致するリマインダーの1ページ分を返す。
	Search(ctx context.Context, spec *search.Spec) ([]*model.Reminder, error)

	// Count は検索Specに合致するリマインダーの総件数を返す。
	// ソート・ページ窓は適用せず、WHERE条件のみを使用する。
	Count(ctx context.Context, spec *search.Spec) (int, error)

	// ListDue はremind_atがnowより前かつ未通知のリマインダーを
	// 所有者のチャットID付きで返す。remind_at昇順で順序は走査内で安定。
	// 読み取りとMarkNotifiedの間の排他は呼び出し側（スケジューラーの
	// 単一フライト）が担う。
	ListDue(ctx context.Context, now time.Time) ([]*DueReminder, error)

	// MarkNotified はnotifiedフラグをtrueにする。
	// 遷移は一方向で、一度適用されれば再適用しても結果は変わらない。
	MarkNotified(ctx context.Context, id string) error
}
