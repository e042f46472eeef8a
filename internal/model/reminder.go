// Package model はドメインモデルを定義する。
package model

import "time"

// Reminder はユーザーのリマインダーを表す。
// 必ず1人のユーザーに属し、所有者のID経由でのみ参照・変更できる。
// Notifiedは単調: false→trueの一方向で、リセットされない。
type Reminder struct {
	ID          string
	Title       string
	Description string
	RemindAt    time.Time
	Notified    bool
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortField はリマインダー検索のソート対象フィールドを表す。
type SortField string

const (
	// SortFieldRemindAt は通知予定日時によるソート。デフォルト。
	SortFieldRemindAt SortField = "remind_at"
	// SortFieldTitle はタイトルによるソート。
	SortFieldTitle SortField = "title"
)

// SearchFilter はリマインダー検索の条件を表す。
// 各フィルタは独立してオプショナルで、相互の制約はない。
type SearchFilter struct {
	TitleContains       string     // タイトルの部分一致（大文字小文字を区別しない）
	DescriptionContains string     // 説明の部分一致（大文字小文字を区別しない）
	RemindFrom          *time.Time // 通知予定日時の下限（境界を含む）
	RemindTo            *time.Time // 通知予定日時の上限（境界を含む）
	SortBy              string     // "title" または "remind_at"。それ以外はremind_at扱い。
	SortDirection       string     // "desc"（大文字小文字を区別しない）以外は昇順。
	Page                int        // 0始まりのページ番号
	PageSize            int        // 1ページの件数。1以上であることは境界層で検証済み。
}

// ReminderPage は検索結果の1ページと総件数を表す。
type ReminderPage struct {
	Reminders     []*Reminder
	TotalElements int
	TotalPages    int
	Page          int
	PageSize      int
}
