package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/remindman/internal/model"
	"github.com/hitoshi/remindman/internal/search"
)

// PostgresReminderRepo はPostgreSQLを使用したリマインダーリポジトリ。
type PostgresReminderRepo struct {
	db *sql.DB
}

// NewPostgresReminderRepo はPostgresReminderRepoを生成する。
func NewPostgresReminderRepo(db *sql.DB) *PostgresReminderRepo {
	return &PostgresReminderRepo{db: db}
}

const reminderColumns = `id, title, description, remind_at, notified, user_id, created_at, updated_at`

// scanReminder は1行をmodel.Reminderに読み取る。
func scanReminder(row interface{ Scan(dest ...any) error }) (*model.Reminder, error) {
	reminder := &model.Reminder{}
	err := row.Scan(
		&reminder.ID, &reminder.Title, &reminder.Description, &reminder.RemindAt,
		&reminder.Notified, &reminder.UserID, &reminder.CreatedAt, &reminder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return reminder, nil
}

// FindByID は指定IDのリマインダーを取得する。見つからない場合はnilを返す。
func (r *PostgresReminderRepo) FindByID(ctx context.Context, id string) (*model.Reminder, error) {
	reminder, err := scanReminder(r.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1`,
		id,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リマインダーの取得に失敗しました: %w", err)
	}

	return reminder, nil
}

// FindByIDAndUserID は指定IDかつ指定所有者のリマインダーを取得する。
// IDが存在しても所有者が異なる場合はnilを返す。
func (r *PostgresReminderRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Reminder, error) {
	reminder, err := scanReminder(r.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1 AND user_id = $2`,
		id, userID,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リマインダーの取得に失敗しました: %w", err)
	}

	return reminder, nil
}

// Create はリマインダーを作成する。
func (r *PostgresReminderRepo) Create(ctx context.Context, reminder *model.Reminder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (id, title, description, remind_at, notified, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reminder.ID, reminder.Title, reminder.Description, reminder.RemindAt,
		reminder.Notified, reminder.UserID, reminder.CreatedAt, reminder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("リマインダーの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はリマインダーのタイトル・説明・通知予定日時を更新する。
// notifiedフラグはここでは変更しない（単調性の維持はMarkNotifiedのみが担う）。
func (r *PostgresReminderRepo) Update(ctx context.Context, reminder *model.Reminder) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET title = $2, description = $3, remind_at = $4, updated_at = now()
		 WHERE id = $1`,
		reminder.ID, reminder.Title, reminder.Description, reminder.RemindAt,
	)
	if err != nil {
		return fmt.Errorf("リマインダーの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのリマインダーを削除する。
func (r *PostgresReminderRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("リマインダーの削除に失敗しました: %w", err)
	}
	return nil
}

// Search は検索Specに合致するリマインダーの1ページ分を返す。
// spec.OrderByはsearchパッケージのホワイトリストで検証済みのため埋め込んで安全。
func (r *PostgresReminderRepo) Search(ctx context.Context, spec *search.Spec) ([]*model.Reminder, error) {
	args := make([]any, 0, len(spec.Args)+2)
	args = append(args, spec.Args...)
	args = append(args, spec.Limit, spec.Offset)

	query := fmt.Sprintf(
		`SELECT %s FROM reminders WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		reminderColumns, spec.Where, spec.OrderBy, len(spec.Args)+1, len(spec.Args)+2,
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("リマインダーの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var reminders []*model.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("検索結果の読み取りに失敗しました: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("検索結果の走査に失敗しました: %w", err)
	}

	return reminders, nil
}

// Count は検索Specに合致するリマインダーの総件数を返す。
// ページ窓の計算に使用するため、同じWHERE条件でソートなしのCOUNTを実行する。
func (r *PostgresReminderRepo) Count(ctx context.Context, spec *search.Spec) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM reminders WHERE %s`, spec.Where)

	if err := r.db.QueryRowContext(ctx, query, spec.Args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("リマインダーの件数取得に失敗しました: %w", err)
	}

	return count, nil
}

// ListDue は通知対象（remind_atがnowより前かつ未通知）のリマインダーを
// 所有者のチャットID付きで取得する。remind_at昇順で走査内の順序は安定。
// FOR UPDATE SKIP LOCKEDは同時実行中の別クエリが保持する行ロックを読み飛ばす。
// ロックはこのSELECT文の暗黙トランザクション終了で解放されるため、
// 読み取りからMarkNotifiedまでの排他はスケジューラーの単一フライトが担う。
func (r *PostgresReminderRepo) ListDue(ctx context.Context, now time.Time) ([]*DueReminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.title, r.description, r.remind_at, r.notified, r.user_id,
		        r.created_at, r.updated_at, u.chat_id
		 FROM reminders r
		 INNER JOIN users u ON r.user_id = u.id
		 WHERE r.remind_at < $1
		   AND r.notified = FALSE
		 ORDER BY r.remind_at ASC
		 FOR UPDATE OF r SKIP LOCKED`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("通知対象リマインダーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var due []*DueReminder
	for rows.Next() {
		d := &DueReminder{}
		var chatID sql.NullString

		if err := rows.Scan(
			&d.ID, &d.Title, &d.Description, &d.RemindAt, &d.Notified, &d.UserID,
			&d.CreatedAt, &d.UpdatedAt, &chatID,
		); err != nil {
			return nil, fmt.Errorf("通知対象リマインダーの読み取りに失敗しました: %w", err)
		}

		d.ChatID = nullStringValue(chatID)
		due = append(due, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知対象リマインダーの走査に失敗しました: %w", err)
	}

	return due, nil
}

// MarkNotified はnotifiedフラグをtrueにする。
// false→trueの一方向のみで、既にtrueの行に再適用しても結果は変わらない。
func (r *PostgresReminderRepo) MarkNotified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET notified = TRUE, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("通知済みフラグの更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReminderRepository = (*PostgresReminderRepo)(nil)
