package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/remindman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByKeycloakID はKeycloakのsubject idでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error) {
	user := &model.User{}
	var chatID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, keycloak_id, email, username, chat_id, created_at, updated_at
		 FROM users WHERE keycloak_id = $1`,
		keycloakID,
	).Scan(&user.ID, &user.KeycloakID, &user.Email, &user.Username, &chatID, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}

	user.ChatID = nullStringValue(chatID)
	return user, nil
}

// Upsert はkeycloak_idをキーにユーザーを原子的にfind-or-createする。
// find-then-insertではなく単一の条件付きINSERTで実装しているため、
// 同一subjectの初回ログインが並行しても重複レコードは生まれない。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	result := &model.User{}
	var chatID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, keycloak_id, email, username, chat_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (keycloak_id) DO UPDATE SET updated_at = now()
		 RETURNING id, keycloak_id, email, username, chat_id, created_at, updated_at`,
		user.ID, user.KeycloakID, user.Email, user.Username,
		nullString(user.ChatID), user.CreatedAt, user.UpdatedAt,
	).Scan(&result.ID, &result.KeycloakID, &result.Email, &result.Username, &chatID, &result.CreatedAt, &result.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("ユーザーのupsertに失敗しました: %w", err)
	}

	result.ChatID = nullStringValue(chatID)
	return result, nil
}

// UpdateChatID はユーザーの通知先チャットIDを更新する。
func (r *PostgresUserRepo) UpdateChatID(ctx context.Context, userID, chatID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET chat_id = $2, updated_at = now() WHERE id = $1`,
		userID, nullString(chatID),
	)
	if err != nil {
		return fmt.Errorf("チャットIDの更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewUserNotFoundError()
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
