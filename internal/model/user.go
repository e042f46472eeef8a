// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// KeycloakIDは外部IdP（Keycloak）のsubject idで、一意かつ不変。
// 初回の認証済みリクエスト到着時に遅延作成される。
type User struct {
	ID         string
	KeycloakID string
	Email      string
	Username   string
	ChatID     string // 通知先のTelegramチャットID。未設定の場合は空文字列。
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TokenSet はKeycloakのトークンエンドポイントから取得したトークン一式を表す。
// 1回のオーケストレーション呼び出しの間だけ保持し、永続化しない。
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
