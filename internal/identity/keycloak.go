// Package identity はKeycloakを外部IdPとして利用するためのクライアントを提供する。
// 各操作はステートレスな同期外部呼び出しで、クライアント自身はリトライしない。
// 呼び出し側からのリトライは常に安全。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/remindman/internal/model"
)

// Keycloak Admin REST API / OpenID Connect のパス定義。
const (
	adminTokenPath    = "/realms/master/protocol/openid-connect/token"
	tokenPathFormat   = "/realms/%s/protocol/openid-connect/token"
	usersPathFormat   = "/admin/realms/%s/users"
	resetPathFormat   = "/admin/realms/%s/users/%s/reset-password"
	rolePathFormat    = "/admin/realms/%s/roles/%s"
	mappingPathFormat = "/admin/realms/%s/users/%s/role-mappings/realm"

	grantTypePassword = "password"
)

// ClientConfig はKeycloakクライアントの設定。
type ClientConfig struct {
	ServerURL     string // 例: "http://keycloak:8080"
	Realm         string
	ClientID      string // ユーザーログイン用のクライアント
	ClientSecret  string
	AdminClientID string // 管理者ログイン用のクライアント（通常 "admin-cli"）
	AdminUsername string
	AdminPassword string
	Timeout       time.Duration // 1リクエストあたりの上限。0の場合は10秒。
}

// Client はKeycloakのAdmin REST APIとトークンエンドポイントのクライアント。
// ローカル状態を持たず、失敗は型付きエラーとして呼び出し側に表面化する。
type Client struct {
	config ClientConfig
	http   *http.Client
	logger *slog.Logger
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.AdminClientID == "" {
		config.AdminClientID = "admin-cli"
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// AdminAuthenticate は管理者クライアントでトークンを取得する。
// 非成功ステータスまたは通信エラーの場合はIdentityUnavailableを返す。
func (c *Client) AdminAuthenticate(ctx context.Context) (*model.TokenSet, error) {
	form := url.Values{
		"grant_type": {grantTypePassword},
		"client_id":  {c.config.AdminClientID},
		"username":   {c.config.AdminUsername},
		"password":   {c.config.AdminPassword},
	}

	tokens, err := c.postTokenForm(ctx, c.config.ServerURL+adminTokenPath, form)
	if err != nil {
		return nil, model.NewIdentityUnavailableError(err)
	}

	return tokens, nil
}

// CreateAccount は管理者トークンで新規アカウントを作成し、subject idを返す。
// Keycloakは作成成功時に201とLocationヘッダ（.../users/{id}）を返すため、
// subject idはLocationの末尾セグメントから抽出する。
// 非作成レスポンスの場合はAccountCreationFailedを返す。
func (c *Client) CreateAccount(ctx context.Context, adminToken, username, email string) (string, error) {
	payload := map[string]any{
		"username":      username,
		"email":         email,
		"enabled":       true,
		"emailVerified": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", model.NewAccountCreationFailedError(err)
	}

	endpoint := c.config.ServerURL + fmt.Sprintf(usersPathFormat, c.config.Realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", model.NewAccountCreationFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", model.NewAccountCreationFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", model.NewAccountCreationFailedError(
			fmt.Errorf("account creation failed with status %d: %s", resp.StatusCode, string(respBody)),
		)
	}

	location := resp.Header.Get("Location")
	subjectID := location[strings.LastIndex(location, "/")+1:]
	if subjectID == "" {
		return "", model.NewAccountCreationFailedError(
			fmt.Errorf("missing subject id in location header: %q", location),
		)
	}

	return subjectID, nil
}

// SetCredentials はアカウントのパスワードを設定する。
// temporary=falseの恒久パスワードとして設定する冪等なPUT。
// 非成功ステータスの場合はCredentialUpdateFailedを返す。
func (c *Client) SetCredentials(ctx context.Context, adminToken, subjectID, password string) error {
	payload := map[string]any{
		"type":      grantTypePassword,
		"value":     password,
		"temporary": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return model.NewCredentialUpdateFailedError(err)
	}

	endpoint := c.config.ServerURL + fmt.Sprintf(resetPathFormat, c.config.Realm, subjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return model.NewCredentialUpdateFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return model.NewCredentialUpdateFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return model.NewCredentialUpdateFailedError(
			fmt.Errorf("credential update failed with status %d: %s", resp.StatusCode, string(respBody)),
		)
	}

	return nil
}

// AssignRole はレルムロールをアカウントに割り当てる。
// ロールを名前で検索し、存在しない場合は割り当てを行わずにログのみ出力して
// 正常終了する（ソフトフェイル）。ロール割り当てはログインに必須ではない
// ベストエフォートのメタデータであるため、エラーとして昇格させない。
func (c *Client) AssignRole(ctx context.Context, adminToken, subjectID, roleName string) error {
	// 1. ロールを名前で検索
	roleEndpoint := c.config.ServerURL + fmt.Sprintf(rolePathFormat, c.config.Realm, roleName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, roleEndpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create role lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("role lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ロールが存在しないため割り当てをスキップします",
			slog.String("role", roleName),
			slog.Int("status", resp.StatusCode),
		)
		return nil
	}

	var role map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&role); err != nil {
		return fmt.Errorf("failed to decode role representation: %w", err)
	}

	// 2. ロールを割り当て
	body, err := json.Marshal([]map[string]any{role})
	if err != nil {
		return fmt.Errorf("failed to encode role assignment: %w", err)
	}

	assignEndpoint := c.config.ServerURL + fmt.Sprintf(mappingPathFormat, c.config.Realm, subjectID)
	assignReq, err := http.NewRequestWithContext(ctx, http.MethodPost, assignEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create role assignment request: %w", err)
	}
	assignReq.Header.Set("Content-Type", "application/json")
	assignReq.Header.Set("Authorization", "Bearer "+adminToken)

	assignResp, err := c.http.Do(assignReq)
	if err != nil {
		return fmt.Errorf("role assignment failed: %w", err)
	}
	defer assignResp.Body.Close()

	if assignResp.StatusCode < 200 || assignResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(assignResp.Body)
		return fmt.Errorf("role assignment failed with status %d: %s", assignResp.StatusCode, string(respBody))
	}

	return nil
}

// Authenticate はpassword grantでユーザーログインを行い、トークン一式を返す。
// 非成功ステータスの場合はInvalidCredentialsを返す。
func (c *Client) Authenticate(ctx context.Context, username, password string) (*model.TokenSet, error) {
	form := url.Values{
		"grant_type":    {grantTypePassword},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"username":      {username},
		"password":      {password},
	}

	endpoint := c.config.ServerURL + fmt.Sprintf(tokenPathFormat, c.config.Realm)
	tokens, err := c.postTokenForm(ctx, endpoint, form)
	if err != nil {
		return nil, model.NewInvalidCredentialsError(err)
	}

	return tokens, nil
}

// postTokenForm はform-encodedのトークンリクエストを送信し、レスポンスを解析する。
func (c *Client) postTokenForm(ctx context.Context, endpoint string, form url.Values) (*model.TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokens model.TokenSet
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokens, nil
}
