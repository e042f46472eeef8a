// Package notify はTelegramによる通知送信機能を提供する。
// Bot APIクライアントと、配信エラーを伝播させない通知チャネルを含む。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// defaultBaseURL はTelegram Bot APIのベースURL。
const defaultBaseURL = "https://api.telegram.org"

// ClientConfig はTelegramクライアントの設定。
type ClientConfig struct {
	BotToken string
	Timeout  time.Duration // 1リクエストあたりの上限。0の場合は10秒。

	// テスト用にオーバーライド可能なURL
	BaseURL string
}

// Client はTelegram Bot APIのクライアント。
// sendMessageエンドポイントでテキストメッセージを送信する。
type Client struct {
	config ClientConfig
	http   *http.Client
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// sendMessageRequest はsendMessageエンドポイントのリクエストボディ。
type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// SendMessage は指定チャットにテキストメッセージを送信する。
// 非成功ステータスまたは通信エラーの場合はエラーを返す。
// 配信エラーの扱い（伝播させるか握りつぶすか）は呼び出し側が決める。
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.config.BaseURL, c.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("メッセージ送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Telegram APIがステータス %d を返しました: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Channel は配信エラーを外に伝播させない通知チャネル。
// 送信失敗はログのみ出力し、呼び出し側には常に正常として返る。
// このふるまいがチャネル境界の唯一の決定点であり、
// 確認済み配信への切り替えはここだけを差し替えればよい。
type Channel struct {
	client *Client
	logger *slog.Logger
}

// NewChannel はChannelの新しいインスタンスを生成する。
func NewChannel(client *Client, logger *slog.Logger) *Channel {
	return &Channel{
		client: client,
		logger: logger,
	}
}

// Send は指定アドレスにテキストを送信する。
// 配信エラーはログに記録して握りつぶす（ベストエフォート送信）。
func (ch *Channel) Send(ctx context.Context, address, text string) {
	if err := ch.client.SendMessage(ctx, address, text); err != nil {
		ch.logger.Error("Telegramメッセージの送信に失敗しました",
			slog.String("chat_id", address),
			slog.String("error", err.Error()),
		)
	}
}
