package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/remindman/internal/middleware"
	"github.com/hitoshi/remindman/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	FindOrCreate(ctx context.Context, keycloakID, email, username string) (*model.User, error)
	UpdateChatID(ctx context.Context, keycloakID, chatID string) error
}

// UserHandler はユーザー設定のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateChatIDRequest は通知先チャットID更新リクエストのボディ。
type updateChatIDRequest struct {
	ChatID string `json:"chat_id"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	ChatID   string `json:"chat_id"`
}

// Me は認証済みユーザーの情報を返す。初回アクセス時はローカル行を作成する。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	user, err := h.service.FindOrCreate(r.Context(), principal.Subject, principal.Email, principal.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		ChatID:   user.ChatID,
	})
}

// UpdateChatID は通知先チャットIDを登録・更新する。
// PUT /api/users/me/chat
func (h *UserHandler) UpdateChatID(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req updateChatIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}
	if req.ChatID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("チャットIDは必須です"))
		return
	}

	// 初回アクセスでもローカル行が存在するように解決してから更新する
	if _, err := h.service.FindOrCreate(r.Context(), principal.Subject, principal.Email, principal.Username); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.service.UpdateChatID(r.Context(), principal.Subject, req.ChatID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
