package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/remindman/internal/middleware"
	"github.com/hitoshi/remindman/internal/model"
)

type mockUserService struct {
	findOrCreateFunc func(ctx context.Context, keycloakID, email, username string) (*model.User, error)
	updateChatIDFunc func(ctx context.Context, keycloakID, chatID string) error
}

func (m *mockUserService) FindOrCreate(ctx context.Context, keycloakID, email, username string) (*model.User, error) {
	if m.findOrCreateFunc != nil {
		return m.findOrCreateFunc(ctx, keycloakID, email, username)
	}
	return &model.User{ID: "user-1", KeycloakID: keycloakID, Email: email, Username: username}, nil
}

func (m *mockUserService) UpdateChatID(ctx context.Context, keycloakID, chatID string) error {
	if m.updateChatIDFunc != nil {
		return m.updateChatIDFunc(ctx, keycloakID, chatID)
	}
	return nil
}

func authedUserRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := middleware.ContextWithPrincipal(req.Context(), middleware.Principal{
		Subject:  "subject-1",
		Email:    "taro@example.com",
		Username: "taro",
	})
	return req.WithContext(ctx)
}

// TestUserHandler_Me_ReturnsUser は認証済みユーザーの情報が返ることを検証する。
func TestUserHandler_Me_ReturnsUser(t *testing.T) {
	service := &mockUserService{
		findOrCreateFunc: func(ctx context.Context, keycloakID, email, username string) (*model.User, error) {
			return &model.User{ID: "user-1", KeycloakID: keycloakID, Email: email, Username: username, ChatID: "chat1"}, nil
		},
	}
	h := NewUserHandler(service)

	req := authedUserRequest(http.MethodGet, "/api/users/me", "")
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp userResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ID != "user-1" || resp.Email != "taro@example.com" || resp.ChatID != "chat1" {
		t.Errorf("response = %+v", resp)
	}
}

// TestUserHandler_Me_Unauthenticated は認証主体なしで401が返ることを検証する。
func TestUserHandler_Me_Unauthenticated(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestUserHandler_UpdateChatID_Success は更新成功時に204が返ることを検証する。
func TestUserHandler_UpdateChatID_Success(t *testing.T) {
	var gotSubject, gotChatID string
	provisioned := false
	service := &mockUserService{
		findOrCreateFunc: func(ctx context.Context, keycloakID, email, username string) (*model.User, error) {
			provisioned = true
			return &model.User{ID: "user-1", KeycloakID: keycloakID}, nil
		},
		updateChatIDFunc: func(ctx context.Context, keycloakID, chatID string) error {
			gotSubject, gotChatID = keycloakID, chatID
			return nil
		},
	}
	h := NewUserHandler(service)

	req := authedUserRequest(http.MethodPut, "/api/users/me/chat", `{"chat_id":"chat1"}`)
	w := httptest.NewRecorder()

	h.UpdateChatID(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !provisioned {
		t.Error("更新前にローカルユーザーが解決されていない")
	}
	if gotSubject != "subject-1" || gotChatID != "chat1" {
		t.Errorf("service called with (%s, %s)", gotSubject, gotChatID)
	}
}

// TestUserHandler_UpdateChatID_EmptyChatID は空のチャットIDで400が返ることを検証する。
func TestUserHandler_UpdateChatID_EmptyChatID(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := authedUserRequest(http.MethodPut, "/api/users/me/chat", `{"chat_id":""}`)
	w := httptest.NewRecorder()

	h.UpdateChatID(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
