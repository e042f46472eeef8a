package user

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/remindman/internal/model"
)

// --- モック定義 ---

// mockUserRepo はUserRepositoryのテスト用モック。
type mockUserRepo struct {
	findByKeycloakIDFunc func(ctx context.Context, keycloakID string) (*model.User, error)
	upsertFunc           func(ctx context.Context, user *model.User) (*model.User, error)
	updateChatIDFunc     func(ctx context.Context, userID, chatID string) error
}

func (m *mockUserRepo) FindByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error) {
	if m.findByKeycloakIDFunc != nil {
		return m.findByKeycloakIDFunc(ctx, keycloakID)
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, user)
	}
	return user, nil
}

func (m *mockUserRepo) UpdateChatID(ctx context.Context, userID, chatID string) error {
	if m.updateChatIDFunc != nil {
		return m.updateChatIDFunc(ctx, userID, chatID)
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func TestFindOrCreate_ExistingUser(t *testing.T) {
	existing := &model.User{ID: "user-1", KeycloakID: "kc-1", Email: "a@example.com"}
	var upsertCalled bool

	repo := &mockUserRepo{
		findByKeycloakIDFunc: func(ctx context.Context, keycloakID string) (*model.User, error) {
			return existing, nil
		},
		upsertFunc: func(ctx context.Context, user *model.User) (*model.User, error) {
			upsertCalled = true
			return user, nil
		},
	}

	user, err := NewService(repo, newTestLogger()).FindOrCreate(context.Background(), "kc-1", "a@example.com", "taro")
	if err != nil {
		t.Fatalf("FindOrCreate error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("ID = %q, want user-1", user.ID)
	}
	if upsertCalled {
		t.Error("既存ユーザーに対してUpsertが呼ばれた")
	}
}

func TestFindOrCreate_NewUser(t *testing.T) {
	repo := &mockUserRepo{
		upsertFunc: func(ctx context.Context, user *model.User) (*model.User, error) {
			if user.ID == "" {
				t.Error("新規ユーザーにIDが割り当てられていない")
			}
			if user.KeycloakID != "kc-new" {
				t.Errorf("KeycloakID = %q, want kc-new", user.KeycloakID)
			}
			if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
				t.Error("タイムスタンプが設定されていない")
			}
			return user, nil
		},
	}

	user, err := NewService(repo, newTestLogger()).FindOrCreate(context.Background(), "kc-new", "b@example.com", "jiro")
	if err != nil {
		t.Fatalf("FindOrCreate error = %v", err)
	}
	if user.Email != "b@example.com" || user.Username != "jiro" {
		t.Errorf("user = %+v", user)
	}
}

func TestFindOrCreate_ConcurrentFirstLogin_ReturnsExistingRow(t *testing.T) {
	// 検索とUpsertの間に別リクエストが同一subjectを作成した場合でも、
	// Upsertは既存行を返すため重複は生まれない。
	raced := &model.User{ID: "winner", KeycloakID: "kc-1", CreatedAt: time.Now().Add(-time.Minute)}

	repo := &mockUserRepo{
		findByKeycloakIDFunc: func(ctx context.Context, keycloakID string) (*model.User, error) {
			return nil, nil
		},
		upsertFunc: func(ctx context.Context, user *model.User) (*model.User, error) {
			return raced, nil
		},
	}

	user, err := NewService(repo, newTestLogger()).FindOrCreate(context.Background(), "kc-1", "a@example.com", "taro")
	if err != nil {
		t.Fatalf("FindOrCreate error = %v", err)
	}
	if user.ID != "winner" {
		t.Errorf("ID = %q, want winner（先勝ちの既存行）", user.ID)
	}
}

func TestFindByKeycloakID_NotFound(t *testing.T) {
	repo := &mockUserRepo{}

	_, err := NewService(repo, newTestLogger()).FindByKeycloakID(context.Background(), "unknown")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("err = %v, want UserNotFound", err)
	}
}

func TestUpdateChatID_ResolvesUserBySubject(t *testing.T) {
	repo := &mockUserRepo{
		findByKeycloakIDFunc: func(ctx context.Context, keycloakID string) (*model.User, error) {
			return &model.User{ID: "user-1", KeycloakID: keycloakID}, nil
		},
		updateChatIDFunc: func(ctx context.Context, userID, chatID string) error {
			if userID != "user-1" || chatID != "chat-42" {
				t.Errorf("UpdateChatID(%q, %q)", userID, chatID)
			}
			return nil
		},
	}

	if err := NewService(repo, newTestLogger()).UpdateChatID(context.Background(), "kc-1", "chat-42"); err != nil {
		t.Fatalf("UpdateChatID error = %v", err)
	}
}
