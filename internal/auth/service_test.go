package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hitoshi/remindman/internal/model"
)

// --- モック定義 ---

// mockIdentityClient はIdentityClientのテスト用モック。
type mockIdentityClient struct {
	adminAuthenticateFunc func(ctx context.Context) (*model.TokenSet, error)
	createAccountFunc     func(ctx context.Context, adminToken, username, email string) (string, error)
	setCredentialsFunc    func(ctx context.Context, adminToken, subjectID, password string) error
	assignRoleFunc        func(ctx context.Context, adminToken, subjectID, roleName string) error
	authenticateFunc      func(ctx context.Context, username, password string) (*model.TokenSet, error)

	calls []string
}

func (m *mockIdentityClient) AdminAuthenticate(ctx context.Context) (*model.TokenSet, error) {
	m.calls = append(m.calls, "AdminAuthenticate")
	if m.adminAuthenticateFunc != nil {
		return m.adminAuthenticateFunc(ctx)
	}
	return &model.TokenSet{AccessToken: "admin-token"}, nil
}

func (m *mockIdentityClient) CreateAccount(ctx context.Context, adminToken, username, email string) (string, error) {
	m.calls = append(m.calls, "CreateAccount")
	if m.createAccountFunc != nil {
		return m.createAccountFunc(ctx, adminToken, username, email)
	}
	return "subject-123", nil
}

func (m *mockIdentityClient) SetCredentials(ctx context.Context, adminToken, subjectID, password string) error {
	m.calls = append(m.calls, "SetCredentials")
	if m.setCredentialsFunc != nil {
		return m.setCredentialsFunc(ctx, adminToken, subjectID, password)
	}
	return nil
}

func (m *mockIdentityClient) AssignRole(ctx context.Context, adminToken, subjectID, roleName string) error {
	m.calls = append(m.calls, "AssignRole")
	if m.assignRoleFunc != nil {
		return m.assignRoleFunc(ctx, adminToken, subjectID, roleName)
	}
	return nil
}

func (m *mockIdentityClient) Authenticate(ctx context.Context, username, password string) (*model.TokenSet, error) {
	m.calls = append(m.calls, "Authenticate")
	if m.authenticateFunc != nil {
		return m.authenticateFunc(ctx, username, password)
	}
	return &model.TokenSet{AccessToken: "user-token"}, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// --- Registerのテスト ---

func TestRegister_Success_CallsStepsInOrder(t *testing.T) {
	client := &mockIdentityClient{}
	svc := NewService(client, newTestLogger())

	subjectID, err := svc.Register(context.Background(), "taro", "taro@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Register error = %v", err)
	}
	if subjectID != "subject-123" {
		t.Errorf("subjectID = %q, want subject-123", subjectID)
	}

	want := []string{"AdminAuthenticate", "CreateAccount", "SetCredentials", "AssignRole"}
	if len(client.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", client.calls, want)
	}
	for i, call := range want {
		if client.calls[i] != call {
			t.Errorf("calls[%d] = %q, want %q", i, client.calls[i], call)
		}
	}
}

func TestRegister_PassesAdminTokenAndSubjectIDThrough(t *testing.T) {
	client := &mockIdentityClient{
		adminAuthenticateFunc: func(ctx context.Context) (*model.TokenSet, error) {
			return &model.TokenSet{AccessToken: "at-1"}, nil
		},
		createAccountFunc: func(ctx context.Context, adminToken, username, email string) (string, error) {
			if adminToken != "at-1" {
				t.Errorf("CreateAccount adminToken = %q, want at-1", adminToken)
			}
			return "sub-9", nil
		},
		setCredentialsFunc: func(ctx context.Context, adminToken, subjectID, password string) error {
			if adminToken != "at-1" || subjectID != "sub-9" || password != "s3cret" {
				t.Errorf("SetCredentials(%q, %q, %q)", adminToken, subjectID, password)
			}
			return nil
		},
		assignRoleFunc: func(ctx context.Context, adminToken, subjectID, roleName string) error {
			if subjectID != "sub-9" || roleName != "user" {
				t.Errorf("AssignRole(%q, %q)", subjectID, roleName)
			}
			return nil
		},
	}

	subjectID, err := NewService(client, newTestLogger()).Register(context.Background(), "taro", "taro@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Register error = %v", err)
	}
	if subjectID != "sub-9" {
		t.Errorf("subjectID = %q, want sub-9", subjectID)
	}
}

func TestRegister_AdminAuthFailure_StopsSequence(t *testing.T) {
	client := &mockIdentityClient{
		adminAuthenticateFunc: func(ctx context.Context) (*model.TokenSet, error) {
			return nil, model.NewIdentityUnavailableError(errors.New("connection refused"))
		},
	}

	_, err := NewService(client, newTestLogger()).Register(context.Background(), "taro", "taro@example.com", "s3cret")
	if err == nil {
		t.Fatal("エラーが返るべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRegistrationFailed {
		t.Errorf("err = %v, want RegistrationFailed", err)
	}

	// 後続ステップは呼び出されない
	if len(client.calls) != 1 {
		t.Errorf("calls = %v, want [AdminAuthenticate]", client.calls)
	}
}

func TestRegister_CredentialFailure_NoCompensation(t *testing.T) {
	// ステップ3が失敗してもステップ2で作成したアカウントの削除は行わない。
	// 外部にはパスワード未設定のアカウントが残る（既知の最高リスク障害モード）。
	var accountCreated bool
	credErr := model.NewCredentialUpdateFailedError(errors.New("status 500"))

	client := &mockIdentityClient{
		createAccountFunc: func(ctx context.Context, adminToken, username, email string) (string, error) {
			accountCreated = true
			return "orphan-sub", nil
		},
		setCredentialsFunc: func(ctx context.Context, adminToken, subjectID, password string) error {
			return credErr
		},
	}

	_, err := NewService(client, newTestLogger()).Register(context.Background(), "taro", "taro@example.com", "s3cret")
	if err == nil {
		t.Fatal("エラーが返るべき")
	}

	if !accountCreated {
		t.Error("アカウントは作成されているべき")
	}

	// 根本原因が保持されている
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRegistrationFailed {
		t.Fatalf("err = %v, want RegistrationFailed", err)
	}
	if !errors.Is(err, credErr) {
		t.Error("RegistrationFailedは根本原因を保持するべき")
	}

	// 補償削除・ロール割り当てなどの追加呼び出しはない
	want := []string{"AdminAuthenticate", "CreateAccount", "SetCredentials"}
	if len(client.calls) != len(want) {
		t.Errorf("calls = %v, want %v", client.calls, want)
	}
}

func TestRegister_RoleAssignmentFailure_IsSwallowed(t *testing.T) {
	client := &mockIdentityClient{
		assignRoleFunc: func(ctx context.Context, adminToken, subjectID, roleName string) error {
			return errors.New("role mapping endpoint down")
		},
	}

	// ロール割り当ての失敗があっても登録は成功として報告される
	subjectID, err := NewService(client, newTestLogger()).Register(context.Background(), "taro", "taro@example.com", "s3cret")
	if err != nil {
		t.Fatalf("ロール割り当て失敗は登録を失敗させるべきではない: %v", err)
	}
	if subjectID != "subject-123" {
		t.Errorf("subjectID = %q, want subject-123", subjectID)
	}
}

// --- Loginのテスト ---

func TestLogin_Success(t *testing.T) {
	client := &mockIdentityClient{
		authenticateFunc: func(ctx context.Context, username, password string) (*model.TokenSet, error) {
			if username != "taro" || password != "s3cret" {
				t.Errorf("Authenticate(%q, %q)", username, password)
			}
			return &model.TokenSet{AccessToken: "tok", RefreshToken: "ref", ExpiresIn: 300, TokenType: "Bearer"}, nil
		},
	}

	tokens, err := NewService(client, newTestLogger()).Login(context.Background(), "taro", "s3cret")
	if err != nil {
		t.Fatalf("Login error = %v", err)
	}
	if tokens.AccessToken != "tok" || tokens.TokenType != "Bearer" {
		t.Errorf("tokens = %+v", tokens)
	}
}

func TestLogin_InvalidCredentials_Surfaced(t *testing.T) {
	client := &mockIdentityClient{
		authenticateFunc: func(ctx context.Context, username, password string) (*model.TokenSet, error) {
			return nil, model.NewInvalidCredentialsError(errors.New("invalid_grant"))
		},
	}

	_, err := NewService(client, newTestLogger()).Login(context.Background(), "taro", "wrong")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("err = %v, want InvalidCredentials", err)
	}
}
