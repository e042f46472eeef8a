// Package auth はユーザー登録オーケストレーションとログインを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/remindman/internal/model"
)

// userRole は登録時に割り当てるレルムロール名。
const userRole = "user"

// IdentityClient はIdP操作のインターフェース。
// identityパッケージのKeycloakクライアントの部分集合として定義する。
type IdentityClient interface {
	// AdminAuthenticate は管理者トークンを取得する。
	AdminAuthenticate(ctx context.Context) (*model.TokenSet, error)
	// CreateAccount は新規アカウントを作成し、subject idを返す。
	CreateAccount(ctx context.Context, adminToken, username, email string) (string, error)
	// SetCredentials はアカウントの恒久パスワードを設定する。
	SetCredentials(ctx context.Context, adminToken, subjectID, password string) error
	// AssignRole はレルムロールを割り当てる。存在しないロールはソフトフェイル。
	AssignRole(ctx context.Context, adminToken, subjectID, roleName string) error
	// Authenticate はユーザーログインを行い、トークン一式を返す。
	Authenticate(ctx context.Context, username, password string) (*model.TokenSet, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	identity IdentityClient
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(identity IdentityClient, logger *slog.Logger) *Service {
	return &Service{
		identity: identity,
		logger:   logger,
	}
}

// Register は新規ユーザーをIdPに登録し、作成されたアカウントのsubject idを返す。
//
// 手順は厳密に順序付けられ、並列化されない:
//  1. 管理者認証
//  2. アカウント作成
//  3. パスワード設定（temporary=false）
//  4. "user"ロールの割り当て（失敗はソフトフェイルとして握りつぶす）
//
// ステップ1〜3はトランザクショナルではない。ステップ2成功後にステップ3が
// 失敗した場合、使用可能なパスワードのないアカウントが外部に残るが、
// 補償処理（削除）は行わない。各失敗は根本原因を保持した単一の
// RegistrationFailedに集約され、部分成功の値は返さない。
//
// 入力のusername/email/passwordは境界層で非空検証済み。
func (s *Service) Register(ctx context.Context, username, email, password string) (string, error) {
	// 1. 管理者認証
	adminTokens, err := s.identity.AdminAuthenticate(ctx)
	if err != nil {
		return "", model.NewRegistrationFailedError(fmt.Errorf("admin authentication: %w", err))
	}

	// 2. アカウント作成
	subjectID, err := s.identity.CreateAccount(ctx, adminTokens.AccessToken, username, email)
	if err != nil {
		return "", model.NewRegistrationFailedError(fmt.Errorf("account creation: %w", err))
	}

	// 3. パスワード設定
	if err := s.identity.SetCredentials(ctx, adminTokens.AccessToken, subjectID, password); err != nil {
		// アカウントは作成済みのまま残る。補償削除は行わず、原因を集約して返す。
		s.logger.Error("パスワード設定に失敗しました。アカウントは作成済みのまま残ります",
			slog.String("subject_id", subjectID),
			slog.String("error", err.Error()),
		)
		return "", model.NewRegistrationFailedError(fmt.Errorf("credential update: %w", err))
	}

	// 4. ロール割り当て（ベストエフォート）
	if err := s.identity.AssignRole(ctx, adminTokens.AccessToken, subjectID, userRole); err != nil {
		s.logger.Warn("ロール割り当てに失敗しましたが登録は続行します",
			slog.String("subject_id", subjectID),
			slog.String("role", userRole),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("ユーザー登録が完了しました",
		slog.String("subject_id", subjectID),
		slog.String("username", username),
	)

	return subjectID, nil
}

// Login はユーザー名とパスワードでログインし、トークン一式を返す。
// 認証失敗はInvalidCredentialsとして呼び出し側に表面化し、リトライしない。
func (s *Service) Login(ctx context.Context, username, password string) (*model.TokenSet, error) {
	tokens, err := s.identity.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ユーザーがログインしました",
		slog.String("username", username),
	)

	return tokens, nil
}
