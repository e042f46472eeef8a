// Package user はユーザー管理のドメインロジックを提供する。
// 外部IdPのsubject idとローカルのユーザーレコードの対応付けを担う。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/remindman/internal/model"
	"github.com/hitoshi/remindman/internal/repository"
)

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, logger *slog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		logger:   logger,
	}
}

// FindOrCreate はKeycloakのsubject idでユーザーを取得し、
// 未登録の場合は新規作成する。初めて認証済みリクエストが到着したsubjectに
// 対して遅延的にレコードを作成する冪等な操作。
// リポジトリのUpsertは単一の条件付きINSERTのため、同一subjectの
// 並行初回ログインでも重複レコードは生まれない。
func (s *Service) FindOrCreate(ctx context.Context, keycloakID, email, username string) (*model.User, error) {
	existing, err := s.userRepo.FindByKeycloakID(ctx, keycloakID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	user, err := s.userRepo.Upsert(ctx, &model.User{
		ID:         uuid.New().String(),
		KeycloakID: keycloakID,
		Email:      email,
		Username:   username,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	if user.CreatedAt.Equal(now) {
		s.logger.Info("新規ユーザーを作成しました",
			slog.String("user_id", user.ID),
			slog.String("keycloak_id", keycloakID),
		)
	}

	return user, nil
}

// FindByKeycloakID はKeycloakのsubject idでユーザーを取得する。
// 見つからない場合はUserNotFoundを返す。
func (s *Service) FindByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error) {
	user, err := s.userRepo.FindByKeycloakID(ctx, keycloakID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateChatID はユーザーの通知先チャットIDを設定する。
func (s *Service) UpdateChatID(ctx context.Context, keycloakID, chatID string) error {
	user, err := s.FindByKeycloakID(ctx, keycloakID)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdateChatID(ctx, user.ID, chatID); err != nil {
		return fmt.Errorf("チャットIDの更新に失敗しました: %w", err)
	}

	s.logger.Info("通知先チャットIDを更新しました",
		slog.String("user_id", user.ID),
	)
	return nil
}
