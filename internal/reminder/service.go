// Package reminder はリマインダー管理のドメインロジックを提供する。
// すべての操作は認証済みsubjectをローカルユーザーに解決してから、
// 所有者スコープでリマインダーにアクセスする。
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/remindman/internal/model"
	"github.com/hitoshi/remindman/internal/repository"
	"github.com/hitoshi/remindman/internal/search"
)

// OwnerResolver は認証済みsubjectからローカルユーザーを解決するインターフェース。
// userパッケージのServiceの部分集合として定義する。
type OwnerResolver interface {
	// FindByKeycloakID はsubject idでユーザーを取得する。
	// 見つからない場合はUserNotFoundを返す。
	FindByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error)
}

// TextSanitizer はタイトル・説明のサニタイズインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Service はリマインダー管理のサービス層。
type Service struct {
	reminderRepo repository.ReminderRepository
	owners       OwnerResolver
	sanitizer    TextSanitizer
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	reminderRepo repository.ReminderRepository,
	owners OwnerResolver,
	sanitizer TextSanitizer,
	logger *slog.Logger,
) *Service {
	return &Service{
		reminderRepo: reminderRepo,
		owners:       owners,
		sanitizer:    sanitizer,
		logger:       logger,
	}
}

// Create は認証済みsubjectのリマインダーを作成する。
// タイトル・説明はHTMLを除去したプレーンテキストとして保存する。
func (s *Service) Create(ctx context.Context, keycloakID, title, description string, remindAt time.Time) (*model.Reminder, error) {
	owner, err := s.owners.FindByKeycloakID(ctx, keycloakID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	reminder := &model.Reminder{
		ID:          uuid.New().String(),
		Title:       s.sanitizer.Sanitize(title),
		Description: s.sanitizer.Sanitize(description),
		RemindAt:    remindAt,
		Notified:    false,
		UserID:      owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.reminderRepo.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("リマインダーの作成に失敗しました: %w", err)
	}

	s.logger.Info("リマインダーを作成しました",
		slog.String("reminder_id", reminder.ID),
		slog.String("user_id", owner.ID),
	)

	return reminder, nil
}

// Get は所有者スコープでリマインダーを取得する。
// IDが存在しても所有者が異なる場合は存在を漏らさないためReminderNotFoundを返す。
func (s *Service) Get(ctx context.Context, keycloakID, reminderID string) (*model.Reminder, error) {
	owner, err := s.owners.FindByKeycloakID(ctx, keycloakID)
	if err != nil {
		return nil, err
	}

	reminder, err := s.reminderRepo.FindByIDAndUserID(ctx, reminderID, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("リマインダーの取得に失敗しました: %w", err)
	}
	if reminder == nil {
		return nil, model.NewReminderNotFoundError(reminderID)
	}

	return reminder, nil
}

// Update は所有者スコープでリマインダーのタイトル・説明・通知予定日時を更新する。
// notifiedフラグはこの操作では変更されない。
func (s *Service) Update(ctx context.Context, keycloakID, reminderID, title, description string, remindAt time.Time) (*model.Reminder, error) {
	reminder, err := s.Get(ctx, keycloakID, reminderID)
	if err != nil {
		return nil, err
	}

	reminder.Title = s.sanitizer.Sanitize(title)
	reminder.Description = s.sanitizer.Sanitize(description)
	reminder.RemindAt = remindAt
	reminder.UpdatedAt = time.Now()

	if err := s.reminderRepo.Update(ctx, reminder); err != nil {
		return nil, fmt.Errorf("リマインダーの更新に失敗しました: %w", err)
	}

	return reminder, nil
}

// Delete は所有者スコープでリマインダーを削除する。
func (s *Service) Delete(ctx context.Context, keycloakID, reminderID string) error {
	reminder, err := s.Get(ctx, keycloakID, reminderID)
	if err != nil {
		return err
	}

	if err := s.reminderRepo.Delete(ctx, reminder.ID); err != nil {
		return fmt.Errorf("リマインダーの削除に失敗しました: %w", err)
	}

	s.logger.Info("リマインダーを削除しました",
		slog.String("reminder_id", reminder.ID),
	)

	return nil
}

// Search はフィルタ・ソート・ページ窓を適用した検索結果と総件数を返す。
// 所有者述語はフィルタと無関係に常に適用され、他ユーザーのリマインダーが
// 結果に混ざることはない。総ページ数は ceil(総件数 / ページサイズ)。
// filter.PageSizeが1以上であることは境界層で検証済み。
func (s *Service) Search(ctx context.Context, keycloakID string, filter model.SearchFilter) (*model.ReminderPage, error) {
	owner, err := s.owners.FindByKeycloakID(ctx, keycloakID)
	if err != nil {
		return nil, err
	}

	spec := search.Build(filter, owner.ID)

	reminders, err := s.reminderRepo.Search(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("リマインダーの検索に失敗しました: %w", err)
	}

	total, err := s.reminderRepo.Count(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("リマインダーの件数取得に失敗しました: %w", err)
	}

	totalPages := (total + filter.PageSize - 1) / filter.PageSize

	return &model.ReminderPage{
		Reminders:     reminders,
		TotalElements: total,
		TotalPages:    totalPages,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	}, nil
}
