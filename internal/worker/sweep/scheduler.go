// Package sweep はリマインダー通知のバックグラウンドスイープ処理を提供する。
// 固定周期のタイマーで通知対象を検出し、通知チャネル経由で配信して
// 通知済みフラグを永続化する。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/remindman/internal/repository"
)

// NotificationChannel は通知配信のインターフェース。
// 配信エラーはチャネル側で握りつぶされ、呼び出し側には伝播しない。
type NotificationChannel interface {
	Send(ctx context.Context, address, text string)
}

// Metrics はスイープのメトリクス収集インターフェース。
type Metrics interface {
	// RecordSweepDuration は1スイープの所要時間を記録する。
	RecordSweepDuration(d time.Duration)
	// RecordDispatch は通知配信1件を記録する。
	RecordDispatch()
	// RecordSkippedNoAddress は通知先未設定によるスキップ1件を記録する。
	RecordSkippedNoAddress()
}

// Scheduler はリマインダー通知のスケジューリングを行う。
// 固定周期のティッカーで通知対象を取得し、1件ずつ順に配信してマークする。
// 単一ワーカーで動作し、スイープ自身の所要時間が周期を超えても
// 同一の通知対象に対して2つのスイープが並行することはない。
type Scheduler struct {
	reminderRepo repository.ReminderRepository
	channel      NotificationChannel
	logger       *slog.Logger
	metrics      Metrics

	// running はスイープの多重実行を防ぐ単一飛行ロック。
	running sync.Mutex
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// metricsはnilでもよい（収集なしで動作する）。
func NewScheduler(
	reminderRepo repository.ReminderRepository,
	channel NotificationChannel,
	logger *slog.Logger,
	metrics Metrics,
) *Scheduler {
	return &Scheduler{
		reminderRepo: reminderRepo,
		channel:      channel,
		logger:       logger,
		metrics:      metrics,
	}
}

// Start は指定周期のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("通知スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("通知スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("通知スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("通知スイープの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は通知対象のリマインダーを1回スイープする。
// 前回のスイープがまだ実行中の場合は何もせずに返る（多重実行の防止）。
// 各リマインダーは順に処理され、配信結果に関わらず通知済みとしてマークされる。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.TryLock() {
		s.logger.Warn("前回のスイープが実行中のためスキップします")
		return nil
	}
	defer s.running.Unlock()

	start := time.Now()

	due, err := s.reminderRepo.ListDue(ctx, start)
	if err != nil {
		return err
	}

	// 空振りのスイープもヒストグラムに含める
	if len(due) == 0 {
		if s.metrics != nil {
			s.metrics.RecordSweepDuration(time.Since(start))
		}
		return nil
	}

	s.logger.Info("通知スイープを開始します",
		slog.Int("due_count", len(due)),
	)

	for _, reminder := range due {
		if err := s.processReminder(ctx, reminder); err != nil {
			s.logger.Error("リマインダーの通知処理に失敗しました",
				slog.String("reminder_id", reminder.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordSweepDuration(duration)
	}

	s.logger.Info("通知スイープが完了しました",
		slog.Int("due_count", len(due)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// processReminder は1件のリマインダーを配信して通知済みとしてマークする。
//
// マークは配信呼び出しが返った後に無条件で行う。チャネルは自身の配信エラーを
// 握りつぶすため、正味の保証はat-most-once（チャネル障害時は黙って失われ、
// 再配信はない）。確認済み配信への切り替えはこの関数の配信とマークの間に
// 成否判定を挟むだけでよく、スイープループには手を入れない。
func (s *Scheduler) processReminder(ctx context.Context, reminder *repository.DueReminder) error {
	if reminder.ChatID == "" {
		if s.metrics != nil {
			s.metrics.RecordSkippedNoAddress()
		}
		s.logger.Warn("通知先が未設定のため配信をスキップします",
			slog.String("reminder_id", reminder.ID),
			slog.String("user_id", reminder.UserID),
		)
	} else {
		s.channel.Send(ctx, reminder.ChatID, FormatMessage(reminder))
		if s.metrics != nil {
			s.metrics.RecordDispatch()
		}
	}

	if err := s.reminderRepo.MarkNotified(ctx, reminder.ID); err != nil {
		return fmt.Errorf("通知済みフラグの永続化に失敗しました: %w", err)
	}

	return nil
}

// FormatMessage は通知メッセージ本文を生成する。
// タイトル・説明・通知予定日時の3値を定型レイアウトに埋め込む。
func FormatMessage(reminder *repository.DueReminder) string {
	return fmt.Sprintf(
		"🔔 リマインダー: %s\n📝 %s\n⏰ 時刻: %s",
		reminder.Title,
		reminder.Description,
		reminder.RemindAt.Format("2006-01-02 15:04"),
	)
}
