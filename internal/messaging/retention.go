package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// retentionSchedule は既読通知の削除ジョブの実行スケジュール。
const retentionSchedule = "@daily"

// retentionTimeout は削除ジョブ1回あたりのタイムアウト。
const retentionTimeout = time.Minute

// startRetention は既読通知を定期的に削除するジョブを開始する。
// 呼び出し元は終了時にStopを呼び出すこと。
func (s *Server) startRetention() (*cron.Cron, error) {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(retentionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), retentionTimeout)
		defer cancel()
		if _, err := s.purgeReadNotifications(ctx, time.Now()); err != nil {
			s.log.Error("既読通知の削除に失敗", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("通知削除ジョブの登録に失敗: %w", err)
	}
	scheduler.Start()
	return scheduler, nil
}

// purgeReadNotifications は保持期間を過ぎた既読通知を削除し、削除件数を返す。
func (s *Server) purgeReadNotifications(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.retention)
	deleted, err := s.queries.DeleteReadNotificationsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info("既読通知を削除しました",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
	return deleted, nil
}
