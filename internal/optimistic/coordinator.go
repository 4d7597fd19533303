// Package optimistic はネットワークバックのコマンドの楽観的更新を調停する。
//
// 対象コマンド（いいね・フォロー・コメント・bio更新・投稿作成・チェックアウト）は
// ローカル状態遷移を同期的に即時適用し、バッキングコールを非同期で発行する。
// 失敗時は適用時に記録した正確な逆デルタを現在のライブ状態に適用して
// ロールバックし、失敗通知をちょうど1回発行する。成功時は楽観的状態が
// 既に正となっているため何もしない（バッキングコールは「増分」ではなく
// 「トグル結果」をエンコードしている前提）。
//
// 同一エンティティに対する未解決コールが重なった場合のデデュープは行わない:
// ロールバックは記録済みデルタの再適用であり、トグルの逆操作は同じトグルの
// ため、実質的にラストライター勝ちとなる。
// キャンセルはサポートしない。発行されたコールは必ず成功か失敗に解決される。
package optimistic

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/agora/internal/model"
)

// Backend はバッキングコールの発行先インターフェース。
type Backend interface {
	// Do は指定操作のバッキングコールを実行する。
	// 操作名はメトリクスとログの識別にのみ使われる。
	Do(ctx context.Context, operation string) error
}

// FailureNotice はバッキングコール失敗とロールバック完了の通知。
// プレゼンテーション層がユーザー向けフィードバックに使う。
type FailureNotice struct {
	Operation string          // 失敗した操作名
	Err       *model.APIError // REMOTE_UNAVAILABLE
}

// Notifier は失敗通知の受け口インターフェース。
type Notifier interface {
	NotifyFailure(notice FailureNotice)
}

// Metrics は楽観的更新のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type Metrics interface {
	RecordOptimisticRevert(operation string)
}

// Coordinator は楽観的更新の調停役。
type Coordinator struct {
	backend  Backend
	notifier Notifier // nil可
	metrics  Metrics  // nil可
	wg       sync.WaitGroup
}

// NewCoordinator はCoordinatorの新しいインスタンスを生成する。
func NewCoordinator(backend Backend, notifier Notifier, metrics Metrics) *Coordinator {
	return &Coordinator{
		backend:  backend,
		notifier: notifier,
		metrics:  metrics,
	}
}

// Execute は楽観的コマンドを実行する。
//
// applyはローカル状態遷移で、同期的に呼ばれる。applyがエラーを返した場合は
// バッキングコールを発行せずそのままエラーを返す（validate-then-apply）。
// applyの成功後、バッキングコールをゴルーチンで発行し、Executeは即座に戻る。
// コール失敗時はrevertを呼ぶ。revertはコールバック到着時点の現在状態に対して
// 記録済みデルタを適用する責務を持つ（適用時のスナップショットの復元ではない）。
func (c *Coordinator) Execute(ctx context.Context, operation string, apply func() error, revert func()) error {
	if err := apply(); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		// 発行済みコールはリクエストのキャンセルと無関係に必ず解決させる。
		callCtx := context.WithoutCancel(ctx)
		if err := c.backend.Do(callCtx, operation); err != nil {
			slog.Warn("バッキングコールが失敗したためロールバックします",
				slog.String("operation", operation),
				slog.String("error", err.Error()),
			)
			revert()
			if c.metrics != nil {
				c.metrics.RecordOptimisticRevert(operation)
			}
			if c.notifier != nil {
				c.notifier.NotifyFailure(FailureNotice{
					Operation: operation,
					Err:       model.NewRemoteUnavailableError(operation),
				})
			}
		}
	}()

	return nil
}

// Wait は発行済みの全バッキングコールの解決を待つ。テストとシャットダウン用。
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
