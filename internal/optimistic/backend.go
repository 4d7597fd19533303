package optimistic

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	// initialBackoff はリトライの初回遅延。
	initialBackoff = 100 * time.Millisecond
	// maxBackoff はリトライの最大遅延。
	maxBackoff = 2 * time.Second
	// defaultMaxAttempts は失敗確定までの最大試行回数。
	defaultMaxAttempts = 3
)

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回100ms、2倍ずつ増加、最大2秒。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// RetryingBackend は一時的な失敗を指数バックオフでリトライしてから
// 失敗を確定させるバックエンドラッパー。
type RetryingBackend struct {
	inner       Backend
	maxAttempts int
	sleep       func(time.Duration) // テストで差し替え可能
}

// NewRetryingBackend はRetryingBackendの新しいインスタンスを生成する。
// maxAttemptsが0以下の場合はデフォルト値を使う。
func NewRetryingBackend(inner Backend, maxAttempts int) *RetryingBackend {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &RetryingBackend{
		inner:       inner,
		maxAttempts: maxAttempts,
		sleep:       time.Sleep,
	}
}

// Do は内側のバックエンドを最大maxAttempts回試行する。
// 全試行が失敗した場合のみエラーを返す。
func (r *RetryingBackend) Do(ctx context.Context, operation string) error {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			r.sleep(CalculateBackoff(attempt - 1))
		}
		if lastErr = r.inner.Do(ctx, operation); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("バッキングコールが%d回連続で失敗しました: %w", r.maxAttempts, lastErr)
}

// SimulatedBackend はリモートコラボレーターのシミュレーション実装。
// デモアプリにはサーバーが存在しないため、設定可能なレイテンシと
// 失敗率でネットワーク呼び出しを模擬する。
type SimulatedBackend struct {
	latency     time.Duration
	failureRate float64 // 0.0〜1.0

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedBackend はSimulatedBackendの新しいインスタンスを生成する。
func NewSimulatedBackend(latency time.Duration, failureRate float64) *SimulatedBackend {
	return &SimulatedBackend{
		latency:     latency,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do はレイテンシ分待機した後、失敗率に従って成功または失敗を返す。
func (b *SimulatedBackend) Do(ctx context.Context, operation string) error {
	if b.latency > 0 {
		timer := time.NewTimer(b.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	roll := b.rng.Float64()
	b.mu.Unlock()

	if roll < b.failureRate {
		return fmt.Errorf("simulated remote failure for %s", operation)
	}
	return nil
}

// FailureLog はスレッドセーフな失敗通知の蓄積先。
// プレゼンテーション層が未読通知として取り出す。
type FailureLog struct {
	mu      sync.Mutex
	notices []FailureNotice
}

// NewFailureLog はFailureLogの新しいインスタンスを生成する。
func NewFailureLog() *FailureLog {
	return &FailureLog{}
}

// NotifyFailure は失敗通知を記録する。Notifierを実装する。
func (l *FailureLog) NotifyFailure(notice FailureNotice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, notice)
}

// Drain は蓄積された通知をすべて取り出してクリアする。
func (l *FailureLog) Drain() []FailureNotice {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.notices
	l.notices = nil
	return out
}
