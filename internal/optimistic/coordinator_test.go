package optimistic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/agora/internal/model"
)

// mockBackend は結果を設定可能なBackend実装。
type mockBackend struct {
	doFn       func(ctx context.Context, operation string) error
	operations []string
}

func (m *mockBackend) Do(ctx context.Context, operation string) error {
	m.operations = append(m.operations, operation)
	if m.doFn != nil {
		return m.doFn(ctx, operation)
	}
	return nil
}

type mockRevertMetrics struct {
	reverts []string
}

func (m *mockRevertMetrics) RecordOptimisticRevert(operation string) {
	m.reverts = append(m.reverts, operation)
}

func TestExecute_ApplyFailureSkipsBackend(t *testing.T) {
	backend := &mockBackend{}
	c := NewCoordinator(backend, nil, nil)

	applyErr := errors.New("validation failed")
	err := c.Execute(context.Background(), "toggle_like", func() error { return applyErr }, func() {
		t.Error("revert must not be called when apply fails")
	})

	if !errors.Is(err, applyErr) {
		t.Errorf("Execute error = %v, want apply error", err)
	}
	c.Wait()
	if len(backend.operations) != 0 {
		t.Error("backend call must not be issued when apply fails")
	}
}

func TestExecute_SuccessDoesNotRevert(t *testing.T) {
	backend := &mockBackend{}
	c := NewCoordinator(backend, nil, nil)

	applied := false
	err := c.Execute(context.Background(), "toggle_like",
		func() error { applied = true; return nil },
		func() { t.Error("revert must not be called on success") },
	)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	c.Wait()

	if !applied {
		t.Error("apply should have run synchronously")
	}
	if len(backend.operations) != 1 || backend.operations[0] != "toggle_like" {
		t.Errorf("backend operations = %v, want [toggle_like]", backend.operations)
	}
}

func TestExecute_BackendFailureRevertsAndNotifies(t *testing.T) {
	backend := &mockBackend{
		doFn: func(ctx context.Context, operation string) error {
			return errors.New("remote down")
		},
	}
	log := NewFailureLog()
	m := &mockRevertMetrics{}
	c := NewCoordinator(backend, log, m)

	reverted := false
	err := c.Execute(context.Background(), "checkout",
		func() error { return nil },
		func() { reverted = true },
	)
	if err != nil {
		t.Fatalf("Execute should return nil before the backend resolves, got %v", err)
	}
	c.Wait()

	if !reverted {
		t.Error("revert should be called on backend failure")
	}
	if len(m.reverts) != 1 || m.reverts[0] != "checkout" {
		t.Errorf("revert metrics = %v, want [checkout]", m.reverts)
	}

	notices := log.Drain()
	if len(notices) != 1 {
		t.Fatalf("notice count = %d, want 1", len(notices))
	}
	if notices[0].Operation != "checkout" {
		t.Errorf("notice operation = %q, want checkout", notices[0].Operation)
	}
	if notices[0].Err.Code != model.ErrCodeRemoteUnavailable {
		t.Errorf("notice error code = %q, want %q", notices[0].Err.Code, model.ErrCodeRemoteUnavailable)
	}
}

func TestExecute_NilNotifierAndMetricsAreSafe(t *testing.T) {
	backend := &mockBackend{
		doFn: func(ctx context.Context, operation string) error {
			return errors.New("remote down")
		},
	}
	c := NewCoordinator(backend, nil, nil)

	err := c.Execute(context.Background(), "create_post",
		func() error { return nil },
		func() {},
	)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	c.Wait()
}

func TestExecute_BackendCallSurvivesRequestCancellation(t *testing.T) {
	done := make(chan error, 1)
	backend := &mockBackend{
		doFn: func(ctx context.Context, operation string) error {
			// リクエストコンテキストのキャンセルが伝播していないことを確認する
			done <- ctx.Err()
			return nil
		},
	}
	c := NewCoordinator(backend, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Execute(ctx, "add_comment", func() error { return nil }, func() {}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	c.Wait()

	if ctxErr := <-done; ctxErr != nil {
		t.Errorf("backend context should be detached from request cancellation, got %v", ctxErr)
	}
}

func TestCalculateBackoff_ExponentialWithCap(t *testing.T) {
	tests := []struct {
		consecutiveErrors int
		want              time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
		{5, 2 * time.Second},
		{10, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := CalculateBackoff(tt.consecutiveErrors); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.consecutiveErrors, got, tt.want)
		}
	}
}

func TestRetryingBackend_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	backend := &mockBackend{
		doFn: func(ctx context.Context, operation string) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		},
	}

	r := NewRetryingBackend(backend, 3)
	r.sleep = func(time.Duration) {}

	if err := r.Do(context.Background(), "checkout"); err != nil {
		t.Fatalf("Do returned error after eventual success: %v", err)
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
}

func TestRetryingBackend_ExhaustsAttempts(t *testing.T) {
	backend := &mockBackend{
		doFn: func(ctx context.Context, operation string) error {
			return errors.New("permanent")
		},
	}

	r := NewRetryingBackend(backend, 2)
	r.sleep = func(time.Duration) {}

	err := r.Do(context.Background(), "checkout")
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if len(backend.operations) != 2 {
		t.Errorf("attempts = %d, want 2", len(backend.operations))
	}
}

func TestRetryingBackend_DefaultsMaxAttempts(t *testing.T) {
	backend := &mockBackend{
		doFn: func(ctx context.Context, operation string) error {
			return errors.New("fail")
		},
	}

	r := NewRetryingBackend(backend, 0)
	r.sleep = func(time.Duration) {}

	r.Do(context.Background(), "op")
	if len(backend.operations) != 3 {
		t.Errorf("attempts = %d, want default 3", len(backend.operations))
	}
}

func TestSimulatedBackend_ZeroFailureRateAlwaysSucceeds(t *testing.T) {
	b := NewSimulatedBackend(0, 0)

	for i := 0; i < 20; i++ {
		if err := b.Do(context.Background(), "op"); err != nil {
			t.Fatalf("Do returned error with failure rate 0: %v", err)
		}
	}
}

func TestSimulatedBackend_FullFailureRateAlwaysFails(t *testing.T) {
	b := NewSimulatedBackend(0, 1.0)

	for i := 0; i < 20; i++ {
		if err := b.Do(context.Background(), "op"); err == nil {
			t.Fatal("Do should always fail with failure rate 1.0")
		}
	}
}

func TestSimulatedBackend_RespectsContextDuringLatency(t *testing.T) {
	b := NewSimulatedBackend(5*time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := b.Do(ctx, "op")
	if err == nil {
		t.Fatal("Do should return the context error when cancelled")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Do blocked for %v despite cancelled context", elapsed)
	}
}

func TestFailureLog_DrainClearsNotices(t *testing.T) {
	log := NewFailureLog()
	log.NotifyFailure(FailureNotice{Operation: "a"})
	log.NotifyFailure(FailureNotice{Operation: "b"})

	first := log.Drain()
	if len(first) != 2 {
		t.Fatalf("first drain count = %d, want 2", len(first))
	}
	if first[0].Operation != "a" || first[1].Operation != "b" {
		t.Errorf("notices = %+v, want order [a b]", first)
	}

	if second := log.Drain(); len(second) != 0 {
		t.Errorf("second drain count = %d, want 0", len(second))
	}
}
