package exchange

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDisposeRunsTeardownOnce(t *testing.T) {
	var count int32
	sub := NewAsyncSubscription(func() error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	if err := sub.Dispose(); err != nil {
		t.Fatalf("首次释放不应报错: %v", err)
	}
	if err := sub.Dispose(); err != nil {
		t.Fatalf("重复释放不应报错: %v", err)
	}
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("清理动作应只执行一次, 实际执行 %d 次", got)
	}
}

func TestConcurrentDisposeSameOutcome(t *testing.T) {
	var count int32
	teardownErr := errors.New("清理失败")
	sub := NewAsyncSubscription(func() error {
		// 放大竞态窗口
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&count, 1)
		return teardownErr
	})

	const n = 32
	results := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = sub.Dispose()
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("并发释放时清理动作应只执行一次, 实际执行 %d 次", got)
	}
	for i, err := range results {
		if !errors.Is(err, teardownErr) {
			t.Errorf("第 %d 个调用方应拿到同一个清理结果, 实际: %v", i, err)
		}
	}
}

func TestDisposeTeardownPanic(t *testing.T) {
	sub := NewAsyncSubscription(func() error {
		panic("清理炸了")
	})

	err := sub.Dispose()
	if err == nil {
		t.Fatal("清理动作 panic 时 Dispose 应返回错误")
	}

	// panic 过的句柄依然算已释放，重复释放拿到同一个错误
	if err2 := sub.Dispose(); err2 == nil || err2.Error() != err.Error() {
		t.Errorf("重复释放应拿到同一个错误, 期望 %v, 实际 %v", err, err2)
	}
}

func TestFinishEstablishCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var disposed atomic.Bool
	sub := NewAsyncSubscription(func() error {
		disposed.Store(true)
		return nil
	})
	binding := NewCancelBinding()

	err := FinishEstablish(ctx, "test.channel", sub, binding, func(error) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("取消信号已置位时应报告取消, 实际: %v", err)
	}
	if !disposed.Load() {
		t.Error("取消信号已置位时应立即整体回收")
	}
}

func TestFinishEstablishLiveThenCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	disposedCh := make(chan struct{})
	var once sync.Once
	sub := NewAsyncSubscription(func() error {
		once.Do(func() { close(disposedCh) })
		return nil
	})
	binding := NewCancelBinding()

	if err := FinishEstablish(ctx, "test.channel", sub, binding, func(error) {}); err != nil {
		t.Fatalf("建立成功不应报错: %v", err)
	}

	cancel()

	select {
	case <-disposedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("取消信号触发后订阅应被异步释放")
	}
}

func TestCancelBindingReleaseStopsWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count int32
	sub := NewAsyncSubscription(func() error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	binding := NewCancelBinding()
	binding.Watch(ctx, "test.channel", sub, func(error) {})

	// 先释放句柄再取消 ctx，监听协程不应重复触发清理
	if err := sub.Dispose(); err != nil {
		t.Fatalf("释放失败: %v", err)
	}
	binding.Release()
	cancel()

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("清理动作应只执行一次, 实际执行 %d 次", got)
	}
}

func TestCancelBindingReleaseIdempotent(t *testing.T) {
	binding := NewCancelBinding()
	binding.Release()
	// 重复解除不应 panic
	binding.Release()
}

func TestWatchNilContext(t *testing.T) {
	sub := NewAsyncSubscription(func() error { return nil })
	binding := NewCancelBinding()
	// 不可取消的 ctx 不注册监听，不应 panic
	binding.Watch(context.Background(), "test.channel", sub, func(error) {})
}
