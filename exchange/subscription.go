package exchange

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"exgate/logger"
	"exgate/metrics"
)

// AsyncSubscription 订阅句柄：保证清理动作最多执行一次、执行到底。
// 无论是显式 Dispose、ctx 取消触发，还是建立阶段失败回滚，都走同一条清理路径。
//
// 用一次 CAS 抢占执行权：恰好一个调用路径赢得执行清理动作的权利，
// 其余并发的 Dispose 等待胜者的结果；清理动作失败也算"已释放"，不重试。
type AsyncSubscription struct {
	teardown func() error
	claimed  atomic.Bool
	done     chan struct{}
	err      error
}

// NewAsyncSubscription 创建订阅句柄；teardown 负责释放该订阅持有的全部资源
// （取消监听、交易所推送流、底层连接/客户端）
func NewAsyncSubscription(teardown func() error) *AsyncSubscription {
	return &AsyncSubscription{
		teardown: teardown,
		done:     make(chan struct{}),
	}
}

// Dispose 幂等释放：可被任意多个协程并发调用，
// 清理动作只执行一次，所有调用方拿到同一个结果
func (s *AsyncSubscription) Dispose() error {
	if s.claimed.CompareAndSwap(false, true) {
		s.run()
	} else {
		<-s.done
	}
	return s.err
}

// run 执行清理动作（带 panic 保护，结果对所有等待者可见）
func (s *AsyncSubscription) run() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.err = fmt.Errorf("清理动作 panic: %v", r)
		}
	}()

	if s.teardown != nil {
		s.err = s.teardown()
	}
}

// CancelBinding 把调用方的取消信号（ctx）与句柄释放绑定起来。
// 释放动作在独立协程里触发，绝不在取消通知的调用栈上同步执行，
// 避免与建立阶段互相死锁。
type CancelBinding struct {
	stop chan struct{}
	once sync.Once
}

// NewCancelBinding 创建取消绑定；在构造清理闭包之前创建，
// 这样清理路径无论何时执行都能解除监听
func NewCancelBinding() *CancelBinding {
	return &CancelBinding{stop: make(chan struct{})}
}

// Release 解除监听（幂等）；由清理动作调用
func (b *CancelBinding) Release() {
	b.once.Do(func() { close(b.stop) })
}

// Watch 开始监听 ctx；ctx 取消时在监听协程里触发 sub.Dispose()，
// 释放过程中的错误送到调用方的错误回调
func (b *CancelBinding) Watch(ctx context.Context, channel string, sub ISubscription, onError ErrorCallback) {
	if ctx == nil || ctx.Done() == nil {
		return
	}

	go func() {
		select {
		case <-ctx.Done():
			logger.Debug("🛑 [%s] 取消信号触发，释放订阅", channel)
			if err := sub.Dispose(); err != nil {
				SafeOnError(channel, err, onError)
			}
		case <-b.stop:
		}
	}()
}

// FinishEstablish 建立成功后的收尾（Establishing→Live 边界的两个竞态在这里解决）：
//   - 建立完成时取消信号已置位：立即整体回收，向调用方报告取消而不是返回活句柄；
//   - 取消与建立并发：注册异步释放监听，之后才算 Live。
//
// 返回 nil 表示订阅进入 Live。
func FinishEstablish(ctx context.Context, channel string, sub ISubscription, binding *CancelBinding, onError ErrorCallback) error {
	if ctx.Err() != nil {
		if err := sub.Dispose(); err != nil {
			SafeOnError(channel, err, onError)
		}
		return ctx.Err()
	}

	binding.Watch(ctx, channel, sub, onError)
	metrics.RecordSubscriptionOpened(channel)
	return nil
}
