package exchange

import (
	"fmt"

	"exgate/logger"
	"exgate/metrics"
)

// SafeInvoke 错误隔离边界：在隔离环境里执行调用方的成功回调。
// 回调抛出的 panic 会被转成 error 交给调用方的错误回调，绝不会穿透到
// 订阅引擎的分发协程里；不做重试。channel 仅用于日志与指标，如 "binance.kline"。
func SafeInvoke(channel string, fn func(), onError ErrorCallback) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordCallbackFault(channel)
			SafeOnError(channel, fmt.Errorf("回调 panic: %v", r), onError)
		}
	}()

	fn()
	metrics.RecordPushEvent(channel)
}

// SafeOnError 错误回调的最后一道防线：错误回调自身 panic 时只能吞掉，
// 没有更下游的通道可以上报了。
func SafeOnError(channel string, err error, onError ErrorCallback) {
	defer func() {
		if r := recover(); r != nil {
			// 只记日志，不再向外传播
			logger.Warn("⚠️ [%s] 错误回调自身 panic: %v（原始错误: %v）", channel, r, err)
		}
	}()

	if onError != nil {
		onError(err)
	}
}
