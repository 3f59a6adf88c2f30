package bybit

import (
	"context"
	"errors"
	"testing"

	"exgate/exchange"
)

func discardError(error) {}

func TestSubscribeRejectsCanceledContext(t *testing.T) {
	api := NewSubscriptionAPI(false, exchange.DefaultTiming())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 调用时已取消的 ctx 必须同步拒绝，不尝试建立连接
	cases := []struct {
		name string
		call func() (exchange.ISubscription, error)
	}{
		{"account", func() (exchange.ISubscription, error) {
			return api.SubscribeAccountUpdates(ctx, testCredentials(), func(*exchange.AccountEvent) {}, discardError)
		}},
		{"kline", func() (exchange.ISubscription, error) {
			return api.SubscribeKlineUpdates(ctx, "BTCUSDT", exchange.Interval1m, func(*exchange.KlineEvent) {}, discardError)
		}},
		{"orderbook", func() (exchange.ISubscription, error) {
			return api.SubscribeOrderBook(ctx, "BTCUSDT", 50, func(*exchange.OrderBookEvent) {}, discardError)
		}},
		{"stats", func() (exchange.ISubscription, error) {
			return api.SubscribeSymbolStatistics(ctx, []string{"BTCUSDT"}, func(*exchange.StatsEvent) {}, discardError)
		}},
		{"trade", func() (exchange.ISubscription, error) {
			return api.SubscribeTrades(ctx, "BTCUSDT", func(*exchange.TradeEvent) {}, discardError)
		}},
	}

	for _, tc := range cases {
		sub, err := tc.call()
		if !errors.Is(err, context.Canceled) {
			t.Errorf("[%s] 已取消的 ctx 应同步拒绝, 实际: %v", tc.name, err)
		}
		if sub != nil {
			t.Errorf("[%s] 拒绝时不应返回订阅句柄", tc.name)
		}
	}
}

func TestSubscribeValidatesBeforeContext(t *testing.T) {
	api := NewSubscriptionAPI(false, exchange.DefaultTiming())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 参数校验在 ctx 检查之前，非法参数即使 ctx 已取消也报校验错误
	if _, err := api.SubscribeKlineUpdates(ctx, "", exchange.Interval1m, func(*exchange.KlineEvent) {}, discardError); !exchange.IsValidation(err) {
		t.Errorf("空交易对应返回参数校验错误, 实际: %v", err)
	}
	if _, err := api.SubscribeTrades(ctx, "BTCUSDT", nil, discardError); !exchange.IsValidation(err) {
		t.Errorf("空回调应返回参数校验错误, 实际: %v", err)
	}
}
