package binance

import (
	"context"
	"errors"
	"testing"

	libBinance "github.com/adshao/go-binance/v2"

	"exgate/exchange"
)

func discardError(error) {}

func TestSubscribeRejectsCanceledContext(t *testing.T) {
	api := NewSubscriptionAPI(false, exchange.DefaultTiming())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 调用时已取消的 ctx 必须同步拒绝，不发起任何网络请求
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
			return api.SubscribeOrderBook(ctx, "BTCUSDT", 20, func(*exchange.OrderBookEvent) {}, discardError)
		}},
		{"stats", func() (exchange.ISubscription, error) {
			return api.SubscribeSymbolStatistics(ctx, []string{"BTCUSDT"}, func(*exchange.StatsEvent) {}, discardError)
		}},
		{"trades", func() (exchange.ISubscription, error) {
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

func TestSymbolStatisticsOpensOneStreamPerSymbol(t *testing.T) {
	var opened []string
	wsMarketStatServe = func(symbol string, wsHandler libBinance.WsMarketStatHandler, errHandler libBinance.ErrHandler) (chan struct{}, chan struct{}, error) {
		opened = append(opened, symbol)
		doneC := make(chan struct{})
		stopC := make(chan struct{})
		go func() {
			<-stopC
			close(doneC)
		}()
		return doneC, stopC, nil
	}
	defer func() { wsMarketStatServe = libBinance.WsMarketStatServe }()

	api := NewSubscriptionAPI(false, exchange.DefaultTiming())

	// 规整去重后 [" btc ", "BTC", ""] 只剩一个交易对，只开一条推送流
	sub, err := api.SubscribeSymbolStatistics(context.Background(), []string{" btc ", "BTC", ""}, func(*exchange.StatsEvent) {}, discardError)
	if err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	if len(opened) != 1 {
		t.Fatalf("应只打开一条推送流, 实际 %d: %v", len(opened), opened)
	}
	if opened[0] != "BTC" {
		t.Errorf("交易对应规整为 BTC, 实际 %q", opened[0])
	}

	if err := sub.Dispose(); err != nil {
		t.Errorf("释放不应报错: %v", err)
	}
}
