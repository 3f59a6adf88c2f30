package binance

import (
	"context"
	"errors"
	"testing"

	"exgate/exchange"
)

func testCredentials() *exchange.Credentials {
	return &exchange.Credentials{
		Exchange:    exchange.ExchangeBinance,
		AccountName: "test",
		APIKey:      "key",
		APISecret:   "secret",
	}
}

func TestNewRestAPIValidatesCredentials(t *testing.T) {
	if _, err := NewRestAPI(nil, false, exchange.DefaultTiming()); err == nil {
		t.Error("空凭证应该报错")
	}

	bad := testCredentials()
	bad.APISecret = ""
	if _, err := NewRestAPI(bad, false, exchange.DefaultTiming()); err == nil {
		t.Error("缺少 API Secret 应该报错")
	}

	if _, err := NewRestAPI(testCredentials(), false, exchange.DefaultTiming()); err != nil {
		t.Fatalf("有效凭证不应报错: %v", err)
	}
}

func TestCallsFailFastAfterClose(t *testing.T) {
	api, err := NewRestAPI(testCredentials(), false, exchange.DefaultTiming())
	if err != nil {
		t.Fatalf("创建适配器失败: %v", err)
	}

	if err := api.Close(); err != nil {
		t.Fatalf("首次释放不应报错: %v", err)
	}
	if err := api.Close(); err != nil {
		t.Fatalf("重复释放不应报错: %v", err)
	}

	ctx := context.Background()
	if _, err := api.GetAccountInfo(ctx); !errors.Is(err, exchange.ErrDisposed) {
		t.Errorf("释放后调用应快速失败, 实际: %v", err)
	}
	if _, err := api.GetTrades(ctx, "BTCUSDT", 10); !errors.Is(err, exchange.ErrDisposed) {
		t.Errorf("释放后调用应快速失败, 实际: %v", err)
	}
}

func TestValidationBeforeNetwork(t *testing.T) {
	api, err := NewRestAPI(testCredentials(), false, exchange.DefaultTiming())
	if err != nil {
		t.Fatalf("创建适配器失败: %v", err)
	}
	defer api.Close()

	ctx := context.Background()

	if _, err := api.GetOrderBook(ctx, " ", 0); !exchange.IsValidation(err) {
		t.Errorf("空交易对应返回参数校验错误, 实际: %v", err)
	}

	// 订单ID必须是数字，非法ID在发起网络请求之前失败
	if _, err := api.CancelOrder(ctx, "BTCUSDT", "not-a-number"); !exchange.IsValidation(err) {
		t.Errorf("非数字订单ID应返回参数校验错误, 实际: %v", err)
	}

	if _, err := api.PlaceOrder(ctx, &exchange.ClientOrder{
		Symbol: "BTCUSDT", Type: exchange.OrderTypeMarket, Side: exchange.SideBuy,
		Quantity: 0,
	}, 0); !exchange.IsValidation(err) {
		t.Errorf("数量为0应返回参数校验错误, 实际: %v", err)
	}
}
