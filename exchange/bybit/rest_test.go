package bybit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"exgate/exchange"
)

func testCredentials() *exchange.Credentials {
	return &exchange.Credentials{
		Exchange:    exchange.ExchangeBybit,
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
	bad.APIKey = ""
	if _, err := NewRestAPI(bad, false, exchange.DefaultTiming()); err == nil {
		t.Error("缺少 API Key 应该报错")
	}

	api, err := NewRestAPI(testCredentials(), true, exchange.DefaultTiming())
	if err != nil {
		t.Fatalf("有效凭证不应报错: %v", err)
	}
	if api.client.baseURL != TestnetRestURL {
		t.Errorf("测试网模式应使用测试网地址, 实际 %s", api.client.baseURL)
	}
}

func TestRecvWindowFromTiming(t *testing.T) {
	timing := exchange.DefaultTiming()
	timing.RecvWindowMs = 9000

	api, err := NewRestAPI(testCredentials(), false, timing)
	if err != nil {
		t.Fatalf("创建适配器失败: %v", err)
	}
	defer api.Close()

	if api.client.recvWindow != "9000" {
		t.Errorf("配置的接收窗口应传入客户端, 实际 %s", api.client.recvWindow)
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
	// 重复释放是幂等的
	if err := api.Close(); err != nil {
		t.Fatalf("重复释放不应报错: %v", err)
	}

	ctx := context.Background()
	if _, err := api.GetAccountInfo(ctx); !errors.Is(err, exchange.ErrDisposed) {
		t.Errorf("释放后调用应快速失败, 实际: %v", err)
	}
	if _, err := api.GetSymbols(ctx); !errors.Is(err, exchange.ErrDisposed) {
		t.Errorf("释放后调用应快速失败, 实际: %v", err)
	}
	if _, err := api.CancelOrder(ctx, "BTCUSDT", "1"); !errors.Is(err, exchange.ErrDisposed) {
		t.Errorf("释放后调用应快速失败, 实际: %v", err)
	}
}

// apiCallCount 从默认注册表里取指定标签的 API 调用计数
func apiCallCount(t *testing.T, endpoint, status string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("采集指标失败: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "exgate_api_call_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["exchange"] == "bybit" && labels["endpoint"] == endpoint && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestFailedCallRecordedAsError(t *testing.T) {
	api, err := NewRestAPI(testCredentials(), false, exchange.DefaultTiming())
	if err != nil {
		t.Fatalf("创建适配器失败: %v", err)
	}
	defer api.Close()

	before := apiCallCount(t, "GetAccountInfo", "error")

	// 已取消的 ctx 在限流器等待处失败，不发起网络请求
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := api.GetAccountInfo(ctx); err == nil {
		t.Fatal("已取消的 ctx 应该报错")
	}

	after := apiCallCount(t, "GetAccountInfo", "error")
	if after != before+1 {
		t.Errorf("失败调用应计入 error 状态, 前 %v 后 %v", before, after)
	}
	if got := apiCallCount(t, "GetAccountInfo", "success"); got != 0 {
		t.Errorf("失败调用不应计入 success 状态, 实际 %v", got)
	}
}

func TestValidationBeforeNetwork(t *testing.T) {
	api, err := NewRestAPI(testCredentials(), false, exchange.DefaultTiming())
	if err != nil {
		t.Fatalf("创建适配器失败: %v", err)
	}
	defer api.Close()

	ctx := context.Background()

	// 参数校验在任何网络请求之前同步失败
	if _, err := api.GetOrderBook(ctx, "", 0); !exchange.IsValidation(err) {
		t.Errorf("空交易对应返回参数校验错误, 实际: %v", err)
	}
	if _, err := api.CancelOrder(ctx, "BTCUSDT", " "); !exchange.IsValidation(err) {
		t.Errorf("空订单ID应返回参数校验错误, 实际: %v", err)
	}
	if _, err := api.PlaceOrder(ctx, &exchange.ClientOrder{
		Symbol: "BTCUSDT", Type: exchange.OrderTypeLimit, Side: exchange.SideBuy,
		Quantity: 1, Price: 0,
	}, 0); !exchange.IsValidation(err) {
		t.Errorf("限价单价格为0应返回参数校验错误, 实际: %v", err)
	}

	// Bybit 没有 8h 周期，同样在发起网络请求之前失败
	if _, err := api.GetKlines(ctx, "BTCUSDT", exchange.Interval8h, time.Time{}, time.Time{}, 10); !exchange.IsValidation(err) {
		t.Errorf("8h 周期应返回参数校验错误, 实际: %v", err)
	}
}
