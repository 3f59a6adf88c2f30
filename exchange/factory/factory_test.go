package factory

import (
	"testing"
	"time"

	"exgate/config"
	"exgate/exchange"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.CurrentExchange = "binance"
	cfg.Exchanges = map[string]config.ExchangeConfig{
		"binance": {APIKey: "k1", SecretKey: "s1", AccountName: "main"},
		"bybit":   {APIKey: "k2", SecretKey: "s2", Testnet: true},
	}
	cfg.Market.Symbol = "BTCUSDT"
	return cfg
}

func TestCredentialsFromConfig(t *testing.T) {
	cfg := testConfig()

	creds, err := CredentialsFromConfig(cfg, "binance")
	if err != nil {
		t.Fatalf("构造凭证失败: %v", err)
	}
	if creds.Exchange != exchange.ExchangeBinance {
		t.Errorf("期望交易所 binance, 实际 %s", creds.Exchange)
	}
	if creds.AccountName != "main" {
		t.Errorf("期望账户名 main, 实际 %s", creds.AccountName)
	}
	if creds.APIKey != "k1" || creds.APISecret != "s1" {
		t.Error("凭证字段不正确")
	}

	// 未配置账户名时使用默认值
	creds2, err := CredentialsFromConfig(cfg, "bybit")
	if err != nil {
		t.Fatalf("构造凭证失败: %v", err)
	}
	if creds2.AccountName != "default" {
		t.Errorf("期望默认账户名 default, 实际 %s", creds2.AccountName)
	}

	if _, err := CredentialsFromConfig(cfg, "okx"); err == nil {
		t.Error("未配置的交易所应该报错")
	}
}

func TestTimingFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Timing.WebSocketPingInterval = 15
	cfg.Timing.WebSocketPongWait = 90
	cfg.Timing.WebSocketWriteWait = 5
	cfg.Timing.ListenKeyKeepAliveInterval = 45
	cfg.Timing.RecvWindowMs = 9000

	timing := TimingFromConfig(cfg)
	if timing.WebSocketPingInterval != 15*time.Second {
		t.Errorf("心跳间隔应为 15s, 实际 %v", timing.WebSocketPingInterval)
	}
	if timing.WebSocketPongWait != 90*time.Second {
		t.Errorf("读超时应为 90s, 实际 %v", timing.WebSocketPongWait)
	}
	if timing.WebSocketWriteWait != 5*time.Second {
		t.Errorf("写超时应为 5s, 实际 %v", timing.WebSocketWriteWait)
	}
	if timing.ListenKeyKeepAlive != 45*time.Minute {
		t.Errorf("listenKey 保活间隔应为 45m, 实际 %v", timing.ListenKeyKeepAlive)
	}
	if timing.RecvWindowMs != 9000 {
		t.Errorf("接收窗口应为 9000, 实际 %d", timing.RecvWindowMs)
	}

	// 未配置时落到默认值
	empty := testConfig()
	def := TimingFromConfig(empty)
	if def != exchange.DefaultTiming() {
		t.Errorf("未配置的时序参数应落到默认值, 实际 %+v", def)
	}
}

func TestNewRestAPI(t *testing.T) {
	cfg := testConfig()

	for _, name := range []string{"binance", "bybit"} {
		api, err := NewRestAPI(cfg, name)
		if err != nil {
			t.Fatalf("创建 %s REST 适配器失败: %v", name, err)
		}
		if api == nil {
			t.Fatalf("%s REST 适配器为空", name)
		}
		api.Close()
	}

	// 空交易所名回落到配置中的当前交易所
	api, err := NewRestAPI(cfg, "")
	if err != nil {
		t.Fatalf("回落到当前交易所失败: %v", err)
	}
	api.Close()

	cfg.Exchanges["okx"] = config.ExchangeConfig{APIKey: "k", SecretKey: "s"}
	if _, err := NewRestAPI(cfg, "okx"); err == nil {
		t.Error("不支持的交易所应该报错")
	}
}

func TestNewSubscriptionAPI(t *testing.T) {
	cfg := testConfig()

	for _, name := range []string{"binance", "bybit"} {
		api, err := NewSubscriptionAPI(cfg, name)
		if err != nil {
			t.Fatalf("创建 %s 推送订阅适配器失败: %v", name, err)
		}
		if api == nil {
			t.Fatalf("%s 推送订阅适配器为空", name)
		}
	}

	if _, err := NewSubscriptionAPI(cfg, "kraken"); err == nil {
		t.Error("未配置的交易所应该报错")
	}
}
