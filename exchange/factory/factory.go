package factory

import (
	"fmt"
	"time"

	"exgate/config"
	"exgate/exchange"
	"exgate/exchange/binance"
	"exgate/exchange/bybit"
)

// CredentialsFromConfig 从配置构造 API 凭证
func CredentialsFromConfig(cfg *config.Config, exchangeName string) (*exchange.Credentials, error) {
	exchangeCfg, exists := cfg.Exchanges[exchangeName]
	if !exists {
		return nil, fmt.Errorf("交易所 %s 的配置不存在", exchangeName)
	}

	accountName := exchangeCfg.AccountName
	if accountName == "" {
		accountName = "default"
	}

	return &exchange.Credentials{
		Exchange:    exchange.ParseExchange(exchangeName),
		AccountName: accountName,
		APIKey:      exchangeCfg.APIKey,
		APISecret:   exchangeCfg.SecretKey,
		Passphrase:  exchangeCfg.Passphrase,
	}, nil
}

// TimingFromConfig 把配置的时间间隔换算成适配器时序参数
func TimingFromConfig(cfg *config.Config) exchange.Timing {
	return exchange.Timing{
		WebSocketPingInterval: time.Duration(cfg.Timing.WebSocketPingInterval) * time.Second,
		WebSocketPongWait:     time.Duration(cfg.Timing.WebSocketPongWait) * time.Second,
		WebSocketWriteWait:    time.Duration(cfg.Timing.WebSocketWriteWait) * time.Second,
		ListenKeyKeepAlive:    time.Duration(cfg.Timing.ListenKeyKeepAliveInterval) * time.Minute,
		RecvWindowMs:          cfg.Timing.RecvWindowMs,
	}.Normalized()
}

// NewRestAPI 创建交易所 REST 适配器
// exchangeName 允许覆盖配置中的当前交易所，便于多交易所场景
func NewRestAPI(cfg *config.Config, exchangeName string) (exchange.IRestAPI, error) {
	if exchangeName == "" {
		exchangeName = cfg.App.CurrentExchange
	}

	creds, err := CredentialsFromConfig(cfg, exchangeName)
	if err != nil {
		return nil, err
	}
	testnet := cfg.Exchanges[exchangeName].Testnet
	timing := TimingFromConfig(cfg)

	switch exchangeName {
	case "binance":
		return binance.NewRestAPI(creds, testnet, timing)

	case "bybit":
		return bybit.NewRestAPI(creds, testnet, timing)

	default:
		return nil, fmt.Errorf("不支持的交易所: %s", exchangeName)
	}
}

// NewSubscriptionAPI 创建交易所推送订阅适配器
func NewSubscriptionAPI(cfg *config.Config, exchangeName string) (exchange.ISubscriptionAPI, error) {
	if exchangeName == "" {
		exchangeName = cfg.App.CurrentExchange
	}

	if _, exists := cfg.Exchanges[exchangeName]; !exists {
		return nil, fmt.Errorf("交易所 %s 的配置不存在", exchangeName)
	}
	testnet := cfg.Exchanges[exchangeName].Testnet
	timing := TimingFromConfig(cfg)

	switch exchangeName {
	case "binance":
		return binance.NewSubscriptionAPI(testnet, timing), nil

	case "bybit":
		return bybit.NewSubscriptionAPI(testnet, timing), nil

	default:
		return nil, fmt.Errorf("不支持的交易所: %s", exchangeName)
	}
}
