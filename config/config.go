package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 交易所网关配置
type Config struct {
	// 应用配置
	App struct {
		CurrentExchange string `yaml:"current_exchange"` // 当前使用的交易所
	} `yaml:"app"`

	// 多交易所配置
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`

	// 行情订阅配置
	Market struct {
		Symbol       string   `yaml:"symbol"`        // 主交易对，如 BTCUSDT
		Interval     string   `yaml:"interval"`      // K线周期，如 "1m"
		DepthLevels  int      `yaml:"depth_levels"`  // 订单簿档位（默认20）
		StatsSymbols []string `yaml:"stats_symbols"` // 24h 行情统计订阅列表
	} `yaml:"market"`

	System struct {
		LogLevel         string `yaml:"log_level"`
		Timezone         string `yaml:"timezone"`           // 时区，如 "Asia/Shanghai"
		LogRetentionDays int    `yaml:"log_retention_days"` // 日志保留天数（默认30天，0表示不清理）
	} `yaml:"system"`

	// 存储配置
	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"` // 数据库文件路径
	} `yaml:"storage"`

	// 监控配置
	Metrics struct {
		Enabled         bool   `yaml:"enabled"`
		Listen          string `yaml:"listen"`           // 监听地址，默认 0.0.0.0:29090
		CollectInterval int    `yaml:"collect_interval"` // 系统指标收集间隔（秒，默认60）
	} `yaml:"metrics"`

	// 时间间隔配置（单位：秒，除非特别说明）
	Timing struct {
		WebSocketPingInterval      int `yaml:"websocket_ping_interval"`       // WebSocket PING间隔（秒，默认20）
		WebSocketPongWait          int `yaml:"websocket_pong_wait"`           // WebSocket PONG等待时间（秒，默认60）
		WebSocketWriteWait         int `yaml:"websocket_write_wait"`          // WebSocket写入等待时间（秒，默认10）
		ListenKeyKeepAliveInterval int `yaml:"listen_key_keepalive_interval"` // listenKey保活间隔（分钟，默认30）
		RecvWindowMs               int `yaml:"recv_window_ms"`                // 签名请求接收窗口（毫秒，默认5000）
	} `yaml:"timing"`
}

// ExchangeConfig 交易所配置
type ExchangeConfig struct {
	APIKey      string `yaml:"api_key" json:"api_key"`
	SecretKey   string `yaml:"secret_key" json:"secret_key"`
	Passphrase  string `yaml:"passphrase" json:"passphrase"` // OKX 等需要
	AccountName string `yaml:"account_name" json:"account_name"`
	Testnet     bool   `yaml:"testnet" json:"testnet"` // 是否使用测试网（默认 false）
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节数组加载配置（用于测试）
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &cfg, nil
}

// Validate 验证配置并填充默认值
func (c *Config) Validate() error {
	if c.App.CurrentExchange == "" {
		return fmt.Errorf("必须指定当前使用的交易所 (app.current_exchange)")
	}

	if len(c.Exchanges) == 0 {
		return fmt.Errorf("未配置任何交易所，请在 exchanges 中添加配置")
	}

	exchangeCfg, exists := c.Exchanges[c.App.CurrentExchange]
	if !exists {
		return fmt.Errorf("交易所 %s 的配置不存在", c.App.CurrentExchange)
	}

	if exchangeCfg.APIKey == "" || exchangeCfg.SecretKey == "" {
		return fmt.Errorf("交易所 %s 的 API 配置不完整", c.App.CurrentExchange)
	}

	if c.Market.Symbol == "" {
		return fmt.Errorf("交易对不能为空 (market.symbol)")
	}
	if c.Market.Interval == "" {
		c.Market.Interval = "1m"
	}
	if c.Market.DepthLevels <= 0 {
		c.Market.DepthLevels = 20
	}
	if len(c.Market.StatsSymbols) == 0 {
		c.Market.StatsSymbols = []string{c.Market.Symbol}
	}

	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.System.Timezone == "" {
		c.System.Timezone = "Asia/Shanghai"
	}
	if c.System.LogRetentionDays < 0 {
		c.System.LogRetentionDays = 30
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "./data/exgate.db"
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "0.0.0.0:29090"
	}
	if c.Metrics.CollectInterval <= 0 {
		c.Metrics.CollectInterval = 60
	}

	if c.Timing.WebSocketPingInterval <= 0 {
		c.Timing.WebSocketPingInterval = 20
	}
	if c.Timing.WebSocketPongWait <= 0 {
		c.Timing.WebSocketPongWait = 60
	}
	if c.Timing.WebSocketWriteWait <= 0 {
		c.Timing.WebSocketWriteWait = 10
	}
	if c.Timing.ListenKeyKeepAliveInterval <= 0 {
		c.Timing.ListenKeyKeepAliveInterval = 30
	}
	if c.Timing.RecvWindowMs <= 0 {
		c.Timing.RecvWindowMs = 5000
	}

	return nil
}
