package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exgate/config"
	"exgate/exchange"
	"exgate/exchange/factory"
	"exgate/logger"
	"exgate/metrics"
	"exgate/storage"
)

// Version 版本号
var Version = "1.2.0"

// 全局日志存储实例（用于清理任务）
var globalLogStorage *storage.LogStorage

func main() {
	// 检查版本参数
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Printf("ExGate Exchange Gateway\n")
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	// 解析调试参数（-debug / --debug）
	debugMode := false
	filteredArgs := []string{os.Args[0]}
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-debug", "--debug":
			debugMode = true
		default:
			filteredArgs = append(filteredArgs, arg)
		}
	}
	os.Args = filteredArgs

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("[ERROR] 加载配置失败: %v", err)
	}

	// 时区
	loc, err := time.LoadLocation(cfg.System.Timezone)
	if err != nil {
		log.Printf("[WARN] 加载时区 %s 失败: %v，将使用 Asia/Shanghai", cfg.System.Timezone, err)
		loc, _ = time.LoadLocation("Asia/Shanghai")
	}
	if loc != nil {
		logger.SetLocation(loc)
	}

	// 日志级别
	if debugMode {
		cfg.System.LogLevel = "debug"
	}
	logLevel := logger.ParseLogLevel(cfg.System.LogLevel)
	logger.SetLevel(logLevel)

	logger.Info("🚀 ExGate 交易所网关启动...")
	logger.Info("📦 版本号: %s", Version)
	logger.Info("日志级别设置为: %s", logLevel.String())

	// 日志存储
	if cfg.Storage.Enabled {
		logStorage, err := storage.NewLogStorage(cfg.Storage.Path)
		if err != nil {
			logger.Warn("⚠️ 初始化日志存储失败: %v，将继续运行但不保存日志到数据库", err)
		} else {
			globalLogStorage = logStorage
			logger.InitLogStorage(func(level, message string) {
				logStorage.WriteLog(level, message)
			})
			logger.Info("✅ 日志存储已初始化: %s", cfg.Storage.Path)

			// 定期清理过期日志
			retentionDays := cfg.System.LogRetentionDays
			if retentionDays > 0 {
				go func() {
					ticker := time.NewTicker(24 * time.Hour)
					defer ticker.Stop()
					for range ticker.C {
						logger.Info("🧹 开始定期清理日志...")
						if err := logStorage.CleanOldLogs(retentionDays); err != nil {
							logger.Warn("⚠️ 清理日志失败: %v", err)
						} else {
							logger.Info("✅ 已清理 %d 天前的日志", retentionDays)
						}
					}
				}()
			}
		}
	}

	// 指标服务
	var collector *metrics.SystemMetricsCollector
	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Listen)
		collector = metrics.NewSystemMetricsCollector(time.Duration(cfg.Metrics.CollectInterval) * time.Second)
		collector.Start()
		logger.Info("✅ 指标服务已启动: http://%s/metrics", cfg.Metrics.Listen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 配置热加载：运行中只应用日志级别变更
	watcher, err := config.NewConfigWatcher(configPath, func(newConfig *config.Config) {
		newLevel := logger.ParseLogLevel(newConfig.System.LogLevel)
		if newLevel != logger.GetLevel() {
			logger.SetLevel(newLevel)
			logger.Info("✅ 日志级别已更新为: %s", newLevel.String())
		}
	})
	if err != nil {
		logger.Warn("⚠️ 创建配置监听器失败: %v，配置热加载不可用", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("⚠️ 启动配置监听器失败: %v", err)
		}
		go func() {
			for werr := range watcher.GetErrorChan() {
				logger.Warn("⚠️ 配置热加载失败: %v", werr)
			}
		}()
	}

	exchangeName := cfg.App.CurrentExchange
	logger.Info("🌐 当前交易所: %s", exchangeName)

	// REST 适配器
	restAPI, err := factory.NewRestAPI(cfg, exchangeName)
	if err != nil {
		logger.Fatal("❌ 创建 REST 适配器失败: %v", err)
	}
	defer restAPI.Close()

	// 推送订阅适配器
	subAPI, err := factory.NewSubscriptionAPI(cfg, exchangeName)
	if err != nil {
		logger.Fatal("❌ 创建推送订阅适配器失败: %v", err)
	}

	// 启动时打印账户快照，验证凭证可用
	acctCtx, acctCancel := context.WithTimeout(ctx, 15*time.Second)
	if account, err := restAPI.GetAccountInfo(acctCtx); err != nil {
		logger.Warn("⚠️ 查询账户信息失败: %v", err)
	} else {
		logger.Info("✅ 账户 %s 共 %d 项资产，买方费率 %.4f，卖方费率 %.4f",
			account.Name, len(account.Balances), account.BuyerFee, account.SellerFee)
	}
	acctCancel()

	subscriptions := startSubscriptions(ctx, cfg, exchangeName, subAPI)

	logger.Info("✅ ExGate 已就绪，按 Ctrl+C 退出")

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("🛑 收到信号 %v，开始关闭...", sig)

	cancel()

	for _, sub := range subscriptions {
		if err := sub.Dispose(); err != nil {
			logger.Warn("⚠️ 释放订阅失败: %v", err)
		}
	}

	if watcher != nil {
		watcher.Stop()
	}
	if collector != nil {
		collector.Stop()
	}
	if globalLogStorage != nil {
		globalLogStorage.Close()
	}
	logger.Close()

	log.Println("[INFO] ExGate 已退出")
}

// startSubscriptions 按配置打开行情与账户推送订阅；失败的订阅只告警不中断启动
func startSubscriptions(ctx context.Context, cfg *config.Config, exchangeName string, subAPI exchange.ISubscriptionAPI) []exchange.ISubscription {
	var subscriptions []exchange.ISubscription

	onError := func(err error) {
		logger.Warn("⚠️ 订阅错误: %v", err)
	}

	symbol := cfg.Market.Symbol
	interval := exchange.KlineInterval(cfg.Market.Interval)

	if sub, err := subAPI.SubscribeKlineUpdates(ctx, symbol, interval, func(event *exchange.KlineEvent) {
		for _, k := range event.Klines {
			if k.Final {
				logger.Info("📊 [%s] K线收盘 %s 开 %.8g 高 %.8g 低 %.8g 收 %.8g 量 %.8g",
					k.Symbol, k.Interval, k.Open, k.High, k.Low, k.Close, k.Volume)
			}
		}
	}, onError); err != nil {
		logger.Warn("⚠️ 订阅K线失败: %v", err)
	} else {
		subscriptions = append(subscriptions, sub)
		logger.Info("✅ 已订阅 %s K线推送 (%s)", symbol, interval)
	}

	if sub, err := subAPI.SubscribeOrderBook(ctx, symbol, cfg.Market.DepthLevels, func(event *exchange.OrderBookEvent) {
		book := event.OrderBook
		logger.Debug("📈 [%s] 买一 %.8g@%.8g 卖一 %.8g@%.8g",
			book.Symbol, book.BestBid.Quantity, book.BestBid.Price, book.BestAsk.Quantity, book.BestAsk.Price)
	}, onError); err != nil {
		logger.Warn("⚠️ 订阅订单簿失败: %v", err)
	} else {
		subscriptions = append(subscriptions, sub)
		logger.Info("✅ 已订阅 %s 订单簿推送 (%d 档)", symbol, cfg.Market.DepthLevels)
	}

	if sub, err := subAPI.SubscribeSymbolStatistics(ctx, cfg.Market.StatsSymbols, func(event *exchange.StatsEvent) {
		for _, st := range event.Statistics {
			logger.Debug("📉 [%s] 最新价 %.8g 24h涨跌 %.2f%%", st.Symbol, st.LastPrice, st.PriceChangePercent)
		}
	}, onError); err != nil {
		logger.Warn("⚠️ 订阅行情统计失败: %v", err)
	} else {
		subscriptions = append(subscriptions, sub)
		logger.Info("✅ 已订阅行情统计推送 (%d 个交易对)", len(cfg.Market.StatsSymbols))
	}

	if sub, err := subAPI.SubscribeTrades(ctx, symbol, func(event *exchange.TradeEvent) {
		logger.Debug("💱 [%s] 收到 %d 笔成交推送", symbol, len(event.Trades))
	}, onError); err != nil {
		logger.Warn("⚠️ 订阅成交失败: %v", err)
	} else {
		subscriptions = append(subscriptions, sub)
		logger.Info("✅ 已订阅 %s 成交推送", symbol)
	}

	// 账户推送需要凭证
	if credentials, err := factory.CredentialsFromConfig(cfg, exchangeName); err != nil {
		logger.Warn("⚠️ 账户推送未启用: %v", err)
	} else if sub, err := subAPI.SubscribeAccountUpdates(ctx, credentials, func(event *exchange.AccountEvent) {
		logger.Info("💰 [%s] 账户更新，共 %d 项资产", event.Account.Name, len(event.Account.Balances))
	}, onError); err != nil {
		logger.Warn("⚠️ 订阅账户推送失败: %v", err)
	} else {
		subscriptions = append(subscriptions, sub)
		logger.Info("✅ 已订阅账户推送")
	}

	return subscriptions
}
