package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"exgate/exchange"
	"exgate/logger"
	"exgate/metrics"
)

// SubscriptionAPI Bybit 现货推送订阅适配器。
// 每次订阅打开独立的 WebSocket 连接，连接生命周期完全由返回的句柄管理。
type SubscriptionAPI struct {
	testnet bool
	timing  exchange.Timing
}

// NewSubscriptionAPI 创建 Bybit 推送订阅适配器
func NewSubscriptionAPI(testnet bool, timing exchange.Timing) *SubscriptionAPI {
	if testnet {
		logger.Info("🌐 [Bybit] 推送订阅使用测试网模式")
	}
	return &SubscriptionAPI{testnet: testnet, timing: timing.Normalized()}
}

func (s *SubscriptionAPI) publicURL() string {
	if s.testnet {
		return TestnetPublicWSURL
	}
	return MainnetPublicWSURL
}

func (s *SubscriptionAPI) privateURL() string {
	if s.testnet {
		return TestnetPrivateWSURL
	}
	return MainnetPrivateWSURL
}

// closeStream 关闭推送流并更新连接指标
func closeStream(channel string, stream *wsStream) {
	stream.Stop()
	metrics.SetWebSocketStatus("bybit", channel, false)
}

// SubscribeAccountUpdates 订阅账户推送（私有流 wallet 主题）
func (s *SubscriptionAPI) SubscribeAccountUpdates(ctx context.Context, credentials *exchange.Credentials, onAccount exchange.AccountCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeAccountUpdates"
	const channel = "bybit.account"

	if err := exchange.ValidateCallbacks(op, onAccount, onError); err != nil {
		return nil, err
	}
	if err := exchange.ValidateCredentials(op, credentials); err != nil {
		return nil, err
	}

	// 调用时已取消的 ctx 直接拒绝，不发起任何网络连接
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()
	accountName := credentials.AccountName

	onMessage := func(topic, msgType string, data []byte) {
		if !strings.HasPrefix(topic, "wallet") {
			return
		}
		var wallets []WalletBalance
		if err := json.Unmarshal(data, &wallets); err != nil {
			exchange.SafeOnError(channel, fmt.Errorf("解析账户推送失败: %w", err), onError)
			return
		}
		for _, w := range wallets {
			balances := make([]exchange.Balance, 0, len(w.Coins))
			for _, c := range w.Coins {
				total := parseFloat(c.WalletBalance)
				locked := parseFloat(c.Locked)
				balances = append(balances, exchange.Balance{
					Asset:  c.Coin,
					Free:   total - locked,
					Locked: locked,
				})
			}
			account := &exchange.Account{
				Name:     accountName,
				Exchange: exchange.ExchangeBybit,
				Time:     time.Now(),
				Balances: balances,
			}
			exchange.SafeInvoke(channel, func() {
				onAccount(&exchange.AccountEvent{Account: account})
			}, onError)
		}
	}
	streamErr := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	stream, err := dialStream(s.privateURL(), credentials.APIKey, credentials.APISecret, s.timing, []string{"wallet"}, onMessage, streamErr)
	if err != nil {
		binding.Release()
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op, "打开账户推送流失败", err)
	}
	metrics.SetWebSocketStatus("bybit", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		closeStream(channel, stream)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}

// wsKlineData kline 主题推送数据
type wsKlineData struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Interval string `json:"interval"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
	Turnover string `json:"turnover"`
	Confirm  bool   `json:"confirm"`
}

// SubscribeKlineUpdates 订阅K线推送
func (s *SubscriptionAPI) SubscribeKlineUpdates(ctx context.Context, symbol string, interval exchange.KlineInterval, onKline exchange.KlineCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeKlineUpdates"
	const channel = "bybit.kline"

	if err := exchange.ValidateCallbacks(op, onKline, onError); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}
	vendorInterval, err := toBybitInterval(op, interval)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	topic := fmt.Sprintf("kline.%s.%s", vendorInterval, symbol)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()

	onMessage := func(msgTopic, msgType string, data []byte) {
		if msgTopic != topic {
			return
		}
		var rows []wsKlineData
		if err := json.Unmarshal(data, &rows); err != nil {
			exchange.SafeOnError(channel, fmt.Errorf("解析K线推送失败: %w", err), onError)
			return
		}
		klines := make([]*exchange.Kline, 0, len(rows))
		for _, row := range rows {
			klines = append(klines, &exchange.Kline{
				Symbol:           symbol,
				Exchange:         exchange.ExchangeBybit,
				Interval:         interval,
				OpenTime:         time.UnixMilli(row.Start),
				CloseTime:        time.UnixMilli(row.End),
				Open:             parseFloat(row.Open),
				High:             parseFloat(row.High),
				Low:              parseFloat(row.Low),
				Close:            parseFloat(row.Close),
				Volume:           parseFloat(row.Volume),
				QuoteAssetVolume: parseFloat(row.Turnover),
				Final:            row.Confirm,
			})
		}
		if len(klines) == 0 {
			return
		}
		exchange.SafeInvoke(channel, func() {
			onKline(&exchange.KlineEvent{Klines: klines})
		}, onError)
	}
	streamErr := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	stream, err := dialStream(s.publicURL(), "", "", s.timing, []string{topic}, onMessage, streamErr)
	if err != nil {
		binding.Release()
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, fmt.Sprintf("%s(%s, %s)", op, symbol, interval), "打开K线推送流失败", err)
	}
	metrics.SetWebSocketStatus("bybit", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		closeStream(channel, stream)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeOrderBook 订阅订单簿推送。
// Bybit 先推全量快照再推增量，本地合并后整簿替换地交给调用方。
func (s *SubscriptionAPI) SubscribeOrderBook(ctx context.Context, symbol string, limit int, onBook exchange.BookCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeOrderBook"
	const channel = "bybit.orderbook"

	if err := exchange.ValidateCallbacks(op, onBook, onError); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}

	// Bybit 现货订单簿只支持 1/50/200 档
	depth := 50
	switch {
	case limit > 0 && limit <= 1:
		depth = 1
	case limit > 50:
		depth = 200
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	topic := fmt.Sprintf("orderbook.%d.%s", depth, symbol)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()
	book := newLocalBook(symbol)

	onMessage := func(msgTopic, msgType string, data []byte) {
		if msgTopic != topic {
			return
		}
		var payload wsOrderBookData
		if err := json.Unmarshal(data, &payload); err != nil {
			exchange.SafeOnError(channel, fmt.Errorf("解析订单簿推送失败: %w", err), onError)
			return
		}
		now := time.Now()
		if msgType == "snapshot" {
			book.applySnapshot(&payload, now)
		} else {
			book.applyDelta(&payload, now)
		}
		snapshot := book.snapshot(limit)
		exchange.SafeInvoke(channel, func() {
			onBook(&exchange.OrderBookEvent{OrderBook: snapshot})
		}, onError)
	}
	streamErr := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	stream, err := dialStream(s.publicURL(), "", "", s.timing, []string{topic}, onMessage, streamErr)
	if err != nil {
		binding.Release()
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, fmt.Sprintf("%s(%s, %d)", op, symbol, depth), "打开订单簿推送流失败", err)
	}
	metrics.SetWebSocketStatus("bybit", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		closeStream(channel, stream)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}

// wsTickerData tickers 主题推送数据（现货）
type wsTickerData struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	HighPrice24h string `json:"highPrice24h"`
	LowPrice24h  string `json:"lowPrice24h"`
	PrevPrice24h string `json:"prevPrice24h"`
	Volume24h    string `json:"volume24h"`
	Turnover24h  string `json:"turnover24h"`
	Price24hPcnt string `json:"price24hPcnt"`
}

// SubscribeSymbolStatistics 订阅多交易对的滚动行情统计。
// 交易对列表先规整去重，全部主题挂在同一条连接上。
func (s *SubscriptionAPI) SubscribeSymbolStatistics(ctx context.Context, symbols []string, onStats exchange.StatsCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeSymbolStatistics"
	const channel = "bybit.stats"

	if err := exchange.ValidateCallbacks(op, onStats, onError); err != nil {
		return nil, err
	}
	normalized := exchange.NormalizeSymbols(symbols)
	if len(normalized) == 0 {
		return nil, exchange.NewValidationError(op, "交易对列表不能为空")
	}

	topics := make([]string, 0, len(normalized))
	for _, symbol := range normalized {
		topics = append(topics, "tickers."+symbol)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()

	onMessage := func(msgTopic, msgType string, data []byte) {
		if !strings.HasPrefix(msgTopic, "tickers.") {
			return
		}
		var t wsTickerData
		if err := json.Unmarshal(data, &t); err != nil {
			exchange.SafeOnError(channel, fmt.Errorf("解析行情统计推送失败: %w", err), onError)
			return
		}
		last := parseFloat(t.LastPrice)
		prev := parseFloat(t.PrevPrice24h)
		now := time.Now()
		stats := &exchange.SymbolStats{
			Symbol:                t.Symbol,
			Exchange:              exchange.ExchangeBybit,
			OpenTime:              now.Add(-24 * time.Hour),
			CloseTime:             now,
			Period:                24 * time.Hour,
			OpenPrice:             prev,
			HighPrice:             parseFloat(t.HighPrice24h),
			LowPrice:              parseFloat(t.LowPrice24h),
			LastPrice:             last,
			PreviousDayClosePrice: prev,
			PriceChange:           last - prev,
			PriceChangePercent:    parseFloat(t.Price24hPcnt) * 100,
			Volume:                parseFloat(t.Volume24h),
			QuoteVolume:           parseFloat(t.Turnover24h),
		}
		exchange.SafeInvoke(channel, func() {
			onStats(&exchange.StatsEvent{Statistics: []*exchange.SymbolStats{stats}})
		}, onError)
	}
	streamErr := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	stream, err := dialStream(s.publicURL(), "", "", s.timing, topics, onMessage, streamErr)
	if err != nil {
		binding.Release()
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, fmt.Sprintf("%s(%s)", op, strings.Join(normalized, ",")), "打开行情统计推送流失败", err)
	}
	metrics.SetWebSocketStatus("bybit", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		closeStream(channel, stream)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}

// wsTradeData publicTrade 主题推送数据
type wsTradeData struct {
	Time   int64  `json:"T"`
	Symbol string `json:"s"`
	Side   string `json:"S"`
	Size   string `json:"v"`
	Price  string `json:"p"`
	ID     string `json:"i"`
}

// SubscribeTrades 订阅成交推送
func (s *SubscriptionAPI) SubscribeTrades(ctx context.Context, symbol string, onTrade exchange.TradeCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeTrades"
	const channel = "bybit.trade"

	if err := exchange.ValidateCallbacks(op, onTrade, onError); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	topic := "publicTrade." + symbol

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()

	onMessage := func(msgTopic, msgType string, data []byte) {
		if msgTopic != topic {
			return
		}
		var rows []wsTradeData
		if err := json.Unmarshal(data, &rows); err != nil {
			exchange.SafeOnError(channel, fmt.Errorf("解析成交推送失败: %w", err), onError)
			return
		}
		trades := make([]*exchange.Trade, 0, len(rows))
		for _, row := range rows {
			price := parseFloat(row.Price)
			qty := parseFloat(row.Size)
			id, _ := strconv.ParseInt(row.ID, 10, 64)
			trades = append(trades, &exchange.Trade{
				Symbol:        row.Symbol,
				Exchange:      exchange.ExchangeBybit,
				Time:          time.UnixMilli(row.Time),
				ID:            id,
				Price:         price,
				BaseQuantity:  qty,
				QuoteQuantity: price * qty,
			})
		}
		if len(trades) == 0 {
			return
		}
		exchange.SafeInvoke(channel, func() {
			onTrade(&exchange.TradeEvent{Trades: trades})
		}, onError)
	}
	streamErr := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	stream, err := dialStream(s.publicURL(), "", "", s.timing, []string{topic}, onMessage, streamErr)
	if err != nil {
		binding.Release()
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, fmt.Sprintf("%s(%s)", op, symbol), "打开成交推送流失败", err)
	}
	metrics.SetWebSocketStatus("bybit", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		closeStream(channel, stream)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}
