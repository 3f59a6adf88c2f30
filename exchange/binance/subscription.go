package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	libBinance "github.com/adshao/go-binance/v2"

	"exgate/exchange"
	"exgate/logger"
	"exgate/metrics"
)

// streamStopTimeout 等待推送流退出的上限
const streamStopTimeout = 5 * time.Second

// wsMarketStatServe 行情统计推送流的打开入口，测试替换用
var wsMarketStatServe = libBinance.WsMarketStatServe

// SubscriptionAPI 币安现货推送订阅适配器。
// 每次订阅打开独立的推送流，流的生命周期完全由返回的句柄管理。
type SubscriptionAPI struct {
	testnet bool
	timing  exchange.Timing
}

// NewSubscriptionAPI 创建币安推送订阅适配器
func NewSubscriptionAPI(testnet bool, timing exchange.Timing) *SubscriptionAPI {
	timing = timing.Normalized()

	// 测试网开关和读超时都是库级全局量，必须在打开任何推送流之前设置
	libBinance.UseTestnet = testnet
	libBinance.WebsocketTimeout = timing.WebSocketPongWait
	libBinance.WebsocketKeepalive = true
	if testnet {
		logger.Info("🌐 [Binance] 推送订阅使用测试网模式")
	}
	return &SubscriptionAPI{testnet: testnet, timing: timing}
}

// stopStream 关闭推送流并等待读协程退出（有上限，推送流卡死不拖住清理）
func stopStream(channel string, stopC, doneC chan struct{}) {
	close(stopC)
	select {
	case <-doneC:
	case <-time.After(streamStopTimeout):
		logger.Warn("⚠️ [%s] 等待推送流退出超时", channel)
	}
	metrics.SetWebSocketStatus("binance", channel, false)
}

// SubscribeAccountUpdates 订阅账户推送。
// 每个订阅持有自己的 listenKey 和推送流；清理时先关流再释放 listenKey。
func (s *SubscriptionAPI) SubscribeAccountUpdates(ctx context.Context, credentials *exchange.Credentials, onAccount exchange.AccountCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeAccountUpdates"
	const channel = "binance.account"

	if err := exchange.ValidateCallbacks(op, onAccount, onError); err != nil {
		return nil, err
	}
	if err := exchange.ValidateCredentials(op, credentials); err != nil {
		return nil, err
	}

	// 调用时已取消的 ctx 直接拒绝，不发起任何网络请求
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := libBinance.NewClient(credentials.APIKey, credentials.APISecret)

	listenKey, err := client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, op, "获取 listenKey 失败", err)
	}

	binding := exchange.NewCancelBinding()

	// listenKey 保活协程，币安要求 60 分钟内至少保活一次
	keepAliveStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.timing.ListenKeyKeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-keepAliveStop:
				return
			case <-ticker.C:
				keepCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(keepCtx)
				cancel()
				if err != nil {
					exchange.SafeOnError(channel, exchange.NewAPIError(exchange.ExchangeBinance, op, "listenKey 保活失败", err), onError)
				}
			}
		}
	}()

	accountName := credentials.AccountName
	wsHandler := func(event *libBinance.WsUserDataEvent) {
		if event == nil || event.Event != libBinance.UserDataEventTypeOutboundAccountPosition {
			return
		}
		balances := make([]exchange.Balance, 0, len(event.AccountUpdate.WsAccountUpdates))
		for _, b := range event.AccountUpdate.WsAccountUpdates {
			balances = append(balances, exchange.Balance{
				Asset:  b.Asset,
				Free:   parseFloat(b.Free),
				Locked: parseFloat(b.Locked),
			})
		}
		account := &exchange.Account{
			Name:     accountName,
			Exchange: exchange.ExchangeBinance,
			Time:     msToTime(event.Time),
			Balances: balances,
		}
		exchange.SafeInvoke(channel, func() {
			onAccount(&exchange.AccountEvent{Account: account})
		}, onError)
	}
	errHandler := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	doneC, stopC, err := libBinance.WsUserDataServe(listenKey, wsHandler, errHandler)
	if err != nil {
		binding.Release()
		close(keepAliveStop)
		releaseListenKey(client, listenKey, channel, onError)
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, op, "打开账户推送流失败", err)
	}
	metrics.SetWebSocketStatus("binance", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		close(keepAliveStop)
		stopStream(channel, stopC, doneC)
		releaseListenKey(client, listenKey, channel, onError)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}

// releaseListenKey 释放 listenKey；失败走错误回调，不阻断清理
func releaseListenKey(client *libBinance.Client, listenKey, channel string, onError exchange.ErrorCallback) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.NewCloseUserStreamService().ListenKey(listenKey).Do(closeCtx); err != nil {
		exchange.SafeOnError(channel, exchange.NewAPIError(exchange.ExchangeBinance, "CloseUserStream", "释放 listenKey 失败", err), onError)
	}
}

// SubscribeKlineUpdates 订阅K线推送
func (s *SubscriptionAPI) SubscribeKlineUpdates(ctx context.Context, symbol string, interval exchange.KlineInterval, onKline exchange.KlineCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeKlineUpdates"
	const channel = "binance.kline"

	if err := exchange.ValidateCallbacks(op, onKline, onError); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}
	vendorInterval, err := toBinanceInterval(op, interval)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()

	wsHandler := func(event *libBinance.WsKlineEvent) {
		if event == nil {
			return
		}
		k := event.Kline
		kline := &exchange.Kline{
			Symbol:                   event.Symbol,
			Exchange:                 exchange.ExchangeBinance,
			Interval:                 interval,
			OpenTime:                 msToTime(k.StartTime),
			CloseTime:                msToTime(k.EndTime),
			Open:                     parseFloat(k.Open),
			High:                     parseFloat(k.High),
			Low:                      parseFloat(k.Low),
			Close:                    parseFloat(k.Close),
			Volume:                   parseFloat(k.Volume),
			NumberOfTrades:           k.TradeNum,
			QuoteAssetVolume:         parseFloat(k.QuoteVolume),
			TakerBuyBaseAssetVolume:  parseFloat(k.ActiveBuyVolume),
			TakerBuyQuoteAssetVolume: parseFloat(k.ActiveBuyQuoteVolume),
			Final:                    k.IsFinal,
		}
		exchange.SafeInvoke(channel, func() {
			onKline(&exchange.KlineEvent{Klines: []*exchange.Kline{kline}})
		}, onError)
	}
	errHandler := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	doneC, stopC, err := libBinance.WsKlineServe(symbol, vendorInterval, wsHandler, errHandler)
	if err != nil {
		binding.Release()
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s, %s)", op, symbol, interval), "打开K线推送流失败", err)
	}
	metrics.SetWebSocketStatus("binance", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		stopStream(channel, stopC, doneC)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeOrderBook 订阅订单簿推送。
// 建立成功后先推送一次 REST 快照，推送流随后持续整簿替换。
func (s *SubscriptionAPI) SubscribeOrderBook(ctx context.Context, symbol string, limit int, onBook exchange.BookCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeOrderBook"
	const channel = "binance.orderbook"

	if err := exchange.ValidateCallbacks(op, onBook, onError); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}

	// 币安部分深度流只支持 5/10/20 档
	levels := 20
	switch {
	case limit > 0 && limit <= 5:
		levels = 5
	case limit > 5 && limit <= 10:
		levels = 10
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()

	buildBook := func(lastUpdateID int64, bids []libBinance.Bid, asks []libBinance.Ask) *exchange.OrderBook {
		book := &exchange.OrderBook{
			Symbol:       symbol,
			Exchange:     exchange.ExchangeBinance,
			LastUpdateID: lastUpdateID,
			UpdateTime:   time.Now(),
			Bids:         make([]exchange.OrderBookPrice, 0, len(bids)),
			Asks:         make([]exchange.OrderBookPrice, 0, len(asks)),
		}
		for _, b := range bids {
			book.Bids = append(book.Bids, exchange.OrderBookPrice{Price: parseFloat(b.Price), Quantity: parseFloat(b.Quantity)})
		}
		for _, a := range asks {
			book.Asks = append(book.Asks, exchange.OrderBookPrice{Price: parseFloat(a.Price), Quantity: parseFloat(a.Quantity)})
		}
		if len(book.Bids) > 0 {
			book.BestBid = book.Bids[0]
		}
		if len(book.Asks) > 0 {
			book.BestAsk = book.Asks[0]
		}
		return book
	}

	wsHandler := func(event *libBinance.WsPartialDepthEvent) {
		if event == nil {
			return
		}
		book := buildBook(event.LastUpdateID, event.Bids, event.Asks)
		exchange.SafeInvoke(channel, func() {
			onBook(&exchange.OrderBookEvent{OrderBook: book})
		}, onError)
	}
	errHandler := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	doneC, stopC, err := libBinance.WsPartialDepthServe(symbol, fmt.Sprintf("%d", levels), wsHandler, errHandler)
	if err != nil {
		binding.Release()
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s, %d)", op, symbol, levels), "打开订单簿推送流失败", err)
	}
	metrics.SetWebSocketStatus("binance", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		stopStream(channel, stopC, doneC)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}

	// 初始快照，避免第一帧推送到达前的空窗
	go func() {
		snapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		depth, err := libBinance.NewClient("", "").NewDepthService().
			Symbol(symbol).
			Limit(levels).
			Do(snapCtx)
		if err != nil {
			exchange.SafeOnError(channel, exchange.NewAPIError(exchange.ExchangeBinance, op, "获取初始订单簿快照失败", err), onError)
			return
		}
		book := buildBook(depth.LastUpdateID, depth.Bids, depth.Asks)
		exchange.SafeInvoke(channel, func() {
			onBook(&exchange.OrderBookEvent{OrderBook: book})
		}, onError)
	}()

	return sub, nil
}

// SubscribeSymbolStatistics 订阅多交易对的滚动行情统计。
// 交易对列表先规整去重，每个交易对一条推送流，共享同一个句柄，释放时全部关闭。
func (s *SubscriptionAPI) SubscribeSymbolStatistics(ctx context.Context, symbols []string, onStats exchange.StatsCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeSymbolStatistics"
	const channel = "binance.stats"

	if err := exchange.ValidateCallbacks(op, onStats, onError); err != nil {
		return nil, err
	}
	normalized := exchange.NormalizeSymbols(symbols)
	if len(normalized) == 0 {
		return nil, exchange.NewValidationError(op, "交易对列表不能为空")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()

	wsHandler := func(event *libBinance.WsMarketStatEvent) {
		if event == nil {
			return
		}
		stats := &exchange.SymbolStats{
			Symbol:                event.Symbol,
			Exchange:              exchange.ExchangeBinance,
			OpenTime:              msToTime(event.OpenTime),
			CloseTime:             msToTime(event.CloseTime),
			Period:                24 * time.Hour,
			OpenPrice:             parseFloat(event.OpenPrice),
			HighPrice:             parseFloat(event.HighPrice),
			LowPrice:              parseFloat(event.LowPrice),
			LastPrice:             parseFloat(event.LastPrice),
			LastQuantity:          parseFloat(event.CloseQty),
			PreviousDayClosePrice: parseFloat(event.PrevClosePrice),
			PriceChange:           parseFloat(event.PriceChange),
			PriceChangePercent:    parseFloat(event.PriceChangePercent),
			WeightedAveragePrice:  parseFloat(event.WeightedAvgPrice),
			BestBidPrice:          parseFloat(event.BidPrice),
			BestBidQuantity:       parseFloat(event.BidQty),
			BestAskPrice:          parseFloat(event.AskPrice),
			BestAskQuantity:       parseFloat(event.AskQty),
			Volume:                parseFloat(event.BaseVolume),
			QuoteVolume:           parseFloat(event.QuoteVolume),
			FirstTradeID:          event.FirstID,
			LastTradeID:           event.LastID,
			TotalTrades:           event.Count,
		}
		exchange.SafeInvoke(channel, func() {
			onStats(&exchange.StatsEvent{Statistics: []*exchange.SymbolStats{stats}})
		}, onError)
	}
	errHandler := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	type streamHandle struct {
		doneC chan struct{}
		stopC chan struct{}
	}
	streams := make([]streamHandle, 0, len(normalized))

	closeAll := func() {
		for _, h := range streams {
			stopStream(channel, h.stopC, h.doneC)
		}
	}

	for _, symbol := range normalized {
		doneC, stopC, err := wsMarketStatServe(symbol, wsHandler, errHandler)
		if err != nil {
			// 回滚已打开的推送流
			closeAll()
			binding.Release()
			return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s)", op, symbol), "打开行情统计推送流失败", err)
		}
		streams = append(streams, streamHandle{doneC: doneC, stopC: stopC})
	}
	metrics.SetWebSocketStatus("binance", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		closeAll()
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeTrades 订阅成交推送
func (s *SubscriptionAPI) SubscribeTrades(ctx context.Context, symbol string, onTrade exchange.TradeCallback, onError exchange.ErrorCallback) (exchange.ISubscription, error) {
	const op = "SubscribeTrades"
	const channel = "binance.trades"

	if err := exchange.ValidateCallbacks(op, onTrade, onError); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding := exchange.NewCancelBinding()

	wsHandler := func(event *libBinance.WsAggTradeEvent) {
		if event == nil {
			return
		}
		price := parseFloat(event.Price)
		quantity := parseFloat(event.Quantity)
		trade := &exchange.Trade{
			Symbol:        event.Symbol,
			Exchange:      exchange.ExchangeBinance,
			Time:          msToTime(event.TradeTime),
			ID:            event.AggTradeID,
			Price:         price,
			BaseQuantity:  quantity,
			QuoteQuantity: price * quantity,
		}
		exchange.SafeInvoke(channel, func() {
			onTrade(&exchange.TradeEvent{Trades: []*exchange.Trade{trade}})
		}, onError)
	}
	errHandler := func(err error) {
		exchange.SafeOnError(channel, err, onError)
	}

	doneC, stopC, err := libBinance.WsAggTradeServe(symbol, wsHandler, errHandler)
	if err != nil {
		binding.Release()
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s)", op, symbol), "打开成交推送流失败", err)
	}
	metrics.SetWebSocketStatus("binance", channel, true)

	sub := exchange.NewAsyncSubscription(func() error {
		binding.Release()
		stopStream(channel, stopC, doneC)
		metrics.RecordSubscriptionClosed(channel)
		return nil
	})

	if err := exchange.FinishEstablish(ctx, channel, sub, binding, onError); err != nil {
		return nil, err
	}
	return sub, nil
}
