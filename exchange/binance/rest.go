package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	libBinance "github.com/adshao/go-binance/v2"

	"exgate/exchange"
	"exgate/logger"
	"exgate/metrics"
)

// RestAPI 币安现货请求/响应适配器
type RestAPI struct {
	client      *libBinance.Client
	credentials *exchange.Credentials
	recvWindow  int
	closed      atomic.Bool
}

// NewRestAPI 创建币安 REST 适配器
func NewRestAPI(credentials *exchange.Credentials, testnet bool, timing exchange.Timing) (*RestAPI, error) {
	if err := exchange.ValidateCredentials("NewRestAPI", credentials); err != nil {
		return nil, err
	}

	// 测试网开关必须在创建客户端之前设置
	libBinance.UseTestnet = testnet
	if testnet {
		logger.Info("🌐 [Binance] 使用测试网模式")
	}

	client := libBinance.NewClient(credentials.APIKey, credentials.APISecret)

	return &RestAPI{
		client:      client,
		credentials: credentials,
		recvWindow:  timing.Normalized().RecvWindowMs,
	}, nil
}

// ensureOpen 释放后所有调用快速失败，不再发起网络请求
func (r *RestAPI) ensureOpen() error {
	if r.closed.Load() {
		return exchange.ErrDisposed
	}
	return nil
}

// record 记录 REST 调用指标
func record(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordAPICall("binance", op, status, time.Since(start))
}

// recvOpts 构造接收窗口选项；recvWindow <= 0 时回落到配置的默认窗口
func (r *RestAPI) recvOpts(recvWindow int) []libBinance.RequestOption {
	if recvWindow <= 0 {
		recvWindow = r.recvWindow
	}
	if recvWindow > 0 {
		return []libBinance.RequestOption{libBinance.WithRecvWindow(int64(recvWindow))}
	}
	return nil
}

// GetAccountInfo 获取账户信息（余额、手续费）
func (r *RestAPI) GetAccountInfo(ctx context.Context) (acct *exchange.Account, err error) {
	const op = "GetAccountInfo"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { record(op, start, err) }()

	resp, err := r.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, op, "查询账户失败", err)
	}
	if resp == nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, op, "交易所未返回账户数据", nil)
	}

	balances := make([]exchange.Balance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		free := parseFloat(b.Free)
		locked := parseFloat(b.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		balances = append(balances, exchange.Balance{
			Asset:  b.Asset,
			Free:   free,
			Locked: locked,
		})
	}

	return &exchange.Account{
		Name:      r.credentials.AccountName,
		Exchange:  exchange.ExchangeBinance,
		Time:      time.Now(),
		BuyerFee:  float64(resp.MakerCommission) / 10000,
		SellerFee: float64(resp.TakerCommission) / 10000,
		Balances:  balances,
	}, nil
}

// PlaceOrder 下单；recvWindow 为毫秒，<=0 表示使用交易所默认值
func (r *RestAPI) PlaceOrder(ctx context.Context, order *exchange.ClientOrder, recvWindow int) (result *exchange.Order, err error) {
	const op = "PlaceOrder"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := exchange.ValidateClientOrder(op, order); err != nil {
		return nil, err
	}

	side, err := toBinanceSide(op, order.Side)
	if err != nil {
		return nil, err
	}
	orderType, err := toBinanceOrderType(op, order.Type)
	if err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(order.Symbol))
	svc := r.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(orderType).
		Quantity(strconv.FormatFloat(order.Quantity, 'f', -1, 64))

	if order.Type.IsLimitStyle() {
		tif := order.TimeInForce
		if tif == "" {
			tif = exchange.TimeInForceGTC
		}
		// 市价类订单不接受有效方式参数
		if order.Type != exchange.OrderTypeLimitMaker {
			vendorTIF, err := toBinanceTimeInForce(op, tif)
			if err != nil {
				return nil, err
			}
			svc = svc.TimeInForce(vendorTIF)
		}
		svc = svc.Price(strconv.FormatFloat(order.Price, 'f', -1, 64))
	}
	if order.Type.IsStopStyle() {
		svc = svc.StopPrice(strconv.FormatFloat(order.StopPrice, 'f', -1, 64))
	}

	start := time.Now()
	defer func() { record(op, start, err) }()
	resp, err := svc.Do(ctx, r.recvOpts(recvWindow)...)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s, %s, %s)", op, symbol, order.Side, order.Type), "下单失败", err)
	}
	if resp == nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, op, "交易所未返回订单数据", nil)
	}

	origQty := parseFloat(resp.OrigQuantity)
	executedQty := parseFloat(resp.ExecutedQuantity)
	cumQuote := parseFloat(resp.CummulativeQuoteQuantity)

	var avgPrice float64
	if executedQty > 0 {
		avgPrice = cumQuote / executedQty
	}

	return &exchange.Order{
		AccountName:       r.credentials.AccountName,
		Exchange:          exchange.ExchangeBinance,
		Symbol:            symbol,
		ID:                strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID:     resp.ClientOrderID,
		Price:             parseFloat(resp.Price),
		AverageFillPrice:  avgPrice,
		StopPrice:         order.StopPrice,
		OriginalQuantity:  origQty,
		QuantityFilled:    executedQty,
		QuantityRemaining: origQty - executedQty,
		Status:            fromBinanceStatus(resp.Status),
		TimeInForce:       fromBinanceTimeInForce(resp.TimeInForce),
		Type:              fromBinanceOrderType(resp.Type),
		Side:              fromBinanceSide(resp.Side),
		CreatedTime:       msToTime(resp.TransactTime),
		TransactTime:      msToTime(resp.TransactTime),
		UpdateTime:        msToTime(resp.TransactTime),
		IsWorking:         true,
	}, nil
}

// CancelOrder 撤单，返回被确认撤销的客户端订单ID
func (r *RestAPI) CancelOrder(ctx context.Context, symbol, orderID string) (clientOrderID string, err error) {
	const op = "CancelOrder"
	if err := r.ensureOpen(); err != nil {
		return "", err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return "", err
	}

	id, parseErr := strconv.ParseInt(strings.TrimSpace(orderID), 10, 64)
	if parseErr != nil {
		return "", exchange.NewValidationError(op, "订单ID必须是数字: %q", orderID)
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	start := time.Now()
	defer func() { record(op, start, err) }()
	resp, err := r.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return "", exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s, %s)", op, symbol, orderID), "撤单失败", err)
	}
	if resp == nil {
		return "", exchange.NewAPIError(exchange.ExchangeBinance, op, "交易所未返回撤单数据", nil)
	}

	return resp.OrigClientOrderID, nil
}

// GetOpenOrders 查询未完成订单
func (r *RestAPI) GetOpenOrders(ctx context.Context, symbol string, recvWindow int) (orders []*exchange.Order, err error) {
	const op = "GetOpenOrders"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	start := time.Now()
	defer func() { record(op, start, err) }()
	resp, err := r.client.NewListOpenOrdersService().
		Symbol(symbol).
		Do(ctx, r.recvOpts(recvWindow)...)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s)", op, symbol), "查询未完成订单失败", err)
	}

	orders = make([]*exchange.Order, 0, len(resp))
	for _, o := range resp {
		origQty := parseFloat(o.OrigQuantity)
		executedQty := parseFloat(o.ExecutedQuantity)
		cumQuote := parseFloat(o.CummulativeQuoteQuantity)

		var avgPrice float64
		if executedQty > 0 {
			avgPrice = cumQuote / executedQty
		}

		orders = append(orders, &exchange.Order{
			AccountName:       r.credentials.AccountName,
			Exchange:          exchange.ExchangeBinance,
			Symbol:            o.Symbol,
			ID:                strconv.FormatInt(o.OrderID, 10),
			ClientOrderID:     o.ClientOrderID,
			Price:             parseFloat(o.Price),
			AverageFillPrice:  avgPrice,
			StopPrice:         parseFloat(o.StopPrice),
			OriginalQuantity:  origQty,
			QuantityFilled:    executedQty,
			QuantityRemaining: origQty - executedQty,
			Status:            fromBinanceStatus(o.Status),
			TimeInForce:       fromBinanceTimeInForce(o.TimeInForce),
			Type:              fromBinanceOrderType(o.Type),
			Side:              fromBinanceSide(o.Side),
			CreatedTime:       msToTime(o.Time),
			TransactTime:      msToTime(o.Time),
			UpdateTime:        msToTime(o.UpdateTime),
			IsWorking:         o.IsWorking,
		})
	}

	return orders, nil
}

// GetKlines 查询历史K线；limit <=0 表示交易所默认条数
func (r *RestAPI) GetKlines(ctx context.Context, symbol string, interval exchange.KlineInterval, start, end time.Time, limit int) (klines []*exchange.Kline, err error) {
	const op = "GetKlines"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}
	if !start.IsZero() && !end.IsZero() {
		if err := exchange.ValidateTimeRange(op, start, end); err != nil {
			return nil, err
		}
	}
	vendorInterval, err := toBinanceInterval(op, interval)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	svc := r.client.NewKlinesService().
		Symbol(symbol).
		Interval(vendorInterval)
	if !start.IsZero() {
		svc = svc.StartTime(start.UnixMilli())
	}
	if !end.IsZero() {
		svc = svc.EndTime(end.UnixMilli())
	}
	if limit > 0 {
		svc = svc.Limit(limit)
	}

	began := time.Now()
	defer func() { record(op, began, err) }()
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s, %s)", op, symbol, interval), "查询K线失败", err)
	}

	now := time.Now()
	klines = make([]*exchange.Kline, 0, len(resp))
	for _, k := range resp {
		closeTime := msToTime(k.CloseTime)
		klines = append(klines, &exchange.Kline{
			Symbol:                   symbol,
			Exchange:                 exchange.ExchangeBinance,
			Interval:                 interval,
			OpenTime:                 msToTime(k.OpenTime),
			CloseTime:                closeTime,
			Open:                     parseFloat(k.Open),
			High:                     parseFloat(k.High),
			Low:                      parseFloat(k.Low),
			Close:                    parseFloat(k.Close),
			Volume:                   parseFloat(k.Volume),
			NumberOfTrades:           k.TradeNum,
			QuoteAssetVolume:         parseFloat(k.QuoteAssetVolume),
			TakerBuyBaseAssetVolume:  parseFloat(k.TakerBuyBaseAssetVolume),
			TakerBuyQuoteAssetVolume: parseFloat(k.TakerBuyQuoteAssetVolume),
			Final:                    closeTime.Before(now),
		})
	}

	return klines, nil
}

// GetOrderBook 查询订单簿快照
func (r *RestAPI) GetOrderBook(ctx context.Context, symbol string, limit int) (book *exchange.OrderBook, err error) {
	const op = "GetOrderBook"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	svc := r.client.NewDepthService().Symbol(symbol)
	if limit > 0 {
		svc = svc.Limit(limit)
	}

	start := time.Now()
	defer func() { record(op, start, err) }()
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s)", op, symbol), "查询订单簿失败", err)
	}
	if resp == nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, op, "交易所未返回订单簿数据", nil)
	}

	book = &exchange.OrderBook{
		Symbol:       symbol,
		Exchange:     exchange.ExchangeBinance,
		LastUpdateID: resp.LastUpdateID,
		UpdateTime:   time.Now(),
		Bids:         make([]exchange.OrderBookPrice, 0, len(resp.Bids)),
		Asks:         make([]exchange.OrderBookPrice, 0, len(resp.Asks)),
	}
	for _, b := range resp.Bids {
		book.Bids = append(book.Bids, exchange.OrderBookPrice{Price: parseFloat(b.Price), Quantity: parseFloat(b.Quantity)})
	}
	for _, a := range resp.Asks {
		book.Asks = append(book.Asks, exchange.OrderBookPrice{Price: parseFloat(a.Price), Quantity: parseFloat(a.Quantity)})
	}
	if len(book.Bids) > 0 {
		book.BestBid = book.Bids[0]
	}
	if len(book.Asks) > 0 {
		book.BestAsk = book.Asks[0]
	}

	return book, nil
}

// GetSymbols 查询全部交易对元数据
func (r *RestAPI) GetSymbols(ctx context.Context) (symbols []*exchange.Symbol, err error) {
	const op = "GetSymbols"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { record(op, start, err) }()
	info, err := r.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, op, "查询交易所信息失败", err)
	}
	if info == nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, op, "交易所未返回交易对数据", nil)
	}

	symbols = make([]*exchange.Symbol, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}

		orderTypes := make([]exchange.OrderType, 0, len(s.OrderTypes))
		for _, ot := range s.OrderTypes {
			orderTypes = append(orderTypes, fromBinanceOrderType(libBinance.OrderType(ot)))
		}

		sym := &exchange.Symbol{
			Name:           s.Symbol,
			Exchange:       exchange.ExchangeBinance,
			ExchangeSymbol: s.Symbol,
			BaseAsset:      exchange.Asset{Symbol: s.BaseAsset, Precision: s.BaseAssetPrecision},
			QuoteAsset:     exchange.Asset{Symbol: s.QuoteAsset, Precision: s.QuotePrecision},
			OrderTypes:     orderTypes,
		}

		// 过滤器是弱类型结构，逐项安全提取
		for _, f := range s.Filters {
			filterType, _ := f["filterType"].(string)
			switch filterType {
			case "PRICE_FILTER":
				if v, ok := f["tickSize"].(string); ok {
					sym.TickSize = parseFloat(v)
				}
			case "LOT_SIZE":
				if v, ok := f["stepSize"].(string); ok {
					sym.LotSize = parseFloat(v)
				}
			case "MIN_NOTIONAL", "NOTIONAL":
				if v, ok := f["minNotional"].(string); ok {
					sym.NotionalMinimumValue = parseFloat(v)
				}
			}
		}

		symbols = append(symbols, sym)
	}

	return symbols, nil
}

// GetTrades 查询最近成交
func (r *RestAPI) GetTrades(ctx context.Context, symbol string, limit int) (trades []*exchange.Trade, err error) {
	const op = "GetTrades"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	svc := r.client.NewRecentTradesService().Symbol(symbol)
	if limit > 0 {
		svc = svc.Limit(limit)
	}

	start := time.Now()
	defer func() { record(op, start, err) }()
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBinance, fmt.Sprintf("%s(%s)", op, symbol), "查询最近成交失败", err)
	}

	trades = make([]*exchange.Trade, 0, len(resp))
	for _, t := range resp {
		trades = append(trades, &exchange.Trade{
			Symbol:        symbol,
			Exchange:      exchange.ExchangeBinance,
			Time:          msToTime(t.Time),
			ID:            t.ID,
			Price:         parseFloat(t.Price),
			BaseQuantity:  parseFloat(t.Quantity),
			QuoteQuantity: parseFloat(t.QuoteQuantity),
		})
	}

	return trades, nil
}

// Close 释放底层客户端（幂等）；释放后所有调用返回 ErrDisposed
func (r *RestAPI) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		logger.Debug("🛑 [Binance] REST 适配器已释放")
	}
	return nil
}
