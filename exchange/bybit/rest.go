package bybit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"exgate/exchange"
	"exgate/logger"
	"exgate/metrics"
)

// RestAPI Bybit 现货请求/响应适配器
type RestAPI struct {
	client      *Client
	credentials *exchange.Credentials
	closed      atomic.Bool
}

// NewRestAPI 创建 Bybit REST 适配器
func NewRestAPI(credentials *exchange.Credentials, testnet bool, timing exchange.Timing) (*RestAPI, error) {
	if err := exchange.ValidateCredentials("NewRestAPI", credentials); err != nil {
		return nil, err
	}

	if testnet {
		logger.Info("🌐 [Bybit] 使用测试网模式")
	}

	return &RestAPI{
		client:      NewClient(credentials.APIKey, credentials.APISecret, testnet, timing.Normalized().RecvWindowMs),
		credentials: credentials,
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
	metrics.RecordAPICall("bybit", op, status, time.Since(start))
}

// GetAccountInfo 获取账户信息（余额、手续费）
func (r *RestAPI) GetAccountInfo(ctx context.Context) (acct *exchange.Account, err error) {
	const op = "GetAccountInfo"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { record(op, start, err) }()

	wallets, err := r.client.GetWalletBalance(ctx, "UNIFIED")
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op, "查询账户余额失败", err)
	}
	if len(wallets) == 0 {
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op, "交易所未返回账户数据", nil)
	}

	balances := make([]exchange.Balance, 0, len(wallets[0].Coins))
	for _, c := range wallets[0].Coins {
		total := parseFloat(c.WalletBalance)
		locked := parseFloat(c.Locked)
		if total == 0 && locked == 0 {
			continue
		}
		balances = append(balances, exchange.Balance{
			Asset:  c.Coin,
			Free:   total - locked,
			Locked: locked,
		})
	}

	// 手续费率按账户维度取第一条；查询失败不阻塞账户信息
	var buyerFee, sellerFee float64
	if fees, feeErr := r.client.GetFeeRates(ctx, ""); feeErr == nil && len(fees) > 0 {
		buyerFee = parseFloat(fees[0].MakerFeeRate)
		sellerFee = parseFloat(fees[0].TakerFeeRate)
	} else if feeErr != nil {
		logger.Warn("⚠️ [Bybit] 查询手续费率失败: %v", feeErr)
	}

	return &exchange.Account{
		Name:      r.credentials.AccountName,
		Exchange:  exchange.ExchangeBybit,
		Time:      time.Now(),
		BuyerFee:  buyerFee,
		SellerFee: sellerFee,
		Balances:  balances,
	}, nil
}

// PlaceOrder 下单；recvWindow 为毫秒，<=0 表示使用交易所默认值。
// 止损/止盈类订单通过 triggerPrice 表达，LIMIT_MAKER 通过 PostOnly 表达。
func (r *RestAPI) PlaceOrder(ctx context.Context, order *exchange.ClientOrder, recvWindow int) (result *exchange.Order, err error) {
	const op = "PlaceOrder"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := exchange.ValidateClientOrder(op, order); err != nil {
		return nil, err
	}

	side, err := toBybitSide(op, order.Side)
	if err != nil {
		return nil, err
	}
	orderType, err := toBybitOrderType(op, order.Type)
	if err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"category":  categorySpot,
		"symbol":    order.Symbol,
		"side":      side,
		"orderType": orderType,
		"qty":       strconv.FormatFloat(order.Quantity, 'f', -1, 64),
	}

	// 市价单数量按基础币种计
	if orderType == "Market" {
		params["marketUnit"] = "baseCoin"
	}

	if order.Type.IsLimitStyle() {
		params["price"] = strconv.FormatFloat(order.Price, 'f', -1, 64)
	}

	if order.Type == exchange.OrderTypeLimitMaker {
		params["timeInForce"] = "PostOnly"
	} else if order.Type.IsLimitStyle() && order.TimeInForce != "" {
		tif, tifErr := toBybitTimeInForce(op, order.TimeInForce)
		if tifErr != nil {
			return nil, tifErr
		}
		params["timeInForce"] = tif
	}

	if order.Type.IsStopStyle() {
		params["triggerPrice"] = strconv.FormatFloat(order.StopPrice, 'f', -1, 64)
		params["orderFilter"] = "StopOrder"
	}

	start := time.Now()
	defer func() { record(op, start, err) }()

	resp, err := r.client.PlaceOrder(ctx, params, recvWindow)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op, "下单失败", err)
	}

	now := time.Now()
	return &exchange.Order{
		AccountName:       r.credentials.AccountName,
		Exchange:          exchange.ExchangeBybit,
		Symbol:            order.Symbol,
		ID:                resp.OrderID,
		ClientOrderID:     resp.OrderLinkID,
		Price:             order.Price,
		StopPrice:         order.StopPrice,
		OriginalQuantity:  order.Quantity,
		QuantityRemaining: order.Quantity,
		Status:            exchange.StatusNew,
		TimeInForce:       order.TimeInForce,
		Type:              order.Type,
		Side:              order.Side,
		CreatedTime:       now,
		TransactTime:      now,
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
	if strings.TrimSpace(orderID) == "" {
		return "", exchange.NewValidationError(op, "订单ID不能为空")
	}

	start := time.Now()
	defer func() { record(op, start, err) }()

	resp, err := r.client.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return "", exchange.NewAPIError(exchange.ExchangeBybit, op,
			fmt.Sprintf("撤销订单 %s 失败", orderID), err)
	}

	return resp.OrderLinkID, nil
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

	start := time.Now()
	defer func() { record(op, start, err) }()

	resp, err := r.client.GetOpenOrders(ctx, symbol, recvWindow)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op, "查询未完成订单失败", err)
	}

	orders = make([]*exchange.Order, 0, len(resp))
	for _, o := range resp {
		orders = append(orders, r.convertOrder(&o))
	}

	return orders, nil
}

// convertOrder Bybit 订单转通用订单
func (r *RestAPI) convertOrder(o *Order) *exchange.Order {
	status := fromBybitStatus(o.OrderStatus)
	return &exchange.Order{
		AccountName:       r.credentials.AccountName,
		Exchange:          exchange.ExchangeBybit,
		Symbol:            o.Symbol,
		ID:                o.OrderID,
		ClientOrderID:     o.OrderLinkID,
		Price:             parseFloat(o.Price),
		AverageFillPrice:  parseFloat(o.AvgPrice),
		StopPrice:         parseFloat(o.TriggerPrice),
		OriginalQuantity:  parseFloat(o.Qty),
		QuantityFilled:    parseFloat(o.CumExecQty),
		QuantityRemaining: parseFloat(o.LeavesQty),
		Status:            status,
		TimeInForce:       fromBybitTimeInForce(o.TimeInForce),
		Type:              fromBybitOrderType(o.OrderType),
		Side:              fromBybitSide(o.Side),
		CreatedTime:       parseMs(o.CreatedTime),
		TransactTime:      parseMs(o.CreatedTime),
		UpdateTime:        parseMs(o.UpdatedTime),
		IsWorking: status == exchange.StatusNew ||
			status == exchange.StatusPartiallyFilled ||
			status == exchange.StatusPendingNew,
	}
}

// GetKlines 查询历史K线；Bybit 返回倒序，这里转成时间升序
func (r *RestAPI) GetKlines(ctx context.Context, symbol string, interval exchange.KlineInterval, start, end time.Time, limit int) (klines []*exchange.Kline, err error) {
	const op = "GetKlines"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := exchange.ValidateSymbol(op, symbol); err != nil {
		return nil, err
	}
	if err := exchange.ValidateTimeRange(op, start, end); err != nil {
		return nil, err
	}
	vendorInterval, err := toBybitInterval(op, interval)
	if err != nil {
		return nil, err
	}

	var startMs, endMs int64
	if !start.IsZero() {
		startMs = start.UnixMilli()
	}
	if !end.IsZero() {
		endMs = end.UnixMilli()
	}

	began := time.Now()
	defer func() { record(op, began, err) }()

	resp, err := r.client.GetKlines(ctx, symbol, vendorInterval, startMs, endMs, limit)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op,
			fmt.Sprintf("查询K线失败 (%s %s)", symbol, interval), err)
	}

	span := intervalDuration(interval)
	now := time.Now()

	klines = make([]*exchange.Kline, 0, len(resp))
	for i := len(resp) - 1; i >= 0; i-- {
		row := resp[i]
		if len(row) < 7 {
			continue
		}
		openTime := parseMs(row[0])
		closeTime := openTime.Add(span - time.Millisecond)
		klines = append(klines, &exchange.Kline{
			Symbol:           symbol,
			Exchange:         exchange.ExchangeBybit,
			Interval:         interval,
			OpenTime:         openTime,
			CloseTime:        closeTime,
			Open:             parseFloat(row[1]),
			High:             parseFloat(row[2]),
			Low:              parseFloat(row[3]),
			Close:            parseFloat(row[4]),
			Volume:           parseFloat(row[5]),
			QuoteAssetVolume: parseFloat(row[6]),
			Final:            closeTime.Before(now),
		})
	}

	return klines, nil
}

// intervalDuration K线周期对应的时长
func intervalDuration(interval exchange.KlineInterval) time.Duration {
	switch interval {
	case exchange.Interval1m:
		return time.Minute
	case exchange.Interval3m:
		return 3 * time.Minute
	case exchange.Interval5m:
		return 5 * time.Minute
	case exchange.Interval15m:
		return 15 * time.Minute
	case exchange.Interval30m:
		return 30 * time.Minute
	case exchange.Interval1h:
		return time.Hour
	case exchange.Interval2h:
		return 2 * time.Hour
	case exchange.Interval4h:
		return 4 * time.Hour
	case exchange.Interval6h:
		return 6 * time.Hour
	case exchange.Interval8h:
		return 8 * time.Hour
	case exchange.Interval12h:
		return 12 * time.Hour
	case exchange.Interval1d:
		return 24 * time.Hour
	case exchange.Interval1w:
		return 7 * 24 * time.Hour
	}
	return time.Minute
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

	start := time.Now()
	defer func() { record(op, start, err) }()

	resp, err := r.client.GetOrderBook(ctx, symbol, limit)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op,
			fmt.Sprintf("查询订单簿失败 (%s)", symbol), err)
	}

	book = &exchange.OrderBook{
		Symbol:       symbol,
		Exchange:     exchange.ExchangeBybit,
		LastUpdateID: resp.UpdateID,
		UpdateTime:   time.UnixMilli(resp.Time),
		Bids:         convertLevels(resp.Bids),
		Asks:         convertLevels(resp.Asks),
	}
	if len(book.Bids) > 0 {
		book.BestBid = book.Bids[0]
	}
	if len(book.Asks) > 0 {
		book.BestAsk = book.Asks[0]
	}

	return book, nil
}

func convertLevels(levels [][]string) []exchange.OrderBookPrice {
	result := make([]exchange.OrderBookPrice, 0, len(levels))
	for _, l := range levels {
		if len(l) < 2 {
			continue
		}
		result = append(result, exchange.OrderBookPrice{
			Price:    parseFloat(l[0]),
			Quantity: parseFloat(l[1]),
		})
	}
	return result
}

// GetSymbols 查询全部交易对元数据，只返回可交易状态的交易对
func (r *RestAPI) GetSymbols(ctx context.Context) (symbols []*exchange.Symbol, err error) {
	const op = "GetSymbols"
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { record(op, start, err) }()

	resp, err := r.client.GetInstruments(ctx, "")
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op, "查询交易对失败", err)
	}

	symbols = make([]*exchange.Symbol, 0, len(resp))
	for _, inst := range resp {
		if inst.Status != "Trading" {
			continue
		}

		lotSize := parseFloat(inst.LotSizeFilter.QtyStep)
		if lotSize == 0 {
			lotSize = parseFloat(inst.LotSizeFilter.BasePrecision)
		}

		symbols = append(symbols, &exchange.Symbol{
			Name:           inst.BaseCoin + "/" + inst.QuoteCoin,
			Exchange:       exchange.ExchangeBybit,
			ExchangeSymbol: inst.Symbol,
			BaseAsset: exchange.Asset{
				Symbol:    inst.BaseCoin,
				Precision: precisionOf(inst.LotSizeFilter.BasePrecision),
			},
			QuoteAsset: exchange.Asset{
				Symbol:    inst.QuoteCoin,
				Precision: precisionOf(inst.LotSizeFilter.QuotePrecision),
			},
			OrderTypes: []exchange.OrderType{
				exchange.OrderTypeLimit,
				exchange.OrderTypeMarket,
				exchange.OrderTypeLimitMaker,
			},
			NotionalMinimumValue: parseFloat(inst.LotSizeFilter.MinOrderAmt),
			TickSize:             parseFloat(inst.PriceFilter.TickSize),
			LotSize:              lotSize,
		})
	}

	return symbols, nil
}

// precisionOf 从步长字符串推导小数位数，如 "0.001" -> 3
func precisionOf(step string) int {
	idx := strings.IndexByte(step, '.')
	if idx < 0 {
		return 0
	}
	frac := strings.TrimRight(step[idx+1:], "0")
	return len(frac)
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

	start := time.Now()
	defer func() { record(op, start, err) }()

	resp, err := r.client.GetRecentTrades(ctx, symbol, limit)
	if err != nil {
		return nil, exchange.NewAPIError(exchange.ExchangeBybit, op,
			fmt.Sprintf("查询成交记录失败 (%s)", symbol), err)
	}

	trades = make([]*exchange.Trade, 0, len(resp))
	for _, t := range resp {
		price := parseFloat(t.Price)
		qty := parseFloat(t.Size)
		id, _ := strconv.ParseInt(t.ExecID, 10, 64)
		trades = append(trades, &exchange.Trade{
			Symbol:        symbol,
			Exchange:      exchange.ExchangeBybit,
			Time:          parseMs(t.Time),
			ID:            id,
			Price:         price,
			BaseQuantity:  qty,
			QuoteQuantity: price * qty,
		})
	}

	return trades, nil
}

// Close 释放底层客户端（幂等）
func (r *RestAPI) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		logger.Debug("🛑 [Bybit] REST 适配器已释放")
	}
	return nil
}
