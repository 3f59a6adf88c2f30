package exchange

import "strings"

// Exchange 交易所标识
type Exchange string

const (
	ExchangeUnknown Exchange = ""
	ExchangeBinance Exchange = "binance"
	ExchangeBybit   Exchange = "bybit"
)

// ParseExchange 解析交易所名称
func ParseExchange(name string) Exchange {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "binance":
		return ExchangeBinance
	case "bybit":
		return ExchangeBybit
	default:
		return ExchangeUnknown
	}
}

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeStopLoss        OrderType = "STOP_LOSS"
	OrderTypeStopLossLimit   OrderType = "STOP_LOSS_LIMIT"
	OrderTypeTakeProfit      OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"
	OrderTypeLimitMaker      OrderType = "LIMIT_MAKER"
)

// IsLimitStyle 是否为限价类订单（需要提供价格）
func (t OrderType) IsLimitStyle() bool {
	switch t {
	case OrderTypeLimit, OrderTypeStopLossLimit, OrderTypeTakeProfitLimit, OrderTypeLimitMaker:
		return true
	}
	return false
}

// IsStopStyle 是否为止损/止盈类订单（需要提供触发价格）
func (t OrderType) IsStopStyle() bool {
	switch t {
	case OrderTypeStopLoss, OrderTypeStopLossLimit, OrderTypeTakeProfit, OrderTypeTakeProfitLimit:
		return true
	}
	return false
}

// OrderStatus 订单状态
// StatusUnknown 是兜底值：交易所可能随时新增状态，解析不认识的状态不报错
type OrderStatus string

const (
	StatusPendingNew      OrderStatus = "PENDING_NEW"
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusUnknown         OrderStatus = "UNKNOWN"
)

// TimeInForce 订单有效方式
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // 成交为止
	TimeInForceIOC TimeInForce = "IOC" // 立即成交并取消剩余
	TimeInForceFOK TimeInForce = "FOK" // 全部成交或立即取消
)

// KlineInterval K线周期
type KlineInterval string

const (
	Interval1m  KlineInterval = "1m"
	Interval3m  KlineInterval = "3m"
	Interval5m  KlineInterval = "5m"
	Interval15m KlineInterval = "15m"
	Interval30m KlineInterval = "30m"
	Interval1h  KlineInterval = "1h"
	Interval2h  KlineInterval = "2h"
	Interval4h  KlineInterval = "4h"
	Interval6h  KlineInterval = "6h"
	Interval8h  KlineInterval = "8h"
	Interval12h KlineInterval = "12h"
	Interval1d  KlineInterval = "1d"
	Interval1w  KlineInterval = "1w"
)

// AllKlineIntervals 全部支持的K线周期（映射层测试用）
func AllKlineIntervals() []KlineInterval {
	return []KlineInterval{
		Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
		Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
		Interval1d, Interval1w,
	}
}
