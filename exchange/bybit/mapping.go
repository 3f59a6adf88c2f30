package bybit

import (
	"strconv"
	"time"

	"exgate/exchange"
)

// 枚举映射层：通用枚举 <-> Bybit v5 枚举。
// to 方向找不到映射返回错误，在发起网络请求之前失败；
// from 方向对订单状态用 StatusUnknown 兜底。
//
// Bybit 现货没有独立的止损订单类型，止损/止盈通过 Limit/Market
// 加 triggerPrice 表达，参数拼装在 rest.go 完成。

var toBybitSideMap = map[exchange.Side]string{
	exchange.SideBuy:  "Buy",
	exchange.SideSell: "Sell",
}

var toBybitOrderTypeMap = map[exchange.OrderType]string{
	exchange.OrderTypeLimit:           "Limit",
	exchange.OrderTypeMarket:          "Market",
	exchange.OrderTypeStopLoss:        "Market",
	exchange.OrderTypeStopLossLimit:   "Limit",
	exchange.OrderTypeTakeProfit:      "Market",
	exchange.OrderTypeTakeProfitLimit: "Limit",
	exchange.OrderTypeLimitMaker:      "Limit",
}

var toBybitTimeInForceMap = map[exchange.TimeInForce]string{
	exchange.TimeInForceGTC: "GTC",
	exchange.TimeInForceIOC: "IOC",
	exchange.TimeInForceFOK: "FOK",
}

// Bybit 没有 8h 周期，Interval8h 在映射层直接失败
var toBybitIntervalMap = map[exchange.KlineInterval]string{
	exchange.Interval1m:  "1",
	exchange.Interval3m:  "3",
	exchange.Interval5m:  "5",
	exchange.Interval15m: "15",
	exchange.Interval30m: "30",
	exchange.Interval1h:  "60",
	exchange.Interval2h:  "120",
	exchange.Interval4h:  "240",
	exchange.Interval6h:  "360",
	exchange.Interval12h: "720",
	exchange.Interval1d:  "D",
	exchange.Interval1w:  "W",
}

func toBybitSide(op string, side exchange.Side) (string, error) {
	if v, ok := toBybitSideMap[side]; ok {
		return v, nil
	}
	return "", exchange.NewValidationError(op, "不支持的订单方向: %s", side)
}

func toBybitOrderType(op string, t exchange.OrderType) (string, error) {
	if v, ok := toBybitOrderTypeMap[t]; ok {
		return v, nil
	}
	return "", exchange.NewValidationError(op, "不支持的订单类型: %s", t)
}

func toBybitTimeInForce(op string, tif exchange.TimeInForce) (string, error) {
	if v, ok := toBybitTimeInForceMap[tif]; ok {
		return v, nil
	}
	return "", exchange.NewValidationError(op, "不支持的订单有效方式: %s", tif)
}

func toBybitInterval(op string, interval exchange.KlineInterval) (string, error) {
	if v, ok := toBybitIntervalMap[interval]; ok {
		return v, nil
	}
	return "", exchange.NewValidationError(op, "不支持的K线周期: %s", interval)
}

var fromBybitStatusMap = map[string]exchange.OrderStatus{
	"Created":                 exchange.StatusPendingNew,
	"New":                     exchange.StatusNew,
	"PartiallyFilled":         exchange.StatusPartiallyFilled,
	"Filled":                  exchange.StatusFilled,
	"Cancelled":               exchange.StatusCanceled,
	"PartiallyFilledCanceled": exchange.StatusCanceled,
	"PendingCancel":           exchange.StatusPendingCancel,
	"Rejected":                exchange.StatusRejected,
	"Untriggered":             exchange.StatusPendingNew,
	"Triggered":               exchange.StatusNew,
	"Deactivated":             exchange.StatusExpired,
}

func fromBybitStatus(status string) exchange.OrderStatus {
	if v, ok := fromBybitStatusMap[status]; ok {
		return v
	}
	return exchange.StatusUnknown
}

func fromBybitSide(side string) exchange.Side {
	switch side {
	case "Buy":
		return exchange.SideBuy
	case "Sell":
		return exchange.SideSell
	}
	return exchange.Side(side)
}

func fromBybitOrderType(t string) exchange.OrderType {
	switch t {
	case "Limit":
		return exchange.OrderTypeLimit
	case "Market":
		return exchange.OrderTypeMarket
	}
	return exchange.OrderType(t)
}

func fromBybitTimeInForce(tif string) exchange.TimeInForce {
	switch tif {
	case "GTC", "PostOnly":
		return exchange.TimeInForceGTC
	case "IOC":
		return exchange.TimeInForceIOC
	case "FOK":
		return exchange.TimeInForceFOK
	}
	return exchange.TimeInForce(tif)
}

// parseFloat 解析 Bybit 返回的数字字符串；空串和解析失败按0处理
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseMs 解析毫秒时间戳字符串
func parseMs(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
