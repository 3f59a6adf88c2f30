package binance

import (
	"strconv"
	"time"

	libBinance "github.com/adshao/go-binance/v2"

	"exgate/exchange"
)

// 枚举映射层：通用枚举 <-> 币安枚举。
// to 方向找不到映射返回错误，在发起网络请求之前失败；
// from 方向对订单状态用 StatusUnknown 兜底，交易所新增状态不会中断解析。

var toBinanceSideMap = map[exchange.Side]libBinance.SideType{
	exchange.SideBuy:  libBinance.SideTypeBuy,
	exchange.SideSell: libBinance.SideTypeSell,
}

var toBinanceOrderTypeMap = map[exchange.OrderType]libBinance.OrderType{
	exchange.OrderTypeLimit:           libBinance.OrderTypeLimit,
	exchange.OrderTypeMarket:          libBinance.OrderTypeMarket,
	exchange.OrderTypeStopLoss:        libBinance.OrderTypeStopLoss,
	exchange.OrderTypeStopLossLimit:   libBinance.OrderTypeStopLossLimit,
	exchange.OrderTypeTakeProfit:      libBinance.OrderTypeTakeProfit,
	exchange.OrderTypeTakeProfitLimit: libBinance.OrderTypeTakeProfitLimit,
	exchange.OrderTypeLimitMaker:      libBinance.OrderTypeLimitMaker,
}

var toBinanceTimeInForceMap = map[exchange.TimeInForce]libBinance.TimeInForceType{
	exchange.TimeInForceGTC: libBinance.TimeInForceTypeGTC,
	exchange.TimeInForceIOC: libBinance.TimeInForceTypeIOC,
	exchange.TimeInForceFOK: libBinance.TimeInForceTypeFOK,
}

var toBinanceIntervalMap = map[exchange.KlineInterval]string{
	exchange.Interval1m:  "1m",
	exchange.Interval3m:  "3m",
	exchange.Interval5m:  "5m",
	exchange.Interval15m: "15m",
	exchange.Interval30m: "30m",
	exchange.Interval1h:  "1h",
	exchange.Interval2h:  "2h",
	exchange.Interval4h:  "4h",
	exchange.Interval6h:  "6h",
	exchange.Interval8h:  "8h",
	exchange.Interval12h: "12h",
	exchange.Interval1d:  "1d",
	exchange.Interval1w:  "1w",
}

func toBinanceSide(op string, side exchange.Side) (libBinance.SideType, error) {
	if v, ok := toBinanceSideMap[side]; ok {
		return v, nil
	}
	return "", exchange.NewValidationError(op, "不支持的订单方向: %s", side)
}

func toBinanceOrderType(op string, t exchange.OrderType) (libBinance.OrderType, error) {
	if v, ok := toBinanceOrderTypeMap[t]; ok {
		return v, nil
	}
	return "", exchange.NewValidationError(op, "不支持的订单类型: %s", t)
}

func toBinanceTimeInForce(op string, tif exchange.TimeInForce) (libBinance.TimeInForceType, error) {
	if v, ok := toBinanceTimeInForceMap[tif]; ok {
		return v, nil
	}
	return "", exchange.NewValidationError(op, "不支持的订单有效方式: %s", tif)
}

func toBinanceInterval(op string, interval exchange.KlineInterval) (string, error) {
	if v, ok := toBinanceIntervalMap[interval]; ok {
		return v, nil
	}
	return "", exchange.NewValidationError(op, "不支持的K线周期: %s", interval)
}

var fromBinanceStatusMap = map[libBinance.OrderStatusType]exchange.OrderStatus{
	libBinance.OrderStatusTypeNew:             exchange.StatusNew,
	libBinance.OrderStatusTypePartiallyFilled: exchange.StatusPartiallyFilled,
	libBinance.OrderStatusTypeFilled:          exchange.StatusFilled,
	libBinance.OrderStatusTypeCanceled:        exchange.StatusCanceled,
	libBinance.OrderStatusTypePendingCancel:   exchange.StatusPendingCancel,
	libBinance.OrderStatusTypeRejected:        exchange.StatusRejected,
	libBinance.OrderStatusTypeExpired:         exchange.StatusExpired,
}

func fromBinanceStatus(status libBinance.OrderStatusType) exchange.OrderStatus {
	if v, ok := fromBinanceStatusMap[status]; ok {
		return v
	}
	return exchange.StatusUnknown
}

var fromBinanceSideMap = map[libBinance.SideType]exchange.Side{
	libBinance.SideTypeBuy:  exchange.SideBuy,
	libBinance.SideTypeSell: exchange.SideSell,
}

func fromBinanceSide(side libBinance.SideType) exchange.Side {
	if v, ok := fromBinanceSideMap[side]; ok {
		return v
	}
	return exchange.Side(side)
}

var fromBinanceOrderTypeMap = func() map[libBinance.OrderType]exchange.OrderType {
	m := make(map[libBinance.OrderType]exchange.OrderType, len(toBinanceOrderTypeMap))
	for k, v := range toBinanceOrderTypeMap {
		m[v] = k
	}
	return m
}()

func fromBinanceOrderType(t libBinance.OrderType) exchange.OrderType {
	if v, ok := fromBinanceOrderTypeMap[t]; ok {
		return v
	}
	return exchange.OrderType(t)
}

var fromBinanceTimeInForceMap = map[libBinance.TimeInForceType]exchange.TimeInForce{
	libBinance.TimeInForceTypeGTC: exchange.TimeInForceGTC,
	libBinance.TimeInForceTypeIOC: exchange.TimeInForceIOC,
	libBinance.TimeInForceTypeFOK: exchange.TimeInForceFOK,
}

func fromBinanceTimeInForce(tif libBinance.TimeInForceType) exchange.TimeInForce {
	if v, ok := fromBinanceTimeInForceMap[tif]; ok {
		return v
	}
	return exchange.TimeInForce(tif)
}

// parseFloat 解析币安返回的数字字符串；空串和解析失败按0处理
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

// msToTime 毫秒时间戳转 time.Time
func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
