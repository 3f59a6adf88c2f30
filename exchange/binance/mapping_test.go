package binance

import (
	"testing"

	libBinance "github.com/adshao/go-binance/v2"

	"exgate/exchange"
)

func TestSideRoundTrip(t *testing.T) {
	for _, side := range []exchange.Side{exchange.SideBuy, exchange.SideSell} {
		vendor, err := toBinanceSide("Test", side)
		if err != nil {
			t.Fatalf("方向 %s 映射失败: %v", side, err)
		}
		if back := fromBinanceSide(vendor); back != side {
			t.Errorf("方向 %s 往返映射不一致, 得到 %s", side, back)
		}
	}

	if _, err := toBinanceSide("Test", exchange.Side("HOLD")); err == nil {
		t.Error("未知方向应该报错")
	}
	if !exchange.IsValidation(func() error {
		_, err := toBinanceSide("Test", exchange.Side("HOLD"))
		return err
	}()) {
		t.Error("未知方向应返回参数校验错误")
	}
}

func TestOrderTypeRoundTrip(t *testing.T) {
	all := []exchange.OrderType{
		exchange.OrderTypeLimit, exchange.OrderTypeMarket,
		exchange.OrderTypeStopLoss, exchange.OrderTypeStopLossLimit,
		exchange.OrderTypeTakeProfit, exchange.OrderTypeTakeProfitLimit,
		exchange.OrderTypeLimitMaker,
	}
	for _, ot := range all {
		vendor, err := toBinanceOrderType("Test", ot)
		if err != nil {
			t.Fatalf("订单类型 %s 映射失败: %v", ot, err)
		}
		if back := fromBinanceOrderType(vendor); back != ot {
			t.Errorf("订单类型 %s 往返映射不一致, 得到 %s", ot, back)
		}
	}

	if _, err := toBinanceOrderType("Test", exchange.OrderType("ICEBERG")); err == nil {
		t.Error("未知订单类型应该报错")
	}
}

func TestTimeInForceRoundTrip(t *testing.T) {
	all := []exchange.TimeInForce{exchange.TimeInForceGTC, exchange.TimeInForceIOC, exchange.TimeInForceFOK}
	for _, tif := range all {
		vendor, err := toBinanceTimeInForce("Test", tif)
		if err != nil {
			t.Fatalf("有效方式 %s 映射失败: %v", tif, err)
		}
		if back := fromBinanceTimeInForce(vendor); back != tif {
			t.Errorf("有效方式 %s 往返映射不一致, 得到 %s", tif, back)
		}
	}

	if _, err := toBinanceTimeInForce("Test", exchange.TimeInForce("GTX")); err == nil {
		t.Error("未知有效方式应该报错")
	}
}

func TestIntervalMappingComplete(t *testing.T) {
	for _, interval := range exchange.AllKlineIntervals() {
		vendor, err := toBinanceInterval("Test", interval)
		if err != nil {
			t.Errorf("K线周期 %s 映射失败: %v", interval, err)
			continue
		}
		if vendor == "" {
			t.Errorf("K线周期 %s 映射结果为空", interval)
		}
	}

	if _, err := toBinanceInterval("Test", exchange.KlineInterval("13m")); err == nil {
		t.Error("未知K线周期应该报错")
	}
}

func TestStatusUnknownFallback(t *testing.T) {
	known := map[libBinance.OrderStatusType]exchange.OrderStatus{
		libBinance.OrderStatusTypeNew:             exchange.StatusNew,
		libBinance.OrderStatusTypePartiallyFilled: exchange.StatusPartiallyFilled,
		libBinance.OrderStatusTypeFilled:          exchange.StatusFilled,
		libBinance.OrderStatusTypeCanceled:        exchange.StatusCanceled,
		libBinance.OrderStatusTypePendingCancel:   exchange.StatusPendingCancel,
		libBinance.OrderStatusTypeRejected:        exchange.StatusRejected,
		libBinance.OrderStatusTypeExpired:         exchange.StatusExpired,
	}
	for vendor, want := range known {
		if got := fromBinanceStatus(vendor); got != want {
			t.Errorf("状态 %s 应映射为 %s, 实际 %s", vendor, want, got)
		}
	}

	// 交易所新增的状态不中断解析
	if got := fromBinanceStatus(libBinance.OrderStatusType("EXOTIC_STATE")); got != exchange.StatusUnknown {
		t.Errorf("未知状态应映射为 UNKNOWN, 实际 %s", got)
	}
}

func TestParseFloat(t *testing.T) {
	if v := parseFloat("123.456"); v != 123.456 {
		t.Errorf("期望 123.456, 实际 %v", v)
	}
	if v := parseFloat(""); v != 0 {
		t.Errorf("空串应按0处理, 实际 %v", v)
	}
	if v := parseFloat("abc"); v != 0 {
		t.Errorf("非法数字应按0处理, 实际 %v", v)
	}
}
