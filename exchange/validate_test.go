package exchange

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalizeSymbols(t *testing.T) {
	cases := []struct {
		name  string
		input []string
		want  []string
	}{
		{"规整去重", []string{" btc ", "BTC", ""}, []string{"BTC"}},
		{"保持顺序", []string{"ethusdt", "BTCUSDT", "ETHUSDT"}, []string{"ETHUSDT", "BTCUSDT"}},
		{"全部为空", []string{"", "  ", "\t"}, []string{}},
		{"空列表", nil, []string{}},
	}

	for _, tc := range cases {
		got := NormalizeSymbols(tc.input)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: 期望 %v, 实际 %v", tc.name, tc.want, got)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	if err := ValidateSymbol("Test", "BTCUSDT"); err != nil {
		t.Errorf("有效交易对不应报错: %v", err)
	}
	if err := ValidateSymbol("Test", "  "); err == nil {
		t.Error("空白交易对应该报错")
	}
	if !IsValidation(ValidateSymbol("Test", "")) {
		t.Error("应返回参数校验错误类型")
	}
}

func TestValidateCredentials(t *testing.T) {
	valid := &Credentials{
		Exchange:    ExchangeBinance,
		AccountName: "main",
		APIKey:      "key",
		APISecret:   "secret",
	}
	if err := ValidateCredentials("Test", valid); err != nil {
		t.Fatalf("有效凭证不应报错: %v", err)
	}

	if err := ValidateCredentials("Test", nil); err == nil {
		t.Error("空凭证应该报错")
	}

	noKey := *valid
	noKey.APIKey = ""
	if err := ValidateCredentials("Test", &noKey); err == nil {
		t.Error("缺少 API Key 应该报错")
	}

	noSecret := *valid
	noSecret.APISecret = " "
	if err := ValidateCredentials("Test", &noSecret); err == nil {
		t.Error("缺少 API Secret 应该报错")
	}
}

func TestValidateCallbacks(t *testing.T) {
	onError := func(error) {}
	if err := ValidateCallbacks("Test", func() {}, onError); err != nil {
		t.Errorf("回调齐全不应报错: %v", err)
	}
	if err := ValidateCallbacks("Test", nil, onError); err == nil {
		t.Error("成功回调为空应该报错")
	}
	if err := ValidateCallbacks("Test", func() {}, nil); err == nil {
		t.Error("错误回调为空应该报错")
	}
}

func TestValidateCallbacksTypedNil(t *testing.T) {
	// 具名函数类型的 nil 包进接口后接口值非空，必须按底层函数判空
	onError := func(error) {}
	cases := []struct {
		name     string
		callback interface{}
	}{
		{"账户回调", AccountCallback(nil)},
		{"K线回调", KlineCallback(nil)},
		{"订单簿回调", BookCallback(nil)},
		{"行情统计回调", StatsCallback(nil)},
		{"成交回调", TradeCallback(nil)},
	}
	for _, tc := range cases {
		err := ValidateCallbacks("Test", tc.callback, onError)
		if err == nil {
			t.Errorf("%s: nil 回调通过了校验", tc.name)
			continue
		}
		if !IsValidation(err) {
			t.Errorf("%s: 应返回参数校验错误, 实际: %v", tc.name, err)
		}
	}

	var nonNil KlineCallback = func(*KlineEvent) {}
	if err := ValidateCallbacks("Test", nonNil, onError); err != nil {
		t.Errorf("非空具名回调不应报错: %v", err)
	}
}

func TestValidateClientOrder(t *testing.T) {
	valid := func() *ClientOrder {
		return &ClientOrder{
			Symbol:      "BTCUSDT",
			Type:        OrderTypeLimit,
			Side:        SideBuy,
			Quantity:    1,
			Price:       50000,
			TimeInForce: TimeInForceGTC,
		}
	}

	if err := ValidateClientOrder("Test", valid()); err != nil {
		t.Fatalf("有效订单不应报错: %v", err)
	}

	if err := ValidateClientOrder("Test", nil); err == nil {
		t.Error("空订单应该报错")
	}

	badQty := valid()
	badQty.Quantity = 0
	if err := ValidateClientOrder("Test", badQty); err == nil {
		t.Error("数量为0应该报错")
	}

	badPrice := valid()
	badPrice.Price = -1
	if err := ValidateClientOrder("Test", badPrice); err == nil {
		t.Error("限价单价格为负应该报错")
	}

	// 市价单不需要价格
	market := valid()
	market.Type = OrderTypeMarket
	market.Price = 0
	if err := ValidateClientOrder("Test", market); err != nil {
		t.Errorf("市价单不应校验价格: %v", err)
	}

	// 市价单数量为0同样报错
	market.Quantity = 0
	if err := ValidateClientOrder("Test", market); err == nil {
		t.Error("市价单数量为0应该报错")
	}

	// 止损限价单需要触发价
	stop := valid()
	stop.Type = OrderTypeStopLossLimit
	stop.StopPrice = 0
	if err := ValidateClientOrder("Test", stop); err == nil {
		t.Error("止损限价单缺少触发价应该报错")
	}
	stop.StopPrice = 49000
	if err := ValidateClientOrder("Test", stop); err != nil {
		t.Errorf("止损限价单参数齐全不应报错: %v", err)
	}
}

func TestValidateTimeRange(t *testing.T) {
	now := time.Now()
	if err := ValidateTimeRange("Test", now.Add(-time.Hour), now); err != nil {
		t.Errorf("正常区间不应报错: %v", err)
	}
	if err := ValidateTimeRange("Test", now, now); err != nil {
		t.Errorf("起止相同不应报错: %v", err)
	}
	if err := ValidateTimeRange("Test", now.Add(time.Hour), now); err == nil {
		t.Error("开始晚于结束应该报错")
	}
}

func TestOrderTypeStyles(t *testing.T) {
	limitStyles := []OrderType{OrderTypeLimit, OrderTypeStopLossLimit, OrderTypeTakeProfitLimit, OrderTypeLimitMaker}
	for _, ot := range limitStyles {
		if !ot.IsLimitStyle() {
			t.Errorf("%s 应为限价类订单", ot)
		}
	}
	if OrderTypeMarket.IsLimitStyle() {
		t.Error("市价单不应为限价类订单")
	}

	stopStyles := []OrderType{OrderTypeStopLoss, OrderTypeStopLossLimit, OrderTypeTakeProfit, OrderTypeTakeProfitLimit}
	for _, ot := range stopStyles {
		if !ot.IsStopStyle() {
			t.Errorf("%s 应为止损/止盈类订单", ot)
		}
	}
	if OrderTypeLimitMaker.IsStopStyle() {
		t.Error("LIMIT_MAKER 不应为止损/止盈类订单")
	}
}
