package exchange

// AccountEvent 账户推送事件
type AccountEvent struct {
	Account *Account
}

// KlineEvent K线推送事件
type KlineEvent struct {
	Klines []*Kline
}

// OrderBookEvent 订单簿推送事件
type OrderBookEvent struct {
	OrderBook *OrderBook
}

// StatsEvent 行情统计推送事件
type StatsEvent struct {
	Statistics []*SymbolStats
}

// TradeEvent 成交推送事件
type TradeEvent struct {
	Trades []*Trade
}

// 推送回调类型；事件对象每次推送都是新构造的，回调方可以直接持有
type (
	AccountCallback func(*AccountEvent)
	KlineCallback   func(*KlineEvent)
	BookCallback    func(*OrderBookEvent)
	StatsCallback   func(*StatsEvent)
	TradeCallback   func(*TradeEvent)

	// ErrorCallback 错误回调：订阅期间的任何异常（含回调自身的 panic）都走这里
	ErrorCallback func(error)
)
