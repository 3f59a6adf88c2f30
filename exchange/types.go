package exchange

import "time"

// Credentials API 凭证（调用方持有，核心不落盘）
type Credentials struct {
	Exchange    Exchange
	AccountName string
	APIKey      string
	APISecret   string
	Passphrase  string
}

// ClientOrder 下单请求
type ClientOrder struct {
	Exchange    Exchange
	Symbol      string
	Type        OrderType
	Side        Side
	Quantity    float64
	Price       float64 // 限价类订单必填（>0）
	TimeInForce TimeInForce
	StopPrice   float64 // 止损/止盈类订单必填（>0）
}

// Order 订单（查询/推送结果）
type Order struct {
	AccountName       string
	Exchange          Exchange
	Symbol            string
	ID                string
	ClientOrderID     string
	Price             float64
	AverageFillPrice  float64
	StopPrice         float64
	OriginalQuantity  float64
	QuantityFilled    float64
	QuantityRemaining float64
	Status            OrderStatus
	TimeInForce       TimeInForce
	Type              OrderType
	Side              Side
	CreatedTime       time.Time
	TransactTime      time.Time
	UpdateTime        time.Time
	IsWorking         bool
}

// Balance 资产余额
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Account 账户快照（每次查询/推送重建，核心不做原地修改）
type Account struct {
	Name      string
	Exchange  Exchange
	Time      time.Time
	BuyerFee  float64
	SellerFee float64
	Balances  []Balance
}

// OrderBookPrice 盘口档位
type OrderBookPrice struct {
	Price    float64
	Quantity float64
}

// OrderBook 订单簿快照（推送时整体替换，调用方观察不到半更新状态）
type OrderBook struct {
	Symbol       string
	Exchange     Exchange
	LastUpdateID int64
	UpdateTime   time.Time
	BestBid      OrderBookPrice
	BestAsk      OrderBookPrice
	Bids         []OrderBookPrice
	Asks         []OrderBookPrice
}

// Kline K线
type Kline struct {
	Symbol                   string
	Exchange                 Exchange
	Interval                 KlineInterval
	OpenTime                 time.Time
	CloseTime                time.Time
	Open                     float64
	High                     float64
	Low                      float64
	Close                    float64
	Volume                   float64
	NumberOfTrades           int64
	QuoteAssetVolume         float64
	TakerBuyBaseAssetVolume  float64
	TakerBuyQuoteAssetVolume float64
	Final                    bool // 该K线桶是否已收盘
}

// Trade 成交记录
type Trade struct {
	Symbol        string
	Exchange      Exchange
	Time          time.Time
	ID            int64
	Price         float64
	BaseQuantity  float64
	QuoteQuantity float64
}

// SymbolStats 滚动窗口行情统计
type SymbolStats struct {
	Symbol                string
	Exchange              Exchange
	OpenTime              time.Time
	CloseTime             time.Time
	Period                time.Duration
	OpenPrice             float64
	HighPrice             float64
	LowPrice              float64
	LastPrice             float64
	LastQuantity          float64
	PreviousDayClosePrice float64
	PriceChange           float64
	PriceChangePercent    float64
	WeightedAveragePrice  float64
	BestBidPrice          float64
	BestBidQuantity       float64
	BestAskPrice          float64
	BestAskQuantity       float64
	Volume                float64
	QuoteVolume           float64
	FirstTradeID          int64
	LastTradeID           int64
	TotalTrades           int64
}

// Asset 资产元数据
type Asset struct {
	Symbol    string
	Precision int
}

// Symbol 交易对元数据
type Symbol struct {
	Name                 string
	Exchange             Exchange
	ExchangeSymbol       string
	BaseAsset            Asset
	QuoteAsset           Asset
	OrderTypes           []OrderType
	NotionalMinimumValue float64
	TickSize             float64
	LotSize              float64
}
