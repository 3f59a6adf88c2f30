package exchange

import (
	"context"
	"time"
)

// ISubscription 订阅句柄：唯一操作是幂等释放。
// Dispose 可被多个协程并发调用，清理动作只执行一次，所有调用方等到同一个结果。
type ISubscription interface {
	Dispose() error
}

// IRestAPI 请求/响应接口：每个交易所适配器实现一份。
// 所有方法在发起网络请求之前先做参数校验；ctx 是调用方的取消信号。
type IRestAPI interface {
	// GetAccountInfo 获取账户信息（余额、手续费）
	GetAccountInfo(ctx context.Context) (*Account, error)

	// PlaceOrder 下单；recvWindow 为毫秒，<=0 表示使用配置的默认接收窗口
	PlaceOrder(ctx context.Context, order *ClientOrder, recvWindow int) (*Order, error)

	// CancelOrder 撤单，返回被确认撤销的客户端订单ID
	CancelOrder(ctx context.Context, symbol, orderID string) (string, error)

	// GetOpenOrders 查询未完成订单
	GetOpenOrders(ctx context.Context, symbol string, recvWindow int) ([]*Order, error)

	// GetKlines 查询历史K线；limit <=0 表示交易所默认条数
	GetKlines(ctx context.Context, symbol string, interval KlineInterval, start, end time.Time, limit int) ([]*Kline, error)

	// GetOrderBook 查询订单簿快照
	GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error)

	// GetSymbols 查询全部交易对元数据
	GetSymbols(ctx context.Context) ([]*Symbol, error)

	// GetTrades 查询最近成交
	GetTrades(ctx context.Context, symbol string, limit int) ([]*Trade, error)

	// Close 释放底层客户端（幂等）；释放后所有调用返回 ErrDisposed
	Close() error
}

// ISubscriptionAPI 推送订阅接口：每个交易所适配器实现一份。
// 每次订阅返回一个独占底层连接的句柄；ctx 取消等价于触发 Dispose。
// 推送事件按交易所推送顺序送达；回调抛出的 panic 不会中断订阅（见 SafeInvoke）。
type ISubscriptionAPI interface {
	SubscribeAccountUpdates(ctx context.Context, credentials *Credentials, onAccount AccountCallback, onError ErrorCallback) (ISubscription, error)
	SubscribeKlineUpdates(ctx context.Context, symbol string, interval KlineInterval, onKline KlineCallback, onError ErrorCallback) (ISubscription, error)
	SubscribeOrderBook(ctx context.Context, symbol string, limit int, onBook BookCallback, onError ErrorCallback) (ISubscription, error)
	SubscribeSymbolStatistics(ctx context.Context, symbols []string, onStats StatsCallback, onError ErrorCallback) (ISubscription, error)
	SubscribeTrades(ctx context.Context, symbol string, onTrade TradeCallback, onError ErrorCallback) (ISubscription, error)
}
