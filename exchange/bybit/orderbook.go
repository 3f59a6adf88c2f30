package bybit

import (
	"sort"
	"sync"
	"time"

	"exgate/exchange"
)

// localBook 本地订单簿，合并 Bybit 的快照与增量推送
type localBook struct {
	mu       sync.Mutex
	symbol   string
	bids     map[float64]float64
	asks     map[float64]float64
	updateID int64
	time     time.Time
}

func newLocalBook(symbol string) *localBook {
	return &localBook{
		symbol: symbol,
		bids:   make(map[float64]float64),
		asks:   make(map[float64]float64),
	}
}

// wsOrderBookData orderbook 主题推送数据
type wsOrderBookData struct {
	Symbol   string     `json:"s"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
	UpdateID int64      `json:"u"`
}

// applySnapshot 应用全量快照
func (b *localBook) applySnapshot(data *wsOrderBookData, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make(map[float64]float64)
	b.asks = make(map[float64]float64)
	b.applyLevelsLocked(data)
	b.updateID = data.UpdateID
	b.time = ts
}

// applyDelta 应用增量；数量为 0 的档位删除
func (b *localBook) applyDelta(data *wsOrderBookData, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.applyLevelsLocked(data)
	b.updateID = data.UpdateID
	b.time = ts
}

func (b *localBook) applyLevelsLocked(data *wsOrderBookData) {
	for _, level := range data.Bids {
		if len(level) < 2 {
			continue
		}
		price := parseFloat(level[0])
		qty := parseFloat(level[1])
		if qty == 0 {
			delete(b.bids, price)
		} else {
			b.bids[price] = qty
		}
	}
	for _, level := range data.Asks {
		if len(level) < 2 {
			continue
		}
		price := parseFloat(level[0])
		qty := parseFloat(level[1])
		if qty == 0 {
			delete(b.asks, price)
		} else {
			b.asks[price] = qty
		}
	}
}

// snapshot 导出当前订单簿，买档降序、卖档升序，最多 limit 档
func (b *localBook) snapshot(limit int) *exchange.OrderBook {
	b.mu.Lock()
	defer b.mu.Unlock()

	bids := make([]exchange.OrderBookPrice, 0, len(b.bids))
	for price, qty := range b.bids {
		bids = append(bids, exchange.OrderBookPrice{Price: price, Quantity: qty})
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })

	asks := make([]exchange.OrderBookPrice, 0, len(b.asks))
	for price, qty := range b.asks {
		asks = append(asks, exchange.OrderBookPrice{Price: price, Quantity: qty})
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	if limit > 0 {
		if len(bids) > limit {
			bids = bids[:limit]
		}
		if len(asks) > limit {
			asks = asks[:limit]
		}
	}

	book := &exchange.OrderBook{
		Symbol:       b.symbol,
		Exchange:     exchange.ExchangeBybit,
		LastUpdateID: b.updateID,
		UpdateTime:   b.time,
		Bids:         bids,
		Asks:         asks,
	}
	if len(bids) > 0 {
		book.BestBid = bids[0]
	}
	if len(asks) > 0 {
		book.BestAsk = asks[0]
	}

	return book
}
