package bybit

import (
	"testing"
	"time"
)

func TestOrderBookSnapshotAndDelta(t *testing.T) {
	book := newLocalBook("BTCUSDT")
	now := time.Now()

	book.applySnapshot(&wsOrderBookData{
		Symbol: "BTCUSDT",
		Bids: [][]string{
			{"50000", "1.5"},
			{"49999", "2.0"},
			{"49998", "0.5"},
		},
		Asks: [][]string{
			{"50001", "1.0"},
			{"50002", "3.0"},
		},
		UpdateID: 100,
	}, now)

	snap := book.snapshot(0)
	if snap.LastUpdateID != 100 {
		t.Errorf("期望更新序号 100, 实际 %d", snap.LastUpdateID)
	}
	if len(snap.Bids) != 3 || len(snap.Asks) != 2 {
		t.Fatalf("期望 3 买档 2 卖档, 实际 %d/%d", len(snap.Bids), len(snap.Asks))
	}
	if snap.BestBid.Price != 50000 || snap.BestBid.Quantity != 1.5 {
		t.Errorf("买一应为 50000@1.5, 实际 %v@%v", snap.BestBid.Price, snap.BestBid.Quantity)
	}
	if snap.BestAsk.Price != 50001 {
		t.Errorf("卖一应为 50001, 实际 %v", snap.BestAsk.Price)
	}

	// 增量：改量、删档、加档
	book.applyDelta(&wsOrderBookData{
		Symbol: "BTCUSDT",
		Bids: [][]string{
			{"50000", "0"},   // 删除买一
			{"49999", "2.5"}, // 改量
		},
		Asks: [][]string{
			{"50000.5", "0.8"}, // 新卖一
		},
		UpdateID: 101,
	}, now.Add(time.Second))

	snap = book.snapshot(0)
	if snap.LastUpdateID != 101 {
		t.Errorf("期望更新序号 101, 实际 %d", snap.LastUpdateID)
	}
	if snap.BestBid.Price != 49999 || snap.BestBid.Quantity != 2.5 {
		t.Errorf("删除买一后买一应为 49999@2.5, 实际 %v@%v", snap.BestBid.Price, snap.BestBid.Quantity)
	}
	if snap.BestAsk.Price != 50000.5 {
		t.Errorf("新增卖档后卖一应为 50000.5, 实际 %v", snap.BestAsk.Price)
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 3 {
		t.Errorf("期望 2 买档 3 卖档, 实际 %d/%d", len(snap.Bids), len(snap.Asks))
	}
}

func TestOrderBookSnapshotResetsState(t *testing.T) {
	book := newLocalBook("ETHUSDT")
	now := time.Now()

	book.applySnapshot(&wsOrderBookData{
		Bids:     [][]string{{"3000", "1"}},
		Asks:     [][]string{{"3001", "1"}},
		UpdateID: 1,
	}, now)

	// 第二次快照整体替换，旧档位不残留
	book.applySnapshot(&wsOrderBookData{
		Bids:     [][]string{{"2990", "5"}},
		Asks:     [][]string{{"2991", "5"}},
		UpdateID: 2,
	}, now)

	snap := book.snapshot(0)
	if len(snap.Bids) != 1 || snap.BestBid.Price != 2990 {
		t.Errorf("重新快照后旧买档不应残留, 实际 %v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.BestAsk.Price != 2991 {
		t.Errorf("重新快照后旧卖档不应残留, 实际 %v", snap.Asks)
	}
}

func TestOrderBookSnapshotLimit(t *testing.T) {
	book := newLocalBook("BTCUSDT")
	book.applySnapshot(&wsOrderBookData{
		Bids: [][]string{
			{"100", "1"}, {"99", "1"}, {"98", "1"}, {"97", "1"},
		},
		Asks: [][]string{
			{"101", "1"}, {"102", "1"}, {"103", "1"},
		},
		UpdateID: 1,
	}, time.Now())

	snap := book.snapshot(2)
	if len(snap.Bids) != 2 || len(snap.Asks) != 2 {
		t.Fatalf("限制2档时期望 2/2, 实际 %d/%d", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Price != 100 || snap.Bids[1].Price != 99 {
		t.Errorf("买档应按价格降序排列, 实际 %v", snap.Bids)
	}
	if snap.Asks[0].Price != 101 || snap.Asks[1].Price != 102 {
		t.Errorf("卖档应按价格升序排列, 实际 %v", snap.Asks)
	}
}
