package model

import (
	"testing"
)

func TestTradeRing_WrapAround(t *testing.T) {
	b := NewOrderBookState("BTCUSDT", 4)

	for i := 0; i < 6; i++ {
		b.AppendTrade(Trade{Price: float64(i), Size: 1, ReceiptTsUnixMs: int64(1000 + i)})
	}

	if b.TotalTrades != 6 {
		t.Fatalf("TotalTrades=%d, want 6", b.TotalTrades)
	}
	if b.LastTapeReceiptMs != 1005 {
		t.Fatalf("LastTapeReceiptMs=%d, want 1005", b.LastTapeReceiptMs)
	}

	// 环容量 4：只保留最后 4 笔，且按到达顺序输出
	trades := b.RecentTrades()
	if len(trades) != 4 {
		t.Fatalf("环内成交数=%d, want 4", len(trades))
	}
	for i, tr := range trades {
		if tr.Price != float64(i+2) {
			t.Fatalf("第 %d 笔价格=%v, want %v", i, tr.Price, float64(i+2))
		}
	}
}

func TestCountTradesInWindow_InclusiveBounds(t *testing.T) {
	b := NewOrderBookState("BTCUSDT", 0)
	for _, ts := range []int64{1000, 2000, 3000, 4000} {
		b.AppendTrade(Trade{Price: 1, Size: 1, ReceiptTsUnixMs: ts})
	}

	// 窗口两端均为闭区间
	if got := b.CountTradesInWindow(2000, 3000); got != 2 {
		t.Fatalf("窗口 [2000,3000] 成交数=%d, want 2", got)
	}
	if got := b.CountTradesInWindow(1000, 4000); got != 4 {
		t.Fatalf("窗口 [1000,4000] 成交数=%d, want 4", got)
	}
	if got := b.CountTradesInWindow(4001, 5000); got != 0 {
		t.Fatalf("窗口 [4001,5000] 成交数=%d, want 0", got)
	}
}

func TestCountTradesInWindow_UsesReceiptTime(t *testing.T) {
	b := NewOrderBookState("BTCUSDT", 0)
	// 事件时间在窗口内、接收时间在窗口外
	b.AppendTrade(Trade{Price: 1, Size: 1, EventTsUnixMs: 2500, ReceiptTsUnixMs: 9000})

	if got := b.CountTradesInWindow(2000, 3000); got != 0 {
		t.Fatalf("统计不应使用事件时间，成交数=%d, want 0", got)
	}
}

func TestValidity(t *testing.T) {
	b := NewOrderBookState("BTCUSDT", 0)

	if ok, reason := b.Validity(); ok || reason != "no_quotes" {
		t.Fatalf("空盘口应为 no_quotes，得到 (%v, %q)", ok, reason)
	}

	b.BestBidPx, b.BestAskPx = 101, 100
	if ok, reason := b.Validity(); ok || reason != "crossed_book" {
		t.Fatalf("交叉盘口应为 crossed_book，得到 (%v, %q)", ok, reason)
	}

	b.BestBidPx, b.BestAskPx = 100, 100.1
	if ok, reason := b.Validity(); !ok || reason != "" {
		t.Fatalf("正常盘口应有效，得到 (%v, %q)", ok, reason)
	}
}

func TestMidPriceAndSpread(t *testing.T) {
	b := NewOrderBookState("BTCUSDT", 0)
	b.BestBidPx, b.BestAskPx = 100, 101

	if mid := b.MidPrice(); mid != 100.5 {
		t.Fatalf("MidPrice=%v, want 100.5", mid)
	}
	spread := b.SpreadBps()
	// (101-100)/100.5*10000 ≈ 99.50
	if spread < 99.4 || spread > 99.6 {
		t.Fatalf("SpreadBps=%v, 期望约 99.5", spread)
	}

	empty := NewOrderBookState("BTCUSDT", 0)
	if empty.SpreadBps() != 0 {
		t.Fatalf("空盘口价差应为 0")
	}
}

func TestClone_Isolation(t *testing.T) {
	b := NewOrderBookState("BTCUSDT", 4)
	b.ApplyBookUpdate(&BookUpdate{
		Symbol:          "BTCUSDT",
		BestBidPx:       100,
		BestAskPx:       100.1,
		Bids:            []Level{{Price: 100, Qty: 1}},
		Asks:            []Level{{Price: 100.1, Qty: 1}},
		ReceiptTsUnixMs: 1000,
	})
	b.AppendTrade(Trade{Price: 100.05, Size: 1, ReceiptTsUnixMs: 1100})

	clone := b.Clone()

	b.AppendTrade(Trade{Price: 200, Size: 1, ReceiptTsUnixMs: 2000})
	b.Bids[0].Price = 999

	if clone.TotalTrades != 1 {
		t.Fatalf("副本成交计数被污染: %d", clone.TotalTrades)
	}
	if clone.Bids[0].Price != 100 {
		t.Fatalf("副本深度档位被污染: %v", clone.Bids[0].Price)
	}
	if got := clone.RecentTrades(); len(got) != 1 || got[0].Price != 100.05 {
		t.Fatalf("副本成交环被污染: %v", got)
	}
}

func TestBuildDepthSnapshot(t *testing.T) {
	b := NewOrderBookState("BTCUSDT", 0)

	// 从未收到盘口更新：年龄未知
	snap := b.BuildDepthSnapshot(5000, 5)
	if snap.LastDepthUpdateAgeMs != nil {
		t.Fatalf("未收到盘口时年龄应为 nil")
	}

	b.ApplyBookUpdate(&BookUpdate{
		Symbol:          "BTCUSDT",
		BestBidPx:       100,
		BestAskPx:       100.1,
		ReceiptTsUnixMs: 4000,
	})
	snap = b.BuildDepthSnapshot(5000, 5)
	if snap.LastDepthUpdateAgeMs == nil || *snap.LastDepthUpdateAgeMs != 1000 {
		t.Fatalf("年龄计算错误: %v", snap.LastDepthUpdateAgeMs)
	}
	if snap.ExpectedDepthLevels != 5 {
		t.Fatalf("期望档数=%d, want 5", snap.ExpectedDepthLevels)
	}
}
