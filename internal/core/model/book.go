// Package model 定义守门器中使用的核心数据结构。
// 包含成交打印、订单簿状态、深度快照、日志条目等核心类型。
package model

// Level 订单簿深度档位
// 表示某一价格档位的价格和数量
type Level struct {
	// Price 价格
	Price float64 `json:"price"`
	// Qty 数量
	Qty float64 `json:"qty"`
}

// Trade 单笔成交打印（tape print）
// 同时携带交易所事件时间与本机接收时间。
// 新鲜度/预热判定一律使用接收时间：事件时间可能因上游批量推送或回放而滞后。
// 注意：ReceiptTsUnixMs >= EventTsUnixMs 是预期但不强制，出现倒挂时代码必须容忍。
type Trade struct {
	// Price 成交价格
	Price float64 `json:"price"`
	// Size 成交数量
	Size float64 `json:"size"`
	// EventTsUnixMs 交易所事件时间戳（毫秒），0 表示未知
	EventTsUnixMs int64 `json:"event_ts_unix_ms"`
	// ReceiptTsUnixMs 本机接收时间戳（毫秒）
	ReceiptTsUnixMs int64 `json:"receipt_ts_unix_ms"`
}

// BookUpdate 归一化的订单簿更新事件
// 由行情接入层产生，聚合器据此更新 OrderBookState。
type BookUpdate struct {
	// Symbol 统一交易对标识，如 BTCUSDT
	Symbol string
	// BestBidPx 最优买价（买一价）
	BestBidPx float64
	// BestBidQty 最优买量（买一量）
	BestBidQty float64
	// BestAskPx 最优卖价（卖一价）
	BestAskPx float64
	// BestAskQty 最优卖量（卖一量）
	BestAskQty float64
	// Bids 买盘深度档位（Top N）
	Bids []Level
	// Asks 卖盘深度档位（Top N）
	Asks []Level
	// EventTsUnixMs 交易所事件时间戳（毫秒），0 表示未知
	EventTsUnixMs int64
	// ReceiptTsUnixMs 本机接收时间戳（毫秒）
	ReceiptTsUnixMs int64
}

// TradePrint 归一化的成交打印事件
// 由行情接入层产生，聚合器据此追加到 OrderBookState 的成交环。
type TradePrint struct {
	// Symbol 统一交易对标识，如 BTCUSDT
	Symbol string
	// Trade 成交明细
	Trade Trade
}

// DefaultTradeRingSize 成交环默认容量
const DefaultTradeRingSize = 256

// tradeRing 有界成交环（插入顺序 = 到达顺序）
// 环满后覆盖最旧的成交；遍历时按到达顺序输出。
type tradeRing struct {
	buf  []Trade
	pos  int
	full bool
}

// OrderBookState 单交易对的订单簿状态
// 持有最新盘口、有界的近期成交环，以及最后一次 tape 接收时间。
// 由聚合器单 goroutine 写入；闸门评估前须通过 Clone 取不可变快照。
type OrderBookState struct {
	// Symbol 统一交易对标识
	Symbol string
	// BestBidPx 最优买价
	BestBidPx float64
	// BestBidQty 最优买量
	BestBidQty float64
	// BestAskPx 最优卖价
	BestAskPx float64
	// BestAskQty 最优卖量
	BestAskQty float64
	// Bids 买盘深度档位
	Bids []Level
	// Asks 卖盘深度档位
	Asks []Level
	// LastBookEventTsUnixMs 最近一次盘口更新的交易所事件时间（毫秒），0 表示未知
	LastBookEventTsUnixMs int64
	// LastDepthUpdateMs 最近一次盘口更新的本机接收时间（毫秒），0 表示从未收到
	LastDepthUpdateMs int64
	// LastTapeReceiptMs 最近一次成交打印的本机接收时间（毫秒），0 表示从未收到
	LastTapeReceiptMs int64
	// TotalTrades 累计收到的成交打印数量
	TotalTrades int64

	// trades 近期成交环
	trades tradeRing
}

// NewOrderBookState 创建订单簿状态
// 参数 symbol: 统一交易对标识
// 参数 ringSize: 成交环容量，<=0 时使用 DefaultTradeRingSize
func NewOrderBookState(symbol string, ringSize int) *OrderBookState {
	if ringSize <= 0 {
		ringSize = DefaultTradeRingSize
	}
	return &OrderBookState{
		Symbol: symbol,
		trades: tradeRing{buf: make([]Trade, 0, ringSize)},
	}
}

// ApplyBookUpdate 应用一次盘口更新
func (b *OrderBookState) ApplyBookUpdate(u *BookUpdate) {
	if u == nil {
		return
	}
	b.BestBidPx = u.BestBidPx
	b.BestBidQty = u.BestBidQty
	b.BestAskPx = u.BestAskPx
	b.BestAskQty = u.BestAskQty
	b.Bids = u.Bids
	b.Asks = u.Asks
	b.LastBookEventTsUnixMs = u.EventTsUnixMs
	b.LastDepthUpdateMs = u.ReceiptTsUnixMs
}

// AppendTrade 追加一笔成交打印
// 更新 LastTapeReceiptMs 与累计计数；环满后覆盖最旧成交。
func (b *OrderBookState) AppendTrade(t Trade) {
	b.TotalTrades++
	b.LastTapeReceiptMs = t.ReceiptTsUnixMs

	r := &b.trades
	if cap(r.buf) == 0 {
		r.buf = make([]Trade, 0, DefaultTradeRingSize)
	}
	if !r.full {
		r.buf = append(r.buf, t)
		if len(r.buf) == cap(r.buf) {
			r.full = true
			r.pos = 0
		}
		return
	}
	r.buf[r.pos] = t
	r.pos++
	if r.pos >= len(r.buf) {
		r.pos = 0
	}
}

// RecentTrades 按到达顺序返回环内成交的副本
func (b *OrderBookState) RecentTrades() []Trade {
	r := &b.trades
	if !r.full {
		out := make([]Trade, len(r.buf))
		copy(out, r.buf)
		return out
	}
	out := make([]Trade, 0, len(r.buf))
	out = append(out, r.buf[r.pos:]...)
	out = append(out, r.buf[:r.pos]...)
	return out
}

// CountTradesInWindow 统计接收时间落在 [fromMs, toMs] 内的成交数量
// 一律基于接收时间，不使用事件时间。
func (b *OrderBookState) CountTradesInWindow(fromMs, toMs int64) int {
	count := 0
	r := &b.trades
	for i := range r.buf {
		ts := r.buf[i].ReceiptTsUnixMs
		if ts >= fromMs && ts <= toMs {
			count++
		}
	}
	return count
}

// Validity 检查订单簿是否有效
// 返回 (是否有效, 诊断原因)；原因仅在无效时非空。
func (b *OrderBookState) Validity() (bool, string) {
	if b.BestBidPx <= 0 || b.BestAskPx <= 0 {
		return false, "no_quotes"
	}
	if b.BestBidPx >= b.BestAskPx {
		return false, "crossed_book"
	}
	return true, ""
}

// MidPrice 计算中间价
func (b *OrderBookState) MidPrice() float64 {
	return (b.BestBidPx + b.BestAskPx) / 2
}

// SpreadBps 计算买卖价差（基点）
func (b *OrderBookState) SpreadBps() float64 {
	mid := b.MidPrice()
	if mid == 0 {
		return 0
	}
	return (b.BestAskPx - b.BestBidPx) / mid * 10000
}

// Clone 创建 OrderBookState 的深拷贝
// 闸门与质量引擎只读快照，不读原件。
func (b *OrderBookState) Clone() *OrderBookState {
	clone := *b
	if b.Bids != nil {
		clone.Bids = make([]Level, len(b.Bids))
		copy(clone.Bids, b.Bids)
	}
	if b.Asks != nil {
		clone.Asks = make([]Level, len(b.Asks))
		copy(clone.Asks, b.Asks)
	}
	clone.trades = tradeRing{
		buf:  make([]Trade, len(b.trades.buf), cap(b.trades.buf)),
		pos:  b.trades.pos,
		full: b.trades.full,
	}
	copy(clone.trades.buf, b.trades.buf)
	return &clone
}

// DepthSnapshot 深度快照（每次评估时临时构建）
type DepthSnapshot struct {
	// Bids 买盘 Top N 档位
	Bids []Level
	// Asks 卖盘 Top N 档位
	Asks []Level
	// ExpectedDepthLevels 期望的单侧深度档数
	ExpectedDepthLevels int
	// LastDepthUpdateAgeMs 最近盘口更新距今时间（毫秒），nil 表示从未收到
	LastDepthUpdateAgeMs *int64
}

// BuildDepthSnapshot 基于当前订单簿构建深度快照
// 参数 nowMs: 当前时间（毫秒）
// 参数 expectedLevels: 期望的单侧深度档数
func (b *OrderBookState) BuildDepthSnapshot(nowMs int64, expectedLevels int) *DepthSnapshot {
	snap := &DepthSnapshot{
		Bids:                b.Bids,
		Asks:                b.Asks,
		ExpectedDepthLevels: expectedLevels,
	}
	if b.LastDepthUpdateMs > 0 {
		age := nowMs - b.LastDepthUpdateMs
		snap.LastDepthUpdateAgeMs = &age
	}
	return snap
}
