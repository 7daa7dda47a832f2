// Package store 维护所有交易对的最新订单簿状态。
// 使用单写者模式避免锁和竞态条件。
package store

import "shadow-decision-recorder/internal/core/model"

// Store 订单簿状态缓存（单写者）
// 注意：本结构体默认由聚合器单 goroutine 写入；闸门评估请通过 Snapshot 取深拷贝。
type Store struct {
	// books 按交易对缓存订单簿状态
	books map[string]*model.OrderBookState
	// ringSize 新建 OrderBookState 的成交环容量
	ringSize int
}

// New 创建订单簿状态缓存
// 参数 ringSize: 成交环容量，<=0 时使用模型默认值
func New(ringSize int) *Store {
	return &Store{
		books:    make(map[string]*model.OrderBookState),
		ringSize: ringSize,
	}
}

// ApplyBookUpdate 应用一次盘口更新
// 参数 u: 归一化后的盘口更新事件
func (s *Store) ApplyBookUpdate(u *model.BookUpdate) {
	if u == nil || u.Symbol == "" {
		return
	}
	s.book(u.Symbol).ApplyBookUpdate(u)
}

// ApplyTradePrint 应用一笔成交打印
// 参数 p: 归一化后的成交打印事件
func (s *Store) ApplyTradePrint(p *model.TradePrint) {
	if p == nil || p.Symbol == "" {
		return
	}
	s.book(p.Symbol).AppendTrade(p.Trade)
}

// Get 获取指定交易对的订单簿状态
// 返回值可能为 nil；返回的指针应视为只读。
func (s *Store) Get(symbol string) *model.OrderBookState {
	return s.books[symbol]
}

// Snapshot 获取指定交易对订单簿状态的深拷贝
// 未收到过任何数据的交易对返回 nil。
func (s *Store) Snapshot(symbol string) *model.OrderBookState {
	b := s.books[symbol]
	if b == nil {
		return nil
	}
	return b.Clone()
}

// Symbols 返回当前缓存的全部交易对
func (s *Store) Symbols() []string {
	out := make([]string, 0, len(s.books))
	for sym := range s.books {
		out = append(out, sym)
	}
	return out
}

func (s *Store) book(symbol string) *model.OrderBookState {
	b, ok := s.books[symbol]
	if !ok {
		b = model.NewOrderBookState(symbol, s.ringSize)
		s.books[symbol] = b
	}
	return b
}
