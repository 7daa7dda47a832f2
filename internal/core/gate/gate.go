// Package gate 实现 tape 新鲜度闸门。
// Evaluate 是纯函数：给定订单簿快照、时钟与配置，输出唯一的就绪状态，
// 没有任何副作用，可在任意并发上下文中安全调用。
package gate

import (
	"shadow-decision-recorder/internal/core/model"
)

// TapeState tape 就绪状态（封闭枚举）
type TapeState int

const (
	// StateMissingSubscription 无实时 tape 订阅
	StateMissingSubscription TapeState = iota
	// StateNotWarmedUp 未完成预热（从未收到成交，或窗口内成交数不足）
	StateNotWarmedUp
	// StateStale tape 过期（按接收时间计算的年龄超过阈值）
	StateStale
	// StateReady tape 就绪
	StateReady
)

// String 返回状态的字符串表示
func (s TapeState) String() string {
	switch s {
	case StateMissingSubscription:
		return "missing_subscription"
	case StateNotWarmedUp:
		return "not_warmed_up"
	case StateStale:
		return "stale"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// TapeStatus 一次闸门评估的结果
// 每次评估新建，评估之间不缓存、不复用。
type TapeStatus struct {
	// State 就绪状态
	State TapeState
	// AgeMs 最后一次成交接收距今时间（毫秒），nil 表示未知
	AgeMs *int64
	// TradesInWarmupWindow 预热窗口内的成交数量
	TradesInWarmupWindow int
	// WarmupMinTrades 预热所需最小成交数（来自配置）
	WarmupMinTrades int
	// WarmupWindowMs 预热窗口长度（毫秒，来自配置）
	WarmupWindowMs int64
}

// IsReady 仅当状态为 Ready 时为 true
func (s TapeStatus) IsReady() bool {
	return s.State == StateReady
}

// TapeGateConfig 闸门配置
// 构建后不可变；配置重载时整体重建。
type TapeGateConfig struct {
	// warmupMinTrades 预热窗口内所需的最小成交数
	warmupMinTrades int
	// warmupWindowMs 预热窗口长度（毫秒）
	warmupWindowMs int64
	// staleWindowMs 过期阈值（毫秒），接收年龄严格大于该值判定过期
	staleWindowMs int64
}

// 闸门配置默认值
const (
	DefaultWarmupMinTrades = 1
	DefaultWarmupWindowMs  = 15000
	DefaultStaleWindowMs   = 30000
)

// NewTapeGateConfig 创建闸门配置
// 负数输入一律夹紧为 0，绝不报错（配置错误不允许致命）。
// 参数 warmupMinTrades: 预热窗口内所需最小成交数
// 参数 warmupWindowMs: 预热窗口长度（毫秒）
// 参数 staleWindowMs: 过期阈值（毫秒）
func NewTapeGateConfig(warmupMinTrades int, warmupWindowMs, staleWindowMs int64) TapeGateConfig {
	if warmupMinTrades < 0 {
		warmupMinTrades = 0
	}
	if warmupWindowMs < 0 {
		warmupWindowMs = 0
	}
	if staleWindowMs < 0 {
		staleWindowMs = 0
	}
	return TapeGateConfig{
		warmupMinTrades: warmupMinTrades,
		warmupWindowMs:  warmupWindowMs,
		staleWindowMs:   staleWindowMs,
	}
}

// DefaultTapeGateConfig 创建默认闸门配置 {1, 15000, 30000}
func DefaultTapeGateConfig() TapeGateConfig {
	return NewTapeGateConfig(DefaultWarmupMinTrades, DefaultWarmupWindowMs, DefaultStaleWindowMs)
}

// WarmupMinTrades 获取预热最小成交数
func (c TapeGateConfig) WarmupMinTrades() int { return c.warmupMinTrades }

// WarmupWindowMs 获取预热窗口长度（毫秒）
func (c TapeGateConfig) WarmupWindowMs() int64 { return c.warmupWindowMs }

// StaleWindowMs 获取过期阈值（毫秒）
func (c TapeGateConfig) StaleWindowMs() int64 { return c.staleWindowMs }

// Evaluate 评估 tape 新鲜度
// 规则按优先级顺序匹配，命中即返回：
//  1. 无订阅 -> MissingSubscription
//  2. 从未收到成交（LastTapeReceiptMs 为哨兵 0）-> NotWarmedUp（无年龄）
//  3. 接收年龄严格大于 staleWindowMs -> Stale（附年龄）
//  4. [nowMs-warmupWindowMs, nowMs] 内按接收时间统计的成交数低于阈值 -> NotWarmedUp
//  5. 否则 -> Ready
//
// 过期判定只看接收时间：上游回放或延迟投递不能伪装成新鲜数据。
// 阈值比较使用严格大于，边界相等偏向 Ready。
func Evaluate(book *model.OrderBookState, nowMs int64, isSubscribed bool, cfg TapeGateConfig) TapeStatus {
	if !isSubscribed {
		return TapeStatus{State: StateMissingSubscription}
	}

	if book == nil || book.TotalTrades == 0 || book.LastTapeReceiptMs == 0 {
		return TapeStatus{
			State:           StateNotWarmedUp,
			WarmupMinTrades: cfg.warmupMinTrades,
			WarmupWindowMs:  cfg.warmupWindowMs,
		}
	}

	ageMs := nowMs - book.LastTapeReceiptMs
	if ageMs > cfg.staleWindowMs {
		return TapeStatus{
			State: StateStale,
			AgeMs: &ageMs,
		}
	}

	inWindow := book.CountTradesInWindow(nowMs-cfg.warmupWindowMs, nowMs)
	if inWindow < cfg.warmupMinTrades {
		return TapeStatus{
			State:                StateNotWarmedUp,
			AgeMs:                &ageMs,
			TradesInWarmupWindow: inWindow,
			WarmupMinTrades:      cfg.warmupMinTrades,
			WarmupWindowMs:       cfg.warmupWindowMs,
		}
	}

	return TapeStatus{
		State:                StateReady,
		AgeMs:                &ageMs,
		TradesInWarmupWindow: inWindow,
		WarmupMinTrades:      cfg.warmupMinTrades,
		WarmupWindowMs:       cfg.warmupWindowMs,
	}
}
