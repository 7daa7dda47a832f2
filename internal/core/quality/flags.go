// Package quality 实现行情数据质量标志引擎。
// BuildFlags 把订单簿有效性、tape 就绪状态、深度完整性合并为标志列表；
// Interpret 把标志翻译为严重级别与建议动作。两者都是无状态纯函数。
package quality

import (
	"strings"

	"shadow-decision-recorder/internal/core/gate"
	"shadow-decision-recorder/internal/core/model"
	"shadow-decision-recorder/internal/util/fastparse"
)

// Severity 标志严重级别（封闭枚举）
type Severity int

const (
	// SeverityInfo 信息级别（仅诊断）
	SeverityInfo Severity = iota
	// SeverityWarning 警告级别（需关注，可暂不拒绝）
	SeverityWarning
	// SeverityCritical 严重级别（决策应被抑制）
	SeverityCritical
)

// String 返回严重级别的字符串表示
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// 标志基础名常量
// 参数化后缀（如 ageMs=…）不影响严重级别判定。
const (
	FlagBookInvalid             = "BookInvalid"
	FlagTapeMissingSubscription = "TapeMissingSubscription"
	FlagTapeNotWarmedUp         = "TapeNotWarmedUp"
	FlagTapeStale               = "TapeStale"
	// FlagStaleTick TapeStale 的旧版兼容别名，下游旧消费者仍按此名匹配
	FlagStaleTick           = "StaleTick"
	FlagTapeLastAgeMs       = "TapeLastAgeMs"
	FlagPartialBook         = "PartialBook"
	FlagStaleDepth          = "StaleDepth"
	FlagHeartbeatNoDecision = "HeartbeatNoDecision"
	FlagMissingBookContext  = "MissingBookContext"
)

// StaleDepthThresholdMs 深度过期阈值（毫秒），盘口年龄超过该值即标记 StaleDepth
const StaleDepthThresholdMs = 2000

// BuildFlags 构建行情质量标志列表
// 各规则相互独立、叠加生效；顺序只影响日志可读性，不影响严重级别判定。
// 下游不得假设标志数量有上限。
// 参数 book: 订单簿快照，可为 nil
// 参数 depth: 深度快照，可为 nil
// 参数 status: tape 新鲜度评估结果
func BuildFlags(book *model.OrderBookState, depth *model.DepthSnapshot, status gate.TapeStatus) []string {
	flags := make([]string, 0, 8)

	if book == nil || depth == nil {
		flags = append(flags, FlagMissingBookContext)
	}

	if book != nil {
		if ok, reason := book.Validity(); !ok {
			flags = append(flags, FlagBookInvalid+":"+reason)
		}
	}

	switch status.State {
	case gate.StateMissingSubscription:
		flags = append(flags, FlagTapeMissingSubscription)
	case gate.StateNotWarmedUp:
		flags = append(flags,
			FlagTapeNotWarmedUp,
			FlagTapeNotWarmedUp+":tradesInWindow="+fastparse.FormatInt(int64(status.TradesInWarmupWindow)),
			FlagTapeNotWarmedUp+":warmupMinTrades="+fastparse.FormatInt(int64(status.WarmupMinTrades)),
			FlagTapeNotWarmedUp+":warmupWindowMs="+fastparse.FormatInt(status.WarmupWindowMs),
		)
		if status.AgeMs != nil {
			flags = append(flags, FlagTapeLastAgeMs+"="+fastparse.FormatInt(*status.AgeMs))
		}
	case gate.StateStale:
		flags = append(flags, FlagTapeStale, FlagStaleTick)
		if status.AgeMs != nil {
			flags = append(flags, FlagTapeStale+":ageMs="+fastparse.FormatInt(*status.AgeMs))
		}
	case gate.StateReady:
		// Ready 不产生任何标志
	}

	if depth != nil {
		bidLevels := len(depth.Bids)
		askLevels := len(depth.Asks)
		if bidLevels < depth.ExpectedDepthLevels || askLevels < depth.ExpectedDepthLevels {
			flags = append(flags,
				FlagPartialBook,
				FlagPartialBook+":bidLevels="+fastparse.FormatInt(int64(bidLevels)),
				FlagPartialBook+":askLevels="+fastparse.FormatInt(int64(askLevels)),
				FlagPartialBook+":expected="+fastparse.FormatInt(int64(depth.ExpectedDepthLevels)),
			)
		}

		if depth.LastDepthUpdateAgeMs != nil && *depth.LastDepthUpdateAgeMs > StaleDepthThresholdMs {
			flags = append(flags,
				FlagStaleDepth,
				FlagStaleDepth+":ageMs="+fastparse.FormatInt(*depth.LastDepthUpdateAgeMs),
			)
		}
	}

	return flags
}

// Interpretation 标志的严重级别解读
type Interpretation struct {
	// Flag 原始标志字符串
	Flag string
	// Severity 严重级别
	Severity Severity
	// Description 人类可读的描述
	Description string
	// RecommendedAction 建议动作，空字符串表示无
	RecommendedAction string
}

// Interpret 解读单个标志
// 解析首个 ':' 之前的基础名；未知或空输入降级为 Info 级别的通用解读，
// 任何畸形输入都不会导致失败。
func Interpret(flag string) Interpretation {
	base := flag
	if idx := strings.Index(flag, ":"); idx >= 0 {
		base = flag[:idx]
	}

	out := Interpretation{Flag: flag}
	switch base {
	case FlagPartialBook:
		out.Severity = SeverityCritical
		out.Description = "订单簿深度不完整"
		out.RecommendedAction = "触发深度重订阅/重试"
	case FlagStaleTick, FlagTapeStale:
		out.Severity = SeverityCritical
		out.Description = "tape 数据过期"
		out.RecommendedAction = "拒绝决策或等待新 tape"
	case FlagStaleDepth:
		out.Severity = SeverityWarning
		out.Description = "深度数据偏旧"
		out.RecommendedAction = "持续监控，必要时拒绝"
	case FlagTapeNotWarmedUp:
		out.Severity = SeverityWarning
		out.Description = "tape 尚未完成预热"
		out.RecommendedAction = "加入周期性复查列表"
	case FlagTapeMissingSubscription:
		out.Severity = SeverityCritical
		out.Description = "缺少实时 tape 订阅"
		out.RecommendedAction = "确认订阅存在"
	case FlagBookInvalid:
		out.Severity = SeverityCritical
		out.Description = "订单簿无效"
		out.RecommendedAction = "等待有效订单簿或拒绝"
	case FlagTapeLastAgeMs:
		out.Severity = SeverityInfo
		out.Description = "最后一次 tape 接收年龄"
	case FlagHeartbeatNoDecision:
		out.Severity = SeverityInfo
		out.Description = "心跳周期内无决策"
	case FlagMissingBookContext:
		out.Severity = SeverityWarning
		out.Description = "缺少订单簿/深度上下文"
		out.RecommendedAction = "确认深度采集正常"
	default:
		out.Severity = SeverityInfo
		out.Description = "未分类标志"
	}
	return out
}

// HasCriticalIssues 判断标志列表中是否存在 Critical 级别的标志
// 空列表或 nil 不视为 Critical。
func HasCriticalIssues(flags []string) bool {
	for _, f := range flags {
		if Interpret(f).Severity == SeverityCritical {
			return true
		}
	}
	return false
}
