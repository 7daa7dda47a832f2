// Package model 定义守门器中使用的核心数据结构。
package model

import (
	"time"
)

// EntryType 日志条目类型
type EntryType string

const (
	// EntryTypeDecision 交易决策条目（被采纳或被抑制）
	EntryTypeDecision EntryType = "decision"
	// EntryTypeHeartbeat 心跳条目（周期性写入，表示系统存活但无决策）
	EntryTypeHeartbeat EntryType = "heartbeat"
)

// DecisionOutcome 决策结果
type DecisionOutcome string

const (
	// OutcomeAccepted 决策被采纳（行情质量过关）
	OutcomeAccepted DecisionOutcome = "accepted"
	// OutcomeSuppressed 决策被抑制（存在 Critical 级别质量问题）
	OutcomeSuppressed DecisionOutcome = "suppressed"
	// OutcomeNone 无决策（心跳条目使用）
	OutcomeNone DecisionOutcome = "none"
)

// DecisionInputs 决策输入摘要
type DecisionInputs struct {
	// Score 决策评分
	Score float64 `json:"score"`
}

// ShadowTradeJournalEntry 影子决策日志条目（追加后不可变）
// 写入时由消费者保证时间戳单调：market <= decision <= write，
// 乱序输入只会向前夹紧后者，绝不回拨前者。
type ShadowTradeJournalEntry struct {
	// SessionID 本次运行的会话标识（UUID），入队时为空则由写入器补齐
	SessionID string `json:"session_id"`
	// SchemaVersion 条目格式版本，缺省时由写入器填充当前版本
	SchemaVersion int `json:"schema_version"`
	// EntryType 条目类型: decision 或 heartbeat
	EntryType EntryType `json:"entry_type"`
	// DecisionOutcome 决策结果: accepted, suppressed, none
	DecisionOutcome DecisionOutcome `json:"decision_outcome"`
	// Symbol 统一交易对标识
	Symbol string `json:"symbol"`
	// DecisionInputs 决策输入摘要
	DecisionInputs DecisionInputs `json:"decision_inputs"`
	// RejectionReason 抑制原因（被抑制时为首个 Critical 标志）
	RejectionReason string `json:"rejection_reason,omitempty"`
	// DataQualityFlags 评估时附带的行情质量标志列表
	DataQualityFlags []string `json:"data_quality_flags,omitempty"`
	// MarketTimestampUtc 行情时间（UTC），nil 表示未知
	MarketTimestampUtc *time.Time `json:"market_timestamp_utc,omitempty"`
	// DecisionTimestampUtc 决策时间（UTC），nil 表示未知
	DecisionTimestampUtc *time.Time `json:"decision_timestamp_utc,omitempty"`
	// JournalWriteTimestampUtc 写盘时间（UTC），由写入器在落盘前填充
	JournalWriteTimestampUtc *time.Time `json:"journal_write_timestamp_utc,omitempty"`
}
