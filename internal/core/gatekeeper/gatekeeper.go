// Package gatekeeper 把新鲜度闸门、质量标志引擎与决策日志串联起来。
// 对每个候选决策：评估 tape 就绪状态，构建质量标志，
// 存在 Critical 标志时抑制决策，并把结果（采纳或抑制）记入影子日志。
package gatekeeper

import (
	"go.uber.org/zap"

	"shadow-decision-recorder/internal/core/gate"
	"shadow-decision-recorder/internal/core/model"
	"shadow-decision-recorder/internal/core/quality"
	"shadow-decision-recorder/internal/journal"
	"shadow-decision-recorder/internal/metrics"
	"shadow-decision-recorder/internal/util/timeutil"
)

// Evaluation 一次守门评估的结果
type Evaluation struct {
	// Status tape 新鲜度状态
	Status gate.TapeStatus
	// Flags 质量标志列表
	Flags []string
	// Accepted 决策是否被采纳（无 Critical 标志）
	Accepted bool
	// Entry 已投递的日志条目（写入器未激活时仍返回，便于调用方自行处理）
	Entry *model.ShadowTradeJournalEntry
}

// Gatekeeper 决策守门器
// 纯计算部分（闸门、标志）无状态，可并发调用；日志投递非阻塞。
type Gatekeeper struct {
	// cfg 闸门配置
	cfg gate.TapeGateConfig
	// expectedDepthLevels 期望的单侧深度档数
	expectedDepthLevels int
	// journal 影子决策日志写入器
	journal *journal.Writer
	// logger 日志记录器
	logger *zap.Logger
}

// New 创建决策守门器
// 参数 cfg: 闸门配置
// 参数 expectedDepthLevels: 期望的单侧深度档数
// 参数 w: 影子决策日志写入器
// 参数 logger: 日志记录器
func New(cfg gate.TapeGateConfig, expectedDepthLevels int, w *journal.Writer, logger *zap.Logger) *Gatekeeper {
	return &Gatekeeper{
		cfg:                 cfg,
		expectedDepthLevels: expectedDepthLevels,
		journal:             w,
		logger:              logger.Named("gatekeeper"),
	}
}

// RecordDecision 评估一个候选决策并记入影子日志
// 参数 nowMs: 当前时间（毫秒）
// 参数 book: 订单簿快照（由调用方通过 store.Snapshot 取得），可为 nil
// 参数 isSubscribed: 该交易对是否有实时 tape 订阅
// 参数 symbol: 统一交易对标识
// 参数 score: 决策评分
func (g *Gatekeeper) RecordDecision(nowMs int64, book *model.OrderBookState, isSubscribed bool, symbol string, score float64) Evaluation {
	status := gate.Evaluate(book, nowMs, isSubscribed, g.cfg)
	metrics.GateEvaluations.WithLabelValues(status.State.String()).Inc()

	var depth *model.DepthSnapshot
	if book != nil {
		depth = book.BuildDepthSnapshot(nowMs, g.expectedDepthLevels)
	}

	flags := quality.BuildFlags(book, depth, status)
	for _, f := range flags {
		metrics.QualityFlags.WithLabelValues(quality.Interpret(f).Severity.String()).Inc()
	}

	outcome := model.OutcomeAccepted
	rejection := ""
	if quality.HasCriticalIssues(flags) {
		outcome = model.OutcomeSuppressed
		rejection = firstCritical(flags)
	}
	metrics.Decisions.WithLabelValues(string(outcome)).Inc()

	decisionTs := timeutil.MsToTime(nowMs)
	entry := &model.ShadowTradeJournalEntry{
		EntryType:            model.EntryTypeDecision,
		DecisionOutcome:      outcome,
		Symbol:               symbol,
		DecisionInputs:       model.DecisionInputs{Score: score},
		RejectionReason:      rejection,
		DataQualityFlags:     flags,
		DecisionTimestampUtc: &decisionTs,
	}
	if book != nil {
		if ms := marketTsMs(book); ms > 0 {
			marketTs := timeutil.MsToTime(ms)
			entry.MarketTimestampUtc = &marketTs
		}
	}

	if !g.journal.Enqueue(entry) && g.journal.State() == journal.StateActive {
		g.logger.Warn("决策日志投递失败", zap.String("symbol", symbol))
	}

	return Evaluation{
		Status:   status,
		Flags:    flags,
		Accepted: outcome == model.OutcomeAccepted,
		Entry:    entry,
	}
}

// RecordHeartbeat 写入一条心跳条目
// 表示系统在该周期内存活但未产生决策。
func (g *Gatekeeper) RecordHeartbeat(nowMs int64, symbol string) {
	decisionTs := timeutil.MsToTime(nowMs)
	entry := &model.ShadowTradeJournalEntry{
		EntryType:            model.EntryTypeHeartbeat,
		DecisionOutcome:      model.OutcomeNone,
		Symbol:               symbol,
		DataQualityFlags:     []string{quality.FlagHeartbeatNoDecision},
		DecisionTimestampUtc: &decisionTs,
	}
	g.journal.Enqueue(entry)
}

// marketTsMs 取决策所依据行情的事件时间
// 优先盘口事件时间，缺失时回退到最后一次 tape 接收时间。
func marketTsMs(book *model.OrderBookState) int64 {
	if book.LastBookEventTsUnixMs > 0 {
		return book.LastBookEventTsUnixMs
	}
	return book.LastTapeReceiptMs
}

func firstCritical(flags []string) string {
	for _, f := range flags {
		if quality.Interpret(f).Severity == quality.SeverityCritical {
			return f
		}
	}
	return ""
}
