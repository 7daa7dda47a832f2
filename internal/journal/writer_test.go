package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"shadow-decision-recorder/internal/core/model"
)

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	w, err := NewWriter(path, true, zap.NewNop())
	if err != nil {
		t.Fatalf("创建写入器失败: %v", err)
	}
	return w, path
}

func readEntries(t *testing.T, path string) []model.ShadowTradeJournalEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开日志文件失败: %v", err)
	}
	defer f.Close()

	var out []model.ShadowTradeJournalEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e model.ShadowTradeJournalEntry
		if err := json.Unmarshal(line, &e); err != nil {
			t.Fatalf("日志行不是合法 JSON: %v (%s)", err, line)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	return out
}

func TestWriter_WriteAndClose(t *testing.T) {
	w, path := newTestWriter(t)

	for i := 0; i < 5; i++ {
		ok := w.Enqueue(&model.ShadowTradeJournalEntry{
			EntryType:       model.EntryTypeDecision,
			DecisionOutcome: model.OutcomeAccepted,
			Symbol:          "BTCUSDT",
			DecisionInputs:  model.DecisionInputs{Score: float64(i)},
		})
		if !ok {
			t.Fatalf("第 %d 条入队被拒", i)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("关闭写入器失败: %v", err)
	}
	if w.State() != StateStopped {
		t.Fatalf("关闭后状态应为 stopped，得到 %s", w.State())
	}

	entries := readEntries(t, path)
	if len(entries) != 5 {
		t.Fatalf("日志行数=%d, want 5", len(entries))
	}
	for i, e := range entries {
		if e.SessionID != w.SessionID() {
			t.Fatalf("第 %d 条会话标识不匹配: %q", i, e.SessionID)
		}
		if e.SchemaVersion != SchemaVersion {
			t.Fatalf("第 %d 条版本=%d, want %d", i, e.SchemaVersion, SchemaVersion)
		}
		if e.JournalWriteTimestampUtc == nil {
			t.Fatalf("第 %d 条缺少写盘时间", i)
		}
		if e.DecisionInputs.Score != float64(i) {
			t.Fatalf("条目顺序错乱: 第 %d 条评分=%v", i, e.DecisionInputs.Score)
		}
	}
}

func TestWriter_DisabledModeRejectsAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	w, err := NewWriter(path, false, zap.NewNop())
	if err != nil {
		t.Fatalf("创建写入器失败: %v", err)
	}
	if w.State() != StateStopped {
		t.Fatalf("非影子模式初始状态应为 stopped，得到 %s", w.State())
	}
	if w.Enqueue(&model.ShadowTradeJournalEntry{EntryType: model.EntryTypeDecision}) {
		t.Fatalf("非影子模式入队应被拒")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("关闭写入器失败: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("非影子模式不应创建日志文件")
	}
}

func TestWriter_EnqueueAfterClose(t *testing.T) {
	w, _ := newTestWriter(t)
	if err := w.Close(); err != nil {
		t.Fatalf("关闭写入器失败: %v", err)
	}
	if w.Enqueue(&model.ShadowTradeJournalEntry{EntryType: model.EntryTypeDecision}) {
		t.Fatalf("关闭后入队应被拒")
	}
	if w.Enqueue(nil) {
		t.Fatalf("nil 条目入队应被拒")
	}
}

func TestWriter_RepairsTimestampMonotonicity(t *testing.T) {
	w, path := newTestWriter(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// 写盘时钟被拨到 base-10s，早于 market 与 decision
	w.nowFn = func() time.Time { return base.Add(-10 * time.Second) }

	market := base
	decision := base.Add(-5 * time.Second) // 早于 market 的乱序输入
	ok := w.Enqueue(&model.ShadowTradeJournalEntry{
		EntryType:            model.EntryTypeDecision,
		DecisionOutcome:      model.OutcomeAccepted,
		Symbol:               "BTCUSDT",
		MarketTimestampUtc:   &market,
		DecisionTimestampUtc: &decision,
	})
	if !ok {
		t.Fatalf("入队被拒")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("关闭写入器失败: %v", err)
	}

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("日志行数=%d, want 1", len(entries))
	}
	e := entries[0]
	if e.MarketTimestampUtc == nil || e.DecisionTimestampUtc == nil || e.JournalWriteTimestampUtc == nil {
		t.Fatalf("时间戳不应为空")
	}
	// market 绝不被回拨
	if !e.MarketTimestampUtc.Equal(market) {
		t.Fatalf("market 时间被改写: %v", e.MarketTimestampUtc)
	}
	// decision 被向前夹紧到 market
	if e.DecisionTimestampUtc.Before(*e.MarketTimestampUtc) {
		t.Fatalf("decision(%v) 仍早于 market(%v)", e.DecisionTimestampUtc, e.MarketTimestampUtc)
	}
	// write 被向前夹紧到 decision
	if e.JournalWriteTimestampUtc.Before(*e.DecisionTimestampUtc) {
		t.Fatalf("write(%v) 仍早于 decision(%v)", e.JournalWriteTimestampUtc, e.DecisionTimestampUtc)
	}
}

func TestWriter_ConcurrentProducersLoseNothing(t *testing.T) {
	w, path := newTestWriter(t)

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			sym := fmt.Sprintf("SYM%d", p)
			for i := 0; i < perProducer; i++ {
				ok := w.Enqueue(&model.ShadowTradeJournalEntry{
					EntryType:       model.EntryTypeDecision,
					DecisionOutcome: model.OutcomeAccepted,
					Symbol:          sym,
					DecisionInputs:  model.DecisionInputs{Score: float64(i)},
				})
				if !ok {
					t.Errorf("生产者 %d 第 %d 条入队被拒", p, i)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("关闭写入器失败: %v", err)
	}

	entries := readEntries(t, path)
	if len(entries) != producers*perProducer {
		t.Fatalf("日志行数=%d, want %d（关停前入队的条目不得丢失）", len(entries), producers*perProducer)
	}

	// 单生产者内部顺序必须保持（评分即序号）
	lastSeq := make(map[string]float64, producers)
	for _, e := range entries {
		if last, ok := lastSeq[e.Symbol]; ok && e.DecisionInputs.Score <= last {
			t.Fatalf("生产者 %s 顺序错乱: %v 出现在 %v 之后", e.Symbol, e.DecisionInputs.Score, last)
		}
		lastSeq[e.Symbol] = e.DecisionInputs.Score
	}
}

func TestWriter_PreservesCallerSessionID(t *testing.T) {
	w, path := newTestWriter(t)

	ok := w.Enqueue(&model.ShadowTradeJournalEntry{
		SessionID:       "replay-session",
		EntryType:       model.EntryTypeDecision,
		DecisionOutcome: model.OutcomeAccepted,
		Symbol:          "BTCUSDT",
	})
	if !ok {
		t.Fatalf("入队被拒")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("关闭写入器失败: %v", err)
	}

	entries := readEntries(t, path)
	if len(entries) != 1 || entries[0].SessionID != "replay-session" {
		t.Fatalf("调用方自带的会话标识不应被覆盖")
	}
}
