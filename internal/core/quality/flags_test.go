package quality

import (
	"testing"

	"shadow-decision-recorder/internal/core/gate"
	"shadow-decision-recorder/internal/core/model"
)

const bookReceiptMs = int64(1_000_000)

func readyStatus() gate.TapeStatus {
	return gate.TapeStatus{State: gate.StateReady}
}

// validBook 构造买卖各 5 档的健康盘口，接收时间为 bookReceiptMs
func validBook() *model.OrderBookState {
	b := model.NewOrderBookState("BTCUSDT", 0)
	b.ApplyBookUpdate(&model.BookUpdate{
		Symbol:          "BTCUSDT",
		BestBidPx:       100.0,
		BestBidQty:      1,
		BestAskPx:       100.1,
		BestAskQty:      1,
		Bids:            fiveLevels(100.0, -0.1),
		Asks:            fiveLevels(100.1, 0.1),
		ReceiptTsUnixMs: bookReceiptMs,
	})
	return b
}

func fiveLevels(start, step float64) []model.Level {
	out := make([]model.Level, 5)
	for i := range out {
		out[i] = model.Level{Price: start + float64(i)*step, Qty: 1}
	}
	return out
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func TestBuildFlags_CleanBookNoFlags(t *testing.T) {
	book := validBook()
	depth := book.BuildDepthSnapshot(bookReceiptMs, 5)
	flags := BuildFlags(book, depth, readyStatus())
	if len(flags) != 0 {
		t.Fatalf("健康盘口不应产生标志，得到 %v", flags)
	}
}

func TestBuildFlags_MissingContext(t *testing.T) {
	flags := BuildFlags(nil, nil, readyStatus())
	if !hasFlag(flags, FlagMissingBookContext) {
		t.Fatalf("nil 订单簿应产生 MissingBookContext，得到 %v", flags)
	}
}

func TestBuildFlags_BookInvalid(t *testing.T) {
	b := model.NewOrderBookState("BTCUSDT", 0)
	// 交叉盘口：买一高于卖一
	b.ApplyBookUpdate(&model.BookUpdate{
		Symbol:          "BTCUSDT",
		BestBidPx:       101,
		BestAskPx:       100,
		Bids:            []model.Level{{Price: 101, Qty: 1}},
		Asks:            []model.Level{{Price: 100, Qty: 1}},
		ReceiptTsUnixMs: bookReceiptMs,
	})
	depth := b.BuildDepthSnapshot(bookReceiptMs, 1)

	flags := BuildFlags(b, depth, readyStatus())
	if !hasFlag(flags, "BookInvalid:crossed_book") {
		t.Fatalf("交叉盘口应产生 BookInvalid:crossed_book，得到 %v", flags)
	}

	// 无报价盘口
	empty := model.NewOrderBookState("BTCUSDT", 0)
	flags = BuildFlags(empty, &model.DepthSnapshot{}, readyStatus())
	if !hasFlag(flags, "BookInvalid:no_quotes") {
		t.Fatalf("空盘口应产生 BookInvalid:no_quotes，得到 %v", flags)
	}
}

func TestBuildFlags_NotWarmedUpSubFlags(t *testing.T) {
	age := int64(5000)
	status := gate.TapeStatus{
		State:                gate.StateNotWarmedUp,
		AgeMs:                &age,
		TradesInWarmupWindow: 1,
		WarmupMinTrades:      2,
		WarmupWindowMs:       10000,
	}
	book := validBook()
	depth := book.BuildDepthSnapshot(bookReceiptMs, 5)

	flags := BuildFlags(book, depth, status)
	for _, want := range []string{
		"TapeNotWarmedUp",
		"TapeNotWarmedUp:tradesInWindow=1",
		"TapeNotWarmedUp:warmupMinTrades=2",
		"TapeNotWarmedUp:warmupWindowMs=10000",
		"TapeLastAgeMs=5000",
	} {
		if !hasFlag(flags, want) {
			t.Fatalf("缺少标志 %q，得到 %v", want, flags)
		}
	}
}

func TestBuildFlags_NotWarmedUpWithoutAge(t *testing.T) {
	status := gate.TapeStatus{
		State:           gate.StateNotWarmedUp,
		WarmupMinTrades: 1,
		WarmupWindowMs:  15000,
	}
	book := validBook()
	depth := book.BuildDepthSnapshot(bookReceiptMs, 5)

	flags := BuildFlags(book, depth, status)
	for _, f := range flags {
		if f == "TapeLastAgeMs=0" {
			t.Fatalf("从未收到成交时不应产生 TapeLastAgeMs 标志，得到 %v", flags)
		}
	}
}

func TestBuildFlags_StaleTranslation(t *testing.T) {
	age := int64(45000)
	status := gate.TapeStatus{State: gate.StateStale, AgeMs: &age}
	book := validBook()
	depth := book.BuildDepthSnapshot(bookReceiptMs, 5)

	flags := BuildFlags(book, depth, status)
	for _, want := range []string{"TapeStale", "StaleTick", "TapeStale:ageMs=45000"} {
		if !hasFlag(flags, want) {
			t.Fatalf("缺少标志 %q，得到 %v", want, flags)
		}
	}
}

func TestBuildFlags_MissingSubscription(t *testing.T) {
	book := validBook()
	depth := book.BuildDepthSnapshot(bookReceiptMs, 5)
	flags := BuildFlags(book, depth, gate.TapeStatus{State: gate.StateMissingSubscription})
	if !hasFlag(flags, FlagTapeMissingSubscription) {
		t.Fatalf("缺少 TapeMissingSubscription，得到 %v", flags)
	}
}

func TestBuildFlags_PartialBook(t *testing.T) {
	b := model.NewOrderBookState("BTCUSDT", 0)
	b.ApplyBookUpdate(&model.BookUpdate{
		Symbol:          "BTCUSDT",
		BestBidPx:       100.0,
		BestAskPx:       100.1,
		Bids:            fiveLevels(100.0, -0.1)[:3],
		Asks:            fiveLevels(100.1, 0.1),
		ReceiptTsUnixMs: bookReceiptMs,
	})
	depth := b.BuildDepthSnapshot(bookReceiptMs, 5)

	flags := BuildFlags(b, depth, readyStatus())
	for _, want := range []string{
		"PartialBook",
		"PartialBook:bidLevels=3",
		"PartialBook:askLevels=5",
		"PartialBook:expected=5",
	} {
		if !hasFlag(flags, want) {
			t.Fatalf("缺少标志 %q，得到 %v", want, flags)
		}
	}
}

func TestBuildFlags_StaleDepthBoundary(t *testing.T) {
	book := validBook()

	// 深度年龄恰好等于阈值：不标记
	depth := book.BuildDepthSnapshot(bookReceiptMs+StaleDepthThresholdMs, 5)
	flags := BuildFlags(book, depth, readyStatus())
	if hasFlag(flags, FlagStaleDepth) {
		t.Fatalf("年龄等于阈值不应标记 StaleDepth，得到 %v", flags)
	}

	// 超出 1ms：标记并携带年龄
	depth = book.BuildDepthSnapshot(bookReceiptMs+StaleDepthThresholdMs+1, 5)
	flags = BuildFlags(book, depth, readyStatus())
	if !hasFlag(flags, FlagStaleDepth) || !hasFlag(flags, "StaleDepth:ageMs=2001") {
		t.Fatalf("缺少 StaleDepth 标志，得到 %v", flags)
	}
}

func TestInterpret_Severity(t *testing.T) {
	cases := []struct {
		flag string
		want Severity
	}{
		{"PartialBook", SeverityCritical},
		{"PartialBook:bidLevels=3", SeverityCritical},
		{"StaleTick", SeverityCritical},
		{"TapeStale:ageMs=45000", SeverityCritical},
		{"TapeMissingSubscription", SeverityCritical},
		{"BookInvalid:crossed_book", SeverityCritical},
		{"StaleDepth", SeverityWarning},
		{"StaleDepth:ageMs=2001", SeverityWarning},
		{"TapeNotWarmedUp", SeverityWarning},
		{"TapeNotWarmedUp:tradesInWindow=1", SeverityWarning},
		{"MissingBookContext", SeverityWarning},
		{"HeartbeatNoDecision", SeverityInfo},
		{"TapeLastAgeMs", SeverityInfo},
		{"", SeverityInfo},
		{"SomethingNew:whatever", SeverityInfo},
	}
	for _, c := range cases {
		got := Interpret(c.flag)
		if got.Severity != c.want {
			t.Fatalf("Interpret(%q).Severity=%s, want %s", c.flag, got.Severity, c.want)
		}
		if got.Flag != c.flag {
			t.Fatalf("Interpret 应保留原始标志字符串")
		}
	}
}

func TestHasCriticalIssues(t *testing.T) {
	if HasCriticalIssues(nil) {
		t.Fatalf("nil 列表不应判为 Critical")
	}
	if HasCriticalIssues([]string{}) {
		t.Fatalf("空列表不应判为 Critical")
	}
	if HasCriticalIssues([]string{"StaleDepth", "HeartbeatNoDecision"}) {
		t.Fatalf("仅警告/信息级别不应判为 Critical")
	}
	if !HasCriticalIssues([]string{"StaleDepth", "PartialBook:expected=5"}) {
		t.Fatalf("含 PartialBook 应判为 Critical")
	}
}
