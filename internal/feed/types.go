// Package feed 定义行情接入的消息类型。
package feed

// SubscribeRequest WebSocket 订阅请求
// 订阅 depth5@100ms（盘口）与 aggTrade（成交）行情流。
type SubscribeRequest struct {
	// Method 订阅方法: SUBSCRIBE
	Method string `json:"method"`
	// Params 订阅参数列表，如 "btcusdt@depth5@100ms"
	Params []string `json:"params"`
	// ID 请求 ID
	ID int64 `json:"id"`
}

// SubscribeResponse WebSocket 订阅响应
// 通常形如 {"result":null,"id":1}。
type SubscribeResponse struct {
	// Result 结果（成功为 null）
	Result any `json:"result"`
	// ID 请求 ID
	ID int64 `json:"id"`
}

// DepthUpdate 深度推送消息（depthUpdate）
// 字段映射：
// - e: 事件类型（depthUpdate）
// - E: 事件时间（毫秒） -> BookUpdate.EventTsUnixMs
// - s: Symbol（如 BTCUSDT） -> BookUpdate.Symbol
// - b: bids [[price, qty], ...]（字符串）
// - a: asks [[price, qty], ...]（字符串）
type DepthUpdate struct {
	// EventType 事件类型: depthUpdate
	EventType string `json:"e"`
	// EventTimeMs 事件时间（毫秒）
	EventTimeMs int64 `json:"E"`
	// Symbol 交易对（大写）
	Symbol string `json:"s"`
	// Bids 买盘档位（价格、数量）
	Bids [][]string `json:"b"`
	// Asks 卖盘档位（价格、数量）
	Asks [][]string `json:"a"`
}

// AggTrade 归集成交推送消息（aggTrade）
// 字段映射：
// - e: 事件类型（aggTrade）
// - T: 成交时间（毫秒） -> Trade.EventTsUnixMs
// - s: Symbol -> TradePrint.Symbol
// - p/q: 价格/数量（字符串）
type AggTrade struct {
	// EventType 事件类型: aggTrade
	EventType string `json:"e"`
	// EventTimeMs 事件时间（毫秒）
	EventTimeMs int64 `json:"E"`
	// Symbol 交易对（大写）
	Symbol string `json:"s"`
	// Price 成交价格（字符串）
	Price string `json:"p"`
	// Qty 成交数量（字符串）
	Qty string `json:"q"`
	// TradeTimeMs 成交时间（毫秒）
	TradeTimeMs int64 `json:"T"`
}

// ConnectionMetrics 连接质量指标
type ConnectionMetrics struct {
	// ReconnectCount 重连次数
	ReconnectCount int64
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64
	// UpdatesPerSec 每秒更新次数
	UpdatesPerSec float64
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64
}
