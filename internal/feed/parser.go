// Package feed 实现行情消息解析。
// 盘口消息映射为 model.BookUpdate，成交消息映射为 model.TradePrint，
// 两者都以本机接收时间作为 Receipt 时间戳。
package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"shadow-decision-recorder/internal/core/model"
	"shadow-decision-recorder/internal/util/fastparse"
	"shadow-decision-recorder/internal/util/timeutil"
)

// maxDepthLevels 解析时保留的单侧深度档数
const maxDepthLevels = 5

// eventProbe 仅用于探测消息类型的轻量结构
type eventProbe struct {
	EventType string `json:"e"`
}

// Parser 行情消息解析器
type Parser struct {
	// symbols 配置的统一交易对集合，用于过滤未配置交易对
	symbols map[string]bool
}

// NewParser 创建行情消息解析器
// 参数 symbols: 统一交易对列表
func NewParser(symbols []string) *Parser {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(s)] = true
	}
	return &Parser{symbols: set}
}

// Parse 解析一条 WebSocket 消息
// 返回值至多一个非 nil：盘口消息返回 BookUpdate，成交消息返回 TradePrint，
// 其余消息（订阅响应等）两者皆为 nil 且无错误。
func (p *Parser) Parse(data []byte) (*model.BookUpdate, *model.TradePrint, error) {
	receiptMs := timeutil.NowMs()

	var probe eventProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, fmt.Errorf("解析行情消息失败: %w", err)
	}

	switch probe.EventType {
	case "depthUpdate":
		return p.parseDepth(data, receiptMs)
	case "aggTrade":
		return p.parseTrade(data, receiptMs)
	default:
		return nil, nil, nil
	}
}

func (p *Parser) parseDepth(data []byte, receiptMs int64) (*model.BookUpdate, *model.TradePrint, error) {
	var msg DepthUpdate
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, fmt.Errorf("解析深度消息失败: %w", err)
	}

	symbol := strings.ToUpper(msg.Symbol)
	if symbol == "" || !p.symbols[symbol] {
		return nil, nil, nil
	}

	u := &model.BookUpdate{
		Symbol:          symbol,
		EventTsUnixMs:   msg.EventTimeMs,
		ReceiptTsUnixMs: receiptMs,
	}

	if len(msg.Bids) > 0 && len(msg.Bids[0]) >= 2 {
		u.BestBidPx = fastparse.MustParseFloat(msg.Bids[0][0])
		u.BestBidQty = fastparse.MustParseFloat(msg.Bids[0][1])
	}
	if len(msg.Asks) > 0 && len(msg.Asks[0]) >= 2 {
		u.BestAskPx = fastparse.MustParseFloat(msg.Asks[0][0])
		u.BestAskQty = fastparse.MustParseFloat(msg.Asks[0][1])
	}

	u.Bids = parseLevels(msg.Bids)
	u.Asks = parseLevels(msg.Asks)

	return u, nil, nil
}

func (p *Parser) parseTrade(data []byte, receiptMs int64) (*model.BookUpdate, *model.TradePrint, error) {
	var msg AggTrade
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, fmt.Errorf("解析成交消息失败: %w", err)
	}

	symbol := strings.ToUpper(msg.Symbol)
	if symbol == "" || !p.symbols[symbol] {
		return nil, nil, nil
	}

	eventMs := msg.TradeTimeMs
	if eventMs == 0 {
		eventMs = msg.EventTimeMs
	}

	print := &model.TradePrint{
		Symbol: symbol,
		Trade: model.Trade{
			Price:           fastparse.MustParseFloat(msg.Price),
			Size:            fastparse.MustParseFloat(msg.Qty),
			EventTsUnixMs:   eventMs,
			ReceiptTsUnixMs: receiptMs,
		},
	}
	return nil, print, nil
}

func parseLevels(raw [][]string) []model.Level {
	if len(raw) == 0 {
		return nil
	}
	levels := make([]model.Level, 0, maxDepthLevels)
	for i, lv := range raw {
		if i >= maxDepthLevels || len(lv) < 2 {
			break
		}
		levels = append(levels, model.Level{
			Price: fastparse.MustParseFloat(lv[0]),
			Qty:   fastparse.MustParseFloat(lv[1]),
		})
	}
	return levels
}
