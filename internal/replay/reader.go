// Package replay 实现影子决策日志的顺序回放读取。
// 日志是逐行自描述的 JSONL：单行解析失败只跳过该行，绝不让整个文件失效。
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"shadow-decision-recorder/internal/core/model"
)

// Reader 日志回放读取器
// 惰性、有限、只进：按写入顺序逐条产出，支持按时间范围过滤。
type Reader struct {
	// f 日志文件句柄
	f *os.File
	// sc 行扫描器
	sc *bufio.Scanner
	// from 起始时间（含），nil 表示不限
	from *time.Time
	// to 截止时间（不含），nil 表示不限
	to *time.Time
	// logger 日志记录器
	logger *zap.Logger

	// skipped 跳过的畸形行数
	skipped int64
	// lineNo 当前行号（用于诊断日志）
	lineNo int64
}

// NewReader 创建回放读取器
// 参数 path: 日志文件路径
// 参数 from: 起始时间（含），nil 表示不限
// 参数 to: 截止时间（不含），nil 表示不限
// 参数 logger: 日志记录器
func NewReader(path string, from, to *time.Time, logger *zap.Logger) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}

	sc := bufio.NewScanner(f)
	// 单条决策记录通常不足 1KB，1MB 上限足够容纳异常长行
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	return &Reader{
		f:      f,
		sc:     sc,
		from:   from,
		to:     to,
		logger: logger.Named("replay"),
	}, nil
}

// Next 产出下一条符合时间范围的条目
// 文件读尽返回 io.EOF；畸形行计入 SkippedLines 并继续。
func (r *Reader) Next() (*model.ShadowTradeJournalEntry, error) {
	for r.sc.Scan() {
		r.lineNo++
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var e model.ShadowTradeJournalEntry
		if err := json.Unmarshal(line, &e); err != nil {
			r.skipped++
			r.logger.Debug("跳过畸形日志行",
				zap.Int64("line", r.lineNo),
				zap.Error(err))
			continue
		}

		if !r.inRange(&e) {
			continue
		}
		return &e, nil
	}

	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("读取日志文件失败: %w", err)
	}
	return nil, io.EOF
}

// inRange 判断条目是否落在 [from, to) 范围内
// 参考时间取写盘时间，缺失时回退到决策时间、行情时间；全部缺失的条目不过滤。
func (r *Reader) inRange(e *model.ShadowTradeJournalEntry) bool {
	ts := e.JournalWriteTimestampUtc
	if ts == nil {
		ts = e.DecisionTimestampUtc
	}
	if ts == nil {
		ts = e.MarketTimestampUtc
	}
	if ts == nil {
		return true
	}

	if r.from != nil && ts.Before(*r.from) {
		return false
	}
	if r.to != nil && !ts.Before(*r.to) {
		return false
	}
	return true
}

// SkippedLines 获取已跳过的畸形行数
func (r *Reader) SkippedLines() int64 {
	return r.skipped
}

// Close 关闭读取器
func (r *Reader) Close() error {
	return r.f.Close()
}
