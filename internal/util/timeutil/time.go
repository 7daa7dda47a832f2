// Package timeutil 提供时间相关的工具函数。
// 闸门与日志全程使用毫秒时间戳；取当前时间使用"单调时钟 + 启动时 Unix 时间"组合，
// 系统时间跳变（NTP/手动调整）时年龄计算仍保持单调，不会污染新鲜度判定。
package timeutil

import (
	"time"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 获取当前时间的纳秒时间戳
// NowNano = baseUnixNs + time.Since(baseTime).Nanoseconds()
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NowMs 获取当前时间的毫秒时间戳
// 接收时间戳、年龄计算统一使用本函数。
func NowMs() int64 {
	return NowNano() / 1_000_000
}

// NowUTC 获取当前 UTC 时间
// 日志条目时间戳使用本函数，保持与 NowMs 同源。
func NowUTC() time.Time {
	return time.Unix(0, NowNano()).UTC()
}

// MsToTime 将毫秒时间戳转换为 time.Time（UTC）
// 参数 ms: 毫秒时间戳
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeToMs 将 time.Time 转换为毫秒时间戳
// 零值返回 0。
func TimeToMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// SinceMs 计算从指定毫秒时间戳到现在的时间差（毫秒）
// 参数 startMs: 开始时间（毫秒）
func SinceMs(startMs int64) int64 {
	return NowMs() - startMs
}
