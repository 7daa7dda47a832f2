// Package fastparse 提供高性能的字符串解析与格式化函数。
// 避免在热路径使用 fmt.Sprintf；主要服务于行情消息解析和质量标志拼接。
package fastparse

import (
	"strconv"
)

// ParseFloat 快速解析浮点数字符串
// 参数 s: 待解析的字符串，如 "12345.67"
// 返回: 解析后的浮点数和可能的错误
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// ParseInt 快速解析整数字符串
// 参数 s: 待解析的字符串，如 "12345"
// 返回: 解析后的整数和可能的错误
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// MustParseFloat 解析浮点数，失败时返回 0
// 用于已知格式正确的场景，简化错误处理
func MustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatInt 格式化整数为字符串
// 使用 strconv.FormatInt 实现，避免 fmt.Sprintf 开销
func FormatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// FormatFloat 格式化浮点数为字符串
// 参数 prec: 小数位数，-1 表示最短表示
func FormatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}
