// Package config 负责加载和验证 YAML 配置文件。
// 提供应用程序所需的所有配置项，包括行情接入、闸门阈值、日志与指标设置等。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"shadow-decision-recorder/internal/core/gate"
)

// 运行模式常量
const (
	// ModeShadow 影子模式：决策被记入日志但不实际执行
	ModeShadow = "shadow"
	// ModeOff 关闭模式：决策日志永久停止，入队一律被拒
	ModeOff = "off"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Symbols 用户配置的交易对列表
	Symbols []SymbolConfig `yaml:"symbols"`
	// Feed 行情接入配置
	Feed FeedConfig `yaml:"feed"`
	// Gate 新鲜度闸门配置
	Gate GateConfig `yaml:"gate"`
	// Journal 影子决策日志配置
	Journal JournalConfig `yaml:"journal"`
	// Decision 决策评估节奏配置
	Decision DecisionConfig `yaml:"decision"`
	// Metrics 指标暴露配置
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// SymbolConfig 交易对配置
type SymbolConfig struct {
	// Input 用户输入的交易对格式，如 BTC-USDT
	Input string `yaml:"input"`
}

// Canon 获取统一交易对标识
// 去掉分隔符并转为大写，如 BTC-USDT -> BTCUSDT。
func (s SymbolConfig) Canon() string {
	canon := strings.ReplaceAll(s.Input, "-", "")
	canon = strings.ReplaceAll(canon, "_", "")
	canon = strings.ReplaceAll(canon, "/", "")
	return strings.ToUpper(canon)
}

// FeedConfig 行情接入（WebSocket）配置
type FeedConfig struct {
	// URL WebSocket 连接地址
	URL string `yaml:"url"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// ReadTimeoutMs 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
	// BufferSize 事件输出通道容量
	BufferSize int `yaml:"buffer_size"`
}

// GateConfig 新鲜度闸门配置
// 负数阈值在构建闸门配置时静默夹紧为 0，不会导致加载失败。
type GateConfig struct {
	// WarmupMinTrades 预热窗口内所需最小成交数，nil 时取默认值 1
	WarmupMinTrades *int `yaml:"warmup_min_trades"`
	// WarmupWindowMs 预热窗口长度（毫秒），nil 时取默认值 15000
	WarmupWindowMs *int64 `yaml:"warmup_window_ms"`
	// StaleWindowMs 过期阈值（毫秒），nil 时取默认值 30000
	StaleWindowMs *int64 `yaml:"stale_window_ms"`
	// ExpectedDepthLevels 期望的单侧深度档数
	ExpectedDepthLevels int `yaml:"expected_depth_levels"`
}

// Build 构建不可变的闸门配置
func (g GateConfig) Build() gate.TapeGateConfig {
	minTrades := gate.DefaultWarmupMinTrades
	if g.WarmupMinTrades != nil {
		minTrades = *g.WarmupMinTrades
	}
	var warmupWindow int64 = gate.DefaultWarmupWindowMs
	if g.WarmupWindowMs != nil {
		warmupWindow = *g.WarmupWindowMs
	}
	var staleWindow int64 = gate.DefaultStaleWindowMs
	if g.StaleWindowMs != nil {
		staleWindow = *g.StaleWindowMs
	}
	return gate.NewTapeGateConfig(minTrades, warmupWindow, staleWindow)
}

// JournalConfig 影子决策日志配置
type JournalConfig struct {
	// Mode 运行模式: shadow 或 off
	Mode string `yaml:"mode"`
	// Path 日志文件路径
	Path string `yaml:"path"`
	// RotateEnabled 是否启用按日轮转
	RotateEnabled bool `yaml:"rotate_enabled"`
}

// ShadowEnabled 判断是否启用影子模式
func (j JournalConfig) ShadowEnabled() bool {
	return j.Mode == ModeShadow
}

// DecisionConfig 决策评估节奏配置
type DecisionConfig struct {
	// IntervalMs 决策评估间隔（毫秒）
	IntervalMs int `yaml:"interval_ms"`
	// HeartbeatIntervalMs 心跳条目间隔（毫秒）
	HeartbeatIntervalMs int `yaml:"heartbeat_interval_ms"`
}

// MetricsConfig 指标暴露配置
type MetricsConfig struct {
	// Enabled 是否启用 /metrics 端点
	Enabled bool `yaml:"enabled"`
	// Addr 监听地址，如 :9109
	Addr string `yaml:"addr"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "shadow-decision-recorder"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Feed.PingIntervalMs == 0 {
		c.Feed.PingIntervalMs = 25000 // 25 秒
	}
	if c.Feed.ReadTimeoutMs == 0 {
		c.Feed.ReadTimeoutMs = 30000 // 30 秒
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = 1000
	}

	if c.Gate.ExpectedDepthLevels == 0 {
		c.Gate.ExpectedDepthLevels = 5
	}

	if c.Journal.Mode == "" {
		c.Journal.Mode = ModeShadow
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "./output/decisions.jsonl"
	}

	if c.Decision.IntervalMs == 0 {
		c.Decision.IntervalMs = 1000 // 1 秒
	}
	if c.Decision.HeartbeatIntervalMs == 0 {
		c.Decision.HeartbeatIntervalMs = 30000 // 30 秒
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9109"
	}
}

// Validate 验证配置合法性
// 闸门阈值为负不属于错误（构建时夹紧）；此处只校验必填项与枚举值。
func (c *Config) Validate() error {
	var errs []string

	if len(c.Symbols) == 0 {
		errs = append(errs, "symbols: 至少需要配置一个交易对")
	}
	for i, sym := range c.Symbols {
		if sym.Input == "" {
			errs = append(errs, fmt.Sprintf("symbols[%d].input: 交易对不能为空", i))
		}
	}

	if c.Feed.URL == "" {
		errs = append(errs, "feed.url: 行情 WebSocket 地址不能为空")
	}

	if c.Journal.Mode != ModeShadow && c.Journal.Mode != ModeOff {
		errs = append(errs, fmt.Sprintf("journal.mode: 无效的运行模式 '%s'，有效值: shadow, off", c.Journal.Mode))
	}
	if c.Journal.Path == "" {
		errs = append(errs, "journal.path: 日志文件路径不能为空")
	}

	if c.Decision.IntervalMs <= 0 {
		errs = append(errs, "decision.interval_ms: 评估间隔必须为正数")
	}
	if c.Decision.HeartbeatIntervalMs <= 0 {
		errs = append(errs, "decision.heartbeat_interval_ms: 心跳间隔必须为正数")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// CanonSymbols 获取所有配置交易对的统一标识
func (c *Config) CanonSymbols() []string {
	out := make([]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		out = append(out, s.Canon())
	}
	return out
}
