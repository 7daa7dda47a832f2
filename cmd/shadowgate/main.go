// Package main 是影子决策守门器的入口点。
// 本程序接入实时行情，把订单簿/tape 状态折算为就绪状态与质量标志，
// 据此抑制或放行自动交易决策，并把每个决策（含被抑制的）持久化到
// 影子日志，供事后回放与审计。
//
// 重要：本系统运行于影子模式，决策只记录、不下单。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shadow-decision-recorder/internal/config"
	"shadow-decision-recorder/internal/core/gatekeeper"
	"shadow-decision-recorder/internal/core/store"
	"shadow-decision-recorder/internal/feed"
	"shadow-decision-recorder/internal/journal"
	"shadow-decision-recorder/internal/metrics"
	"shadow-decision-recorder/internal/util/timeutil"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	// 日志目录无法创建属启动期配置错误，直接退出
	writer, err := journal.NewWriter(cfg.Journal.Path, cfg.Journal.ShadowEnabled(), logger)
	if err != nil {
		logger.Error("创建决策日志失败", zap.Error(err))
		os.Exit(1)
	}

	if cfg.Journal.RotateEnabled && cfg.Journal.ShadowEnabled() {
		rot := journal.NewRotationService(writer, logger)
		go runDailyRotation(ctx, rot, logger)
	}

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info("指标端点已启动", zap.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Warn("指标端点退出", zap.Error(err))
			}
		}()
	}

	symbols := cfg.CanonSymbols()
	client := feed.NewClient(&cfg.Feed, symbols, logger)

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	defer startCancel()

	if err := client.Connect(startCtx); err != nil {
		logger.Error("行情连接失败", zap.Error(err))
		os.Exit(1)
	}
	if err := client.Subscribe(); err != nil {
		logger.Error("行情订阅失败", zap.Error(err))
		os.Exit(1)
	}
	go client.Run(ctx)

	bookStore := store.New(0)
	gk := gatekeeper.New(cfg.Gate.Build(), cfg.Gate.ExpectedDepthLevels, writer, logger)

	runAggregator(ctx, logger, cfg, bookStore, gk, client)

	// 优雅关闭（10s 超时）：先停行情，再排空日志
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Close()
		_ = writer.Close()
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成")
	}
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// runAggregator 聚合器主循环（订单簿状态的唯一写者）
// 行情事件更新状态；决策节拍逐交易对评估守门结果；
// 心跳节拍为长期无决策的交易对补写心跳条目。
func runAggregator(
	ctx context.Context,
	logger *zap.Logger,
	cfg *config.Config,
	bookStore *store.Store,
	gk *gatekeeper.Gatekeeper,
	client *feed.Client,
) {
	bookCh := client.BookCh()
	tradeCh := client.TradeCh()

	decisionTicker := time.NewTicker(time.Duration(cfg.Decision.IntervalMs) * time.Millisecond)
	defer decisionTicker.Stop()
	heartbeatTicker := time.NewTicker(time.Duration(cfg.Decision.HeartbeatIntervalMs) * time.Millisecond)
	defer heartbeatTicker.Stop()

	symbols := cfg.CanonSymbols()
	lastDecisionMs := make(map[string]int64, len(symbols))

	for {
		select {
		case <-ctx.Done():
			return

		case u, ok := <-bookCh:
			if !ok {
				bookCh = nil
				continue
			}
			bookStore.ApplyBookUpdate(u)

		case p, ok := <-tradeCh:
			if !ok {
				tradeCh = nil
				continue
			}
			bookStore.ApplyTradePrint(p)

		case <-decisionTicker.C:
			nowMs := timeutil.NowMs()
			for _, sym := range symbols {
				snap := bookStore.Snapshot(sym)
				if snap == nil {
					// 尚无任何行情，留给心跳节拍
					continue
				}
				// 评分取当前价差，仅作决策输入的诊断快照
				eval := gk.RecordDecision(nowMs, snap, true, sym, snap.SpreadBps())
				lastDecisionMs[sym] = nowMs
				if !eval.Accepted {
					logger.Debug("决策被抑制",
						zap.String("symbol", sym),
						zap.String("state", eval.Status.State.String()),
						zap.Strings("flags", eval.Flags))
				}
			}

		case <-heartbeatTicker.C:
			nowMs := timeutil.NowMs()
			horizon := int64(cfg.Decision.HeartbeatIntervalMs)
			for _, sym := range symbols {
				if nowMs-lastDecisionMs[sym] >= horizon {
					gk.RecordHeartbeat(nowMs, sym)
				}
			}
		}

		if bookCh == nil && tradeCh == nil {
			return
		}
	}
}

// runDailyRotation 按 UTC 日期变化触发日志轮转
func runDailyRotation(ctx context.Context, rot *journal.RotationService, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	curDate := time.Now().UTC().Format("2006-01-02")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			date := now.Format("2006-01-02")
			if date == curDate {
				continue
			}
			// 归档归属于刚结束的那一天
			if err := rot.Rotate(now.AddDate(0, 0, -1)); err != nil {
				logger.Warn("日志轮转失败", zap.Error(err))
				continue
			}
			curDate = date
		}
	}
}
